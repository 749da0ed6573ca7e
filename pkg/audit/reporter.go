package audit

import (
	"fmt"
	"io"

	"github.com/storacha/shockaudit/pkg/check"
)

// Reporter receives the report of every audited node.
type Reporter interface {
	Report(r *check.Report) error
}

// LineReporter writes one line per issue, for example
//
//	[data invalid]: node 0a1b2c3d-... missing data file (path=...)
//	[warning]: node 0a1b2c3d-... missing idx directory
//
// Error lines are tagged with the node's verdict. With Verbose set, valid
// nodes also get an "[ok]" line.
type LineReporter struct {
	W       io.Writer
	Verbose bool
}

var _ Reporter = (*LineReporter)(nil)

func verdictTag(v check.Verdict) string {
	if v == check.NeedsRepair {
		return "[data needs repair]"
	}
	return "[data invalid]"
}

func (lr *LineReporter) Report(r *check.Report) error {
	for _, issue := range r.Issues {
		tag := "[warning]"
		if issue.Type == check.IssueTypeError {
			tag = verdictTag(r.Verdict)
		}
		if _, err := fmt.Fprintf(lr.W, "%s: node %s %s\n", tag, r.NodeID, issue.Description); err != nil {
			return err
		}
	}
	if lr.Verbose && r.Passed() {
		if _, err := fmt.Fprintf(lr.W, "[ok]: node %s\n", r.NodeID); err != nil {
			return err
		}
	}
	return nil
}
