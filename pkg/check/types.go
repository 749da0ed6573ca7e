package check

// Verdict classifies the result of auditing one node.
type Verdict int

const (
	// Valid means no error-level discrepancy was found.
	Valid Verdict = iota
	// NeedsRepair means the node directory is structurally incomplete but
	// plausibly reconstructable.
	NeedsRepair
	// Invalid means the on-disk content disagrees with the metadata.
	Invalid
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case NeedsRepair:
		return "needs repair"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// IssueType indicates the severity of an issue.
type IssueType string

const (
	IssueTypeError   IssueType = "error"
	IssueTypeWarning IssueType = "warning"
)

// MissingIndexSeverity is the severity given to a node directory without an
// idx subdirectory, in both audit modes. The index directory is rebuilt on
// demand, so its absence is reported but never fails a node on its own.
const MissingIndexSeverity = IssueTypeWarning

// Issue represents a discrepancy found while checking a node.
type Issue struct {
	Type        IssueType
	Description string
	// Err is a *StructuralError or a *ContentMismatchError.
	Err error
}

// Report contains the result of checking one node.
type Report struct {
	NodeID  string
	Dir     string
	Verdict Verdict
	Issues  []Issue
}

// Passed reports whether the node is valid.
func (r *Report) Passed() bool {
	return r.Verdict == Valid
}

// Warnings returns the number of warning-level issues.
func (r *Report) Warnings() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Type == IssueTypeWarning {
			n++
		}
	}
	return n
}

func (r *Report) fail(v Verdict, err error) {
	r.Issues = append(r.Issues, Issue{Type: IssueTypeError, Description: err.Error(), Err: err})
	if v > r.Verdict {
		r.Verdict = v
	}
}

func (r *Report) warn(err error) {
	r.Issues = append(r.Issues, Issue{Type: IssueTypeWarning, Description: err.Error(), Err: err})
}

func (r *Report) add(t IssueType, v Verdict, err error) {
	if t == IssueTypeWarning {
		r.warn(err)
		return
	}
	r.fail(v, err)
}
