// Package audit drives the consistency checker over every node of a Shock
// store, either by walking the shard tree or by iterating the canonical node
// records.
package audit

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/dustin/go-humanize"
	logging "github.com/ipfs/go-log/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/storacha/shockaudit/pkg/check"
	"github.com/storacha/shockaudit/pkg/node"
	"github.com/storacha/shockaudit/pkg/shard"
	"github.com/storacha/shockaudit/pkg/shockdb"
	"github.com/storacha/shockaudit/pkg/stats"
)

var (
	log    = logging.Logger("audit")
	tracer = otel.Tracer("audit")
)

// DefaultProgressEvery is how many nodes are processed between progress log
// lines.
const DefaultProgressEvery = 1000

// NodeSource provides canonical node records.
type NodeSource interface {
	// Nodes iterates over the records modified at or after since, or over all
	// records when since is zero.
	Nodes(ctx context.Context, since time.Time) iter.Seq2[*node.Record, error]
}

// Tally counts the outcomes of an audit run.
type Tally struct {
	Checked     int
	Passed      int
	Failed      int
	NeedsRepair int
	Invalid     int
	Warnings    int
	// Skipped counts canonical records that could not be decoded.
	Skipped int
}

// Add counts one node report.
func (t *Tally) Add(r *check.Report) {
	t.Checked++
	t.Warnings += r.Warnings()
	switch r.Verdict {
	case check.Valid:
		t.Passed++
	case check.NeedsRepair:
		t.Failed++
		t.NeedsRepair++
	default:
		t.Failed++
		t.Invalid++
	}
}

func (t Tally) String() string {
	return fmt.Sprintf("Checked %s nodes: %s passed, %s failed",
		humanize.Comma(int64(t.Checked)), humanize.Comma(int64(t.Passed)), humanize.Comma(int64(t.Failed)))
}

// Runner audits nodes one at a time, passing every report to Reporter as soon
// as it is produced.
type Runner struct {
	Checker  *check.Checker
	Reporter Reporter
	// ProgressEvery is the progress logging interval. Zero means
	// DefaultProgressEvery.
	ProgressEvery int
}

func (r *Runner) progressEvery() int {
	if r.ProgressEvery <= 0 {
		return DefaultProgressEvery
	}
	return r.ProgressEvery
}

func (r *Runner) record(tally *Tally, report *check.Report) error {
	tally.Add(report)
	if r.Reporter != nil {
		if err := r.Reporter.Report(report); err != nil {
			return fmt.Errorf("reporting node %s: %w", report.NodeID, err)
		}
	}
	if tally.Checked%r.progressEvery() == 0 {
		log.Infof("checked %s nodes", humanize.Comma(int64(tally.Checked)))
	}
	return nil
}

// interrupted returns a non-nil error once ctx is done. The error wraps both
// ctx.Err() and the cancellation cause, if there is a separate one.
func interrupted(ctx context.Context, n int) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if cause := context.Cause(ctx); cause != err {
		return fmt.Errorf("interrupted after %d nodes: %w, cause: %w", n, err, cause)
	}
	return fmt.Errorf("interrupted after %d nodes: %w", n, err)
}

// RunFiles walks the shard tree of the checker's base directory and checks
// every node directory against its own descriptor. Directories at node depth
// that are not where their name resolves to are reported invalid.
//
// The context is checked between nodes. On interruption the partial tally is
// returned together with the cancellation cause.
func (r *Runner) RunFiles(ctx context.Context) (Tally, error) {
	ctx, span := tracer.Start(ctx, "run-files", trace.WithAttributes(
		attribute.String("audit.base_dir", r.Checker.BaseDir),
	))
	defer span.End()

	var tally Tally
	for leaf, err := range shard.Walk(r.Checker.Fs, r.Checker.BaseDir) {
		if err != nil {
			return tally, err
		}
		if err := interrupted(ctx, tally.Checked); err != nil {
			return tally, err
		}

		var report *check.Report
		if leaf.Misplaced {
			report = check.Misplaced(leaf)
		} else {
			report = r.Checker.Check(ctx, leaf.Name, nil)
		}
		if err := r.record(&tally, report); err != nil {
			return tally, err
		}
	}
	span.SetAttributes(attribute.Int("audit.checked", tally.Checked))
	return tally, nil
}

// RunNodes checks every canonical record from src, optionally only those
// modified at or after since, against its node directory. Records that cannot
// be decoded are logged and skipped; any other source error ends the run.
//
// The context is checked between nodes. On interruption the partial tally is
// returned together with the cancellation cause.
func (r *Runner) RunNodes(ctx context.Context, src NodeSource, since time.Time) (Tally, error) {
	ctx, span := tracer.Start(ctx, "run-nodes", trace.WithAttributes(
		attribute.String("audit.base_dir", r.Checker.BaseDir),
		attribute.String("audit.since", formatSince(since)),
	))
	defer span.End()

	var tally Tally
	for rec, err := range src.Nodes(ctx, since) {
		if ierr := interrupted(ctx, tally.Checked); ierr != nil {
			return tally, ierr
		}
		if err != nil {
			var recErr *shockdb.RecordError
			if errors.As(err, &recErr) {
				log.Warnf("skipping node record: %s", err)
				tally.Skipped++
				continue
			}
			return tally, fmt.Errorf("reading node records: %w", err)
		}

		if err := r.record(&tally, r.Checker.Check(ctx, rec.ID, rec)); err != nil {
			return tally, err
		}
	}
	span.SetAttributes(attribute.Int("audit.checked", tally.Checked))
	return tally, nil
}

func formatSince(since time.Time) string {
	if since.IsZero() {
		return ""
	}
	return since.Format(time.RFC3339)
}

// StatsTally counts the outcome of a stats run.
type StatsTally struct {
	Counted int
	// Skipped counts canonical records that could not be decoded.
	Skipped int
}

// RunStats counts every canonical record from src into agg. Undecodable
// records are logged, counted as skipped and otherwise ignored.
func RunStats(ctx context.Context, src NodeSource, agg *stats.Aggregator, progressEvery int) (StatsTally, error) {
	ctx, span := tracer.Start(ctx, "run-stats")
	defer span.End()

	if progressEvery <= 0 {
		progressEvery = DefaultProgressEvery
	}

	var tally StatsTally
	for rec, err := range src.Nodes(ctx, time.Time{}) {
		if ierr := interrupted(ctx, tally.Counted); ierr != nil {
			return tally, ierr
		}
		if err != nil {
			var recErr *shockdb.RecordError
			if errors.As(err, &recErr) {
				log.Warnf("skipping node record: %s", err)
				tally.Skipped++
				continue
			}
			return tally, fmt.Errorf("reading node records: %w", err)
		}

		if err := agg.Ingest(rec); err != nil {
			return tally, err
		}
		tally.Counted++
		if tally.Counted%progressEvery == 0 {
			log.Infof("counted %s nodes", humanize.Comma(int64(tally.Counted)))
		}
	}
	span.SetAttributes(
		attribute.Int("stats.nodes", tally.Counted),
		attribute.Int("stats.skipped", tally.Skipped),
	)
	return tally, nil
}
