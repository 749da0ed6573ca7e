// Package check cross-checks a node's metadata against its shard directory.
package check

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/storacha/shockaudit/pkg/checksum"
	"github.com/storacha/shockaudit/pkg/descriptor"
	"github.com/storacha/shockaudit/pkg/node"
	"github.com/storacha/shockaudit/pkg/shard"
)

var tracer = otel.Tracer("check")

const (
	// IndexDir is the name of the index subdirectory of a node directory.
	IndexDir = "idx"
	// DataExtension is the extension of the default data file.
	DataExtension = ".data"
)

// Options configures the check behavior.
type Options struct {
	// Checksums enables hashing data files and comparing the recorded digests.
	Checksums bool
}

// Checker audits nodes stored under BaseDir.
type Checker struct {
	Fs      afero.Fs
	BaseDir string
	Options Options
}

// DataPath returns where the data file of rec is stored.
func DataPath(dir string, rec *node.Record) string {
	if rec.File.Path != "" {
		return rec.File.Path
	}
	return filepath.Join(dir, rec.ID+DataExtension)
}

// Check audits node id. With a nil rec the on-disk descriptor is decoded and
// used as the source of truth (filesystem-first). With a canonical rec the
// descriptor is only checked for presence and the record's fields are trusted
// (database-first). The same structural, size and checksum rules apply in both
// cases.
//
// Check never modifies the filesystem and never fails; every anomaly is
// recorded in the returned report.
func (c *Checker) Check(ctx context.Context, id string, rec *node.Record) *Report {
	ctx, span := tracer.Start(ctx, "check-node", trace.WithAttributes(
		attribute.String("node.id", id),
		attribute.Bool("node.canonical", rec != nil),
	))
	defer span.End()

	report := &Report{NodeID: id, Verdict: Valid}
	c.check(ctx, report, id, rec)

	span.SetAttributes(attribute.String("node.verdict", report.Verdict.String()))
	return report
}

func (c *Checker) check(ctx context.Context, report *Report, id string, rec *node.Record) {
	dir, err := shard.Resolve(id, c.BaseDir)
	if err != nil {
		report.fail(Invalid, &StructuralError{Problem: "malformed node id", Err: err})
		return
	}
	report.Dir = dir

	if !c.isDir(dir) {
		report.fail(Invalid, &StructuralError{Problem: "missing node directory", Path: dir})
		return
	}

	if !c.isDir(filepath.Join(dir, IndexDir)) {
		report.add(MissingIndexSeverity, Invalid, &StructuralError{Problem: "missing idx directory"})
	}

	meta := rec
	if rec == nil {
		meta, err = descriptor.Read(c.Fs, dir, id)
	} else {
		err = descriptor.Stat(c.Fs, dir, id)
	}
	if err != nil {
		path := descriptor.Path(dir, id)
		switch {
		case errors.Is(err, descriptor.ErrNotFound):
			report.fail(NeedsRepair, &StructuralError{Problem: "missing descriptor file, directory should be deleted", Path: path})
		case errors.Is(err, descriptor.ErrEmpty):
			report.fail(Invalid, &StructuralError{Problem: "zero size descriptor file", Path: path})
		default:
			report.fail(Invalid, &StructuralError{Problem: "unreadable descriptor file", Path: path, Err: err})
		}
		return
	}

	source := "descriptor"
	if rec != nil {
		source = "node record"
	}
	c.checkData(ctx, report, dir, meta, source)
}

func (c *Checker) checkData(ctx context.Context, report *Report, dir string, meta *node.Record, source string) {
	if !meta.ExpectsData() {
		return
	}

	path := DataPath(dir, meta)
	info, err := c.Fs.Stat(path)
	if err != nil || info.IsDir() {
		report.fail(Invalid, &StructuralError{Problem: "missing data file", Path: path})
		return
	}

	if info.Size() != meta.File.Size {
		report.fail(Invalid, &ContentMismatchError{
			Field:    "size",
			Source:   source,
			Expected: strconv.FormatInt(meta.File.Size, 10),
			Actual:   strconv.FormatInt(info.Size(), 10),
		})
		return
	}

	if !c.Options.Checksums || !meta.File.HasChecksum() {
		return
	}

	f, err := c.Fs.Open(path)
	if err != nil {
		report.fail(Invalid, &StructuralError{Problem: "unreadable data file", Path: path, Err: err})
		return
	}
	defer f.Close()

	res, err := checksum.Verify(f, meta.File.Checksum)
	if err != nil {
		report.fail(Invalid, &StructuralError{Problem: "unreadable data file", Path: path, Err: err})
		return
	}
	if !res.OK() {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("node.checksum_mismatches", len(res.Mismatches)))
	}
	for _, m := range res.Mismatches {
		report.fail(Invalid, &ContentMismatchError{
			Field:    m.Algorithm,
			Source:   source,
			Expected: m.Expected,
			Actual:   m.Actual,
		})
	}
	for _, tag := range res.Unsupported {
		report.warn(&StructuralError{Problem: fmt.Sprintf("cannot verify %s checksum, algorithm not supported", tag)})
	}
}

func (c *Checker) isDir(path string) bool {
	ok, err := afero.IsDir(c.Fs, path)
	return err == nil && ok
}

// Misplaced reports a directory found at node depth whose name is not a node
// identifier or which is not where its identifier resolves to.
func Misplaced(leaf shard.Leaf) *Report {
	report := &Report{NodeID: leaf.Name, Dir: leaf.Dir, Verdict: Valid}
	report.fail(Invalid, &StructuralError{Problem: "node directory is misplaced or misnamed", Path: leaf.Dir})
	return report
}
