package check

import (
	"fmt"
	"strings"
)

// StructuralError indicates a missing or unreadable part of a node directory.
type StructuralError struct {
	Problem string
	Path    string
	Err     error
}

func (e *StructuralError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Problem)
	if e.Path != "" {
		fmt.Fprintf(&sb, " (path=%s)", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %s", e.Err)
	}
	return sb.String()
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// ContentMismatchError indicates that the data file disagrees with the
// recorded metadata.
type ContentMismatchError struct {
	// Field is "size" or a checksum algorithm tag.
	Field string
	// Source names where the expected value came from.
	Source   string
	Expected string
	Actual   string
}

func (e *ContentMismatchError) Error() string {
	return fmt.Sprintf("data file has %s=%s but %s says %s=%s", e.Field, e.Actual, e.Source, e.Field, e.Expected)
}
