// Package shard maps node identifiers to their sharded directory layout:
//
//	<base>/12/34/56/123456XX-XXXX-XXXX-XXXX-XXXXXXXXXXXX
package shard

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/storacha/shockaudit/pkg/node"
)

// ErrUnresolvable is returned when an identifier cannot be mapped to a shard
// path.
var ErrUnresolvable = errors.New("cannot resolve shard path")

// Depth is the number of directory levels below the base directory, the leaf
// included.
const Depth = 4

// Segments returns the path segments of id below the base directory.
func Segments(id string) ([]string, error) {
	if _, err := node.ParseID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnresolvable, err)
	}
	return []string{id[0:2], id[2:4], id[4:6], id}, nil
}

// Resolve returns the directory of node id under baseDir.
func Resolve(id, baseDir string) (string, error) {
	segs, err := Segments(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{baseDir}, segs...)...), nil
}
