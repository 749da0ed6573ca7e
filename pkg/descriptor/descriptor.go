// Package descriptor reads the BSON node descriptor stored alongside a node's
// data in its shard directory.
package descriptor

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/storacha/shockaudit/pkg/node"
)

// Extension is the file extension of a descriptor file.
const Extension = ".bson"

var (
	// ErrNotFound means the descriptor file does not exist.
	ErrNotFound = errors.New("descriptor not found")
	// ErrEmpty means the descriptor file exists but has no content.
	ErrEmpty = errors.New("descriptor is empty")
	// ErrCorrupt means the descriptor could not be decoded into a valid record.
	ErrCorrupt = errors.New("descriptor is corrupt")
)

// Path returns the descriptor location for node id in dir.
func Path(dir, id string) string {
	return filepath.Join(dir, id+Extension)
}

// Stat classifies the descriptor file without decoding it. It returns nil if
// the file exists and is non-empty, ErrNotFound or ErrEmpty otherwise. Other
// filesystem errors are returned wrapped.
func Stat(fsys afero.Fs, dir, id string) error {
	path := Path(dir, id)
	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("stat descriptor %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrCorrupt, path)
	}
	if info.Size() == 0 {
		return ErrEmpty
	}
	return nil
}

// Read loads and decodes the descriptor for node id in dir. The whole file is
// read before decoding. Failures are classified with ErrNotFound, ErrEmpty and
// ErrCorrupt; a record whose id differs from the requested one is corrupt.
func Read(fsys afero.Fs, dir, id string) (*node.Record, error) {
	if err := Stat(fsys, dir, id); err != nil {
		return nil, err
	}
	path := Path(dir, id)
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor %s: %w", path, err)
	}
	return Decode(data, id)
}

// Decode decodes a descriptor document and validates it against node id.
func Decode(data []byte, id string) (*node.Record, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	var rec node.Record
	if err := bson.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if rec.ID != id {
		return nil, fmt.Errorf("%w: descriptor id %s does not match node %s", ErrCorrupt, rec.ID, id)
	}
	return &rec, nil
}

// Encode serializes a record in descriptor form.
func Encode(rec *node.Record) ([]byte, error) {
	data, err := bson.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding descriptor for node %s: %w", rec.ID, err)
	}
	return data, nil
}
