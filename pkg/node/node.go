// Package node models the Shock node metadata shared by the descriptor files on
// disk and the canonical records in the database.
package node

import (
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Type is the declared node type. The empty string, "basic" and "regular" all
// mean a regular node with its own payload.
type Type string

const (
	TypeRegular Type = "regular"
	TypeBasic   Type = "basic"
	TypeParts   Type = "parts"
	TypeSubset  Type = "subset"
	TypeCopy    Type = "copy"
	TypeVirtual Type = "virtual"
)

// derivedTypes have no independent data payload of their own.
var derivedTypes = []Type{TypeParts, TypeSubset, TypeCopy, TypeVirtual}

// IsDerived reports whether t is one of the derived/aliased variants.
func (t Type) IsDerived() bool {
	return slices.Contains(derivedTypes, t)
}

// IDLength is the length of a rendered node identifier.
const IDLength = 36

// ParseID validates that s is a node identifier in its canonical rendering:
// 36 characters, lowercase hexadecimal, dashed.
func ParseID(s string) (uuid.UUID, error) {
	if len(s) != IDLength {
		return uuid.Nil, fmt.Errorf("node id %q: expected %d characters, got %d", s, IDLength, len(s))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("node id %q: %w", s, err)
	}
	if id.String() != s {
		return uuid.Nil, fmt.Errorf("node id %q: not in canonical lowercase form", s)
	}
	return id, nil
}

// IsCanonicalV4 reports whether s is exactly the canonical rendering of a
// version 4 RFC 4122 UUID.
func IsCanonicalV4(s string) bool {
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.String() == s && id.Version() == 4 && id.Variant() == uuid.RFC4122
}

// ACL holds the access control lists of a node.
type ACL struct {
	Owner  string   `bson:"owner"`
	Read   []string `bson:"read,omitempty"`
	Write  []string `bson:"write,omitempty"`
	Delete []string `bson:"delete,omitempty"`
}

// File is the file metadata of a node.
type File struct {
	Name string `bson:"name"`
	Size int64  `bson:"size" validate:"gte=0"`
	// Checksum maps an algorithm tag (e.g. "md5") to a hex digest.
	Checksum map[string]string `bson:"checksum,omitempty"`
	Format   string            `bson:"format,omitempty"`
	// Path overrides the default data file location when non-empty.
	Path         string    `bson:"path,omitempty"`
	Virtual      bool      `bson:"virtual,omitempty"`
	VirtualParts []string  `bson:"virtual_parts,omitempty"`
	CreatedOn    time.Time `bson:"created_on,omitempty"`
}

// HasChecksum reports whether at least one non-empty digest is recorded.
func (f File) HasChecksum() bool {
	for _, v := range f.Checksum {
		if v != "" {
			return true
		}
	}
	return false
}

// Record is the metadata of one node, either as the canonical database record
// or as decoded from its on-disk descriptor.
type Record struct {
	ID           string    `bson:"id" validate:"required,len=36,uuid"`
	Version      string    `bson:"version,omitempty"`
	File         File      `bson:"file"`
	ACL          ACL       `bson:"acl"`
	Type         Type      `bson:"type,omitempty"`
	CreatedOn    time.Time `bson:"created_on"`
	LastModified time.Time `bson:"last_modified"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the required fields of the record are present and well
// formed.
func (r *Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid node record: %w", err)
	}
	return nil
}

// ExpectsData reports whether a data file must exist for this record. Derived
// nodes may legitimately have no payload, unless a checksum was recorded for
// them.
func (r *Record) ExpectsData() bool {
	return !(r.Type.IsDerived() && !r.File.HasChecksum())
}
