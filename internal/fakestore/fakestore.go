// Package fakestore generates deterministic, pseudo-random Shock stores for
// tests: node directories laid out in an [afero.Fs], optionally with faults
// injected, together with the canonical records and users they were built
// from. The same seed always generates the same store.
package fakestore

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/wordgen/wordlists/eff"

	"github.com/storacha/shockaudit/pkg/check"
	"github.com/storacha/shockaudit/pkg/descriptor"
	"github.com/storacha/shockaudit/pkg/node"
	"github.com/storacha/shockaudit/pkg/shard"
)

// Fault is a defect injected into a generated node.
type Fault int

const (
	NoFault Fault = iota
	MissingIndex
	MissingDescriptor
	EmptyDescriptor
	MissingData
	WrongSize
	WrongChecksum
)

// Faults lists every injectable fault.
var Faults = []Fault{MissingIndex, MissingDescriptor, EmptyDescriptor, MissingData, WrongSize, WrongChecksum}

func (f Fault) String() string {
	switch f {
	case NoFault:
		return "none"
	case MissingIndex:
		return "missing index"
	case MissingDescriptor:
		return "missing descriptor"
	case EmptyDescriptor:
		return "empty descriptor"
	case MissingData:
		return "missing data"
	case WrongSize:
		return "wrong size"
	case WrongChecksum:
		return "wrong checksum"
	default:
		return fmt.Sprintf("fault(%d)", int(f))
	}
}

// Verdict is the verdict a checker should reach for a node with this fault.
func (f Fault) Verdict(checksums bool) check.Verdict {
	switch f {
	case NoFault, MissingIndex:
		return check.Valid
	case MissingDescriptor:
		return check.NeedsRepair
	case WrongChecksum:
		if !checksums {
			return check.Valid
		}
		return check.Invalid
	default:
		return check.Invalid
	}
}

// Node is one generated node.
type Node struct {
	Record *node.Record
	Fault  Fault
}

// Store is a generated Shock store.
type Store struct {
	BaseDir string
	Nodes   []Node
	// Users maps user UUIDs to user names. Some node owners are deliberately
	// absent from it.
	Users map[string]string
}

// Records returns the canonical records of all nodes.
func (s *Store) Records() []*node.Record {
	recs := make([]*node.Record, len(s.Nodes))
	for i, n := range s.Nodes {
		recs[i] = n.Record
	}
	return recs
}

// Options configures a generated store.
type Options struct {
	Nodes int
	// FaultEvery injects a random fault into every FaultEvery-th node. Zero
	// generates a consistent store.
	FaultEvery int
	// Users is the number of users. Zero means 5.
	Users int
}

var extensions = []string{".fastq", ".fasta", ".txt", ".gz", ".tar.gz", ".json", ".bam", ""}

var epoch = time.Date(2012, time.January, 1, 0, 0, 0, 0, time.UTC)

func randomID(r Rand) string {
	b := r.Bytes(16)
	b[6] = b[6]&0x0f | 0x40
	b[8] = b[8]&0x3f | 0x80
	id, err := uuid.FromBytes(b)
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Generate writes a store with the given seed under baseDir in fsys.
func Generate(fsys afero.Fs, baseDir string, seed uint64, opts Options) (*Store, error) {
	root := NewRand(seed)

	nusers := opts.Users
	if nusers == 0 {
		nusers = 5
	}
	users := make(map[string]string, nusers)
	owners := []string{"public", randomID(root.Fork("unknown-owner"))}
	for i := range nusers {
		r := root.Fork("users").ForkN(i)
		id := randomID(r)
		users[id] = fmt.Sprintf("%s%d", Pick(r.Fork("name"), eff.Large), i)
		owners = append(owners, id)
	}

	store := &Store{BaseDir: baseDir, Users: users}
	for i := range opts.Nodes {
		r := root.Fork("nodes").ForkN(i)

		fault := NoFault
		if opts.FaultEvery > 0 && i%opts.FaultEvery == opts.FaultEvery-1 {
			fault = Pick(r.Fork("fault"), Faults)
		}

		rec, data := randomNode(r, owners, fault == NoFault)
		if err := write(fsys, baseDir, rec, data, fault); err != nil {
			return nil, fmt.Errorf("writing node %d: %w", i, err)
		}
		store.Nodes = append(store.Nodes, Node{Record: rec, Fault: fault})
	}
	return store, nil
}

func randomNode(r Rand, owners []string, mayBeVirtual bool) (*node.Record, []byte) {
	name := Pick(r.Fork("word"), eff.Large) + Pick(r.Fork("ext"), extensions)
	if r.Fork("uuid-name").IntN(10) == 0 {
		name = randomID(r.Fork("name"))
	}
	data := r.Fork("data").Bytes(r.Fork("size").IntN(256) + 1)
	sum := md5.Sum(data)
	created := epoch.AddDate(0, r.Fork("created").IntN(60), r.Fork("day").IntN(28))

	rec := &node.Record{
		ID:      randomID(r),
		Version: hex.EncodeToString(r.Fork("version").Bytes(16)),
		File: node.File{
			Name:     name,
			Size:     int64(len(data)),
			Checksum: map[string]string{"md5": hex.EncodeToString(sum[:])},
		},
		ACL:          node.ACL{Owner: Pick(r.Fork("owner"), owners)},
		Type:         node.TypeBasic,
		CreatedOn:    created,
		LastModified: created.AddDate(0, 0, r.Fork("modified").IntN(365)),
	}
	if mayBeVirtual && r.Fork("virtual").IntN(15) == 0 {
		rec.Type = node.TypeVirtual
		rec.File.Checksum = nil
		rec.File.Size = 0
		data = nil
	}
	return rec, data
}

func write(fsys afero.Fs, baseDir string, rec *node.Record, data []byte, fault Fault) error {
	dir, err := shard.Resolve(rec.ID, baseDir)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if fault != MissingIndex {
		if err := fsys.MkdirAll(filepath.Join(dir, check.IndexDir), 0755); err != nil {
			return err
		}
	}

	switch fault {
	case MissingDescriptor:
	case EmptyDescriptor:
		if err := afero.WriteFile(fsys, descriptor.Path(dir, rec.ID), nil, 0644); err != nil {
			return err
		}
	default:
		b, err := descriptor.Encode(rec)
		if err != nil {
			return err
		}
		if err := afero.WriteFile(fsys, descriptor.Path(dir, rec.ID), b, 0644); err != nil {
			return err
		}
	}

	if !rec.ExpectsData() || fault == MissingData {
		return nil
	}
	switch fault {
	case WrongSize:
		data = append(append([]byte(nil), data...), 0)
	case WrongChecksum:
		data = append([]byte(nil), data...)
		data[0] ^= 0xff
	}
	return afero.WriteFile(fsys, check.DataPath(dir, rec), data, 0644)
}
