package fakestore_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/storacha/shockaudit/internal/fakestore"
	"github.com/storacha/shockaudit/pkg/check"
	"github.com/storacha/shockaudit/pkg/node"
)

func TestRand(t *testing.T) {
	t.Run("should always generate same number", func(t *testing.T) {
		r := fakestore.NewRand(0)
		require.Equal(t, r.Uint64(), r.Uint64())
		require.Equal(t, r.IntN(1000), r.IntN(1000))
		require.Equal(t, r.Bytes(8), r.Bytes(8))
	})

	t.Run("forks are deterministic and distinct", func(t *testing.T) {
		r := fakestore.NewRand(0)
		require.Equal(t, r.Fork("abc").Uint64(), r.Fork("abc").Uint64())
		require.NotEqual(t, r.Fork("abc").Uint64(), r.Fork("def").Uint64())
		require.Equal(t, r.ForkN(1).Uint64(), r.ForkN(1).Uint64())
		require.NotEqual(t, r.ForkN(1).Uint64(), r.ForkN(2).Uint64())
	})
}

func TestGenerate(t *testing.T) {
	gen := func() (afero.Fs, *fakestore.Store) {
		fsys := afero.NewMemMapFs()
		store, err := fakestore.Generate(fsys, "/shock", 42, fakestore.Options{Nodes: 200, FaultEvery: 4})
		require.NoError(t, err)
		return fsys, store
	}

	_, a := gen()
	_, b := gen()
	require.Equal(t, a.Records(), b.Records())
	require.Equal(t, a.Users, b.Users)

	fsys, store := gen()
	faults := 0
	for _, n := range store.Nodes {
		require.NoError(t, n.Record.Validate())
		_, err := node.ParseID(n.Record.ID)
		require.NoError(t, err)
		if n.Fault != fakestore.NoFault {
			faults++
		}
	}
	require.Equal(t, 50, faults)

	// Every generated node is checked to the verdict its fault implies.
	checker := &check.Checker{Fs: fsys, BaseDir: "/shock", Options: check.Options{Checksums: true}}
	for _, n := range store.Nodes {
		report := checker.Check(t.Context(), n.Record.ID, nil)
		require.Equal(t, n.Fault.Verdict(true), report.Verdict, "node %s with fault %s: %+v", n.Record.ID, n.Fault, report.Issues)
	}
}
