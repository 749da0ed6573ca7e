package shard_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/storacha/shockaudit/pkg/shard"
)

func TestResolve(t *testing.T) {
	t.Run("splits the leading characters into three levels", func(t *testing.T) {
		path, err := shard.Resolve("0a1b2c3d-4e5f-4a6b-8c7d-8e9f0a1b2c3d", "/data")
		require.NoError(t, err)
		require.Equal(t, "/data/0a/1b/2c/0a1b2c3d-4e5f-4a6b-8c7d-8e9f0a1b2c3d", path)
	})

	t.Run("is deterministic and reconstructs the identifier", func(t *testing.T) {
		for range 100 {
			id := uuid.NewString()
			segs, err := shard.Segments(id)
			require.NoError(t, err)
			require.Len(t, segs, shard.Depth)
			require.Equal(t, id[:6], strings.Join(segs[:3], ""))
			require.Equal(t, id, segs[3])

			first, err := shard.Resolve(id, "base")
			require.NoError(t, err)
			second, err := shard.Resolve(id, "base")
			require.NoError(t, err)
			require.Equal(t, first, second)
			require.Equal(t, filepath.Join(append([]string{"base"}, segs...)...), first)
		}
	})

	t.Run("rejects malformed identifiers", func(t *testing.T) {
		_, err := shard.Resolve("abc", "/data")
		require.True(t, errors.Is(err, shard.ErrUnresolvable))
	})
}

func TestWalk(t *testing.T) {
	const (
		good  = "0a1b2c3d-4e5f-4a6b-8c7d-8e9f0a1b2c3d"
		other = "ffeedd00-1111-4222-8333-444455556666"
	)

	collect := func(t *testing.T, fsys afero.Fs) []shard.Leaf {
		var leaves []shard.Leaf
		for leaf, err := range shard.Walk(fsys, "/data") {
			require.NoError(t, err)
			leaves = append(leaves, leaf)
		}
		return leaves
	}

	t.Run("yields node directories at depth four", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, fsys.MkdirAll("/data/0a/1b/2c/"+good+"/idx", 0755))
		require.NoError(t, fsys.MkdirAll("/data/ff/ee/dd/"+other, 0755))

		leaves := collect(t, fsys)
		require.Equal(t, []shard.Leaf{
			{Name: good, Dir: "/data/0a/1b/2c/" + good},
			{Name: other, Dir: "/data/ff/ee/dd/" + other},
		}, leaves)
	})

	t.Run("skips files and unexpected names at intermediate levels", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, fsys.MkdirAll("/data/0a/1b/2c/"+good, 0755))
		require.NoError(t, afero.WriteFile(fsys, "/data/README", []byte("hi"), 0644))
		require.NoError(t, afero.WriteFile(fsys, "/data/0a/1b/stray", []byte("hi"), 0644))
		require.NoError(t, fsys.MkdirAll("/data/tmp/1b/2c/"+good, 0755))
		require.NoError(t, afero.WriteFile(fsys, "/data/0a/1b/2c/loose.bson", []byte("hi"), 0644))

		leaves := collect(t, fsys)
		require.Len(t, leaves, 1)
		require.Equal(t, good, leaves[0].Name)
	})

	t.Run("does not descend below the node level", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, fsys.MkdirAll("/data/0a/1b/2c/"+good+"/idx/deeper", 0755))

		leaves := collect(t, fsys)
		require.Len(t, leaves, 1)
	})

	t.Run("flags misplaced and malformed leaves", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, fsys.MkdirAll("/data/ff/ee/dd/"+good, 0755))
		require.NoError(t, fsys.MkdirAll("/data/0a/1b/2c/lost+found", 0755))

		leaves := collect(t, fsys)
		require.Len(t, leaves, 2)
		for _, leaf := range leaves {
			require.True(t, leaf.Misplaced, leaf.Dir)
		}
	})

	t.Run("follows symlinked shard levels", func(t *testing.T) {
		root := t.TempDir()
		base := filepath.Join(root, "data")
		vol := filepath.Join(root, "vol2")
		require.NoError(t, os.MkdirAll(filepath.Join(vol, "1b", "2c", good, "idx"), 0755))
		require.NoError(t, os.MkdirAll(base, 0755))
		require.NoError(t, os.Symlink(vol, filepath.Join(base, "0a")))
		// A dangling link is skipped.
		require.NoError(t, os.Symlink(filepath.Join(root, "gone"), filepath.Join(base, "ff")))

		var leaves []shard.Leaf
		for leaf, err := range shard.Walk(afero.NewReadOnlyFs(afero.NewOsFs()), base) {
			require.NoError(t, err)
			leaves = append(leaves, leaf)
		}
		require.Equal(t, []shard.Leaf{
			{Name: good, Dir: filepath.Join(base, "0a", "1b", "2c", good)},
		}, leaves)
	})

	t.Run("reports a missing base directory", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		var errs int
		for _, err := range shard.Walk(fsys, "/data") {
			require.Error(t, err)
			errs++
		}
		require.Equal(t, 1, errs)
	})

	t.Run("stops when the consumer stops", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, fsys.MkdirAll("/data/0a/1b/2c/"+good, 0755))
		require.NoError(t, fsys.MkdirAll("/data/ff/ee/dd/"+other, 0755))

		n := 0
		for range shard.Walk(fsys, "/data") {
			n++
			break
		}
		require.Equal(t, 1, n)
	})
}
