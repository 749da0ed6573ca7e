package counter_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storacha/shockaudit/pkg/counter"
)

func openTable(t *testing.T, cfg counter.Config) *counter.Table {
	t.Helper()
	table, err := counter.OpenFresh(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { table.Close() })
	return table
}

func entries(t *testing.T, table *counter.Table) []counter.Entry {
	t.Helper()
	var out []counter.Entry
	for e, err := range table.Scan() {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestTable(t *testing.T) {
	t.Run("counts occurrences", func(t *testing.T) {
		table := openTable(t, counter.Config{InMemory: true})
		for i := range 10 {
			require.NoError(t, table.Increment("public"))
			if i%2 == 0 {
				require.NoError(t, table.Increment("alice"))
			}
		}

		n, err := table.Get("public")
		require.NoError(t, err)
		require.Equal(t, uint64(10), n)

		n, err = table.Get("nobody")
		require.NoError(t, err)
		require.Zero(t, n)

		require.Equal(t, []counter.Entry{
			{Key: "alice", Count: 5},
			{Key: "public", Count: 10},
		}, entries(t, table))
	})

	t.Run("scans in ascending byte order, empty key first", func(t *testing.T) {
		table := openTable(t, counter.Config{InMemory: true})
		for _, k := range []string{"b.log", ".txt", "", "a", "B", "2014-03", "10", "9"} {
			require.NoError(t, table.Increment(k))
		}

		var keys []string
		for _, e := range entries(t, table) {
			keys = append(keys, e.Key)
		}
		require.Equal(t, []string{"", ".txt", "10", "2014-03", "9", "B", "a", "b.log"}, keys)
	})

	t.Run("scan is restartable and can stop early", func(t *testing.T) {
		table := openTable(t, counter.Config{InMemory: true})
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, table.Increment(k))
		}

		var first []string
		for e, err := range table.Scan() {
			require.NoError(t, err)
			first = append(first, e.Key)
			if len(first) == 2 {
				break
			}
		}
		require.Equal(t, []string{"a", "b"}, first)
		require.Len(t, entries(t, table), 3)
		require.Len(t, entries(t, table), 3)
	})

	t.Run("open fresh discards an existing on-disk table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "db_owner")

		table, err := counter.OpenFresh(counter.Config{Path: path})
		require.NoError(t, err)
		require.NoError(t, table.Increment("public"))
		require.NoError(t, table.Close())

		table = openTable(t, counter.Config{Path: path})
		require.Empty(t, entries(t, table))
	})

	t.Run("on-disk tables need a path", func(t *testing.T) {
		_, err := counter.OpenFresh(counter.Config{})
		require.Error(t, err)
	})
}
