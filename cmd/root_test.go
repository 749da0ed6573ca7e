package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storacha/shockaudit/pkg/descriptor"
	"github.com/storacha/shockaudit/pkg/node"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(os.Stdout)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, ExecuteContext(t.Context()))
	return out.String()
}

func TestValidateFiles(t *testing.T) {
	base := t.TempDir()

	const good = "0a1b2c3d-4e5f-4a6b-8c7d-8e9f0a1b2c3d"
	dir := filepath.Join(base, "0a", "1b", "2c", good)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "idx"), 0755))
	data, err := descriptor.Encode(&node.Record{ID: good, File: node.File{Name: "reads.fastq", Size: 4}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, good+".bson"), data, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, good+".data"), []byte("ACGT"), 0644))

	const orphan = "0a1b2c3d-0000-4000-8000-000000000000"
	require.NoError(t, os.MkdirAll(filepath.Join(base, "0a", "1b", "2c", orphan, "idx"), 0755))

	out := execute(t, "validate", "files", base, "--verbose")

	require.Contains(t, out, "[ok]: node "+good)
	require.Contains(t, out, "[data needs repair]: node "+orphan+" missing descriptor file")
	require.Contains(t, out, "Checked 2 nodes: 1 passed, 1 failed")
}

func TestConfigCommand(t *testing.T) {
	t.Setenv("SHOCKAUDIT_MONGO_DATABASE", "ShockStaging")
	t.Setenv("SHOCKAUDIT_MONGO_PASSWORD", "hunter2")

	out := execute(t, "config")

	require.Regexp(t, `mongo\.database\s+= ShockStaging\s+\(env\)`, out)
	require.Regexp(t, `mongo\.host\s+= 127\.0\.0\.1:27017\s+\(default\)`, out)
	require.NotContains(t, out, "hunter2")
}
