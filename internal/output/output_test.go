package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storacha/shockaudit/pkg/audit"
)

func TestSummary(t *testing.T) {
	t.Run("all passed", func(t *testing.T) {
		var buf bytes.Buffer
		Summary(&buf, audit.Tally{Checked: 1200, Passed: 1200})
		require.Equal(t, "Checked 1,200 nodes: 1,200 passed, 0 failed\n", buf.String())
	})

	t.Run("failures are broken down", func(t *testing.T) {
		var buf bytes.Buffer
		Summary(&buf, audit.Tally{Checked: 10, Passed: 7, Failed: 3, NeedsRepair: 1, Invalid: 2, Warnings: 4})
		require.Equal(t,
			"Checked 10 nodes: 7 passed, 3 failed\n  1 need repair, 2 invalid, 4 warnings\n",
			buf.String())
	})
}

func TestSettings(t *testing.T) {
	var buf bytes.Buffer
	Settings(&buf, "Configuration", [][3]string{{"mongo.host", "127.0.0.1:27017", "default"}})
	require.Contains(t, buf.String(), "Configuration\n")
	require.Contains(t, buf.String(), "mongo.host")
	require.Contains(t, buf.String(), "(default)")
}
