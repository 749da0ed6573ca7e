package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/storacha/shockaudit/pkg/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newViper() *viper.Viper {
	v := viper.New()
	config.Init(v)
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := config.LoadFrom[config.Config](newViper())
	require.NoError(t, err)

	require.Equal(t, "./", cfg.Main.NodeDir)
	require.False(t, cfg.Main.VerifyChecksums())
	require.Equal(t, "127.0.0.1:27017", cfg.Mongo.Host)
	require.Equal(t, "ShockDB", cfg.Mongo.Database)
	require.Equal(t, 30*time.Second, cfg.Mongo.Timeout)
	require.Equal(t, "./freq_dist.db", cfg.Stats.DBDir)
	require.Equal(t, ".", cfg.Stats.OutputDir)
	require.False(t, cfg.Telemetry.Enabled)

	since, err := cfg.Main.Since()
	require.NoError(t, err)
	require.True(t, since.IsZero())
}

func TestReadINI(t *testing.T) {
	path := writeFile(t, "shock.ini", `
[main]
log_path = /var/log/validate_shock_nodes.log
node_dir = /mnt/shock/data
md5 = true
last_sync = 2016-05-01T00:00:00Z

[mongo]
host = mongo.internal:27017
database = ShockProd
username = shock
password = "s3cret"
timeout = 45s
`)

	v := newViper()
	require.NoError(t, config.ReadFile(v, path))
	cfg, err := config.LoadFrom[config.Config](v)
	require.NoError(t, err)

	require.Equal(t, "/mnt/shock/data", cfg.Main.NodeDir)
	require.True(t, cfg.Main.VerifyChecksums())
	require.Equal(t, "/var/log/validate_shock_nodes.log", cfg.Main.LogPath)
	require.Equal(t, "mongo.internal:27017", cfg.Mongo.Host)
	require.Equal(t, "ShockProd", cfg.Mongo.Database)
	require.Equal(t, "shock", cfg.Mongo.Username)
	require.Equal(t, "s3cret", cfg.Mongo.Password)
	require.Equal(t, 45*time.Second, cfg.Mongo.Timeout)

	since, err := cfg.Main.Since()
	require.NoError(t, err)
	require.Equal(t, time.Date(2016, time.May, 1, 0, 0, 0, 0, time.UTC), since)

	db := cfg.Mongo.ShockDB()
	require.Equal(t, "ShockProd", db.Database)
	require.Equal(t, 45*time.Second, db.Timeout)
}

func TestReadYAML(t *testing.T) {
	path := writeFile(t, "shockaudit-config.yaml", `
main:
  node_dir: /data
  checksum: true
stats:
  in_memory: true
  output_dir: /tmp/out
`)

	v := newViper()
	require.NoError(t, config.ReadFile(v, path))
	cfg, err := config.LoadFrom[config.Config](v)
	require.NoError(t, err)
	require.Equal(t, "/data", cfg.Main.NodeDir)
	require.True(t, cfg.Main.Checksum)
	require.True(t, cfg.Stats.Tables().InMemory)
	require.Equal(t, "/tmp/out", cfg.Stats.OutputDir)
	// Untouched sections keep their defaults.
	require.Equal(t, "ShockDB", cfg.Mongo.Database)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SHOCKAUDIT_MONGO_USERNAME", "auditor")
	t.Setenv("SHOCKAUDIT_MAIN_NODE_DIR", "/srv/shock")

	cfg, err := config.LoadFrom[config.Config](newViper())
	require.NoError(t, err)
	require.Equal(t, "auditor", cfg.Mongo.Username)
	require.Equal(t, "/srv/shock", cfg.Main.NodeDir)
	require.Equal(t, "SHOCKAUDIT_MONGO_USERNAME", config.EnvVar("mongo.username"))
}

func TestInvalidConfig(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		err := config.ReadFile(newViper(), filepath.Join(t.TempDir(), "nope.ini"))
		var cfgErr *config.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("unparsable last sync", func(t *testing.T) {
		v := newViper()
		v.Set("main.last_sync", "yesterday")
		_, err := config.LoadFrom[config.Config](v)
		var cfgErr *config.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		require.ErrorContains(t, err, "main.last_sync")
	})

	t.Run("empty required value", func(t *testing.T) {
		v := newViper()
		v.Set("mongo.database", "")
		_, err := config.LoadFrom[config.Config](v)
		var cfgErr *config.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		require.ErrorContains(t, err, "Database")
	})

	t.Run("negative timeout", func(t *testing.T) {
		v := newViper()
		v.Set("mongo.timeout", "-1s")
		_, err := config.LoadFrom[config.Config](v)
		require.Error(t, err)
	})
}
