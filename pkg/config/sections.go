package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/storacha/shockaudit/internal/telemetry"
	"github.com/storacha/shockaudit/pkg/shockdb"
	"github.com/storacha/shockaudit/pkg/stats"
)

type MainConfig struct {
	// NodeDir is the base directory of the Shock shard tree.
	NodeDir string `mapstructure:"node_dir" toml:"node_dir" validate:"required"`
	// Checksum enables hashing every data file. MD5 is the older name of the
	// same setting.
	Checksum bool `mapstructure:"checksum" toml:"checksum"`
	MD5      bool `mapstructure:"md5" toml:"md5"`
	// LastSync restricts database-first audits to records modified at or
	// after this RFC 3339 timestamp.
	LastSync string `mapstructure:"last_sync" toml:"last_sync"`
	LogPath  string `mapstructure:"log_path" toml:"log_path"`
	Verbose  bool   `mapstructure:"verbose" toml:"verbose"`
}

// VerifyChecksums reports whether data files should be hashed.
func (m MainConfig) VerifyChecksums() bool {
	return m.Checksum || m.MD5
}

// Since parses LastSync. An empty LastSync gives the zero time.
func (m MainConfig) Since() (time.Time, error) {
	if m.LastSync == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, m.LastSync)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid main.last_sync %q, expected RFC 3339: %w", m.LastSync, err)
	}
	return t, nil
}

type MongoConfig struct {
	Host     string        `mapstructure:"host" toml:"host" validate:"required"`
	Database string        `mapstructure:"database" toml:"database" validate:"required"`
	Username string        `mapstructure:"username" toml:"username"`
	Password string        `mapstructure:"password" toml:"password"`
	Timeout  time.Duration `mapstructure:"timeout" toml:"timeout" validate:"gte=0"`
}

func (m MongoConfig) ShockDB() shockdb.Config {
	return shockdb.Config{
		Host:     m.Host,
		Database: m.Database,
		Username: m.Username,
		Password: m.Password,
		Timeout:  m.Timeout,
	}
}

type StatsConfig struct {
	// DBDir holds the counter tables, one subdirectory per attribute.
	DBDir     string `mapstructure:"db_dir" toml:"db_dir" validate:"required_without=InMemory"`
	OutputDir string `mapstructure:"output_dir" toml:"output_dir" validate:"required"`
	InMemory  bool   `mapstructure:"in_memory" toml:"in_memory"`
}

func (s StatsConfig) Tables() stats.TablesConfig {
	return stats.TablesConfig{Dir: filepath.Clean(s.DBDir), InMemory: s.InMemory}
}

type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled" toml:"enabled"`
	Endpoint string `mapstructure:"endpoint" toml:"endpoint"`
	Insecure bool   `mapstructure:"insecure" toml:"insecure"`
}

func (t TelemetryConfig) Telemetry() telemetry.Config {
	return telemetry.Config{Enabled: t.Enabled, Endpoint: t.Endpoint, Insecure: t.Insecure}
}
