package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// EnvPrefix prefixes the environment variable of every key, e.g.
// SHOCKAUDIT_MONGO_HOST for mongo.host.
const EnvPrefix = "SHOCKAUDIT"

// Keys lists every configuration key.
var Keys = []string{
	"main.node_dir",
	"main.checksum",
	"main.md5",
	"main.last_sync",
	"main.log_path",
	"main.verbose",
	"mongo.host",
	"mongo.database",
	"mongo.username",
	"mongo.password",
	"mongo.timeout",
	"stats.db_dir",
	"stats.output_dir",
	"stats.in_memory",
	"telemetry.enabled",
	"telemetry.endpoint",
	"telemetry.insecure",
}

// SecretKeys are masked when the configuration is displayed.
var SecretKeys = []string{"mongo.password"}

// Init registers defaults and environment bindings for every key on v.
func Init(v *viper.Viper) {
	v.SetDefault("main.node_dir", "./")
	v.SetDefault("mongo.host", "127.0.0.1:27017")
	v.SetDefault("mongo.database", "ShockDB")
	v.SetDefault("mongo.timeout", 30*time.Second)
	v.SetDefault("stats.db_dir", "./freq_dist.db")
	v.SetDefault("stats.output_dir", ".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range Keys {
		// BindEnv only fails when given no key.
		_ = v.BindEnv(key)
	}
}

// EnvVar returns the environment variable that sets key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// IsINI reports whether path names an INI style config file.
func IsINI(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg", ".conf":
		return true
	}
	return false
}

// ReadFile merges the config file at path into v. INI files are read section
// by section, so "[mongo] host = ..." sets mongo.host. Any other extension is
// left to viper (YAML, TOML, JSON).
func ReadFile(v *viper.Viper, path string) error {
	if !IsINI(path) {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return &ConfigurationError{Err: fmt.Errorf("reading config file %s: %w", path, err)}
		}
		return nil
	}

	settings, err := readINI(path)
	if err != nil {
		return &ConfigurationError{Err: fmt.Errorf("reading config file %s: %w", path, err)}
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return &ConfigurationError{Err: fmt.Errorf("merging config file %s: %w", path, err)}
	}
	return nil
}

func readINI(path string) (map[string]any, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	settings := make(map[string]any)
	for _, sec := range f.Sections() {
		keys := sec.KeysHash()
		if sec.Name() == ini.DefaultSection {
			for k, val := range keys {
				settings[k] = val
			}
			continue
		}
		if len(keys) == 0 {
			continue
		}
		section := make(map[string]any, len(keys))
		for k, val := range keys {
			section[k] = val
		}
		settings[sec.Name()] = section
	}
	return settings, nil
}
