package cmd

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storacha/shockaudit/internal/output"
	"github.com/storacha/shockaudit/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show resolved configuration",
	Long:  "Display the fully resolved configuration showing all settings and their sources.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if file := configFileUsed(); file != "" {
			cmd.Printf("Config file: %s\n\n", file)
		}

		rows := make([][3]string, 0, len(config.Keys))
		for _, key := range config.Keys {
			val := fmt.Sprint(viper.Get(key))
			if slices.Contains(config.SecretKeys, key) && val != "" {
				val = "********"
			}
			rows = append(rows, [3]string{key, val, configSource(cmd, key)})
		}
		output.Settings(cmd.OutOrStdout(), "Configuration", rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func configFileUsed() string {
	if cfgFilePath != "" {
		return cfgFilePath
	}
	return viper.ConfigFileUsed()
}

// configSource determines where a viper key's value came from.
// Priority: flag > env > config file > default.
func configSource(cmd *cobra.Command, key string) string {
	if name, ok := flagKeys[key]; ok {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			return "flag"
		}
	}
	if _, ok := os.LookupEnv(config.EnvVar(key)); ok {
		return "env"
	}
	if viper.InConfig(key) {
		return "config file"
	}
	return "default"
}
