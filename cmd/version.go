package cmd

import (
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/storacha/shockaudit/internal/telemetry"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of shockaudit",
	Long:  `Print the version of shockaudit including the git revision.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("version: %s\n", telemetry.Version)
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				cmd.Printf("commit: %s\n", s.Value)
			case "vcs.time":
				cmd.Printf("built at: %s\n", s.Value)
			}
		}
		cmd.Printf("go: %s\n", info.GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
