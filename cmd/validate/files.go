package validate

import (
	"errors"

	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/cobra"

	"github.com/storacha/shockaudit/internal/output"
	"github.com/storacha/shockaudit/pkg/config"
)

var filesCmd = &cobra.Command{
	Use:   "files [node-dir]",
	Short: "Validate every node directory against its own descriptor",
	Long: wordwrap.WrapString(
		"Walks the sharded node directory (<node-dir>/ab/cd/ef/<id>) and checks "+
			"each node directory against the descriptor file it contains. No "+
			"database is needed. Directories at node depth that are not named by "+
			"the identifier they are stored under are reported invalid.",
		80),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := config.Load[config.Config]()
		if err != nil {
			return err
		}
		nodeDir := cfg.Main.NodeDir
		if len(args) == 1 {
			nodeDir = args[0]
		}

		w, closeReport, err := openReport(cmd, cfg.Main.LogPath)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, closeReport())
		}()

		log.Infof("validating node directories under %s", nodeDir)
		tally, err := newRunner(cfg, nodeDir, w).RunFiles(cmd.Context())
		output.Summary(cmd.OutOrStdout(), tally)
		return err
	},
}
