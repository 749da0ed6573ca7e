package validate

import (
	"context"
	"errors"

	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storacha/shockaudit/internal/output"
	"github.com/storacha/shockaudit/pkg/config"
	"github.com/storacha/shockaudit/pkg/shockdb"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Validate node directories against the node records in MongoDB",
	Long: wordwrap.WrapString(
		"Iterates over the canonical node records in the Shock database and "+
			"checks that each node's directory exists and agrees with the record. "+
			"With --since (or main.last_sync), only records modified at or after "+
			"that time are checked.",
		80),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		cfg, err := config.Load[config.Config]()
		if err != nil {
			return err
		}
		since, err := cfg.Main.Since()
		if err != nil {
			return &config.ConfigurationError{Err: err}
		}

		client, err := shockdb.Connect(ctx, cfg.Mongo.ShockDB())
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(context.Background()); err != nil {
				log.Warnf("closing database connection: %s", err)
			}
		}()

		w, closeReport, err := openReport(cmd, cfg.Main.LogPath)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, closeReport())
		}()

		if since.IsZero() {
			log.Infof("validating all nodes in %s against %s", cfg.Mongo.Database, cfg.Main.NodeDir)
		} else {
			log.Infof("validating nodes in %s modified since %s against %s", cfg.Mongo.Database, since, cfg.Main.NodeDir)
		}
		tally, err := newRunner(cfg, cfg.Main.NodeDir, w).RunNodes(ctx, client, since)
		output.Summary(cmd.OutOrStdout(), tally)
		return err
	},
}

func init() {
	nodesCmd.Flags().String("since", "", "Only check records modified at or after this RFC 3339 time")
	cobra.CheckErr(viper.BindPFlag("main.last_sync", nodesCmd.Flags().Lookup("since")))
}
