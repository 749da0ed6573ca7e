package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storacha/shockaudit/internal/output"
	"github.com/storacha/shockaudit/pkg/audit"
	"github.com/storacha/shockaudit/pkg/config"
	"github.com/storacha/shockaudit/pkg/shockdb"
	"github.com/storacha/shockaudit/pkg/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Produce frequency distributions of node attributes",
	Long: wordwrap.WrapString(
		"Counts every node record in the Shock database by creation month, "+
			"last-modified month, owner, file name, file extension and file size, "+
			"and writes one freq_dist.<attribute>.txt file per attribute with a "+
			"tab-separated value and count per line, in value order.\n\n"+
			"Counts are accumulated in on-disk tables under --db-dir, which are "+
			"recreated on every run.",
		80),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load[config.Config]()
		if err != nil {
			return err
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

		users, err := client.Users(ctx)
		if err != nil {
			return err
		}
		log.Infof("loaded %s users", humanize.Comma(int64(len(users))))

		tables, err := stats.OpenTables(cfg.Stats.Tables())
		if err != nil {
			return err
		}
		defer func() {
			if err := stats.CloseTables(tables); err != nil {
				log.Warnf("closing counter tables: %s", err)
			}
		}()

		agg, err := stats.NewAggregator(tables, stats.Users(users))
		if err != nil {
			return err
		}

		tally, err := audit.RunStats(ctx, client, agg, audit.DefaultProgressEvery)
		if err != nil {
			return fmt.Errorf("counting nodes: %w", err)
		}
		if err := agg.ExportAll(ctx, afero.NewOsFs(), cfg.Stats.OutputDir); err != nil {
			return fmt.Errorf("exporting distributions: %w", err)
		}

		output.Success("counted %s nodes, distributions written to %s", humanize.Comma(int64(tally.Counted)), cfg.Stats.OutputDir)
		if tally.Skipped > 0 {
			output.Warning("%s undecodable node records were skipped", humanize.Comma(int64(tally.Skipped)))
		}
		return nil
	},
}

func init() {
	fs := statsCmd.Flags()
	fs.String("db-dir", "", "Directory for the counter tables (default: ./freq_dist.db)")
	cobra.CheckErr(viper.BindPFlag("stats.db_dir", fs.Lookup("db-dir")))
	flagKeys["stats.db_dir"] = "db-dir"

	fs.String("output-dir", "", "Directory to write the distribution files to (default: .)")
	cobra.CheckErr(viper.BindPFlag("stats.output_dir", fs.Lookup("output-dir")))
	flagKeys["stats.output_dir"] = "output-dir"

	fs.Bool("in-memory", false, "Keep the counter tables in memory")
	cobra.CheckErr(viper.BindPFlag("stats.in_memory", fs.Lookup("in-memory")))
	flagKeys["stats.in_memory"] = "in-memory"

	rootCmd.AddCommand(statsCmd)
}
