package validate

import (
	"fmt"
	"io"
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storacha/shockaudit/pkg/audit"
	"github.com/storacha/shockaudit/pkg/check"
	"github.com/storacha/shockaudit/pkg/config"
)

var log = logging.Logger("cmd/validate")

var Cmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate Shock node directories",
	Long: wordwrap.WrapString(
		"Checks that every node directory holds a descriptor, an idx directory "+
			"and, unless the node is derived without a checksum, a data file whose "+
			"size (and with --checksum, digest) matches the node metadata.\n\n"+
			"Findings are written one per line as they are found:\n\n"+
			"  [data invalid]       the data disagrees with the metadata\n"+
			"  [data needs repair]  the descriptor is missing\n"+
			"  [warning]            reported but does not fail the node\n\n"+
			"A summary is printed when the run completes or is interrupted.",
		80),
}

func init() {
	fs := Cmd.PersistentFlags()
	fs.BoolP("checksum", "m", false, "Hash every data file and compare the recorded checksums")
	cobra.CheckErr(viper.BindPFlag("main.checksum", fs.Lookup("checksum")))
	fs.Bool("md5", false, "Same as --checksum")
	cobra.CheckErr(fs.MarkHidden("md5"))
	cobra.CheckErr(viper.BindPFlag("main.md5", fs.Lookup("md5")))

	Cmd.AddCommand(filesCmd, nodesCmd)
}

// openReport returns where report lines go: the file at path, appended to,
// or stdout when path is empty.
func openReport(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening report file: %w", err)
	}
	closeFile := func() error {
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing report file: %w", err)
		}
		return nil
	}
	return f, closeFile, nil
}

func newRunner(cfg config.Config, nodeDir string, w io.Writer) *audit.Runner {
	return &audit.Runner{
		Checker: &check.Checker{
			Fs:      afero.NewReadOnlyFs(afero.NewOsFs()),
			BaseDir: nodeDir,
			Options: check.Options{Checksums: cfg.Main.VerifyChecksums()},
		},
		Reporter: &audit.LineReporter{W: w, Verbose: cfg.Main.Verbose},
	}
}
