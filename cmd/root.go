package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/storacha/shockaudit/cmd/validate"
	"github.com/storacha/shockaudit/internal/telemetry"
	"github.com/storacha/shockaudit/pkg/config"
)

var (
	log    = logging.Logger("cmd")
	tracer = otel.Tracer("cmd")
)

var rootCmd = &cobra.Command{
	Use:   "shockaudit",
	Short: "Audit the on-disk consistency of a Shock data store",
	Long: wordwrap.WrapString(
		"Audits a Shock object store: every node directory in the sharded data "+
			"directory is cross-checked against its descriptor file or against the "+
			"canonical node record in MongoDB, and frequency distributions of node "+
			"attributes can be produced from the database.\n\n"+
			"Settings are read from the config file, from SHOCKAUDIT_* environment "+
			"variables (e.g. SHOCKAUDIT_MONGO_HOST) and from flags, with flags taking "+
			"precedence.",
		80),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		if err := initLogging(cmd); err != nil {
			return err
		}
		if err := initTelemetry(cmd); err != nil {
			return err
		}
		setSpanAttributes(cmd, trace.SpanFromContext(cmd.Context()))
		return nil
	},
	// We handle errors ourselves when they're returned from ExecuteContext.
	SilenceErrors: true,
	SilenceUsage:  true,
}

var (
	cfgFilePath string
	configErr   error

	// flagKeys maps config keys to the flags bound to them.
	flagKeys = map[string]string{}

	rootSpan          trace.Span
	shutdownTelemetry telemetry.ShutdownFunc
)

// bindFlag binds flag name of fs to the config key.
func bindFlag(fs *pflag.FlagSet, key, name string) {
	cobra.CheckErr(viper.BindPFlag(key, fs.Lookup(name)))
	flagKeys[key] = name
}

func init() {
	cobra.EnableTraverseRunHooks = true
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	cobra.OnInitialize(initConfig)

	fs := rootCmd.PersistentFlags()
	fs.StringVarP(&cfgFilePath, "config", "c", "", "Path to the config file (INI, YAML or TOML)")

	fs.StringP("node-dir", "n", "", "Shock node data directory (default: ./)")
	bindFlag(fs, "main.node_dir", "node-dir")

	fs.StringP("log-path", "l", "", "Write report lines to this file instead of stdout")
	bindFlag(fs, "main.log_path", "log-path")

	fs.BoolP("verbose", "v", false, "Report valid nodes too, and log at debug level")
	bindFlag(fs, "main.verbose", "verbose")

	fs.String("log-level", "", "Log level for all loggers: debug, info, warn or error (default: info)")

	fs.StringP("db-host", "o", "", "MongoDB host/port (default: 127.0.0.1:27017)")
	bindFlag(fs, "mongo.host", "db-host")

	fs.StringP("database", "d", "", "MongoDB database (default: ShockDB)")
	bindFlag(fs, "mongo.database", "database")

	fs.StringP("username", "u", "", "MongoDB username")
	bindFlag(fs, "mongo.username", "username")

	fs.StringP("password", "p", "", "MongoDB password")
	bindFlag(fs, "mongo.password", "password")

	fs.Duration("db-timeout", 0, "Timeout for connecting to MongoDB (default: 30s)")
	bindFlag(fs, "mongo.timeout", "db-timeout")

	fs.Bool("telemetry", false, "Export traces over OTLP/HTTP")
	bindFlag(fs, "telemetry.enabled", "telemetry")

	fs.String("telemetry-endpoint", "", "OTLP/HTTP endpoint for traces (default: "+telemetry.DefaultEndpoint+")")
	bindFlag(fs, "telemetry.endpoint", "telemetry-endpoint")

	rootCmd.AddCommand(validate.Cmd)
}

func initConfig() {
	v := viper.GetViper()
	config.Init(v)

	if cfgFilePath != "" {
		configErr = config.ReadFile(v, cfgFilePath)
		return
	}

	// if no config file was provided, first look in the current directory _then_
	// look in $XDG_CONFIG_HOME/shockaudit/
	v.SetConfigName("shockaudit-config")
	v.AddConfigPath(".")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "shockaudit"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configErr = &config.ConfigurationError{Err: fmt.Errorf("reading config file: %w", err)}
		}
	}
}

func initLogging(cmd *cobra.Command) error {
	level := logging.LevelInfo
	if viper.GetBool("main.verbose") {
		level = logging.LevelDebug
	}
	if s, _ := cmd.Flags().GetString("log-level"); s != "" {
		lvl, err := logging.LevelFromString(s)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", s, err)
		}
		level = lvl
	}
	logging.SetAllLoggers(level)
	return nil
}

func initTelemetry(cmd *cobra.Command) error {
	cfg, err := config.Load[config.Config]()
	if err != nil {
		return err
	}
	shutdown, err := telemetry.Setup(cmd.Context(), cfg.Telemetry.Telemetry())
	if err != nil {
		log.Warnf("telemetry disabled: %s", err)
		return nil
	}
	shutdownTelemetry = shutdown

	ctx, span := tracer.Start(cmd.Context(), "cli")
	rootSpan = span
	cmd.SetContext(ctx)
	return nil
}

// ExecuteContext adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if rootSpan != nil {
		rootSpan.End()
	}
	if shutdownTelemetry != nil {
		err = errors.Join(err, shutdownTelemetry(context.Background()))
	}
	return err
}

// commandPath returns the command path for a `cobra.Command`. Where
// `cmd.CommandPath()` returns a concatenated string, this returns a slice of
// the individual commands in the path.
func commandPath(c *cobra.Command) []string {
	var path []string
	if c.HasParent() {
		path = commandPath(c.Parent())
	}
	path = append(path, c.Name())
	return path
}

// setSpanAttributes records the command path and the flags set on the
// command line. Values of secret flags are omitted.
func setSpanAttributes(cmd *cobra.Command, span trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.StringSlice("command.path", commandPath(cmd)),
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		k := "command.flag." + f.Name
		if f.Name == "password" {
			attrs = append(attrs, attribute.Bool(k, true))
			return
		}

		var (
			attr attribute.KeyValue
			err  error
		)
		switch f.Value.Type() {
		case "bool":
			var v bool
			v, err = cmd.Flags().GetBool(f.Name)
			attr = attribute.Bool(k, v)
		case "string":
			var v string
			v, err = cmd.Flags().GetString(f.Name)
			attr = attribute.String(k, v)
		default:
			attr = attribute.String(k, f.Value.String())
		}
		if err != nil {
			log.Warnf("getting flag %q value %v for telemetry: %v", f.Name, f.Value, err)
			return
		}
		attrs = append(attrs, attr)
	})

	span.SetAttributes(attrs...)
}
