package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
)

// resolvedVersion returns Version unless it is "dev" and Go build info
// contains a real module version (e.g. from go install ...@v0.3.1).
func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// tracer is the package-level tracer for all CLI commands
var tracer = otel.Tracer("github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/cmd")

var (
	// otelShutdown holds the OTel shutdown function, called from Execute()
	otelShutdown func(context.Context) error

	// Version info injected via ldflags at build time
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	// Global flags
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
	otelFlag  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wfbuilder",
	Short: "Conversational workflow builder",
	Long: `wfbuilder turns a conversation into an executable automation workflow.

Operators describe a process in plain language or upload a requirements
document. wfbuilder:
- screens every message for jailbreak and prompt-injection attempts
- classifies intent and answers with a catalog-aware assistant
- detects catalog actions and extracts their parameters
- compiles the conversation into a workflow graph for review
- submits approved workflows to the executor`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(os.Stderr, viper.GetString("log_level"), viper.GetString("log_format"), viper.GetBool("verbose"))

		// --otel, -v, WFBUILDER_OTEL or WFBUILDER_OTEL_ENABLED=true
		otelEnabled := viper.GetBool("otel") || viper.GetBool("verbose") || os.Getenv("WFBUILDER_OTEL_ENABLED") == "true"
		shutdown, err := otel.Setup("wfbuilder", resolvedVersion(), otelEnabled)
		if err != nil {
			return fmt.Errorf("initializing OpenTelemetry: %w", err)
		}
		otelShutdown = shutdown
		return nil
	},
}

// setupLogging points the global logger at w. Flags win over
// WFBUILDER_LOG_LEVEL / WFBUILDER_LOG_FORMAT and the config file because they
// are bound to the same viper keys.
func setupLogging(w io.Writer, levelName, format string, debug bool) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	// stderr keeps stdout clean for `wfbuilder catalog --json | jq`.
	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./wfbuilder.config.yaml or ~/.wfbuilder/wfbuilder.config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&otelFlag, "otel", false, "enable OpenTelemetry (traces and metrics to stdout)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("otel", rootCmd.PersistentFlags().Lookup("otel"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.wfbuilder")
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("wfbuilder.config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("WFBUILDER")
	viper.AutomaticEnv()

	// The file may not exist yet.
	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("config_loaded")
	}
}

// Execute runs the root command and flushes OTel on exit
func Execute() error {
	err := rootCmd.Execute()
	if otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(ctx)
	}
	return err
}
