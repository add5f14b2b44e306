package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage wfbuilder configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "config.show")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if f := viper.ConfigFileUsed(); f != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s\n", f)
		}
		return writeConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// writeConfig prints cfg as YAML keyed like the config file.
func writeConfig(w io.Writer, cfg *config.Config) error {
	callers := make([]string, 0, len(cfg.APIKeys))
	for _, caller := range cfg.APIKeys {
		callers = append(callers, caller)
	}
	sort.Strings(callers)

	signingKey := mask(cfg.SigningKey)
	sessionKey := mask(cfg.SessionKey)
	if cfg.UsingDefaultSigningKey() {
		signingKey += " (derived default)"
	}
	if cfg.UsingDefaultSessionKey() {
		sessionKey += " (derived default)"
	}

	view := map[string]interface{}{
		config.KeyDataDir:               cfg.DataDir,
		config.KeyLLMProvider:           cfg.LLMProvider,
		config.KeyLLMModel:              cfg.LLMModel,
		config.KeyLLMAPIKey:             mask(cfg.LLMAPIKey),
		config.KeyLLMBaseURL:            cfg.LLMBaseURL,
		config.KeyOllamaBaseURL:         cfg.OllamaBaseURL,
		config.KeyIntentTimeout:         cfg.IntentTimeout.String(),
		config.KeyReplyTimeout:          cfg.ReplyTimeout.String(),
		config.KeyCatalogSource:         cfg.CatalogSource,
		config.KeyCatalogURL:            cfg.CatalogURL,
		config.KeyCatalogTTL:            cfg.CatalogTTL.String(),
		config.KeyExecutorURL:           cfg.ExecutorURL,
		config.KeyTaskQueue:             cfg.TaskQueue,
		config.KeySigningKey:            signingKey,
		config.KeySessionStore:          cfg.SessionStore,
		config.KeySessionKey:            sessionKey,
		config.KeySessionTTL:            cfg.SessionTTL.String(),
		config.KeySessionSweepInterval:  cfg.SessionSweepInterval.String(),
		config.KeyMaxSessions:           cfg.MaxSessions,
		config.KeyMaxUploadMB:           cfg.MaxUploadMB,
		config.KeyRateLimitRPS:          cfg.RateLimitRPS,
		config.KeyAPIKeys:               callers,
		config.KeyCORSOrigins:           cfg.CORSOrigins,
		config.KeyMaxWorkflowNodes:      cfg.MaxWorkflowNodes,
		config.KeyRequireCompleteParams: cfg.RequireCompleteParams,
		config.KeyHooks:                 cfg.Hooks,
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// mask keeps the first four characters of a secret.
func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "****"
	}
}
