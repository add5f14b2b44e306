// Package config holds operator-level configuration for a wfbuilder
// installation: where state lives, which oracle to talk to, where the action
// catalog and the workflow executor are, and the limits applied to callers.
//
// Values come from env vars (WFBUILDER_*), the config file
// (wfbuilder.config.yaml), and the defaults registered in init. Oracle API
// keys may also come from OPENAI_API_KEY / ANTHROPIC_API_KEY as a quickstart
// fallback.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/cryptoutil"
)

// Viper keys. Each maps to an env var with the WFBUILDER_ prefix
// (e.g. "llm_model" → WFBUILDER_LLM_MODEL) and to a YAML field in
// wfbuilder.config.yaml.
const (
	KeyDataDir               = "data_dir"
	KeyLLMProvider           = "llm_provider"
	KeyLLMModel              = "llm_model"
	KeyLLMAPIKey             = "llm_api_key"
	KeyLLMBaseURL            = "llm_base_url"
	KeyOllamaBaseURL         = "ollama_base_url"
	KeyIntentTimeout         = "intent_timeout"
	KeyReplyTimeout          = "reply_timeout"
	KeyCatalogSource         = "catalog_source"
	KeyCatalogURL            = "catalog_url"
	KeyCatalogTTL            = "catalog_ttl"
	KeyExecutorURL           = "executor_url"
	KeyTaskQueue             = "task_queue"
	KeySigningKey            = "signing_key"
	KeySessionStore          = "session_store"
	KeySessionKey            = "session_key"
	KeySessionTTL            = "session_ttl"
	KeySessionSweepInterval  = "session_sweep_interval"
	KeyMaxSessions           = "max_sessions"
	KeyMaxUploadMB           = "max_upload_mb"
	KeyRateLimitRPS          = "rate_limit_rps"
	KeyAPIKeys               = "api_keys"
	KeyCORSOrigins           = "cors_origins"
	KeyMaxWorkflowNodes      = "max_workflow_nodes"
	KeyRequireCompleteParams = "require_complete_params"
	KeyHooks                 = "hooks"
)

// Catalog sources and session stores.
const (
	CatalogRemote   = "remote"
	CatalogEmbedded = "embedded"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Defaults that do not involve key material.
const (
	DefaultLLMProvider          = "openai"
	DefaultLLMModel             = "gpt-4o-mini"
	DefaultOllamaURL            = "http://localhost:11434"
	DefaultIntentTimeout        = 10 * time.Second
	DefaultReplyTimeout         = 60 * time.Second
	DefaultCatalogSource        = CatalogRemote
	DefaultCatalogURL           = "http://localhost:8001"
	DefaultCatalogTTL           = 5 * time.Minute
	DefaultTaskQueue            = "fourkites-workflow-queue"
	DefaultSessionStore         = StoreMemory
	DefaultSessionTTL           = 24 * time.Hour
	DefaultSessionSweepInterval = 10 * time.Minute
	DefaultMaxSessions          = 10000
	DefaultMaxUploadMB          = 10
	DefaultCORSOrigins          = "*"
	DefaultMaxWorkflowNodes     = 50
)

// HookConfig subscribes a webhook URL to lifecycle events. An empty On
// list, or "all", subscribes to every event.
type HookConfig struct {
	URL string   `mapstructure:"url" yaml:"url" json:"url"`
	On  []string `mapstructure:"on" yaml:"on,omitempty" json:"on,omitempty"`
}

// Config holds resolved operator-level configuration for a wfbuilder process.
type Config struct {
	DataDir string

	LLMProvider   string
	LLMModel      string
	LLMAPIKey     string
	LLMBaseURL    string
	OllamaBaseURL string
	IntentTimeout time.Duration
	ReplyTimeout  time.Duration

	CatalogSource string
	CatalogURL    string
	CatalogTTL    time.Duration

	ExecutorURL string
	TaskQueue   string
	SigningKey  string // HMAC key for executor submissions and webhooks (≥32 bytes)

	SessionStore         string
	SessionKey           string // sealing key for persisted sessions (32 bytes or 64 hex)
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	MaxSessions          int

	MaxUploadMB  int
	RateLimitRPS float64
	APIKeys      map[string]string // key -> caller name
	CORSOrigins  []string

	MaxWorkflowNodes      int
	RequireCompleteParams bool

	Hooks []HookConfig

	usingDefaultSigningKey bool
	usingDefaultSessionKey bool
}

// UsingDefaultKeys returns true if either key fell back to a derived default.
func (c *Config) UsingDefaultKeys() bool {
	return c.usingDefaultSigningKey || c.usingDefaultSessionKey
}

// UsingDefaultSigningKey returns true if the signing key was derived (not set explicitly).
func (c *Config) UsingDefaultSigningKey() bool {
	return c.usingDefaultSigningKey
}

// UsingDefaultSessionKey returns true if the session key was derived (not set explicitly).
func (c *Config) UsingDefaultSessionKey() bool {
	return c.usingDefaultSessionKey
}

// SessionsDBPath returns the full path to the sessions SQLite database.
func (c *Config) SessionsDBPath() string {
	return filepath.Join(c.DataDir, "sessions.db")
}

// WorkflowsDBPath returns the full path to the compiled workflows database.
func (c *Config) WorkflowsDBPath() string {
	return filepath.Join(c.DataDir, "workflows.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// WarnIfDefaultKeys logs a warning when keys are not explicitly set.
// Suppressed when WFBUILDER_QUICKSTART=1 or true.
func (c *Config) WarnIfDefaultKeys() {
	if isQuickstart() {
		return
	}
	if c.usingDefaultSigningKey {
		log.Warn().Msg("Using derived default WFBUILDER_SIGNING_KEY; set via env var or config file for production")
	}
	if c.usingDefaultSessionKey && c.SessionStore == StoreSQLite {
		log.Warn().Msg("Using derived default WFBUILDER_SESSION_KEY; set via env var or config file for production")
	}
}

func isQuickstart() bool {
	v := os.Getenv("WFBUILDER_QUICKSTART")
	return v == "1" || v == "true" || v == "TRUE"
}

func init() {
	SetDefaults(viper.GetViper())
}

// SetDefaults registers the env prefix and every non-secret default on v.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix("WFBUILDER")
	v.AutomaticEnv()
	v.SetDefault(KeyLLMProvider, DefaultLLMProvider)
	v.SetDefault(KeyLLMModel, DefaultLLMModel)
	v.SetDefault(KeyOllamaBaseURL, DefaultOllamaURL)
	v.SetDefault(KeyIntentTimeout, DefaultIntentTimeout)
	v.SetDefault(KeyReplyTimeout, DefaultReplyTimeout)
	v.SetDefault(KeyCatalogSource, DefaultCatalogSource)
	v.SetDefault(KeyCatalogURL, DefaultCatalogURL)
	v.SetDefault(KeyCatalogTTL, DefaultCatalogTTL)
	v.SetDefault(KeyTaskQueue, DefaultTaskQueue)
	v.SetDefault(KeySessionStore, DefaultSessionStore)
	v.SetDefault(KeySessionTTL, DefaultSessionTTL)
	v.SetDefault(KeySessionSweepInterval, DefaultSessionSweepInterval)
	v.SetDefault(KeyMaxSessions, DefaultMaxSessions)
	v.SetDefault(KeyMaxUploadMB, DefaultMaxUploadMB)
	v.SetDefault(KeyCORSOrigins, DefaultCORSOrigins)
	v.SetDefault(KeyMaxWorkflowNodes, DefaultMaxWorkflowNodes)
	v.SetDefault(KeyRequireCompleteParams, false)
}

// Load reads configuration from the global Viper instance (env vars, config
// file, and defaults) and returns a validated Config.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against a specific Viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DataDir:               resolveDataDir(v),
		LLMProvider:           strings.ToLower(strings.TrimSpace(v.GetString(KeyLLMProvider))),
		LLMModel:              v.GetString(KeyLLMModel),
		LLMAPIKey:             v.GetString(KeyLLMAPIKey),
		LLMBaseURL:            v.GetString(KeyLLMBaseURL),
		OllamaBaseURL:         v.GetString(KeyOllamaBaseURL),
		IntentTimeout:         v.GetDuration(KeyIntentTimeout),
		ReplyTimeout:          v.GetDuration(KeyReplyTimeout),
		CatalogSource:         strings.ToLower(strings.TrimSpace(v.GetString(KeyCatalogSource))),
		CatalogURL:            v.GetString(KeyCatalogURL),
		CatalogTTL:            v.GetDuration(KeyCatalogTTL),
		ExecutorURL:           v.GetString(KeyExecutorURL),
		TaskQueue:             v.GetString(KeyTaskQueue),
		SigningKey:            v.GetString(KeySigningKey),
		SessionStore:          strings.ToLower(strings.TrimSpace(v.GetString(KeySessionStore))),
		SessionKey:            v.GetString(KeySessionKey),
		SessionTTL:            v.GetDuration(KeySessionTTL),
		SessionSweepInterval:  v.GetDuration(KeySessionSweepInterval),
		MaxSessions:           v.GetInt(KeyMaxSessions),
		MaxUploadMB:           v.GetInt(KeyMaxUploadMB),
		RateLimitRPS:          v.GetFloat64(KeyRateLimitRPS),
		APIKeys:               ParseAPIKeys(v.GetString(KeyAPIKeys)),
		CORSOrigins:           splitList(v.GetString(KeyCORSOrigins)),
		MaxWorkflowNodes:      v.GetInt(KeyMaxWorkflowNodes),
		RequireCompleteParams: v.GetBool(KeyRequireCompleteParams),
	}
	if err := v.UnmarshalKey(KeyHooks, &cfg.Hooks); err != nil {
		return nil, fmt.Errorf("invalid configuration: hooks: %w", err)
	}

	if cfg.SigningKey == "" {
		cfg.SigningKey = deriveDefaultKey(cfg.DataDir, "executor-signing")
		cfg.usingDefaultSigningKey = true
	}
	if cfg.SessionKey == "" {
		cfg.SessionKey = deriveDefaultKey(cfg.DataDir, "session-sealing-")
		cfg.usingDefaultSessionKey = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseAPIKeys parses a comma-separated list of "key" or "key:caller"
// entries into a map of key -> caller name. Bare keys map to "default".
func ParseAPIKeys(raw string) map[string]string {
	m := make(map[string]string)
	for _, part := range splitList(raw) {
		caller := "default"
		if idx := strings.Index(part, ":"); idx > 0 {
			caller = strings.TrimSpace(part[idx+1:])
			part = strings.TrimSpace(part[:idx])
		}
		m[part] = caller
	}
	return m
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func resolveDataDir(v *viper.Viper) string {
	if dir := v.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wfbuilder"
	}
	return filepath.Join(home, ".wfbuilder")
}

// deriveDefaultKey produces a deterministic 64-hex-character key from the
// data directory path and a salt. It is not a secret; it only lets a fresh
// install run while still keying per machine.
func deriveDefaultKey(dataDir, salt string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("wfbuilder:%s:%s", dataDir, salt)))
	return hex.EncodeToString(h[:])
}

//nolint:gocyclo // flat list of independent checks
func (c *Config) validate() error {
	switch c.LLMProvider {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("llm_provider must be openai, anthropic, or ollama (got %q)", c.LLMProvider)
	}
	if c.LLMModel == "" {
		return fmt.Errorf("llm_model must be set")
	}
	if c.IntentTimeout <= 0 || c.ReplyTimeout <= 0 {
		return fmt.Errorf("intent_timeout and reply_timeout must be positive")
	}
	switch c.CatalogSource {
	case CatalogEmbedded:
	case CatalogRemote:
		if err := validateURL(KeyCatalogURL, c.CatalogURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("catalog_source must be remote or embedded (got %q)", c.CatalogSource)
	}
	if c.CatalogTTL < 0 {
		return fmt.Errorf("catalog_ttl must not be negative")
	}
	if c.ExecutorURL != "" {
		if err := validateURL(KeyExecutorURL, c.ExecutorURL); err != nil {
			return err
		}
	}
	if c.TaskQueue == "" {
		return fmt.Errorf("task_queue must be set")
	}
	if err := validateSigningKey(c.SigningKey); err != nil {
		return err
	}
	switch c.SessionStore {
	case StoreMemory:
	case StoreSQLite:
		if _, err := cryptoutil.ResolveKey(c.SessionKey); err != nil {
			return fmt.Errorf("session_key: %w; set WFBUILDER_SESSION_KEY", err)
		}
	default:
		return fmt.Errorf("session_store must be memory or sqlite (got %q)", c.SessionStore)
	}
	if c.SessionTTL <= 0 || c.SessionSweepInterval <= 0 {
		return fmt.Errorf("session_ttl and session_sweep_interval must be positive")
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate_limit_rps must not be negative")
	}
	if c.MaxWorkflowNodes <= 0 {
		return fmt.Errorf("max_workflow_nodes must be positive")
	}
	for i, h := range c.Hooks {
		if err := validateURL(fmt.Sprintf("hooks[%d].url", i), h.URL); err != nil {
			return err
		}
	}
	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL (got %q)", key, raw)
	}
	return nil
}

// validateSigningKey accepts ≥32 raw bytes or ≥64 hex characters (decoded length ≥32).
func validateSigningKey(key string) error {
	n := len(key)
	if n >= 64 && n%2 == 0 && cryptoutil.IsHexString(key) {
		decoded, err := hex.DecodeString(key)
		if err != nil || len(decoded) < 32 {
			return fmt.Errorf("signing_key hex must decode to at least 32 bytes: %w", err)
		}
		return nil
	}
	if n >= 32 {
		return nil
	}
	return fmt.Errorf("signing_key must be at least 32 bytes or 64+ hex characters (got %d); set WFBUILDER_SIGNING_KEY", n)
}
