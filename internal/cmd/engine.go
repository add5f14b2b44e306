package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/config"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/cryptoutil"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/document"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/executor"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/intent"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/llm"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/orchestrator"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/policy"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/session"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/workflow"
)

// Oracle circuit breaker settings for long-running processes.
const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// engine bundles the orchestrator with the resources it owns.
type engine struct {
	orch    *orchestrator.Orchestrator
	sweeper *session.Sweeper
	hooks   *orchestrator.HookRegistry
	closers []io.Closer
}

// Close stops the sweeper, flushes queued hook deliveries, and closes stores
// in reverse order of opening.
func (e *engine) Close() {
	if e.sweeper != nil {
		e.sweeper.Stop()
	}
	e.hooks.Wait()
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("engine_close_failed")
		}
	}
}

// buildEngine wires every component named by cfg into an orchestrator.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	e := &engine{}
	clk := clock.New()

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	sessions, closer, err := buildSessions(cfg, clk)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		e.closers = append(e.closers, closer)
	}
	e.sweeper, err = session.NewSweeper(sessions, cfg.SessionTTL, cfg.SessionSweepInterval, clk)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("session sweeper: %w", err)
	}

	workflows, err := workflow.Open(cfg.WorkflowsDBPath(), clk)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("initializing workflow store: %w", err)
	}
	e.closers = append(e.closers, workflows)

	gate, err := policy.NewGate(ctx, policy.Limits{
		MaxNodes:              cfg.MaxWorkflowNodes,
		RequireCompleteParams: cfg.RequireCompleteParams,
	})
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("workflow gate: %w", err)
	}

	signer, err := executor.NewSigner(cfg.SigningKey)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("signing key: %w", err)
	}

	var submitter executor.Submitter
	if cfg.ExecutorURL != "" {
		submitter = executor.NewClient(cfg.ExecutorURL, executor.WithSigner(signer))
	} else {
		log.Warn().Msg("WFBUILDER_EXECUTOR_URL not set; approved workflows cannot be submitted")
	}

	e.hooks = buildHooks(cfg.Hooks, signer)
	e.orch = orchestrator.New(orchestrator.Config{
		Sessions:     sessions,
		Catalog:      buildCatalogSource(cfg, clk),
		Provider:     provider,
		Model:        cfg.LLMModel,
		Classifier:   intent.New(provider, cfg.LLMModel, intent.WithTimeout(cfg.IntentTimeout)),
		Documents:    document.NewExtractor(cfg.MaxUploadMB),
		ReplyTimeout: cfg.ReplyTimeout,
		Workflows:    workflows,
		Gate:         gate,
		Executor:     submitter,
		TaskQueue:    cfg.TaskQueue,
		Hooks:        e.hooks,
		Clock:        clk,
	})
	return e, nil
}

// buildProvider returns the oracle named by cfg behind a circuit breaker. A
// missing API key is not fatal: the engine starts and chat requests fail
// with a configuration error.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	p, err := llm.NewProvider(llm.Options{
		Provider:  cfg.LLMProvider,
		APIKey:    cfg.LLMAPIKey,
		BaseURL:   cfg.LLMBaseURL,
		OllamaURL: cfg.OllamaBaseURL,
	})
	if errors.Is(err, llm.ErrMissingAPIKey) {
		log.Warn().Str("provider", cfg.LLMProvider).Msg("llm api key not set; chat requests will fail until WFBUILDER_LLM_API_KEY is configured")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	return llm.NewBreaker(p, breakerThreshold, breakerCooldown, nil), nil
}

func buildCatalogSource(cfg *config.Config, clk clock.Clock) catalog.Source {
	if cfg.CatalogSource == config.CatalogEmbedded {
		return catalog.NewStatic(catalog.Default())
	}
	return catalog.NewClient(cfg.CatalogURL, catalog.WithTTL(cfg.CatalogTTL), catalog.WithClock(clk))
}

func buildSessions(cfg *config.Config, clk clock.Clock) (session.Repository, io.Closer, error) {
	if cfg.SessionStore != config.StoreSQLite {
		return session.NewMemoryRepository(
			session.WithClock(clk),
			session.WithMaxSessions(cfg.MaxSessions),
		), nil, nil
	}
	sealer, err := cryptoutil.NewSealer(cfg.SessionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("session key: %w", err)
	}
	repo, err := session.NewSQLiteRepository(cfg.SessionsDBPath(),
		session.WithSealer(sealer),
		session.WithSQLiteClock(clk),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing session store: %w", err)
	}
	return repo, repo, nil
}

func buildHooks(hooks []config.HookConfig, signer *executor.Signer) *orchestrator.HookRegistry {
	reg := orchestrator.NewHookRegistry()
	for _, h := range hooks {
		reg.Register(orchestrator.NewWebhookHook(orchestrator.WebhookConfig{URL: h.URL, On: h.On}, signer))
	}
	return reg
}
