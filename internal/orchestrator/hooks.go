package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/executor"
)

// HookPoint identifies a lifecycle event that hooks can observe.
type HookPoint string

const (
	HookMessageBlocked    HookPoint = "message_blocked"
	HookWorkflowReady     HookPoint = "workflow_ready"
	HookWorkflowCompiled  HookPoint = "workflow_compiled"
	HookWorkflowReviewed  HookPoint = "workflow_reviewed"
	HookWorkflowSubmitted HookPoint = "workflow_submitted"
)

// HookHeader names the lifecycle point on webhook deliveries.
const HookHeader = "X-Wfbuilder-Hook"

// Event is delivered to hooks.
type Event struct {
	Point      HookPoint       `json:"point"`
	SessionID  string          `json:"session_id,omitempty"`
	WorkflowID string          `json:"workflow_id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Hook observes lifecycle events. Hooks cannot change the outcome of the
// operation that fired them.
type Hook interface {
	Wants(point HookPoint) bool
	Notify(ctx context.Context, ev *Event) error
}

// hookQueueSize bounds events waiting for delivery. Events fired while the
// queue is full are dropped.
const hookQueueSize = 256

// HookRegistry fans events out to registered hooks. Delivery happens on a
// single background worker, so events arrive in the order they were fired
// and never hold up the request that fired them.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks []Hook

	start   sync.Once
	queue   chan hookDelivery
	pending sync.WaitGroup
}

type hookDelivery struct {
	ctx context.Context
	ev  *Event
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

// Register adds a hook.
func (r *HookRegistry) Register(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Len returns the number of registered hooks.
func (r *HookRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks)
}

// Fire queues ev for every hook that wants it and returns immediately. The
// delivery context keeps ctx's values but not its cancellation. Failures are
// logged and never propagate. A nil registry is a no-op.
func (r *HookRegistry) Fire(ctx context.Context, ev *Event) {
	if r.Len() == 0 {
		return
	}
	r.start.Do(func() {
		r.queue = make(chan hookDelivery, hookQueueSize)
		go r.run()
	})

	r.pending.Add(1)
	select {
	case r.queue <- hookDelivery{ctx: context.WithoutCancel(ctx), ev: ev}:
	default:
		r.pending.Done()
		log.Warn().Str("hook_point", string(ev.Point)).Msg("hook_queue_full")
	}
}

// Wait blocks until every queued event has been delivered.
func (r *HookRegistry) Wait() {
	if r == nil {
		return
	}
	r.pending.Wait()
}

func (r *HookRegistry) run() {
	for d := range r.queue {
		r.deliver(d.ctx, d.ev)
		r.pending.Done()
	}
}

func (r *HookRegistry) deliver(ctx context.Context, ev *Event) {
	r.mu.RLock()
	hooks := make([]Hook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.RUnlock()

	ctx, span := tracer.Start(ctx, "hooks.fire",
		trace.WithAttributes(attribute.String("hook_point", string(ev.Point))))
	defer span.End()

	for _, h := range hooks {
		if !h.Wants(ev.Point) {
			continue
		}
		if err := h.Notify(ctx, ev); err != nil {
			log.Warn().Err(err).Str("hook_point", string(ev.Point)).Msg("hook_execution_failed")
		}
	}
}

// WebhookConfig configures a webhook hook. On lists hook points; empty or
// "all" subscribes to everything.
type WebhookConfig struct {
	URL string   `mapstructure:"url" yaml:"url" json:"url"`
	On  []string `mapstructure:"on" yaml:"on" json:"on"`
}

// WebhookHook POSTs events as JSON to a configured URL.
type WebhookHook struct {
	url    string
	points map[HookPoint]bool
	signer *executor.Signer
	client *http.Client
}

// NewWebhookHook creates a webhook hook. When signer is set each delivery
// carries an executor.SignatureHeader over the body.
func NewWebhookHook(cfg WebhookConfig, signer *executor.Signer) *WebhookHook {
	h := &WebhookHook{
		url:    cfg.URL,
		signer: signer,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, p := range cfg.On {
		if p == "all" {
			h.points = nil
			break
		}
		if h.points == nil {
			h.points = make(map[HookPoint]bool)
		}
		h.points[HookPoint(p)] = true
	}
	return h
}

// Wants implements Hook.
func (h *WebhookHook) Wants(point HookPoint) bool {
	return h.points == nil || h.points[point]
}

// Notify implements Hook.
func (h *WebhookHook) Notify(ctx context.Context, ev *Event) error {
	if h.url == "" {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling hook event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HookHeader, string(ev.Point))
	if h.signer != nil {
		req.Header.Set(executor.SignatureHeader, h.signer.Sign(body))
	}

	// G704: URL is operator configuration, not user input.
	resp, err := h.client.Do(req) // #nosec G704
	if err != nil {
		return fmt.Errorf("delivering webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	log.Debug().Int("status", resp.StatusCode).Str("hook_point", string(ev.Point)).Msg("webhook_delivered")
	return nil
}
