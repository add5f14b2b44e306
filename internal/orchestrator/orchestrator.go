// Package orchestrator drives the per-session conversation pipeline: screen,
// classify, reply, detect actions, extract parameters, and decide readiness.
// It also compiles converged sessions into workflows and moves them through
// review and submission.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/approval"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/detect"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/document"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/executor"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/extract"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/intent"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/llm"
	wfotel "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/policy"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/screen"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/session"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/workflow"
)

const meterName = "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/orchestrator"

var tracer = wfotel.Tracer(meterName)

var blockedCounter = wfotel.NewCounter(meterName, "wfbuilder.screen.blocked", "Messages blocked by the security screen, by family")

// Fixed reply texts.
const (
	BlockedReply  = "I'm sorry, but I can only assist with FourKites workflow automation questions. I cannot process requests that attempt to override my instructions or inject malicious content. How can I help you with workflow automation today?"
	FailureReply  = "I encountered an error processing your message. Please try again."
	FallbackReply = "I understand. Let me help you with that."
)

// Reply statuses.
const (
	StatusSuccess = "success"
	StatusBlocked = "blocked"
)

// Oracle request budgets.
const (
	ReplyMaxTokens      = 2048
	NameMaxTokens       = 30
	DefaultReplyTimeout = 60 * time.Second
)

var (
	// ErrInvalidRequest is returned when the session id or message is blank.
	ErrInvalidRequest = errors.New("missing session_id or message")
	// ErrOracleNotConfigured is returned when no oracle provider is set.
	ErrOracleNotConfigured = errors.New("oracle provider not configured")
	// ErrGeneration is returned when the oracle fails to produce a reply.
	ErrGeneration = errors.New("reply generation failed")
	// ErrNoActions is returned when compiling a session with no detected actions.
	ErrNoActions = errors.New("session has no detected actions")
	// ErrStoreNotConfigured is returned when workflow operations run without a store.
	ErrStoreNotConfigured = errors.New("workflow store not configured")
	// ErrNotApproved is returned when submitting a workflow that is not approved.
	ErrNotApproved = workflow.ErrNotApproved
)

// PolicyDeniedError is returned when the compile gate rejects a workflow.
type PolicyDeniedError struct {
	Reasons []string
}

func (e *PolicyDeniedError) Error() string {
	return "workflow denied by policy: " + strings.Join(e.Reasons, "; ")
}

// Reply is the outcome of one chat message.
type Reply struct {
	Status          string                       `json:"status"`
	SessionID       string                       `json:"session_id"`
	AgentResponse   string                       `json:"agent_response"`
	DetectedActions []string                     `json:"detected_actions"`
	IsWorkflowReady bool                         `json:"is_workflow_ready"`
	CollectedParams map[string]map[string]string `json:"collected_params,omitempty"`
	Intent          string                       `json:"intent,omitempty"`
	SecurityWarning string                       `json:"security_warning,omitempty"`
}

// Config holds the orchestrator's collaborators. Sessions, Catalog, and
// Provider are the core; the rest default or disable the features that
// need them.
type Config struct {
	Sessions session.Repository
	Catalog  catalog.Source
	Provider llm.Provider // nil: chat fails with ErrOracleNotConfigured
	Model    string

	Screen     *screen.Screen     // default: embedded rules
	Classifier *intent.Classifier // default: intent.New(Provider, Model)
	Detector   *detect.Detector   // default: detect.DefaultRules()
	Extractor  *extract.Extractor // default: extract.DefaultPolicy()
	Documents  *document.Extractor

	ReplyTimeout time.Duration
	Temperature  float64

	Workflows *workflow.Store    // optional; nil disables compile/review/submit
	Gate      *policy.Gate       // optional; nil skips the compile gate
	Executor  executor.Submitter // optional; nil makes Submit fail
	TaskQueue string
	Hooks     *HookRegistry // optional
	Clock     clock.Clock
}

// Orchestrator runs conversations.
type Orchestrator struct {
	sessions     session.Repository
	catalog      catalog.Source
	provider     llm.Provider
	model        string
	screen       *screen.Screen
	classifier   *intent.Classifier
	detector     *detect.Detector
	extractor    *extract.Extractor
	documents    *document.Extractor
	replyTimeout time.Duration
	temperature  float64
	workflows    *workflow.Store
	gate         *policy.Gate
	executor     executor.Submitter
	taskQueue    string
	hooks        *HookRegistry
	clock        clock.Clock
}

// New creates an Orchestrator. It panics when Sessions or Catalog is nil.
func New(cfg Config) *Orchestrator {
	if cfg.Sessions == nil || cfg.Catalog == nil {
		panic("orchestrator: Sessions and Catalog are required")
	}
	o := &Orchestrator{
		sessions:     cfg.Sessions,
		catalog:      cfg.Catalog,
		provider:     cfg.Provider,
		model:        cfg.Model,
		screen:       cfg.Screen,
		classifier:   cfg.Classifier,
		detector:     cfg.Detector,
		extractor:    cfg.Extractor,
		documents:    cfg.Documents,
		replyTimeout: cfg.ReplyTimeout,
		temperature:  cfg.Temperature,
		workflows:    cfg.Workflows,
		gate:         cfg.Gate,
		executor:     cfg.Executor,
		taskQueue:    cfg.TaskQueue,
		hooks:        cfg.Hooks,
		clock:        cfg.Clock,
	}
	if o.screen == nil {
		o.screen = screen.MustNewDefault()
	}
	if o.classifier == nil {
		o.classifier = intent.New(cfg.Provider, cfg.Model)
	}
	if o.detector == nil {
		o.detector = detect.New()
	}
	if o.extractor == nil {
		o.extractor = extract.New(extract.DefaultPolicy())
	}
	if o.documents == nil {
		o.documents = document.NewExtractor(document.DefaultMaxMB)
	}
	if o.replyTimeout == 0 {
		o.replyTimeout = DefaultReplyTimeout
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	return o
}

// Catalog loads the current action catalog.
func (o *Orchestrator) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	cat, err := o.catalog.Load(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrCatalogEmpty) || errors.Is(err, catalog.ErrCatalogUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", catalog.ErrCatalogUnavailable, err)
	}
	if cat.Len() == 0 {
		return nil, catalog.ErrCatalogEmpty
	}
	return cat, nil
}

// HandleMessage runs one chat turn. A screened threat returns a blocked
// reply without any oracle call or session change. A generation failure
// returns ErrGeneration after the user message and any detection results
// have been stored.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, message string) (*Reply, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.handle_message",
		trace.WithAttributes(wfotel.SessionID.String(sessionID)))
	defer span.End()

	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(message) == "" {
		return nil, ErrInvalidRequest
	}

	if v := o.screen.Check(message); v.IsThreat {
		return o.blocked(ctx, sessionID, v), nil
	}

	if o.provider == nil {
		return nil, ErrOracleNotConfigured
	}
	cat, err := o.Catalog(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog unavailable")
		return nil, err
	}

	var (
		reply  *Reply
		genErr error
		ready  bool
	)
	err = o.sessions.WithLock(ctx, sessionID, func(s *session.Session) error {
		in := o.classifier.Classify(ctx, message, s.History(intent.HistoryTurns))
		s.Intent = string(in)
		s.Append(session.RoleUser, message)

		system, err := SystemPrompt(in, cat)
		if err != nil {
			return err
		}
		text, err := o.generate(ctx, system, s.Messages, ReplyMaxTokens, "reply")
		if err != nil {
			genErr = err
		} else {
			s.Append(session.RoleAssistant, text)
		}

		reply = &Reply{
			Status:        StatusSuccess,
			SessionID:     sessionID,
			AgentResponse: text,
			Intent:        string(in),
		}
		if !in.IsWorkflow() {
			return nil
		}

		wasComplete := s.IsComplete
		o.advance(ctx, s, cat, text, genErr == nil)
		ready = s.IsComplete && !wasComplete
		if len(s.DetectedActions) > 0 {
			reply.DetectedActions = append([]string{}, s.DetectedActions...)
		}
		reply.IsWorkflowReady = s.IsComplete
		reply.CollectedParams = s.Params()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("updating session %s: %w", sessionID, err)
	}
	if genErr != nil {
		span.RecordError(genErr)
		span.SetStatus(codes.Error, "generation failed")
		log.Error().Err(genErr).Str("session_id", sessionID).Func(wfotel.LogTraceFields(ctx)).Msg("reply_generation_failed")
		return nil, fmt.Errorf("%w: %v", ErrGeneration, genErr)
	}

	span.SetAttributes(
		wfotel.Intent.String(reply.Intent),
		wfotel.ActionCount.Int(len(reply.DetectedActions)),
		attribute.Bool("wfbuilder.workflow_ready", reply.IsWorkflowReady),
	)
	log.Info().
		Str("session_id", sessionID).
		Str("intent", reply.Intent).
		Strs("actions", reply.DetectedActions).
		Bool("ready", reply.IsWorkflowReady).
		Func(wfotel.LogTraceFields(ctx)).
		Msg("message_handled")

	if ready {
		o.hooks.Fire(ctx, &Event{Point: HookWorkflowReady, SessionID: sessionID, Timestamp: o.clock.Now()})
	}
	return reply, nil
}

// advance runs detection, extraction, and readiness over the session. When
// replied is false the latest reply is not fresh and readiness is left as is.
func (o *Orchestrator) advance(ctx context.Context, s *session.Session, cat *catalog.Catalog, reply string, replied bool) {
	res := o.detector.Detect(detect.Input{
		Transcript:  s.Transcript(),
		LatestReply: s.LatestReply(),
		Catalog:     cat,
		Existing:    s.DetectedActions,
	})
	added := s.AdoptActions(res.Actions)
	if len(res.Matched) > 0 && added > 0 {
		log.Debug().
			Str("session_id", s.ID).
			Str("rule", res.Rule).
			Int("added", added).
			Func(wfotel.LogTraceFields(ctx)).
			Msg("actions_detected")
	}

	s.MergeParams(o.extractor.Extract(s.Transcript(), s.DetectedActions))

	if replied {
		s.IsComplete = approval.Detect(reply) && len(s.DetectedActions) > 0
	}
}

func (o *Orchestrator) blocked(ctx context.Context, sessionID string, v screen.Verdict) *Reply {
	blockedCounter.Add(ctx, 1, attribute.String("family", v.Family))
	log.Warn().
		Str("session_id", sessionID).
		Str("family", v.Family).
		Str("rule", v.Rule).
		Func(wfotel.LogTraceFields(ctx)).
		Msg("message_blocked")
	o.hooks.Fire(ctx, &Event{Point: HookMessageBlocked, SessionID: sessionID, Status: v.Family, Timestamp: o.clock.Now()})
	return &Reply{
		Status:          StatusBlocked,
		SessionID:       sessionID,
		AgentResponse:   BlockedReply,
		SecurityWarning: v.Reason,
	}
}

// generate asks the oracle for a reply to msgs under system. An empty
// completion is replaced by FallbackReply.
func (o *Orchestrator) generate(ctx context.Context, system string, msgs []session.Message, maxTokens int, purpose string) (string, error) {
	if o.provider == nil {
		return "", ErrOracleNotConfigured
	}
	if o.replyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.replyTimeout)
		defer cancel()
	}

	req := &llm.Request{
		Model:       o.model,
		Messages:    make([]llm.Message, 0, len(msgs)+1),
		Temperature: o.temperature,
		MaxTokens:   maxTokens,
	}
	if system != "" {
		req.Messages = append(req.Messages, llm.System(system))
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := o.provider.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	llm.RecordUsage(ctx, o.provider, resp, purpose)

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return FallbackReply, nil
	}
	return text, nil
}

// Session returns a copy of the session state.
func (o *Orchestrator) Session(ctx context.Context, id string) (*session.Session, error) {
	return o.sessions.Get(ctx, id)
}

// DeleteSession removes a session.
func (o *Orchestrator) DeleteSession(ctx context.Context, id string) error {
	if err := o.sessions.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Str("session_id", id).Msg("session_deleted")
	return nil
}

// Sessions lists session summaries, most recent first.
func (o *Orchestrator) Sessions(ctx context.Context) ([]session.Summary, error) {
	return o.sessions.List(ctx)
}

// SessionCount returns the number of live sessions.
func (o *Orchestrator) SessionCount(ctx context.Context) (int, error) {
	return o.sessions.Count(ctx)
}

// Screen exposes the configured security screen.
func (o *Orchestrator) Screen() *screen.Screen {
	return o.screen
}

// Documents exposes the upload extractor.
func (o *Orchestrator) Documents() *document.Extractor {
	return o.documents
}
