package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/executor"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/graph"
	wfotel "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/session"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/workflow"
)

const maxNameLen = 80

// Compile builds the session's workflow graph, names it, runs the compile
// gate, and stores the result as pending review. An empty name asks the
// oracle for one.
func (o *Orchestrator) Compile(ctx context.Context, sessionID, name string) (*workflow.Record, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.compile",
		trace.WithAttributes(wfotel.SessionID.String(sessionID)))
	defer span.End()

	if o.workflows == nil {
		return nil, ErrStoreNotConfigured
	}
	s, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(s.DetectedActions) == 0 {
		return nil, ErrNoActions
	}
	cat, err := o.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	g := graph.Build(s.DetectedActions, s.Params(), cat)
	missing := graph.Validate(g, cat)

	name = strings.TrimSpace(name)
	if name == "" {
		name = o.nameWorkflow(ctx, s, g)
	}

	id := workflow.NewID()
	wf := graph.ToExecutor(g, id, name, o.taskQueue)
	span.SetAttributes(wfotel.WorkflowID.String(id), attribute.Int("workflow.nodes", len(wf.Nodes)))

	if o.gate != nil {
		decision, err := o.gate.Evaluate(ctx, wf, cat, missing)
		if err != nil {
			return nil, fmt.Errorf("evaluating compile gate: %w", err)
		}
		if !decision.Allowed {
			return nil, &PolicyDeniedError{Reasons: decision.Reasons}
		}
	}

	rec := &workflow.Record{
		ID:        id,
		SessionID: sessionID,
		Name:      name,
		Graph:     g,
		Executor:  wf,
		Missing:   missing,
	}
	if err := o.workflows.Save(ctx, rec); err != nil {
		return nil, err
	}
	o.hooks.Fire(ctx, &Event{
		Point:      HookWorkflowCompiled,
		SessionID:  sessionID,
		WorkflowID: rec.ID,
		Status:     string(rec.Status),
		Timestamp:  o.clock.Now(),
	})
	return rec, nil
}

// nameWorkflow asks the oracle for a short name and falls back to a
// node-count name on any failure.
func (o *Orchestrator) nameWorkflow(ctx context.Context, s *session.Session, g *graph.Graph) string {
	fallback := fmt.Sprintf("Workflow (%d nodes) - %s", len(g.Nodes), o.clock.Now().UTC().Format("2006-01-02"))
	if o.provider == nil {
		return fallback
	}

	prompt, err := namePrompt(s.DetectedActions, s.CollectedParams["send_initial_email"]["facility"])
	if err != nil {
		return fallback
	}
	text, err := o.generate(ctx, "", []session.Message{{Role: session.RoleUser, Content: prompt}}, NameMaxTokens, "naming")
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.ID).Msg("workflow_naming_failed")
		return fallback
	}
	if text == FallbackReply {
		return fallback
	}
	name := cleanName(text)
	if name == "" {
		return fallback
	}
	return name
}

// cleanName keeps the first line of an oracle answer without quotes.
func cleanName(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.Trim(strings.TrimSpace(text), "\"'`*")
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > maxNameLen {
		text = strings.TrimSpace(string(r[:maxNameLen]))
	}
	return text
}

// Workflow returns a compiled workflow record.
func (o *Orchestrator) Workflow(ctx context.Context, id string) (*workflow.Record, error) {
	if o.workflows == nil {
		return nil, ErrStoreNotConfigured
	}
	return o.workflows.Get(ctx, id)
}

// Workflows lists compiled workflows, optionally filtered by status.
func (o *Orchestrator) Workflows(ctx context.Context, status workflow.Status) ([]*workflow.Record, error) {
	if o.workflows == nil {
		return nil, ErrStoreNotConfigured
	}
	return o.workflows.List(ctx, status)
}

// Approve marks a pending workflow approved.
func (o *Orchestrator) Approve(ctx context.Context, id, reviewer string) (*workflow.Record, error) {
	if o.workflows == nil {
		return nil, ErrStoreNotConfigured
	}
	if err := o.workflows.Approve(ctx, id, reviewer); err != nil {
		return nil, err
	}
	return o.reviewed(ctx, id)
}

// Reject marks a pending workflow rejected.
func (o *Orchestrator) Reject(ctx context.Context, id, reviewer, reason string) (*workflow.Record, error) {
	if o.workflows == nil {
		return nil, ErrStoreNotConfigured
	}
	if err := o.workflows.Reject(ctx, id, reviewer, reason); err != nil {
		return nil, err
	}
	return o.reviewed(ctx, id)
}

func (o *Orchestrator) reviewed(ctx context.Context, id string) (*workflow.Record, error) {
	rec, err := o.workflows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	o.hooks.Fire(ctx, &Event{
		Point:      HookWorkflowReviewed,
		SessionID:  rec.SessionID,
		WorkflowID: rec.ID,
		Status:     string(rec.Status),
		Timestamp:  o.clock.Now(),
	})
	return rec, nil
}

// Submit sends an approved workflow to the executor and records the run.
func (o *Orchestrator) Submit(ctx context.Context, id string) (*workflow.Record, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.submit",
		trace.WithAttributes(wfotel.WorkflowID.String(id)))
	defer span.End()

	if o.workflows == nil {
		return nil, ErrStoreNotConfigured
	}
	if o.executor == nil {
		return nil, executor.ErrNotConfigured
	}
	rec, err := o.workflows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != workflow.StatusApproved {
		return nil, fmt.Errorf("%w: status is %s", ErrNotApproved, rec.Status)
	}

	res, err := o.executor.Submit(ctx, rec.Executor)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := o.workflows.MarkSubmitted(ctx, id, res.RunID); err != nil {
		return nil, err
	}
	rec, err = o.workflows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	o.hooks.Fire(ctx, &Event{
		Point:      HookWorkflowSubmitted,
		SessionID:  rec.SessionID,
		WorkflowID: rec.ID,
		Status:     string(rec.Status),
		Timestamp:  o.clock.Now(),
	})
	return rec, nil
}
