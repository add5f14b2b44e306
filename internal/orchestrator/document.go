package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/document"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/intent"
	wfotel "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/session"
)

// ErrMissingUpload is returned when an upload has no file or session id.
var ErrMissingUpload = errors.New("missing file or session_id")

// DocumentReply is the outcome of an uploaded requirements document.
type DocumentReply struct {
	Status          string                       `json:"status"`
	SessionID       string                       `json:"session_id"`
	Filename        string                       `json:"filename"`
	AgentResponse   string                       `json:"agent_response"`
	DocumentPreview string                       `json:"document_preview"`
	Truncated       bool                         `json:"truncated,omitempty"`
	DetectedActions []string                     `json:"detected_actions"`
	IsWorkflowReady bool                         `json:"is_workflow_ready"`
	CollectedParams map[string]map[string]string `json:"collected_params,omitempty"`
	SecurityWarning string                       `json:"security_warning,omitempty"`
}

// HandleDocument folds an uploaded requirements document into the session
// as an analysis request and runs the workflow pipeline over the result.
// Document text is screened like a chat message.
func (o *Orchestrator) HandleDocument(ctx context.Context, sessionID, filename string, content []byte) (*DocumentReply, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.handle_document",
		trace.WithAttributes(
			wfotel.SessionID.String(sessionID),
			attribute.String("document.filename", filename),
		))
	defer span.End()

	if strings.TrimSpace(sessionID) == "" || len(content) == 0 {
		return nil, ErrMissingUpload
	}

	text, err := o.documents.Extract(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	text, truncated := document.Truncate(text)
	preview := document.Preview(text)

	if v := o.screen.Check(text); v.IsThreat {
		r := o.blocked(ctx, sessionID, v)
		return &DocumentReply{
			Status:          r.Status,
			SessionID:       sessionID,
			Filename:        filename,
			AgentResponse:   r.AgentResponse,
			DocumentPreview: preview,
			Truncated:       truncated,
			SecurityWarning: r.SecurityWarning,
		}, nil
	}

	if o.provider == nil {
		return nil, ErrOracleNotConfigured
	}
	cat, err := o.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	prompt, err := DocumentPrompt(filename, text)
	if err != nil {
		return nil, err
	}
	system, err := SystemPrompt(intent.Workflow, cat)
	if err != nil {
		return nil, err
	}

	var (
		reply  *DocumentReply
		genErr error
		ready  bool
	)
	err = o.sessions.WithLock(ctx, sessionID, func(s *session.Session) error {
		s.Intent = string(intent.Workflow)
		s.Append(session.RoleUser, prompt)

		answer, err := o.generate(ctx, system, s.Messages, ReplyMaxTokens, "document")
		if err != nil {
			genErr = err
		} else {
			s.Append(session.RoleAssistant, answer)
		}
		wasComplete := s.IsComplete
		o.advance(ctx, s, cat, answer, genErr == nil)
		ready = s.IsComplete && !wasComplete

		reply = &DocumentReply{
			Status:          StatusSuccess,
			SessionID:       sessionID,
			Filename:        filename,
			AgentResponse:   answer,
			DocumentPreview: preview,
			Truncated:       truncated,
			IsWorkflowReady: s.IsComplete,
			CollectedParams: s.Params(),
		}
		if len(s.DetectedActions) > 0 {
			reply.DetectedActions = append([]string{}, s.DetectedActions...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating session %s: %w", sessionID, err)
	}
	if genErr != nil {
		span.RecordError(genErr)
		log.Error().Err(genErr).Str("session_id", sessionID).Func(wfotel.LogTraceFields(ctx)).Msg("document_analysis_failed")
		return nil, fmt.Errorf("%w: %v", ErrGeneration, genErr)
	}

	log.Info().
		Str("session_id", sessionID).
		Str("filename", filename).
		Int("chars", len(text)).
		Bool("truncated", truncated).
		Strs("actions", reply.DetectedActions).
		Msg("document_analyzed")

	if ready {
		o.hooks.Fire(ctx, &Event{Point: HookWorkflowReady, SessionID: sessionID, Status: filename, Timestamp: o.clock.Now()})
	}
	return reply, nil
}
