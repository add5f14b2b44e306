// Package intent classifies each chat message as a general question, a new
// workflow request, or a continuation of a workflow conversation.
//
// Classification asks the oracle for exactly one word. Anything other than an
// exact "workflow" or "continuing", including oracle errors and timeouts,
// falls back to general so a bad answer never starts a spurious workflow.
// Fallbacks are logged and counted.
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/llm"
	wfotel "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/session"
)

const meterName = "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/intent"

var tracer = wfotel.Tracer(meterName)

var (
	classifiedCounter = wfotel.NewCounter(meterName, "wfbuilder.intent.classified", "Messages classified, by intent")
	fallbackCounter   = wfotel.NewCounter(meterName, "wfbuilder.intent.fallback", "Classifications that fell back to general, by cause")
)

// Intent is a message classification.
type Intent string

const (
	General    Intent = "general"
	Workflow   Intent = "workflow"
	Continuing Intent = "continuing"
)

// Fallback causes.
const (
	CauseError        = "error"
	CauseTimeout      = "timeout"
	CauseUnrecognized = "unrecognized"
	CauseNoProvider   = "no_provider"
)

// Classification request settings.
const (
	MaxTokens      = 10
	HistoryTurns   = 4
	DefaultTimeout = 10 * time.Second
)

// IsWorkflow reports whether the intent drives action detection.
func (i Intent) IsWorkflow() bool {
	return i == Workflow || i == Continuing
}

// Classifier asks an oracle to classify messages.
type Classifier struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTimeout bounds each classification call.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) { c.timeout = d }
}

// New creates a Classifier.
func New(provider llm.Provider, model string, opts ...Option) *Classifier {
	c := &Classifier{provider: provider, model: model, timeout: DefaultTimeout}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify returns the intent of message given the turns before it. Only the
// last HistoryTurns turns are shown to the oracle. It never fails.
func (c *Classifier) Classify(ctx context.Context, message string, history []session.Message) Intent {
	ctx, span := tracer.Start(ctx, "intent.classify",
		trace.WithAttributes(attribute.Int("intent.history_turns", len(history))))
	defer span.End()

	got, cause, err := c.classify(ctx, message, history)
	if cause != "" {
		ev := log.Warn().Str("cause", cause)
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Func(wfotel.LogTraceFields(ctx)).Msg("intent_classification_fallback")
		fallbackCounter.Add(ctx, 1, attribute.String("cause", cause))
		span.SetAttributes(attribute.String("intent.fallback_cause", cause))
	}
	span.SetAttributes(wfotel.Intent.String(string(got)))
	classifiedCounter.Add(ctx, 1, attribute.String("intent", string(got)))
	return got
}

func (c *Classifier) classify(ctx context.Context, message string, history []session.Message) (Intent, string, error) {
	if c.provider == nil {
		return General, CauseNoProvider, nil
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.provider.Generate(ctx, &llm.Request{
		Model:       c.model,
		Messages:    []llm.Message{llm.User(Prompt(message, history))},
		Temperature: 0,
		MaxTokens:   MaxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return General, CauseTimeout, err
		}
		return General, CauseError, err
	}
	llm.RecordUsage(ctx, c.provider, resp, "intent")

	switch Intent(strings.ToLower(strings.TrimSpace(resp.Content))) {
	case Workflow:
		return Workflow, "", nil
	case Continuing:
		return Continuing, "", nil
	case General:
		return General, "", nil
	default:
		return General, CauseUnrecognized, fmt.Errorf("unrecognized classification %q", truncate(resp.Content, 40))
	}
}

// Prompt builds the classification prompt.
func Prompt(message string, history []session.Message) string {
	if len(history) > HistoryTurns {
		history = history[len(history)-HistoryTurns:]
	}
	lines := make([]string, len(history))
	for i, m := range history {
		lines[i] = m.Role + ": " + m.Content
	}
	transcript := strings.Join(lines, "\n")
	if transcript == "" {
		transcript = "No previous conversation"
	}

	var b strings.Builder
	b.WriteString("You classify messages sent to a workflow automation assistant.\n\n")
	b.WriteString("Pick exactly one category:\n\n")
	b.WriteString("1. general - questions, information requests, or small talk.\n")
	b.WriteString(`   Examples: "who are you?", "what can you do?", "how many actions?", "hello"` + "\n\n")
	b.WriteString("2. workflow - the user wants to create, build, or set up a new workflow.\n")
	b.WriteString(`   Examples: "create a workflow", "I need to automate X", "set up a notification workflow"` + "\n\n")
	b.WriteString("3. continuing - the user is answering a question in an ongoing workflow conversation.\n")
	b.WriteString(`   Examples: "yes", "chicago@company.com", "48 hours", "sure, that works"` + "\n\n")
	b.WriteString("Recent conversation context:\n")
	b.WriteString(transcript)
	b.WriteString("\n\nCurrent user message: \"")
	b.WriteString(message)
	b.WriteString("\"\n\nRespond with ONLY ONE WORD: general, workflow, or continuing")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
