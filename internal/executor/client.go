// Package executor submits compiled workflows to the external workflow
// execution engine.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/graph"
	wfotel "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
)

var tracer = wfotel.Tracer("github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/executor")

// Timeouts and retry defaults for the executor.
const (
	TimeoutSubmit       = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 500 * time.Millisecond
)

var (
	// ErrNotConfigured is returned when no executor URL is set.
	ErrNotConfigured = errors.New("workflow executor not configured")
	// ErrRejected is returned when the executor refuses a workflow (4xx).
	ErrRejected = errors.New("workflow rejected by executor")
	// ErrUnavailable is returned when the executor cannot be reached.
	ErrUnavailable = errors.New("workflow executor unavailable")
)

// Result is the executor's response to a submission.
type Result struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
}

// Submitter is anything that can hand a workflow to an executor.
type Submitter interface {
	Submit(ctx context.Context, wf graph.ExecutorWorkflow) (*Result, error)
}

// Client posts workflows to {baseURL}/api/workflows/execute.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *Signer
	maxRetries uint64
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSigner signs request bodies.
func WithSigner(s *Signer) Option {
	return func(c *Client) { c.signer = s }
}

// WithRetry sets the retry count and constant backoff for transient failures.
func WithRetry(maxRetries uint64, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoff = backoff
	}
}

// NewClient creates an executor client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: TimeoutSubmit},
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultRetryBackoff,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit sends wf to the executor. Network errors and 5xx responses are
// retried; every attempt carries the same idempotency key.
func (c *Client) Submit(ctx context.Context, wf graph.ExecutorWorkflow) (*Result, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	ctx, span := tracer.Start(ctx, "executor.submit",
		trace.WithAttributes(
			wfotel.WorkflowID.String(wf.ID),
			attribute.Int("workflow.nodes", len(wf.Nodes)),
			attribute.String("executor.task_queue", wf.Config.TaskQueue),
		))
	defer span.End()

	body, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("marshaling workflow: %w", err)
	}
	idempotencyKey := uuid.New().String()

	var result Result
	attempts := 0
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewConstant(c.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/workflows/execute", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", idempotencyKey)
		if c.signer != nil {
			req.Header.Set(SignatureHeader, c.signer.Sign(body))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrUnavailable, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(fmt.Errorf("%w: executor returned %d", ErrUnavailable, resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		result = Result{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decoding executor response: %w", err)
		}
		return nil
	})
	span.SetAttributes(attribute.Int("executor.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Str("workflow_id", wf.ID).Int("attempts", attempts).Msg("workflow_submit_failed")
		return nil, err
	}
	if result.WorkflowID == "" {
		result.WorkflowID = wf.ID
	}
	log.Info().Str("workflow_id", result.WorkflowID).Str("run_id", result.RunID).Str("status", result.Status).Msg("workflow_submitted_to_executor")
	return &result, nil
}
