// Package workflow stores compiled workflows and their review lifecycle:
// pending → approved | rejected, approved → submitted.
package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/graph"
	wfotel "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
)

var tracer = wfotel.Tracer("github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/workflow")

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrNotPending       = errors.New("workflow is not in pending status")
	ErrNotApproved      = errors.New("workflow is not approved")
)

// Status is a workflow's review state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSubmitted Status = "submitted"
)

// Record is a compiled workflow awaiting or past review.
type Record struct {
	ID           string                 `json:"id"`
	SessionID    string                 `json:"session_id"`
	Name         string                 `json:"name"`
	Status       Status                 `json:"status"`
	Graph        *graph.Graph           `json:"graph"`
	Executor     graph.ExecutorWorkflow `json:"executor"`
	Missing      []graph.MissingParams  `json:"missing_params,omitempty"`
	ReviewedBy   string                 `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time             `json:"reviewed_at,omitempty"`
	ReviewReason string                 `json:"review_reason,omitempty"`
	RunID        string                 `json:"run_id,omitempty"`
	SubmittedAt  *time.Time             `json:"submitted_at,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NewID returns a fresh workflow id.
func NewID() string {
	return "wf_" + uuid.New().String()
}

const schema = `
CREATE TABLE IF NOT EXISTS workflows (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    name TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    record_json TEXT NOT NULL,
    reviewed_by TEXT,
    reviewed_at TIMESTAMP,
    review_reason TEXT,
    run_id TEXT,
    submitted_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows(status);
CREATE INDEX IF NOT EXISTS idx_workflows_session ON workflows(session_id);
`

// Store persists workflow records in SQLite.
type Store struct {
	db    *sql.DB
	clock clock.Clock
}

// Open opens (or creates) a workflow database at dbPath.
func Open(dbPath string, clk clock.Clock) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening workflow database: %w", err)
	}
	s, err := NewStore(db, clk)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore creates the workflow store on db.
func NewStore(db *sql.DB, clk clock.Clock) (*Store, error) {
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating workflows table: %w", err)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Store{db: db, clock: clk}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists a new record as pending. ID and CreatedAt are filled when
// empty.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock.Now().UTC()
	}
	rec.Status = StatusPending
	rec.Executor.ID = rec.ID

	ctx, span := tracer.Start(ctx, "workflow.save",
		trace.WithAttributes(
			wfotel.WorkflowID.String(rec.ID),
			wfotel.SessionID.String(rec.SessionID),
		))
	defer span.End()

	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling workflow: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, session_id, name, status, record_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Name, string(rec.Status), string(recJSON), rec.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("storing workflow: %w", err)
	}
	log.Info().Str("workflow_id", rec.ID).Str("session_id", rec.SessionID).Int("nodes", len(rec.Executor.Nodes)).Msg("workflow_compiled")
	return nil
}

// Get returns a record with its current review state.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var recJSON, status string
	var reviewedBy, reviewReason, runID sql.NullString
	var reviewedAt, submittedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT record_json, status, reviewed_by, reviewed_at, review_reason, run_id, submitted_at
		FROM workflows WHERE id = ?`, id,
	).Scan(&recJSON, &status, &reviewedBy, &reviewedAt, &reviewReason, &runID, &submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling workflow: %w", err)
	}
	rec.Status = Status(status)
	if reviewedBy.Valid {
		rec.ReviewedBy = reviewedBy.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		rec.ReviewedAt = &t
	}
	if reviewReason.Valid {
		rec.ReviewReason = reviewReason.String
	}
	if runID.Valid {
		rec.RunID = runID.String
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		rec.SubmittedAt = &t
	}
	return &rec, nil
}

// List returns records, newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, status Status) ([]*Record, error) {
	query := `SELECT id FROM workflows`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Approve marks a pending workflow as approved.
func (s *Store) Approve(ctx context.Context, id, reviewedBy string) error {
	return s.review(ctx, id, StatusApproved, reviewedBy, "")
}

// Reject marks a pending workflow as rejected with a reason.
func (s *Store) Reject(ctx context.Context, id, reviewedBy, reason string) error {
	return s.review(ctx, id, StatusRejected, reviewedBy, reason)
}

func (s *Store) review(ctx context.Context, id string, status Status, reviewedBy, reason string) error {
	ctx, span := tracer.Start(ctx, "workflow.review",
		trace.WithAttributes(
			wfotel.WorkflowID.String(id),
			attribute.String("status", string(status)),
		))
	defer span.End()

	result, err := s.db.ExecContext(ctx, `
		UPDATE workflows SET status = ?, reviewed_by = ?, reviewed_at = ?, review_reason = ?
		WHERE id = ? AND status = 'pending'`,
		string(status), reviewedBy, s.clock.Now().UTC(), reason, id,
	)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := s.Get(ctx, id); errors.Is(err, ErrWorkflowNotFound) {
			return ErrWorkflowNotFound
		}
		return ErrNotPending
	}

	log.Info().Str("workflow_id", id).Str("status", string(status)).Str("reviewed_by", reviewedBy).Msg("workflow_review_completed")
	return nil
}

// MarkSubmitted records a successful executor submission of an approved
// workflow.
func (s *Store) MarkSubmitted(ctx context.Context, id, runID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE workflows SET status = ?, run_id = ?, submitted_at = ?
		WHERE id = ? AND status = 'approved'`,
		string(StatusSubmitted), runID, s.clock.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := s.Get(ctx, id); errors.Is(err, ErrWorkflowNotFound) {
			return ErrWorkflowNotFound
		}
		return ErrNotApproved
	}
	log.Info().Str("workflow_id", id).Str("run_id", runID).Msg("workflow_submitted")
	return nil
}
