package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/trace"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/cryptoutil"
	wfotel "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    payload BLOB NOT NULL,
    sealed INTEGER NOT NULL DEFAULT 0,
    intent TEXT NOT NULL DEFAULT '',
    message_count INTEGER NOT NULL DEFAULT 0,
    action_count INTEGER NOT NULL DEFAULT 0,
    is_complete INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    last_active TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active);
`

// SQLiteRepository stores sessions in SQLite. Payloads are sealed with
// nacl/secretbox when a key is configured. Per-id locking is in-process, so a
// database file must not be shared by several servers.
type SQLiteRepository struct {
	db     *sql.DB
	sealer *cryptoutil.Sealer
	locks  *keyLocks
	clock  clock.Clock
}

// SQLiteOption configures a SQLiteRepository.
type SQLiteOption func(*SQLiteRepository)

// WithSealer encrypts payloads at rest.
func WithSealer(s *cryptoutil.Sealer) SQLiteOption {
	return func(r *SQLiteRepository) { r.sealer = s }
}

// WithSQLiteClock sets the time source.
func WithSQLiteClock(c clock.Clock) SQLiteOption {
	return func(r *SQLiteRepository) { r.clock = c }
}

// NewSQLiteRepository opens (or creates) the session database at dbPath.
func NewSQLiteRepository(dbPath string, opts ...SQLiteOption) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session schema: %w", err)
	}
	r := &SQLiteRepository{db: db, locks: newKeyLocks(), clock: clock.New()}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Close releases the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Get implements Repository.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Session, error) {
	return r.load(ctx, id)
}

func (r *SQLiteRepository) load(ctx context.Context, id string) (*Session, error) {
	var payload []byte
	var sealed bool
	err := r.db.QueryRowContext(ctx, `SELECT payload, sealed FROM sessions WHERE id = ?`, id).Scan(&payload, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sealed {
		if r.sealer == nil {
			return nil, fmt.Errorf("session %s is sealed and no session key is configured", id)
		}
		if payload, err = r.sealer.Open(payload); err != nil {
			return nil, fmt.Errorf("opening session %s: %w", id, err)
		}
	}
	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	if s.CollectedParams == nil {
		s.CollectedParams = map[string]map[string]string{}
	}
	if s.DetectedActions == nil {
		s.DetectedActions = []string{}
	}
	return &s, nil
}

// Upsert implements Repository.
func (r *SQLiteRepository) Upsert(ctx context.Context, s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	sealed := false
	if r.sealer != nil {
		if payload, err = r.sealer.Seal(payload); err != nil {
			return fmt.Errorf("sealing session: %w", err)
		}
		sealed = true
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, payload, sealed, intent, message_count, action_count, is_complete, created_at, last_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			sealed = excluded.sealed,
			intent = excluded.intent,
			message_count = excluded.message_count,
			action_count = excluded.action_count,
			is_complete = excluded.is_complete,
			last_active = excluded.last_active`,
		s.ID, payload, sealed, s.Intent, len(s.Messages), len(s.DetectedActions), s.IsComplete,
		s.CreatedAt.UTC(), s.LastActive.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// WithLock implements Repository.
func (r *SQLiteRepository) WithLock(ctx context.Context, id string, fn func(*Session) error) error {
	ctx, span := tracer.Start(ctx, "session.with_lock",
		trace.WithAttributes(wfotel.SessionID.String(id)))
	defer span.End()

	unlock, err := r.locks.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	s, err := r.load(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		s = New(id, r.clock.Now())
	} else if err != nil {
		span.RecordError(err)
		return err
	}

	if err := fn(s); err != nil {
		return err
	}
	s.LastActive = r.clock.Now()
	// fn may have run past the caller's deadline; its changes are kept.
	return r.Upsert(context.WithoutCancel(ctx), s)
}

// Delete implements Repository.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// List implements Repository. Summaries come from indexed columns, so sealed
// payloads are not opened.
func (r *SQLiteRepository) List(ctx context.Context) ([]Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, intent, message_count, action_count, is_complete, created_at, last_active
		FROM sessions ORDER BY last_active DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Intent, &s.MessageCount, &s.ActionCount, &s.IsComplete, &s.CreatedAt, &s.LastActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count implements Repository.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

// Prune implements Repository.
func (r *SQLiteRepository) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_active < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
