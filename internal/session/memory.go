package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	wfotel "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
)

// DefaultMaxSessions bounds the in-memory repository.
const DefaultMaxSessions = 10000

// MemoryRepository keeps sessions in a process-local map.
type MemoryRepository struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	locks       *keyLocks
	clock       clock.Clock
	maxSessions int
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithClock sets the time source.
func WithClock(c clock.Clock) MemoryOption {
	return func(r *MemoryRepository) { r.clock = c }
}

// WithMaxSessions caps the number of sessions. When a new session would
// exceed the cap, the least recently active one is evicted. Zero or less
// disables the cap.
func WithMaxSessions(n int) MemoryOption {
	return func(r *MemoryRepository) { r.maxSessions = n }
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{
		sessions:    make(map[string]*Session),
		locks:       newKeyLocks(),
		clock:       clock.New(),
		maxSessions: DefaultMaxSessions,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Get implements Repository.
func (r *MemoryRepository) Get(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

// Upsert implements Repository.
func (r *MemoryRepository) Upsert(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(ctx, s.Clone())
	return nil
}

// put stores s. Caller holds r.mu.
func (r *MemoryRepository) put(ctx context.Context, s *Session) {
	if _, exists := r.sessions[s.ID]; !exists && r.maxSessions > 0 {
		for len(r.sessions) >= r.maxSessions {
			r.evictOldest(ctx)
		}
	}
	r.sessions[s.ID] = s
}

// evictOldest drops the least recently active session. Caller holds r.mu.
func (r *MemoryRepository) evictOldest(ctx context.Context) {
	var oldest *Session
	for _, s := range r.sessions {
		if oldest == nil || s.LastActive.Before(oldest.LastActive) {
			oldest = s
		}
	}
	if oldest == nil {
		return
	}
	delete(r.sessions, oldest.ID)
	evictedCounter.Add(ctx, 1, attribute.String("cause", "capacity"))
	log.Info().Str("session_id", oldest.ID).Time("last_active", oldest.LastActive).Msg("session_evicted")
}

// WithLock implements Repository.
func (r *MemoryRepository) WithLock(ctx context.Context, id string, fn func(*Session) error) error {
	ctx, span := tracer.Start(ctx, "session.with_lock",
		trace.WithAttributes(wfotel.SessionID.String(id)))
	defer span.End()

	unlock, err := r.locks.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	r.mu.RLock()
	current, ok := r.sessions[id]
	r.mu.RUnlock()

	var s *Session
	if ok {
		s = current.Clone()
	} else {
		s = New(id, r.clock.Now())
	}

	if err := fn(s); err != nil {
		return err
	}
	s.LastActive = r.clock.Now()

	r.mu.Lock()
	r.put(ctx, s)
	r.mu.Unlock()
	return nil
}

// Delete implements Repository.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// List implements Repository.
func (r *MemoryRepository) List(_ context.Context) ([]Summary, error) {
	r.mu.RLock()
	out := make([]Summary, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Summary())
	}
	r.mu.RUnlock()
	sortSummaries(out)
	return out, nil
}

// Count implements Repository.
func (r *MemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), nil
}

// Prune implements Repository.
func (r *MemoryRepository) Prune(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.LastActive.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func sortSummaries(s []Summary) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].LastActive.Equal(s[j].LastActive) {
			return s[i].ID < s[j].ID
		}
		return s[i].LastActive.After(s[j].LastActive)
	})
}
