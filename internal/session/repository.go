package session

import (
	"context"
	"errors"
	"sync"
	"time"

	wfotel "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
)

var tracer = wfotel.Tracer("github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/session")

var evictedCounter = wfotel.NewCounter(
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/session",
	"wfbuilder.sessions.evicted",
	"Sessions removed by capacity eviction or the idle sweeper",
)

// ErrSessionNotFound is returned when no session exists for an id.
var ErrSessionNotFound = errors.New("session not found")

// Repository stores sessions. Implementations serialize WithLock per id while
// letting different ids proceed in parallel.
type Repository interface {
	// Get returns a copy of the session.
	Get(ctx context.Context, id string) (*Session, error)
	// Upsert stores s, replacing any session with the same id.
	Upsert(ctx context.Context, s *Session) error
	// WithLock runs fn with exclusive access to the session, creating it when
	// absent. The session is stored when fn returns nil and discarded
	// otherwise.
	WithLock(ctx context.Context, id string, fn func(*Session) error) error
	// Delete removes the session.
	Delete(ctx context.Context, id string) error
	// List returns summaries ordered by most recent activity.
	List(ctx context.Context) ([]Summary, error)
	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)
	// Prune removes sessions idle since before cutoff and returns how many.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// keyLocks hands out one lock per key. Entries are dropped once nobody holds
// or waits on them.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// lock blocks until the key is free or ctx is done.
func (k *keyLocks) lock(ctx context.Context, key string) (unlock func(), err error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	release := func() {
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}
