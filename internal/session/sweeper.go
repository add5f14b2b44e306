package session

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Sweeper periodically deletes idle sessions.
type Sweeper struct {
	cron  *cron.Cron
	repo  Repository
	ttl   time.Duration
	clock clock.Clock
}

// NewSweeper creates a sweeper that removes sessions idle longer than ttl,
// checking every interval.
func NewSweeper(repo Repository, ttl, interval time.Duration, clk clock.Clock) (*Sweeper, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	if clk == nil {
		clk = clock.New()
	}
	s := &Sweeper{cron: cron.New(), repo: repo, ttl: ttl, clock: clk}
	spec := "@every " + interval.String()
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("session_sweep_failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("registering session sweep %q: %w", spec, err)
	}
	return s, nil
}

// Sweep removes idle sessions once and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.ttl)
	n, err := s.repo.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		evictedCounter.Add(ctx, int64(n), attribute.String("cause", "idle"))
		log.Info().Int("removed", n).Dur("ttl", s.ttl).Msg("idle_sessions_swept")
	}
	return n, nil
}

// Start begins the periodic sweep.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the sweeper and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of registered cron entries (for testing).
func (s *Sweeper) Entries() int {
	return len(s.cron.Entries())
}
