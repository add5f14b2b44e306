// Package ratelimit limits request rates per caller. Callers are API key
// identities or client IPs; each gets a token bucket that refills at the
// configured rate with a burst of two seconds' worth of requests.
package ratelimit

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// ErrRateLimitExceeded is returned when a caller is over its rate.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// DefaultIdleTTL is how long an unused caller bucket is kept.
const DefaultIdleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one token bucket per caller.
type Limiter struct {
	rps     float64
	burst   int
	idleTTL time.Duration
	clock   clock.Clock

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the clock used for refills and idle pruning.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithIdleTTL sets how long unused caller buckets are kept.
func WithIdleTTL(d time.Duration) Option {
	return func(l *Limiter) { l.idleTTL = d }
}

// New creates a limiter allowing rps requests per second per caller. rps <= 0
// disables limiting.
func New(rps float64, opts ...Option) *Limiter {
	burst := int(math.Ceil(rps * 2)) // burst = 2s worth
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		rps:     rps,
		burst:   burst,
		idleTTL: DefaultIdleTTL,
		clock:   clock.New(),
		buckets: make(map[string]*bucket),
	}
	for _, o := range opts {
		o(l)
	}
	l.lastPrune = l.clock.Now()
	return l
}

// Enabled reports whether the limiter limits anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.rps > 0
}

// Allow takes a token for caller. When none is available it returns
// ErrRateLimitExceeded and how long until one is.
func (l *Limiter) Allow(caller string) (time.Duration, error) {
	if !l.Enabled() {
		return 0, nil
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	b, ok := l.buckets[caller]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.buckets[caller] = b
	}
	b.lastSeen = now

	if b.limiter.AllowN(now, 1) {
		return 0, nil
	}
	missing := 1 - b.limiter.TokensAt(now)
	wait := time.Duration(missing / l.rps * float64(time.Second))
	if wait < time.Second {
		wait = time.Second
	}
	return wait, ErrRateLimitExceeded
}

// Callers returns the number of tracked callers.
func (l *Limiter) Callers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.idleTTL {
		return
	}
	l.lastPrune = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idleTTL {
			delete(l.buckets, k)
		}
	}
}
