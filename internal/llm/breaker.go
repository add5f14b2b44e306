package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

// CircuitState represents the breaker state.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // calls flow through
	CircuitOpen                         // calls fail fast with ErrCircuitOpen
	CircuitHalfOpen                     // one probe call allowed
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker wraps a Provider and stops calling it after repeated failures.
// threshold consecutive failures open the circuit; after cooldown a single
// probe is let through and its outcome closes or reopens the circuit.
// Caller cancellations do not count as failures.
type Breaker struct {
	next      Provider
	clock     clock.Clock
	threshold int
	cooldown  time.Duration

	mu            sync.Mutex
	state         CircuitState
	failures      int
	openedAt      time.Time
	probeInFlight bool
}

// NewBreaker wraps next. threshold defaults to 5 and cooldown to 30s when
// non-positive; a nil clk uses the wall clock.
func NewBreaker(next Provider, threshold int, cooldown time.Duration, clk clock.Clock) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Breaker{next: next, clock: clk, threshold: threshold, cooldown: cooldown}
}

// Name returns the wrapped provider's name.
func (b *Breaker) Name() string { return b.next.Name() }

// EstimateCost delegates to the wrapped provider.
func (b *Breaker) EstimateCost(model string, inputTokens, outputTokens int) float64 {
	return b.next.EstimateCost(model, inputTokens, outputTokens)
}

// Generate calls the wrapped provider unless the circuit is open.
func (b *Breaker) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}
	resp, err := b.next.Generate(ctx, req)
	switch {
	case err == nil:
		b.recordSuccess()
	case errors.Is(err, context.Canceled):
		b.releaseProbe()
	default:
		b.recordFailure()
	}
	return resp, err
}

// State returns the current circuit state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		if b.clock.Since(b.openedAt) < b.cooldown {
			return fmt.Errorf("%s: %w", b.next.Name(), ErrCircuitOpen)
		}
		b.state = CircuitHalfOpen
		b.probeInFlight = true
		return nil
	case CircuitHalfOpen:
		if b.probeInFlight {
			return fmt.Errorf("%s: probe in progress: %w", b.next.Name(), ErrCircuitOpen)
		}
		b.probeInFlight = true
	}
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != CircuitClosed {
		log.Info().Str("provider", b.next.Name()).Msg("llm_circuit_closed")
	}
	b.state = CircuitClosed
	b.failures = 0
	b.probeInFlight = false
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeInFlight = false
	if b.state == CircuitHalfOpen {
		b.state = CircuitOpen
		b.openedAt = b.clock.Now()
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = CircuitOpen
		b.openedAt = b.clock.Now()
		log.Warn().
			Str("provider", b.next.Name()).
			Int("failures", b.failures).
			Dur("cooldown", b.cooldown).
			Msg("llm_circuit_opened")
	}
}

func (b *Breaker) releaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeInFlight = false
	if b.state == CircuitHalfOpen {
		b.state = CircuitOpen
	}
}
