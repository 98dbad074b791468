// Package circuitbreaker fails fast when a backend keeps erroring, so a
// down Redis or Postgres does not tie up the request path with timeouts.
// It is a leaf package and stays free of external dependencies.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of the breaker. Closed passes calls through, Open rejects them,
// HalfOpen lets a probe quota through to test recovery.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrProbeQuotaExhausted is returned when the half-open probe
	// allowance is already in flight.
	ErrProbeQuotaExhausted = errors.New("half-open probe quota exhausted")
)

// Config tunes a breaker.
type Config struct {
	Name string

	// FailureRun opens the breaker after this many consecutive failures.
	FailureRun int

	// RecoveryRun closes a half-open breaker after this many
	// consecutive successes.
	RecoveryRun int

	// Cooldown is how long an open breaker rejects before probing.
	Cooldown time.Duration

	// ProbeQuota is how many calls may be in flight while half-open.
	ProbeQuota int

	// OnStateChange is invoked outside the hot path decisions but
	// under the breaker lock; keep it cheap.
	OnStateChange func(name string, from, to State)

	// Classify reports whether an error counts against the backend.
	// Nil means every non-nil error counts.
	Classify func(error) bool
}

func (c *Config) applyDefaults() {
	if c.FailureRun <= 0 {
		c.FailureRun = 5
	}
	if c.RecoveryRun <= 0 {
		c.RecoveryRun = 2
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.ProbeQuota <= 0 {
		c.ProbeQuota = 1
	}
}

// CircuitBreaker tracks consecutive outcomes and gates calls.
type CircuitBreaker struct {
	config Config

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	openedAt    time.Time
	probesAlive int
}

// New creates a breaker from config.
func New(config Config) *CircuitBreaker {
	config.applyDefaults()
	return &CircuitBreaker{config: config, state: StateClosed}
}

// Execute runs fn if the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// Allows reports whether a call would currently be admitted, without
// consuming probe quota.
func (cb *CircuitBreaker) Allows() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		return time.Since(cb.openedAt) >= cb.config.Cooldown
	default:
		return cb.probesAlive < cb.config.ProbeQuota
	}
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.openedAt) < cb.config.Cooldown {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probesAlive = 1
		return nil
	default: // StateHalfOpen
		if cb.probesAlive >= cb.config.ProbeQuota {
			return ErrProbeQuotaExhausted
		}
		cb.probesAlive++
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	failed := err != nil
	if failed && cb.config.Classify != nil {
		failed = cb.config.Classify(err)
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.probesAlive > 0 {
		cb.probesAlive--
	}

	if failed {
		cb.successes = 0
		cb.failures++
		cb.openedAt = time.Now()
		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.config.FailureRun {
				cb.transition(StateOpen)
			}
		case StateHalfOpen:
			// The backend is still unhealthy.
			cb.transition(StateOpen)
		}
		return
	}

	cb.failures = 0
	cb.successes++
	if cb.state == StateHalfOpen && cb.successes >= cb.config.RecoveryRun {
		cb.transition(StateClosed)
	}
}

// transition must be called with the lock held.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	cb.probesAlive = 0
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name identifies the breaker in logs.
func (cb *CircuitBreaker) Name() string { return cb.config.Name }

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.state = StateClosed
}

// CacheBreaker is the preset for the Redis stats cache. The cache is
// best effort, so it trips early and re-probes quickly; an open breaker
// turns cache reads into misses.
func CacheBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(Config{
		Name:          "redis-cache",
		FailureRun:    3,
		RecoveryRun:   1,
		Cooldown:      15 * time.Second,
		ProbeQuota:    2,
		OnStateChange: onStateChange,
	})
}
