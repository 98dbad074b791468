// Package retry provides exponential backoff with jitter. Completion
// crediting is idempotent per (learner, lesson), so retrying a failed
// write with the same arguments is always safe.
// It is a leaf package and stays free of external dependencies.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the retrier gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries the do-not-retry marker.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Policy describes the backoff curve and attempt budget.
type Policy struct {
	// Attempts is the total attempt budget, first try included.
	Attempts int

	// BaseDelay is the delay after the first failure.
	BaseDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration

	// Jitter spreads each delay by ±Jitter fraction, so callers that
	// failed together do not retry together.
	Jitter float64

	// ShouldRetry filters errors. Nil retries everything that is not
	// Permanent.
	ShouldRetry func(error) bool

	// OnRetry is invoked before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// delay doubles BaseDelay per prior failure and applies jitter.
// attempt is 1-based.
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d = time.Duration(float64(d) * (1 + p.Jitter*(2*rand.Float64()-1)))
	}
	return d
}

// Retrier executes operations under a Policy.
type Retrier struct {
	policy Policy
}

// New creates a Retrier.
func New(policy Policy) *Retrier {
	return &Retrier{policy: policy.normalized()}
}

// Do runs op until it succeeds, the attempt budget runs out, op returns
// a Permanent error, or ctx is done. A Permanent error is returned with
// the marker stripped.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}
		if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(err) {
			return err
		}
		if attempt == r.policy.Attempts {
			break
		}

		delay := r.policy.delay(attempt)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, err, delay)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return lastErr
		}
	}
	return lastErr
}

// Do is a one-off helper for callers without a long-lived Retrier.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	return New(policy).Do(ctx, op)
}

// DoWithData runs an operation that returns a value.
func DoWithData[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := New(policy).Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// CreditRetrier is the preset for crediting XP, streaks and badges.
// Safe because every crediting step is idempotent per lesson.
func CreditRetrier() *Retrier {
	return New(Policy{
		Attempts:  3,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  2 * time.Second,
		Jitter:    0.1,
	})
}

// CacheRetrier is the preset for Redis. The cache is best effort, so
// give up fast and fall through to Postgres.
func CacheRetrier() *Retrier {
	return New(Policy{
		Attempts:  2,
		BaseDelay: 20 * time.Millisecond,
		MaxDelay:  100 * time.Millisecond,
		Jitter:    0.05,
	})
}
