// Package retry runs outbound calls under a capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy bounds how an operation is retried.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	// Timeout bounds a single attempt. Zero disables it.
	Timeout time.Duration
}

// DefaultPolicy is 1s base, 60s cap, 5 attempts, 30s per request.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		MaxAttempts: 5,
		Timeout:     30 * time.Second,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Backoff returns the delay before retry number attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do calls fn until it succeeds, returns a permanent error, the attempts run
// out, or ctx is done. The last error is returned wrapped with op.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := p.Backoff(attempt)
			log.Info().
				Str("op", op).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("Retrying after backoff")

			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w: %w", op, ctx.Err(), lastErr)
			case <-time.After(backoff):
			}
		}

		err := p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w: %w", op, ctx.Err(), err)
		}
		lastErr = err
	}

	return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempts, lastErr)
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(attemptCtx)
}
