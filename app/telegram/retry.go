package telegram

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Outcome tells the caller how a retried operation ended.
type Outcome int

const (
	// OutcomeOK means the operation succeeded, possibly after flood waits.
	OutcomeOK Outcome = iota
	// OutcomeThrottled means every attempt hit a flood wait.
	OutcomeThrottled
	// OutcomeFailed means the operation returned a non-flood error.
	OutcomeFailed
)

// RetryPolicy retries an operation across flood waits, sleeping the
// server-mandated duration plus jitter between attempts.
type RetryPolicy struct {
	MaxAttempts int
	MaxJitter   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryPolicy(maxAttempts int, maxJitter time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		MaxJitter:   maxJitter,
		sleep:       sleepCtx,
	}
}

// Do runs fn until it succeeds, fails with a non-flood error, or exhausts
// the attempt budget on flood waits.
func (p *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) (Outcome, error) {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return OutcomeOK, nil
		}

		var floodErr *FloodError
		if !errors.As(err, &floodErr) {
			return OutcomeFailed, err
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		wait := floodErr.Wait + time.Duration(rand.Float64()*float64(p.MaxJitter))
		slog.Warn("Flood wait, retrying", "wait", wait, "attempt", attempt, "max_attempts", p.MaxAttempts)

		if err := p.sleep(ctx, wait); err != nil {
			return OutcomeFailed, err
		}
	}

	return OutcomeThrottled, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
