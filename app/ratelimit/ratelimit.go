// Package ratelimit paces outbound contact: an age-based daily send ceiling
// ("warmup") plus a randomized minimum spacing between consecutive sends.
package ratelimit

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Warmup holds the daily send ceiling per account-age week.
type Warmup struct {
	Week1     int
	Week2     int
	Week3     int
	Week4Plus int
}

type Limiter struct {
	minDelay  time.Duration
	maxDelay  time.Duration
	warmup    Warmup
	startedAt time.Time

	mu       sync.Mutex
	lastSend time.Time

	// Injectable for tests.
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

func NewLimiter(minDelay, maxDelay time.Duration, warmup Warmup, startedAt time.Time) *Limiter {
	return &Limiter{
		minDelay:  minDelay,
		maxDelay:  maxDelay,
		warmup:    warmup,
		startedAt: startedAt,
		now:       time.Now,
		sleep:     sleepCtx,
		randFloat: rand.Float64,
	}
}

// DailyLimit returns the send ceiling for the current account-age week.
func (l *Limiter) DailyLimit() int {
	weeks := int(l.now().UTC().Sub(l.startedAt).Hours()/24)/7 + 1
	switch {
	case weeks <= 1:
		return l.warmup.Week1
	case weeks <= 2:
		return l.warmup.Week2
	case weeks <= 3:
		return l.warmup.Week3
	default:
		return l.warmup.Week4Plus
	}
}

// Wait blocks until the jittered spacing since the previous send has
// elapsed, then marks now as the last send. Two consecutive calls are
// always separated by a delay drawn uniformly from [minDelay, maxDelay].
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	elapsed := l.now().Sub(l.lastSend)
	delay := l.minDelay + time.Duration(l.randFloat()*float64(l.maxDelay-l.minDelay))
	remaining := delay - elapsed
	l.mu.Unlock()

	if remaining > 0 {
		slog.Debug("Rate limiter sleeping", "duration", remaining.Round(time.Second))
		if err := l.sleep(ctx, remaining); err != nil {
			return err
		}
	}

	l.mu.Lock()
	l.lastSend = l.now()
	l.mu.Unlock()
	return nil
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
