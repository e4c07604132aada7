// Package ratelimit implements a fixed-window counter backed by a shared
// store. Each (key, window start) pair is one row; the store increments it in
// a single atomic upsert so concurrent callers in different processes never
// lose an increment.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Store persists window counters.
type Store interface {
	// Increment upserts the bucket and returns the count after incrementing.
	Increment(ctx context.Context, key string, windowStart time.Time) (int, error)
	// DeleteBefore removes buckets whose window started before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Result struct {
	Allowed    bool
	Count      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one.
func (r Result) RetryAfterSeconds() int {
	secs := int(math.Ceil(r.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

type Limiter struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// WithClock replaces the time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// WindowStart aligns t down to a multiple of window since the Unix epoch.
func WindowStart(t time.Time, window time.Duration) time.Time {
	ms := window.Milliseconds()
	start := (t.UnixMilli() / ms) * ms
	return time.UnixMilli(start).UTC()
}

func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if window < time.Millisecond {
		return Result{}, fmt.Errorf("rate limit window must be at least 1ms, got %s", window)
	}

	now := l.now()
	start := WindowStart(now, window)
	resetAt := start.Add(window)

	count, err := l.store.Increment(ctx, key, start)
	if err != nil {
		return Result{}, fmt.Errorf("increment %s: %w", key, err)
	}

	res := Result{
		Count:   count,
		ResetAt: resetAt,
	}
	if count > limit {
		res.RetryAfter = resetAt.Sub(now)
		return res, nil
	}

	res.Allowed = true
	res.Remaining = limit - count
	return res, nil
}

// Prune drops windows that started more than retention ago.
func (l *Limiter) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return l.store.DeleteBefore(ctx, l.now().Add(-retention))
}
