// Package retry wraps a transient-infrastructure operation with
// bounded exponential backoff, grounded on pkg/worker/health_monitor.go
// and pkg/health.Config's Interval/Timeout/Retries shape (no
// third-party retry library appears in the teacher's or the rest of
// the retrieval pack's dependency surface, so this stays on the
// standard library's time.Timer the way that existing polling idiom
// does). Exhausting every attempt returns a *prismerr.UnitError, per
// spec.md §7 error kind 1.
package retry

import (
	"context"
	"time"

	"github.com/prismlabs/prism/pkg/prismerr"
)

// Config bounds a retried operation's attempts and backoff schedule.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultConfig matches pkg/health's DefaultConfig Retries of 3,
// starting at 500ms and doubling up to 5s between attempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2,
	}
}

// Do calls fn until it succeeds, ctx is done, or cfg.MaxAttempts is
// reached. A nil cfg.MaxAttempts (zero value) is treated as 1 attempt,
// i.e. no retry. The final failing error is wrapped as a
// *prismerr.UnitError naming op.
func Do(ctx context.Context, cfg Config, op string, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return prismerr.NewUnitError(op, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return prismerr.NewUnitError(op, ctx.Err())
		}

		backoff = nextBackoff(backoff, cfg)
	}

	return prismerr.NewUnitError(op, lastErr)
}

func nextBackoff(current time.Duration, cfg Config) time.Duration {
	factor := cfg.BackoffFactor
	if factor <= 1 {
		factor = 2
	}
	next := time.Duration(float64(current) * factor)
	max := cfg.MaxBackoff
	if max <= 0 {
		max = 5 * time.Second
	}
	if next > max {
		return max
	}
	return next
}
