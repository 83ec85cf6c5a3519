// Package retry runs an operation a bounded number of times with a fixed
// pause between attempts. The constant interval is deliberate: the failure
// mode being tolerated is server-side processing latency, not overload, so
// there is nothing to back off from.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Config bounds a retried operation.
type Config struct {
	// Attempts is the total number of tries, including the first.
	Attempts uint64
	// Interval is the fixed pause between consecutive attempts.
	Interval time.Duration
}

// Do runs op until it succeeds, returns a permanent error, the attempt
// budget is exhausted, or ctx is cancelled. The error returned is the one
// from the last attempt.
func Do(ctx context.Context, log zerolog.Logger, name string, op func() error, cfg Config) error {
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 1
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.Interval), attempts-1),
		ctx,
	)

	notify := func(err error, next time.Duration) {
		log.Debug().
			Str("operation", name).
			Err(err).
			Dur("next_attempt_in", next).
			Msg("operation failed, retrying")
	}

	return backoff.RetryNotify(op, bo, notify)
}

// Permanent marks err as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
