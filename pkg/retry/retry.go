package retry

import (
	"context"
	"errors"
	"time"
)

// ErrBudgetExhausted is returned by WaitUntil when the probe never succeeded
// within the configured number of attempts.
var ErrBudgetExhausted = errors.New("retry: attempt budget exhausted")

// Probe reports whether the awaited condition holds. A non-nil error aborts
// the wait immediately; (false, nil) schedules another attempt.
type Probe func(ctx context.Context) (bool, error)

// WaitUntil repeatedly invokes probe until it reports true, the attempt budget
// is exhausted, or the context is cancelled. The interval elapses between
// attempts, not before the first one, so a condition that already holds costs
// a single probe.
func WaitUntil(ctx context.Context, interval time.Duration, maxAttempts int, probe Probe) error {
	for attempt := 1; ; attempt++ {
		ok, err := probe(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if attempt >= maxAttempts {
			return ErrBudgetExhausted
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
