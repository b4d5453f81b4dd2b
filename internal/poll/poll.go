// Package poll provides the single bounded wait primitive used for every
// "resource reached state X" check: a fixed delay between attempts and a fixed
// maximum attempt count, no backoff.
package poll

import (
	"context"
	"fmt"
	"time"
)

// Defaults matching the provisioning waiters: instance-running and
// volume-available poll every 5s for up to 60 attempts, termination every 10s.
const (
	DefaultInterval   = 5 * time.Second
	DefaultAttempts   = 60
	TerminateInterval = 10 * time.Second
	TerminateAttempts = 60
)

// TimeoutError reports a wait whose attempt budget was exhausted before the
// predicate held.
type TimeoutError struct {
	What     string
	Attempts int
	Interval time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s after %d attempts (%s interval)", e.What, e.Attempts, e.Interval)
}

// Until polls fn every interval until it reports done, an error, the context
// is cancelled, or maxAttempts is exhausted. The first attempt runs
// immediately. A fn error aborts the wait; exhaustion yields *TimeoutError.
func Until(ctx context.Context, what string, interval time.Duration, maxAttempts int, fn func(ctx context.Context) (bool, error)) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return &TimeoutError{What: what, Attempts: maxAttempts, Interval: interval}
}
