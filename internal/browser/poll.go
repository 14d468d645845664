package browser

import (
	"context"
	"errors"
	"time"
)

// errPollTimeout is returned by pollUntil when maxWait elapses first.
var errPollTimeout = errors.New("poll timed out")

// checkFunc reports whether the awaited condition holds. Errors are treated
// as "not yet" because the page may be mid-navigation while the user logs in.
type checkFunc func(ctx context.Context) (bool, error)

// pollUntil runs check immediately and then every interval until it returns
// true, ctx is done, or maxWait elapses.
func pollUntil(ctx context.Context, interval, maxWait time.Duration, check checkFunc, onError func(error)) error {
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := check(ctx)
		if ok {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if onError != nil {
				onError(err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errPollTimeout
		case <-ticker.C:
		}
	}
}
