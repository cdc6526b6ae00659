package probe

import (
	"context"
	"time"
)

const defaultPollInterval = 100 * time.Millisecond

// poll evaluates cond until it reports true, returns an error, or timeout
// elapses. cond always runs at least once, so a zero timeout means a single
// evaluation. Running out of time is not an error: poll returns false, nil.
func poll(ctx context.Context, timeout, interval time.Duration, cond func(context.Context) (bool, error)) (bool, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	deadline := time.Now().Add(timeout)

	for {
		ok, err := cond(ctx)
		if err != nil || ok {
			return ok, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}

		timer := time.NewTimer(min(interval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}
