package probe

import (
	"context"
	"fmt"
	"time"
)

// Navigate loads url and waits for baseline to attach. Any failure,
// unreachable host and slow load alike, is reported as ErrNavigationTimeout.
func Navigate(ctx context.Context, page Page, url, baseline string, navTimeout, baselineTimeout time.Duration) error {
	if err := page.Navigate(ctx, url, navTimeout); err != nil {
		return fmt.Errorf("%w: loading %s: %v", ErrNavigationTimeout, url, err)
	}
	if err := page.WaitAttached(ctx, baseline, baselineTimeout); err != nil {
		return fmt.Errorf("%w: waiting for %q: %v", ErrNavigationTimeout, baseline, err)
	}
	return nil
}
