package probe

import (
	"context"
	"time"

	"github.com/copyleftdev/uiprobe/internal/dom"
)

// Inspector answers the read-only questions the assertion checklist asks.
// Attribute returns dom.ErrNoNode when the selector matches nothing.
type Inspector interface {
	Attribute(ctx context.Context, selector, name string) (value string, present bool, err error)
	Visible(ctx context.Context, selector string) (bool, error)
}

// Page is a live browser tab. Every method is bounded: explicit timeouts
// where given, the session's action timeout otherwise. Deadline errors
// wrap context.DeadlineExceeded.
type Page interface {
	Inspector
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitAttached(ctx context.Context, selector string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Count(ctx context.Context, loc dom.Locator) (int, error)
	Click(ctx context.Context, loc dom.Locator, index int) error
	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
}

// Session owns one browser process and its page for the length of a run.
// Release must be safe to call more than once.
type Session interface {
	Page() Page
	Release() error
}

// Browser hands out independent sessions. Implementations wrap launch
// failures in ErrLaunch.
type Browser interface {
	Acquire(ctx context.Context) (Session, error)
}
