package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/copyleftdev/uiprobe/internal/dom"
	"github.com/copyleftdev/uiprobe/internal/probe"
	"github.com/google/uuid"
)

var _ probe.Page = (*Page)(nil)

// Page drives a chromedp tab.
type Page struct {
	tabCtx        context.Context
	actionTimeout time.Duration
}

// scope derives a context for one browser operation: it carries the tab,
// expires after timeout and is also cancelled when ctx is.
func (p *Page) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		opCtx, cancelDeadline = context.WithDeadline(opCtx, deadline)
		inner := cancel
		cancel = func() {
			cancelDeadline()
			inner()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := p.scope(ctx, timeout)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return p.run(ctx, timeout, dom.NavigateAction(url))
}

func (p *Page) WaitAttached(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, dom.WaitAttachedAction(selector))
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, dom.WaitVisibleAction(selector))
}

func (p *Page) Count(ctx context.Context, loc dom.Locator) (int, error) {
	var n int
	if err := p.run(ctx, p.actionTimeout, dom.CountAction(loc, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

// Click performs a real mouse click on the index-th match of loc.
func (p *Page) Click(ctx context.Context, loc dom.Locator, index int) error {
	var found bool
	if err := p.run(ctx, p.actionTimeout, dom.ClickNthAction(loc, index, uuid.NewString(), &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s (index %d)", dom.ErrNoNode, loc, index)
	}
	return nil
}

func (p *Page) inspect(ctx context.Context, selector, attr string) (dom.NodeState, error) {
	var st dom.NodeState
	err := p.run(ctx, p.actionTimeout, dom.InspectAction(selector, attr, &st))
	return st, err
}

func (p *Page) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	st, err := p.inspect(ctx, selector, name)
	if err != nil {
		return "", false, err
	}
	if !st.Found {
		return "", false, fmt.Errorf("%w: %s", dom.ErrNoNode, selector)
	}
	return st.Value, st.Present, nil
}

func (p *Page) Visible(ctx context.Context, selector string) (bool, error) {
	st, err := p.inspect(ctx, selector, "")
	if err != nil {
		return false, err
	}
	return st.Found && st.Visible, nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.actionTimeout, dom.ScreenshotAction(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.actionTimeout, dom.DocumentHTMLAction(&html)); err != nil {
		return "", err
	}
	return html, nil
}
