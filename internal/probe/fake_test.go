package probe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/copyleftdev/uiprobe/internal/config"
	"github.com/copyleftdev/uiprobe/internal/dom"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const settingsPathSelector = "button:has(svg path[d='M4 6h16M4 12h16M4 18h16'])"
const settingsSemanticSelector = "button[aria-label='Open settings']"

// modalHTML is a settings panel that satisfies the whole checklist.
const modalHTML = `<html><body>
<div role="dialog" aria-modal="true" aria-labelledby="settings-title">
  <h2 id="settings-title">System Options</h2>
  <button aria-label="Close settings">x</button>
  <label for="sfx-volume">SFX Volume</label><input id="sfx-volume" type="range">
  <label for="music-volume">Music Volume</label><input id="music-volume" type="range">
  <label for="visual-accessibility">Visual Accessibility</label><select id="visual-accessibility"></select>
</div>
</body></html>`

type clickCall struct {
	Locator string
	Index   int
}

// fakePage is a scripted Page. Counts are keyed by Locator.String().
type fakePage struct {
	mu sync.Mutex

	counts    map[string]int
	countErrs map[string]error
	queried   []string
	clicks    []clickCall
	onClick   func(p *fakePage, loc dom.Locator)

	navigateErr error
	attachErr   error
	visibleErr  error
	navigated   []string

	inspector Inspector

	screenshotErr error
	html          string
}

func newFakePage(t *testing.T, html string) *fakePage {
	t.Helper()
	sp, err := dom.NewStaticPage(strings.NewReader(html))
	require.NoError(t, err)
	return &fakePage{
		counts:    map[string]int{},
		countErrs: map[string]error{},
		inspector: sp,
		html:      html,
	}
}

func (p *fakePage) setCount(loc dom.Locator, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[loc.String()] = n
}

func (p *fakePage) Navigate(_ context.Context, url string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return p.navigateErr
}

func (p *fakePage) WaitAttached(context.Context, string, time.Duration) error {
	return p.attachErr
}

func (p *fakePage) WaitVisible(context.Context, string, time.Duration) error {
	return p.visibleErr
}

func (p *fakePage) Count(_ context.Context, loc dom.Locator) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := loc.String()
	p.queried = append(p.queried, key)
	if err := p.countErrs[key]; err != nil {
		return 0, err
	}
	return p.counts[key], nil
}

func (p *fakePage) Click(_ context.Context, loc dom.Locator, index int) error {
	p.mu.Lock()
	key := loc.String()
	if index >= p.counts[key] {
		p.mu.Unlock()
		return fmt.Errorf("no element %d for %s", index, key)
	}
	p.clicks = append(p.clicks, clickCall{Locator: key, Index: index})
	hook := p.onClick
	p.mu.Unlock()
	if hook != nil {
		hook(p, loc)
	}
	return nil
}

func (p *fakePage) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	return p.inspector.Attribute(ctx, selector, name)
}

func (p *fakePage) Visible(ctx context.Context, selector string) (bool, error) {
	return p.inspector.Visible(ctx, selector)
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	if p.screenshotErr != nil {
		return nil, p.screenshotErr
	}
	return []byte("\x89PNG fake"), nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	return p.html, nil
}

func (p *fakePage) Clicks() []clickCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]clickCall(nil), p.clicks...)
}

func (p *fakePage) Queried() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.queried...)
}

type fakeSession struct {
	page     *fakePage
	mu       sync.Mutex
	released int
}

func (s *fakeSession) Page() Page { return s.page }

func (s *fakeSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	return nil
}

type fakeBrowser struct {
	session    *fakeSession
	acquireErr error
	acquired   int
	runID      string
}

func (b *fakeBrowser) Acquire(ctx context.Context) (Session, error) {
	b.acquired++
	b.runID = RunIDFromContext(ctx)
	if b.acquireErr != nil {
		return nil, b.acquireErr
	}
	return b.session, nil
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Target: config.TargetConfig{
			URL:               "http://localhost:5173",
			BaselineSelector:  "body",
			NavigationTimeout: time.Second,
			BaselineTimeout:   time.Second,
		},
		Flow: config.FlowConfig{
			StartButtonName:          "Initialize Universe",
			SettleTimeout:            50 * time.Millisecond,
			SettleInterval:           5 * time.Millisecond,
			SettingsSelector:         settingsSemanticSelector,
			SettingsFallbackSelector: settingsPathSelector,
			ModalSelector:            "div[role='dialog']",
			ModalTimeout:             time.Second,
		},
		Assertions: config.AssertionsConfig{
			Mode:       config.ModeFailFast,
			Timeout:    0,
			TitleID:    "settings-title",
			Controls:   []string{"sfx-volume", "music-volume", "visual-accessibility"},
			CloseLabel: "Close settings",
		},
		Evidence: config.EvidenceConfig{
			Dir:     dir,
			SaveDOM: true,
			Timeout: time.Second,
		},
		Browser: config.BrowserConfig{MaxSessions: 1},
	}
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
