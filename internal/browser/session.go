package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/copyleftdev/uiprobe/internal/config"
	"github.com/copyleftdev/uiprobe/internal/probe"
	"go.uber.org/zap"
)

// Compile-time check to ensure Launcher implements the interface
var _ probe.Browser = (*Launcher)(nil)

// Launcher starts one Chrome process per acquired session.
type Launcher struct {
	cfg    *config.BrowserConfig
	logger *zap.Logger
}

func NewLauncher(cfg *config.BrowserConfig, logger *zap.Logger) *Launcher {
	return &Launcher{cfg: cfg, logger: logger}
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
		chromedp.IgnoreCertErrors,
	)

	if l.cfg.WindowWidth > 0 && l.cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(l.cfg.WindowWidth, l.cfg.WindowHeight))
	}
	if l.cfg.LaunchTimeout > 0 {
		opts = append(opts, chromedp.WSURLReadTimeout(l.cfg.LaunchTimeout))
	}
	if l.cfg.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecutablePath))
	}
	if l.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(l.cfg.UserDataDir))
	} else {
		opts = append(opts, chromedp.Flag("guest", true))
	}
	return opts
}

// Acquire launches a browser, or attaches to the remote one, opens a tab and
// starts mirroring its console. Startup is bounded by ctx and the launch
// timeout. The browser itself is not tied to ctx: it lives until Release so
// that failure evidence can still be captured after ctx ends.
func (l *Launcher) Acquire(ctx context.Context) (probe.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", probe.ErrLaunch, err)
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if l.cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), l.cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	}

	sugar := l.logger.Named("chromedp").Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)

	pageLogger := l.logger.Named("page")
	if id := probe.RunIDFromContext(ctx); id != "" {
		pageLogger = pageLogger.With(zap.String("run", id))
	}
	mirrorConsole(tabCtx, pageLogger)

	s := &Session{
		allocCancel:     allocCancel,
		tabCtx:          tabCtx,
		tabCancel:       tabCancel,
		shutdownTimeout: l.cfg.ShutdownTimeout,
		logger:          l.logger,
	}
	s.page = &Page{tabCtx: tabCtx, actionTimeout: l.cfg.ActionTimeout}

	// The first Run on a fresh context allocates the browser. It is not
	// bound to ctx, so the wait for it is: a remote endpoint that never
	// answers would otherwise block forever.
	launchCtx := ctx
	if l.cfg.LaunchTimeout > 0 {
		var cancel context.CancelFunc
		launchCtx, cancel = context.WithTimeout(ctx, l.cfg.LaunchTimeout)
		defer cancel()
	}
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	select {
	case err := <-started:
		if err != nil {
			_ = s.Release()
			return nil, fmt.Errorf("%w: %v", probe.ErrLaunch, err)
		}
	case <-launchCtx.Done():
		s.abandon()
		return nil, fmt.Errorf("%w: browser not ready: %v", probe.ErrLaunch, launchCtx.Err())
	}

	l.logger.Debug("Browser session started")
	return s, nil
}

// Session is a running browser with a single tab.
type Session struct {
	allocCancel     context.CancelFunc
	tabCtx          context.Context
	tabCancel       context.CancelFunc
	page            *Page
	shutdownTimeout time.Duration
	logger          *zap.Logger

	once sync.Once
	err  error
}

func (s *Session) Page() probe.Page {
	return s.page
}

// abandon drops a session whose browser never became ready. The startup
// Run may still be in flight, so there is no graceful close to attempt.
func (s *Session) abandon() {
	s.once.Do(func() {
		s.tabCancel()
		s.allocCancel()
		s.logger.Debug("Browser session abandoned")
	})
}

// Release closes the browser, waiting at most the shutdown timeout for a
// graceful exit before the allocator kills the process. Safe to call more
// than once.
func (s *Session) Release() error {
	s.once.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.tabCtx) }()

		timeout := s.shutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		select {
		case err := <-done:
			s.err = err
		case <-time.After(timeout):
			s.err = fmt.Errorf("browser did not close within %s", timeout)
		}

		s.tabCancel()
		// Cancelling the allocator kills the process if it is still
		// around and removes its temporary profile.
		s.allocCancel()
		s.logger.Debug("Browser session released")
	})
	return s.err
}
