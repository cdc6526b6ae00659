package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/copyleftdev/uiprobe/internal/config"
	"github.com/copyleftdev/uiprobe/internal/dom"
	"go.uber.org/zap"
)

// Flow drives the application from its landing state to the open settings
// panel.
type Flow struct {
	page           Page
	start          LocatorStrategy
	settings       LocatorStrategy
	modalSelector  string
	modalTimeout   time.Duration
	settleTimeout  time.Duration
	settleInterval time.Duration
	logger         *zap.Logger
}

func NewFlow(page Page, cfg config.FlowConfig, logger *zap.Logger) *Flow {
	anyButton := dom.ByRole("")
	return &Flow{
		page:           page,
		start:          LocatorStrategy{Primary: dom.ByRole(cfg.StartButtonName), Fallback: &anyButton},
		settings:       settingsStrategy(cfg),
		modalSelector:  cfg.ModalSelector,
		modalTimeout:   cfg.ModalTimeout,
		settleTimeout:  cfg.SettleTimeout,
		settleInterval: cfg.SettleInterval,
		logger:         logger,
	}
}

// settingsStrategy prefers the semantic selector and keeps the icon path
// signature as fallback. Either may be unset, not both.
func settingsStrategy(cfg config.FlowConfig) LocatorStrategy {
	if cfg.SettingsSelector == "" {
		return LocatorStrategy{Primary: dom.ByCSS(cfg.SettingsFallbackSelector)}
	}
	s := LocatorStrategy{Primary: dom.ByCSS(cfg.SettingsSelector)}
	if cfg.SettingsFallbackSelector != "" {
		fb := dom.ByCSS(cfg.SettingsFallbackSelector)
		s.Fallback = &fb
	}
	return s
}

// rendered returns a copy of s that ignores elements which are not shown.
func (s LocatorStrategy) rendered() LocatorStrategy {
	out := LocatorStrategy{Primary: s.Primary}
	out.Primary.SkipHidden = true
	if s.Fallback != nil {
		fb := *s.Fallback
		fb.SkipHidden = true
		out.Fallback = &fb
	}
	return out
}

// resolve applies a strategy. The fallback runs only when the primary
// matched nothing; a query error on the primary is returned as is.
func resolve(ctx context.Context, page Page, s LocatorStrategy) (loc dom.Locator, n int, usedFallback bool, err error) {
	n, err = page.Count(ctx, s.Primary)
	if err != nil {
		return s.Primary, 0, false, fmt.Errorf("querying %s: %w", s.Primary, err)
	}
	if n > 0 || s.Fallback == nil {
		return s.Primary, n, false, nil
	}
	n, err = page.Count(ctx, *s.Fallback)
	if err != nil {
		return *s.Fallback, 0, true, fmt.Errorf("querying fallback %s: %w", *s.Fallback, err)
	}
	return *s.Fallback, n, true, nil
}

// DismissStartScreen activates the start button, or failing that the first
// button on the page. Finding no button at all is a no-op: the start screen
// is assumed absent.
func (f *Flow) DismissStartScreen(ctx context.Context) (StageResult, error) {
	res := StageResult{Stage: StageDismissStart}

	loc, n, usedFallback, err := resolve(ctx, f.page, f.start)
	res.UsedFallback = usedFallback
	if err != nil {
		return failed(res, err), err
	}
	if n == 0 {
		f.logger.Info("No start button found, assuming start screen is absent")
		res.Outcome = OutcomeNotFound
		res.Detail = "no buttons on page"
		return res, nil
	}
	if !usedFallback && n > 1 {
		err := fmt.Errorf("%w: %s matched %d", ErrAmbiguousMatch, loc, n)
		return failed(res, err), err
	}

	if usedFallback {
		f.logger.Info("Start button not found by name, clicking first button", zap.Int("buttons", n))
	} else {
		f.logger.Info("Found start button, clicking", zap.String("locator", loc.String()))
	}
	if err := f.page.Click(ctx, loc, 0); err != nil {
		err = fmt.Errorf("clicking %s: %w", loc, err)
		return failed(res, err), err
	}

	if err := f.settle(ctx); err != nil {
		return failed(res, err), err
	}
	res.Outcome = OutcomeSuccess
	return res, nil
}

// settle waits for the settings trigger to render, which marks the end of
// the start screen transition. Not seeing it in time is left for
// OpenSettings to report.
func (f *Flow) settle(ctx context.Context) error {
	rendered := f.settings.rendered()
	ok, err := poll(ctx, f.settleTimeout, f.settleInterval, func(ctx context.Context) (bool, error) {
		_, n, _, err := resolve(ctx, f.page, rendered)
		return n > 0, err
	})
	if err != nil {
		return fmt.Errorf("waiting for transition: %w", err)
	}
	if !ok {
		f.logger.Warn("Settings trigger did not appear after start transition",
			zap.Duration("timeout", f.settleTimeout))
	}
	return nil
}

// OpenSettings clicks the settings trigger and waits for the modal.
func (f *Flow) OpenSettings(ctx context.Context) (StageResult, error) {
	res := StageResult{Stage: StageOpenSettings}

	loc, n, usedFallback, err := resolve(ctx, f.page, f.settings)
	res.UsedFallback = usedFallback
	if err != nil {
		return failed(res, err), err
	}
	if n == 0 {
		err := fmt.Errorf("%w: settings trigger", ErrElementNotFound)
		res.Outcome = OutcomeNotFound
		res.Detail = err.Error()
		return res, err
	}
	if !usedFallback && n > 1 {
		err := fmt.Errorf("%w: %s matched %d", ErrAmbiguousMatch, loc, n)
		return failed(res, err), err
	}
	if usedFallback {
		f.logger.Info("Settings button found by icon signature", zap.String("locator", loc.String()))
	}

	f.logger.Info("Settings button found, clicking")
	if err := f.page.Click(ctx, loc, 0); err != nil {
		err = fmt.Errorf("clicking %s: %w", loc, err)
		return failed(res, err), err
	}

	f.logger.Info("Waiting for modal", zap.String("selector", f.modalSelector))
	if err := f.page.WaitVisible(ctx, f.modalSelector, f.modalTimeout); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s within %s", ErrModalTimeout, f.modalSelector, f.modalTimeout)
		} else {
			err = fmt.Errorf("waiting for %s: %w", f.modalSelector, err)
		}
		return failed(res, err), err
	}

	f.logger.Info("Modal is visible")
	res.Outcome = OutcomeSuccess
	return res, nil
}

func failed(res StageResult, err error) StageResult {
	res.Outcome = OutcomeFailed
	res.Detail = err.Error()
	return res
}
