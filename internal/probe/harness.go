package probe

import (
	"context"
	"errors"
	"time"

	"github.com/copyleftdev/uiprobe/internal/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunOptions customises a single run. Zero values fall back to config.
type RunOptions struct {
	ID        string
	TargetURL string
}

// Harness runs the verification flow: session, navigation, start screen,
// settings panel, checklist. Each stage can end the run early; every early
// end after navigation has started leaves tagged evidence behind.
type Harness struct {
	browser  Browser
	cfg      *config.Config
	recorder *Recorder
	logger   *zap.Logger
}

func NewHarness(browser Browser, cfg *config.Config, recorder *Recorder, logger *zap.Logger) *Harness {
	return &Harness{
		browser:  browser,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger.Named("harness"),
	}
}

type runIDKey struct{}

// ContextWithRunID tags ctx with the ID of the run it serves, so that
// components below the harness can label their output.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run ID carried by ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Run executes one verification pass. The returned report is always
// non-nil; the error is non-nil whenever the report did not pass and
// wraps a *StageError.
func (h *Harness) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.TargetURL == "" {
		opts.TargetURL = h.cfg.Target.URL
	}

	report := &Report{ID: opts.ID, TargetURL: opts.TargetURL, StartedAt: time.Now().UTC()}
	logger := h.logger.With(zap.String("run", opts.ID))
	ctx = ContextWithRunID(ctx, opts.ID)

	err := h.run(ctx, logger, report)

	report.FinishedAt = time.Now().UTC()
	report.Passed = err == nil
	if err != nil {
		report.Error = err.Error()
	}
	report.Evidence = h.recorder.Files()
	if werr := h.recorder.WriteReport(report); werr != nil {
		logger.Error("Failed to write report", zap.Error(werr))
	}

	if err != nil {
		logger.Error("Verification failed", zap.Error(err))
	} else {
		logger.Info("SUCCESS: all accessibility attributes verified")
	}
	return report, err
}

func (h *Harness) run(ctx context.Context, logger *zap.Logger, report *Report) error {
	started := time.Now()
	session, err := h.browser.Acquire(ctx)
	if err != nil {
		report.Stages = append(report.Stages, StageResult{
			Stage: StageSession, Outcome: OutcomeFailed, Detail: err.Error(), Duration: time.Since(started),
		})
		return &StageError{Stage: StageSession, Err: err}
	}
	defer func() {
		if rerr := session.Release(); rerr != nil {
			logger.Warn("Browser session release reported an error", zap.Error(rerr))
		}
	}()
	report.Stages = append(report.Stages, StageResult{Stage: StageSession, Outcome: OutcomeSuccess, Duration: time.Since(started)})

	page := session.Page()

	// fail records the stage, captures evidence under tag and builds the
	// error returned from run.
	fail := func(res StageResult, tag string, err error) error {
		res.Evidence = tag
		report.Stages = append(report.Stages, res)
		logger.Error("Stage failed", zap.String("stage", res.Stage), zap.String("evidence", tag), zap.Error(err))
		h.recorder.Capture(ctx, page, tag)
		return &StageError{Stage: res.Stage, Tag: tag, Err: err}
	}

	logger.Info("Navigating to app", zap.String("url", report.TargetURL))
	started = time.Now()
	t := h.cfg.Target
	if err := Navigate(ctx, page, report.TargetURL, t.BaselineSelector, t.NavigationTimeout, t.BaselineTimeout); err != nil {
		return fail(StageResult{Stage: StageNavigate, Outcome: OutcomeFailed, Detail: err.Error(), Duration: time.Since(started)}, TagScriptError, err)
	}
	report.Stages = append(report.Stages, StageResult{
		Stage: StageNavigate, Outcome: OutcomeSuccess, Evidence: TagInitialLoad, Duration: time.Since(started),
	})
	h.recorder.Capture(ctx, page, TagInitialLoad)

	flow := NewFlow(page, h.cfg.Flow, logger)

	started = time.Now()
	res, err := flow.DismissStartScreen(ctx)
	res.Duration = time.Since(started)
	if err != nil {
		return fail(res, TagScriptError, err)
	}
	report.Stages = append(report.Stages, res)

	logger.Info("Looking for settings button")
	started = time.Now()
	res, err = flow.OpenSettings(ctx)
	res.Duration = time.Since(started)
	if err != nil {
		switch {
		case errors.Is(err, ErrElementNotFound):
			return fail(res, TagNoSettingsButton, err)
		case errors.Is(err, ErrModalTimeout):
			return fail(res, TagModalFailed, err)
		default:
			return fail(res, TagScriptError, err)
		}
	}
	report.Stages = append(report.Stages, res)

	logger.Info("Verifying attributes")
	started = time.Now()
	suite := NewSuite(DefaultChecklist(h.cfg.Flow.ModalSelector, h.cfg.Assertions), h.cfg.Assertions, logger)
	results, err := suite.Evaluate(ctx, page)
	report.Assertions = results
	res = StageResult{Stage: StageAssertions, Duration: time.Since(started)}
	if err != nil {
		var mismatch *AssertionMismatch
		if errors.As(err, &mismatch) {
			return fail(failed(res, err), TagModalFailed, err)
		}
		return fail(failed(res, err), TagScriptError, err)
	}

	res.Outcome = OutcomeSuccess
	res.Evidence = TagVerified
	report.Stages = append(report.Stages, res)
	h.recorder.Capture(ctx, page, TagVerified)
	return nil
}
