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

// DefaultChecklist builds the settings-modal checklist scoped inside modal:
// the dialog attributes, the title, one label/control pair per control id
// and the close button.
func DefaultChecklist(modal string, cfg config.AssertionsConfig) []AssertionItem {
	within := func(sel string) string { return dom.Within(modal, sel) }
	titleSel := within("#" + cfg.TitleID)

	items := []AssertionItem{
		{Name: "dialog role", Checks: []Check{
			{Kind: CheckAttribute, Selector: modal, Attr: "role", Want: "dialog"},
		}},
		{Name: "aria-modal", Checks: []Check{
			{Kind: CheckAttribute, Selector: modal, Attr: "aria-modal", Want: "true"},
		}},
		{Name: "aria-labelledby", Checks: []Check{
			{Kind: CheckAttribute, Selector: modal, Attr: "aria-labelledby", Want: cfg.TitleID},
		}},
		{Name: "title", Checks: []Check{
			{Kind: CheckVisible, Selector: titleSel},
			{Kind: CheckAttribute, Selector: titleSel, Attr: "id", Want: cfg.TitleID},
		}},
	}
	for _, id := range cfg.Controls {
		items = append(items, AssertionItem{Name: "labelled " + id, Checks: []Check{
			{Kind: CheckVisible, Selector: within(fmt.Sprintf("label[for='%s']", id))},
			{Kind: CheckVisible, Selector: within("#" + id)},
		}})
	}
	items = append(items, AssertionItem{Name: "close button", Checks: []Check{
		{Kind: CheckVisible, Selector: within(fmt.Sprintf("button[aria-label='%s']", cfg.CloseLabel))},
	}})

	for i := range items {
		items[i].Index = i + 1
	}
	return items
}

// Suite evaluates a checklist in order. In fail_fast mode it stops at the
// first mismatch and marks the rest skipped; in collect_all mode it
// evaluates everything. Inspector errors abort either way.
type Suite struct {
	items    []AssertionItem
	mode     string
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

func NewSuite(items []AssertionItem, cfg config.AssertionsConfig, logger *zap.Logger) *Suite {
	return &Suite{
		items:    items,
		mode:     cfg.Mode,
		timeout:  cfg.Timeout,
		interval: defaultPollInterval,
		logger:   logger,
	}
}

// Evaluate returns one result per item. The error is nil when every item
// passed, a join of *AssertionMismatch values otherwise, or the inspector
// error that stopped the run.
func (s *Suite) Evaluate(ctx context.Context, insp Inspector) ([]AssertionResult, error) {
	results := make([]AssertionResult, 0, len(s.items))
	var mismatches []error

	for i, item := range s.items {
		mismatch, err := s.evaluateItem(ctx, insp, item)
		if err != nil {
			return append(results, skipRest(s.items[i:])...), fmt.Errorf("assertion %d (%s): %w", item.Index, item.Name, err)
		}

		if mismatch == nil {
			s.logger.Debug("Assertion passed", zap.Int("item", item.Index), zap.String("name", item.Name))
			results = append(results, AssertionResult{Index: item.Index, Name: item.Name, Status: AssertionPassed})
			continue
		}

		s.logger.Warn("Assertion failed", zap.Int("item", item.Index), zap.Error(mismatch))
		results = append(results, AssertionResult{Index: item.Index, Name: item.Name, Status: AssertionFailed, Mismatch: mismatch})
		mismatches = append(mismatches, mismatch)
		if s.mode != config.ModeCollectAll {
			results = append(results, skipRest(s.items[i+1:])...)
			break
		}
	}

	return results, errors.Join(mismatches...)
}

func skipRest(items []AssertionItem) []AssertionResult {
	out := make([]AssertionResult, 0, len(items))
	for _, item := range items {
		out = append(out, AssertionResult{Index: item.Index, Name: item.Name, Status: AssertionSkipped})
	}
	return out
}

func (s *Suite) evaluateItem(ctx context.Context, insp Inspector, item AssertionItem) (*AssertionMismatch, error) {
	for _, c := range item.Checks {
		mismatch, err := s.evaluateCheck(ctx, insp, item, c)
		if err != nil || mismatch != nil {
			return mismatch, err
		}
	}
	return nil, nil
}

// evaluateCheck retries a check until it holds or the suite timeout runs
// out, reporting the last observed mismatch.
func (s *Suite) evaluateCheck(ctx context.Context, insp Inspector, item AssertionItem, c Check) (*AssertionMismatch, error) {
	var last *AssertionMismatch
	ok, err := poll(ctx, s.timeout, s.interval, func(ctx context.Context) (bool, error) {
		m, err := checkOnce(ctx, insp, c)
		if err != nil {
			return false, err
		}
		last = m
		return m == nil, nil
	})
	if err != nil || ok {
		return nil, err
	}
	last.Item = item.Index
	last.Name = item.Name
	return last, nil
}

func checkOnce(ctx context.Context, insp Inspector, c Check) (*AssertionMismatch, error) {
	switch c.Kind {
	case CheckAttribute:
		expected := fmt.Sprintf("%s=%q", c.Attr, c.Want)
		val, present, err := insp.Attribute(ctx, c.Selector, c.Attr)
		switch {
		case errors.Is(err, dom.ErrNoNode):
			return &AssertionMismatch{Selector: c.Selector, Expected: expected, Actual: "no element"}, nil
		case err != nil:
			return nil, err
		case !present:
			return &AssertionMismatch{Selector: c.Selector, Expected: expected, Actual: c.Attr + " absent"}, nil
		case val != c.Want:
			return &AssertionMismatch{Selector: c.Selector, Expected: expected, Actual: fmt.Sprintf("%s=%q", c.Attr, val)}, nil
		}
		return nil, nil
	case CheckVisible:
		visible, err := insp.Visible(ctx, c.Selector)
		if err != nil {
			return nil, err
		}
		if !visible {
			return &AssertionMismatch{Selector: c.Selector, Expected: "visible", Actual: "hidden or missing"}, nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown check kind %q", c.Kind)
	}
}
