package probe

import (
	"time"

	"github.com/copyleftdev/uiprobe/internal/dom"
)

// Stage names as they appear in logs and reports.
const (
	StageSession      = "session"
	StageNavigate     = "navigate"
	StageDismissStart = "dismiss_start_screen"
	StageOpenSettings = "open_settings"
	StageAssertions   = "assertions"
)

// Evidence tags. Each becomes a file name in the evidence directory.
const (
	TagInitialLoad      = "initial_load"
	TagVerified         = "settings_modal_verified"
	TagModalFailed      = "modal_failed"
	TagNoSettingsButton = "no_settings_btn"
	TagScriptError      = "script_error"
)

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeNotFound Outcome = "not_found"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
)

// StageResult records how one stage of a run ended.
type StageResult struct {
	Stage        string        `json:"stage"`
	Outcome      Outcome       `json:"outcome"`
	Detail       string        `json:"detail,omitempty"`
	UsedFallback bool          `json:"used_fallback,omitempty"`
	Evidence     string        `json:"evidence,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// LocatorStrategy pairs a primary locator with an optional fallback. The
// fallback is only consulted when the primary matches zero elements.
type LocatorStrategy struct {
	Primary  dom.Locator
	Fallback *dom.Locator
}

type CheckKind string

const (
	CheckAttribute CheckKind = "attribute"
	CheckVisible   CheckKind = "visible"
)

// Check is a single expectation on the first element matching Selector.
type Check struct {
	Kind     CheckKind
	Selector string
	Attr     string
	Want     string
}

// AssertionItem is one numbered entry of the checklist. All of its checks
// must hold for the item to pass.
type AssertionItem struct {
	Index  int
	Name   string
	Checks []Check
}

type AssertionStatus string

const (
	AssertionPassed  AssertionStatus = "passed"
	AssertionFailed  AssertionStatus = "failed"
	AssertionSkipped AssertionStatus = "skipped"
)

type AssertionResult struct {
	Index    int                `json:"index"`
	Name     string             `json:"name"`
	Status   AssertionStatus    `json:"status"`
	Mismatch *AssertionMismatch `json:"mismatch,omitempty"`
}

// Report is the outcome of one harness run.
type Report struct {
	ID         string            `json:"id"`
	TargetURL  string            `json:"target_url"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Passed     bool              `json:"passed"`
	Error      string            `json:"error,omitempty"`
	Stages     []StageResult     `json:"stages"`
	Assertions []AssertionResult `json:"assertions,omitempty"`
	Evidence   []string          `json:"evidence,omitempty"`
}

// Stage returns the recorded result for name, if any.
func (r *Report) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}
