package runs

import (
	"time"

	"github.com/copyleftdev/uiprobe/internal/probe"
	"github.com/google/uuid"
)

// Run status constants
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Done reports whether the status is terminal.
func (s Status) Done() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Run is one verification pass submitted through the API.
type Run struct {
	ID          uuid.UUID     `json:"id"`
	Status      Status        `json:"status"`
	TargetURL   string        `json:"target_url"`
	CallbackURL string        `json:"callback_url,omitempty"`
	Report      *probe.Report `json:"report,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func NewRun(targetURL, callbackURL string) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:          uuid.New(),
		Status:      StatusPending,
		TargetURL:   targetURL,
		CallbackURL: callbackURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// UpdateStatus should be called by the manager while holding its lock.
func (r *Run) UpdateStatus(status Status) {
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
}

// callbackPayload is the summary POSTed to a run's callback URL.
type callbackPayload struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	TargetURL  string    `json:"target_url"`
	Passed     bool      `json:"passed"`
	Error      string    `json:"error,omitempty"`
	Evidence   []string  `json:"evidence,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r *Run) callbackPayload() callbackPayload {
	p := callbackPayload{
		ID:         r.ID.String(),
		Status:     r.Status,
		TargetURL:  r.TargetURL,
		Passed:     r.Status == StatusPassed,
		Error:      r.Error,
		FinishedAt: r.UpdatedAt,
	}
	if r.Report != nil {
		p.Evidence = r.Report.Evidence
	}
	return p
}
