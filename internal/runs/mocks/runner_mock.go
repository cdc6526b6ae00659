package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/copyleftdev/uiprobe/internal/probe"
	"github.com/copyleftdev/uiprobe/internal/runs"
)

// MockRunner implements the runs.Runner interface for testing
type MockRunner struct {
	mu        sync.Mutex
	executed  []*runs.Run
	failures  map[string]error
	gate      chan struct{}
	active    int
	maxActive int
	evidence  []string
}

var _ runs.Runner = (*MockRunner)(nil)

// NewMockRunner creates a runner that passes every run immediately
func NewMockRunner() *MockRunner {
	return &MockRunner{failures: make(map[string]error)}
}

// Run implements the Runner interface
func (m *MockRunner) Run(ctx context.Context, run *runs.Run) (*probe.Report, error) {
	m.mu.Lock()
	m.executed = append(m.executed, run)
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}
	gate := m.gate
	err := m.failures[run.TargetURL]
	evidence := m.evidence
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	report := &probe.Report{
		ID:        run.ID.String(),
		TargetURL: run.TargetURL,
		StartedAt: time.Now().UTC(),
		Evidence:  evidence,
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			err = fmt.Errorf("run interrupted: %w", ctx.Err())
		}
	}

	report.FinishedAt = time.Now().UTC()
	report.Passed = err == nil
	if err != nil {
		report.Error = err.Error()
	}
	return report, err
}

// FailURL makes runs against url fail with err
func (m *MockRunner) FailURL(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[url] = err
}

// SetEvidence sets the evidence paths reported by every run
func (m *MockRunner) SetEvidence(paths ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evidence = paths
}

// Block holds every subsequent run until Unblock is called or the run's
// context ends
func (m *MockRunner) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

// Unblock releases all held runs
func (m *MockRunner) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Executed returns the runs that were started
func (m *MockRunner) Executed() []*runs.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*runs.Run(nil), m.executed...)
}

// Active returns how many runs are executing right now
func (m *MockRunner) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// MaxActive returns the highest number of runs seen executing at once
func (m *MockRunner) MaxActive() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}
