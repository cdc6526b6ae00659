package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/copyleftdev/uiprobe/internal/config"
	"github.com/copyleftdev/uiprobe/internal/probe"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const callbackTimeout = 10 * time.Second

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrDuplicateRun = errors.New("run already exists")
	ErrShuttingDown = errors.New("run manager is shutting down")
)

// Manager executes submitted runs in the background. At most
// browser.maxSessions runs hold a browser at the same time; the rest wait
// as pending.
type Manager struct {
	runner Runner
	sem    *semaphore.Weighted
	logger *zap.Logger
	client *http.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	runs   map[uuid.UUID]*Run
	closed bool
}

func NewManager(cfg *config.Config, runner Runner, logger *zap.Logger) *Manager {
	slots := int64(cfg.Browser.MaxSessions)
	if slots < 1 {
		slots = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		runner: runner,
		sem:    semaphore.NewWeighted(slots),
		logger: logger.Named("runs"),
		client: &http.Client{Timeout: callbackTimeout},
		ctx:    ctx,
		cancel: cancel,
		runs:   make(map[uuid.UUID]*Run),
	}
}

// Submit registers run and starts executing it asynchronously.
func (m *Manager) Submit(run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrShuttingDown
	}
	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
	}

	m.runs[run.ID] = run
	m.wg.Add(1)
	go m.execute(run)

	m.logger.Info("Run submitted", zap.String("run", run.ID.String()), zap.String("url", run.TargetURL))
	return nil
}

// Get returns a copy of the run with its current status.
func (m *Manager) Get(id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, exists := m.runs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	runCopy := *run
	return &runCopy, nil
}

func (m *Manager) execute(run *Run) {
	defer m.wg.Done()
	logger := m.logger.With(zap.String("run", run.ID.String()))

	if err := m.sem.Acquire(m.ctx, 1); err != nil {
		m.finish(run, StatusCancelled, nil, err)
		logger.Warn("Run cancelled before it started")
		m.notifyCallback(run)
		return
	}
	defer m.sem.Release(1)

	m.mu.Lock()
	run.UpdateStatus(StatusRunning)
	m.mu.Unlock()

	report, err := m.runner.Run(m.ctx, run)

	status := StatusPassed
	switch {
	case err != nil && m.ctx.Err() != nil:
		status = StatusCancelled
	case err != nil:
		status = StatusFailed
	}
	m.finish(run, status, report, err)
	logger.Info("Run finished", zap.String("status", string(status)))

	m.notifyCallback(run)
}

func (m *Manager) finish(run *Run, status Status, report *probe.Report, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.Report = report
	if err != nil {
		run.Error = err.Error()
	}
	run.UpdateStatus(status)
}

// notifyCallback POSTs the run summary to its callback URL, if any.
func (m *Manager) notifyCallback(run *Run) {
	m.mu.RLock()
	url := run.CallbackURL
	payload := run.callbackPayload()
	m.mu.RUnlock()

	if url == "" {
		return
	}
	logger := m.logger.With(zap.String("run", payload.ID), zap.String("callback", url))

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error marshaling callback payload", zap.Error(err))
		return
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logger.Error("Error creating callback request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		logger.Error("Error sending callback", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		logger.Info("Callback notification sent", zap.Int("status", resp.StatusCode))
	} else {
		logger.Warn("Callback notification rejected", zap.Int("status", resp.StatusCode))
	}
}

// Shutdown stops accepting runs, cancels those in flight and waits for
// them to release their browsers or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Run manager shut down")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for runs to stop: %w", ctx.Err())
	}
}
