package runs

import (
	"context"
	"path/filepath"

	"github.com/copyleftdev/uiprobe/internal/config"
	"github.com/copyleftdev/uiprobe/internal/probe"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner executes the verification flow for a run.
// This decouples the manager from the browser implementation.
type Runner interface {
	Run(ctx context.Context, run *Run) (*probe.Report, error)
}

// HarnessRunner runs the probe harness, giving every run its own evidence
// directory named after the run ID.
type HarnessRunner struct {
	browser probe.Browser
	cfg     *config.Config
	logger  *zap.Logger
}

func NewHarnessRunner(browser probe.Browser, cfg *config.Config, logger *zap.Logger) *HarnessRunner {
	return &HarnessRunner{browser: browser, cfg: cfg, logger: logger}
}

// EvidenceDir is where the evidence of run id is written.
func (r *HarnessRunner) EvidenceDir(id uuid.UUID) string {
	return filepath.Join(r.cfg.Evidence.Dir, id.String())
}

func (r *HarnessRunner) Run(ctx context.Context, run *Run) (*probe.Report, error) {
	logger := r.logger.With(zap.String("run", run.ID.String()))
	recorder := probe.NewRecorder(r.cfg.Evidence, logger).WithDir(r.EvidenceDir(run.ID))
	harness := probe.NewHarness(r.browser, r.cfg, recorder, r.logger)
	return harness.Run(ctx, probe.RunOptions{ID: run.ID.String(), TargetURL: run.TargetURL})
}
