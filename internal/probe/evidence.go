package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/copyleftdev/uiprobe/internal/config"
	"github.com/copyleftdev/uiprobe/internal/dom"
	"go.uber.org/zap"
)

const reportFile = "report.json"

// Recorder writes tagged evidence into one directory. Capture never
// fails: problems are logged so they cannot hide the failure being
// documented.
type Recorder struct {
	dir     string
	saveDOM bool
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	files []string
}

func NewRecorder(cfg config.EvidenceConfig, logger *zap.Logger) *Recorder {
	return &Recorder{
		dir:     cfg.Dir,
		saveDOM: cfg.SaveDOM,
		timeout: cfg.Timeout,
		logger:  logger.Named("evidence"),
	}
}

// WithDir returns a recorder with the same settings writing into dir.
func (r *Recorder) WithDir(dir string) *Recorder {
	return &Recorder{dir: dir, saveDOM: r.saveDOM, timeout: r.timeout, logger: r.logger}
}

func (r *Recorder) Dir() string {
	return r.dir
}

// Capture saves a full-page screenshot as <tag>.png and, if enabled, a
// sanitized DOM snapshot as <tag>.html. It runs even when ctx is already
// cancelled, bounded by the evidence timeout.
func (r *Recorder) Capture(ctx context.Context, page Page, tag string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	logger := r.logger.With(zap.String("tag", tag))
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		logger.Error("Failed to create evidence directory", zap.String("dir", r.dir), zap.Error(err))
		return
	}

	if img, err := page.Screenshot(ctx); err != nil {
		logger.Error("Screenshot failed", zap.Error(err))
	} else {
		r.write(logger, tag+".png", img)
	}

	if !r.saveDOM {
		return
	}
	raw, err := page.HTML(ctx)
	if err != nil {
		logger.Error("DOM snapshot failed", zap.Error(err))
		return
	}
	clean, err := dom.SanitizeSnapshot(raw)
	if err != nil {
		logger.Warn("Could not sanitize DOM snapshot, keeping raw markup", zap.Error(err))
		clean = raw
	}
	r.write(logger, tag+".html", []byte(clean))
}

func (r *Recorder) write(logger *zap.Logger, name string, data []byte) {
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Error("Failed to write evidence", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("Evidence saved", zap.String("path", path))

	r.mu.Lock()
	r.files = append(r.files, path)
	r.mu.Unlock()
}

// Files lists the evidence paths written so far.
func (r *Recorder) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

// WriteReport stores report as JSON next to the evidence.
func (r *Recorder) WriteReport(report *Report) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("creating evidence directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, reportFile), data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
