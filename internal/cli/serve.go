package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/copyleftdev/uiprobe/internal/auth"
	"github.com/copyleftdev/uiprobe/internal/browser"
	"github.com/copyleftdev/uiprobe/internal/runs"
	"github.com/copyleftdev/uiprobe/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 30 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose verification runs over HTTP",
		Long: `Start an HTTP API that queues verification runs, reports their status
and serves their evidence files. Runs execute in the background, each with
its own browser, at most browser.maxSessions at a time.

Example:
  uiprobe serve --port 8080
  curl -XPOST localhost:8080/api/v1/runs -d '{"target_url":"http://localhost:5173"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}

	cmd.Flags().Int("port", 8080, "HTTP listen port")
	cmd.Flags().Bool("headless", true, "run Chrome without a window")
	cmd.Flags().String("chrome", "", "path to the Chrome executable")
	cmd.Flags().String("evidence-dir", "", "root directory for per-run evidence")

	return cmd
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	cfg, logger, err := setup(opts, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var verifier *auth.TOTPVerifier
	if cfg.Security.TOTPSecret != "" {
		verifier, err = auth.NewTOTPVerifier(cfg.Security.TOTPSecret)
		if err != nil {
			return WrapExitError(ExitUsage, "invalid security.totpSecret", err)
		}
	}
	if cfg.Security.ApiKey == "" {
		logger.Warn("security.apiKey is empty, the run API is unauthenticated")
	}

	launcher := browser.NewLauncher(&cfg.Browser, logger)
	runner := runs.NewHarnessRunner(launcher, cfg, logger)
	manager := runs.NewManager(cfg, runner, logger)
	handler := server.NewAPIHandler(manager, runner, cfg.Target.URL, logger.Named("api"))
	srv := server.NewServer(cfg, handler, verifier, logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", zap.Duration("grace", shutdownGrace))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), manager.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server stopped with an error", err)
	}
	return nil
}
