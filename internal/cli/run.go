package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/copyleftdev/uiprobe/internal/browser"
	"github.com/copyleftdev/uiprobe/internal/probe"
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the verification flow against a live app",
		Long: `Launch Chrome, open the target URL, dismiss the start screen, open the
settings panel and check its accessibility attributes.

Screenshots (and sanitized DOM snapshots) are written to the evidence
directory together with report.json. The exit code is 0 when everything
passed and 1 otherwise.

Example:
  uiprobe run --url http://localhost:5173
  uiprobe run --mode collect_all --evidence-dir ./out --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerification(rootOpts, cmd)
		},
	}

	cmd.Flags().String("url", "", "URL of the app under test")
	cmd.Flags().String("evidence-dir", "", "directory for screenshots and report.json")
	cmd.Flags().Bool("headless", true, "run Chrome without a window")
	cmd.Flags().String("chrome", "", "path to the Chrome executable")
	cmd.Flags().String("mode", "", "assertion mode (fail_fast|collect_all)")

	return cmd
}

func runVerification(opts *RootOptions, cmd *cobra.Command) error {
	cfg, logger, err := setup(opts, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	launcher := browser.NewLauncher(&cfg.Browser, logger)
	harness := probe.NewHarness(launcher, cfg, probe.NewRecorder(cfg.Evidence, logger), logger)

	report, runErr := harness.Run(ctx, probe.RunOptions{})
	if err := writeReport(cmd.OutOrStdout(), opts.Format, report); err != nil {
		return WrapExitError(ExitFailure, "writing report", err)
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "verification failed", runErr)
	}
	return nil
}
