package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/copyleftdev/uiprobe/internal/dom"
	"github.com/copyleftdev/uiprobe/internal/probe"
	"github.com/spf13/cobra"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	DOMPath string
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check --dom <file>",
		Short: "Run the accessibility checklist against a saved DOM snapshot",
		Long: `Evaluate the settings-panel checklist against an HTML file, such as the
.html evidence saved by a previous run. No browser is started, so
visibility is judged from hidden attributes and inline styles only.

Example:
  uiprobe check --dom verification/modal_failed.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DOMPath, "dom", "", "path to the HTML snapshot (required)")
	cmd.Flags().String("mode", "", "assertion mode (fail_fast|collect_all)")

	return cmd
}

type checkResult struct {
	File       string                  `json:"file"`
	Passed     bool                    `json:"passed"`
	Assertions []probe.AssertionResult `json:"assertions"`
	Error      string                  `json:"error,omitempty"`
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	if opts.DOMPath == "" {
		return WrapExitError(ExitUsage, "--dom is required", nil)
	}
	cfg, logger, err := setup(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	f, err := os.Open(opts.DOMPath)
	if err != nil {
		return WrapExitError(ExitUsage, "cannot open DOM snapshot", err)
	}
	defer f.Close()

	page, err := dom.NewStaticPage(f)
	if err != nil {
		return WrapExitError(ExitUsage, "cannot parse DOM snapshot", err)
	}

	// A snapshot never changes, so one evaluation per check is enough.
	acfg := cfg.Assertions
	acfg.Timeout = 0
	suite := probe.NewSuite(probe.DefaultChecklist(cfg.Flow.ModalSelector, acfg), acfg, logger)

	results, evalErr := suite.Evaluate(context.Background(), page)
	res := checkResult{File: opts.DOMPath, Passed: evalErr == nil, Assertions: results}
	if evalErr != nil {
		res.Error = evalErr.Error()
	}

	if err := writeCheckResult(cmd, opts.Format, res); err != nil {
		return WrapExitError(ExitFailure, "writing result", err)
	}

	var mismatch *probe.AssertionMismatch
	switch {
	case evalErr == nil:
		return nil
	case errors.As(evalErr, &mismatch):
		return WrapExitError(ExitFailure, "checklist failed", evalErr)
	default:
		return WrapExitError(ExitFailure, "checklist could not be evaluated", evalErr)
	}
}

func writeCheckResult(cmd *cobra.Command, format string, res checkResult) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		return writeJSON(w, res)
	}
	verdict := "PASSED"
	if !res.Passed {
		verdict = "FAILED"
	}
	fmt.Fprintf(w, "Checklist on %s: %s\n", res.File, verdict)
	writeAssertions(w, res.Assertions)
	return nil
}
