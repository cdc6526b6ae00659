package cli

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/copyleftdev/uiprobe/internal/browser"
	"github.com/copyleftdev/uiprobe/internal/dom"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// doctorPage carries a button matching the default settings selector.
const doctorPage = `<html><head><title>uiprobe doctor</title></head>` +
	`<body><button aria-label="Open settings">menu</button><p id="ok">ok</p></body></html>`

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that Chrome can be launched and driven",
		Long: `Launch Chrome with the configured options, load a small inline page,
query it, click it and take a screenshot. Use this to debug launch problems
before pointing uiprobe at a real app.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(rootOpts, cmd)
		},
	}

	cmd.Flags().Bool("headless", true, "run Chrome without a window")
	cmd.Flags().String("chrome", "", "path to the Chrome executable")

	return cmd
}

type doctorResult struct {
	Launch         string `json:"launch"`
	Navigate       string `json:"navigate"`
	SemanticQuery  int    `json:"semantic_query_matches"`
	ScreenshotSize int    `json:"screenshot_bytes"`
	Elapsed        string `json:"elapsed"`
}

func runDoctor(opts *RootOptions, cmd *cobra.Command) error {
	cfg, logger, err := setup(opts, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, cfg.Browser.LaunchTimeout+cfg.Browser.ActionTimeout)
	defer cancel()

	started := time.Now()
	res := doctorResult{}

	session, err := browser.NewLauncher(&cfg.Browser, logger).Acquire(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "Chrome could not be launched", err)
	}
	defer func() {
		if rerr := session.Release(); rerr != nil {
			logger.Warn("Browser session release reported an error", zap.Error(rerr))
		}
	}()
	res.Launch = "ok"

	page := session.Page()
	if err := page.Navigate(ctx, "data:text/html,"+url.PathEscape(doctorPage), cfg.Target.NavigationTimeout); err != nil {
		return WrapExitError(ExitFailure, "inline page did not load", err)
	}
	if err := page.WaitVisible(ctx, "#ok", cfg.Flow.ModalTimeout); err != nil {
		return WrapExitError(ExitFailure, "inline page did not render", err)
	}
	res.Navigate = "ok"

	sel := cfg.Flow.SettingsSelector
	if sel == "" {
		sel = cfg.Flow.SettingsFallbackSelector
	}
	n, err := page.Count(ctx, dom.ByCSS(sel))
	if err != nil {
		return WrapExitError(ExitFailure, "DOM query failed", err)
	}
	res.SemanticQuery = n
	if n > 0 {
		if err := page.Click(ctx, dom.ByCSS(sel), 0); err != nil {
			return WrapExitError(ExitFailure, "click failed", err)
		}
	}

	png, err := page.Screenshot(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "screenshot failed", err)
	}
	res.ScreenshotSize = len(png)
	res.Elapsed = time.Since(started).Round(time.Millisecond).String()

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "Chrome launch:      %s\n", res.Launch)
	fmt.Fprintf(w, "Inline page:        %s\n", res.Navigate)
	fmt.Fprintf(w, "Settings selector:  %d match(es)\n", res.SemanticQuery)
	fmt.Fprintf(w, "Screenshot:         %d bytes\n", res.ScreenshotSize)
	fmt.Fprintf(w, "Elapsed:            %s\n", res.Elapsed)
	return nil
}
