// Package cli implements the uiprobe command line.
package cli

import (
	"fmt"

	"github.com/copyleftdev/uiprobe/internal/config"
	"github.com/copyleftdev/uiprobe/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Format     string // "text" | "json"
}

// NewRootCommand creates the root command for the uiprobe CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "uiprobe",
		Short: "Verify the settings panel of a browser game",
		Long: `uiprobe drives a headless Chrome through the start screen and the
settings panel of a web game, checks the panel's accessibility attributes
and saves screenshot evidence for every outcome.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Without Args cobra reports unknown subcommands as plain errors.
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return WrapExitError(ExitUsage, fmt.Sprintf("unknown command %q for %q", args[0], cmd.CommandPath()), nil)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return WrapExitError(ExitUsage, fmt.Sprintf("invalid format %q: must be text or json", opts.Format), nil)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitUsage, "invalid flags", err)
	})

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewDoctorCommand(opts))

	return cmd
}

// setup loads configuration with the command's flags applied and builds
// the logger. Failures map to ExitUsage.
func setup(opts *RootOptions, cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath, cmd.Flags())
	if err != nil {
		return nil, nil, WrapExitError(ExitUsage, "invalid configuration", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, WrapExitError(ExitUsage, "invalid configuration", err)
	}
	return cfg, logger, nil
}
