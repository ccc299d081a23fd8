// Package cli wires the launcher commands together.
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"toolbelt/internal/config"
	"toolbelt/internal/logx"
	"toolbelt/internal/paths"
	"toolbelt/internal/version"
)

var (
	verbose       bool
	outputJSON    bool
	noProgress    bool
	noUpdateCheck bool
	useSystem     bool
	forceDownload bool
)

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "toolbelt",
		Short:   "Launcher for the toolbelt companion tools",
		Long:    "toolbelt keeps the companion tools installed and up to date,\nand hands them the terminal when you run them.",
		Version: version.Version,
		RunE:    runMenu,
	}

	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log each step to stderr as well as the session log")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON where the command produces a report")
	cmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Disable interactive progress output")
	cmd.PersistentFlags().BoolVar(&noUpdateCheck, "no-update-check", false, "Skip the startup update check")
	cmd.PersistentFlags().BoolVar(&useSystem, "use-system", false, "Prefer binaries already on PATH over the cache")
	cmd.PersistentFlags().BoolVar(&forceDownload, "force-download", false, "Re-download binaries even when a cached copy exists")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newCleanCmd())

	return cmd
}

// environment bundles the resolved paths and settings most commands need.
type environment struct {
	paths paths.Paths
	cfg   config.Config
}

func loadEnvironment() (environment, error) {
	pp, err := paths.Resolve()
	if err != nil {
		return environment{}, err
	}

	cfg, err := config.Load(pp.ConfigFile)
	if err != nil {
		return environment{}, err
	}
	pp = paths.ApplyConfig(pp, cfg)

	return environment{paths: pp, cfg: cfg}, nil
}

// preferSystem reports whether PATH binaries win over cached ones, from
// either the flag or the settings file.
func (e environment) preferSystem() bool {
	return useSystem || e.cfg.Behavior.UseSystemBinaries
}

// sessionLog opens the on-disk session log. A launch must never fail on
// logging trouble, so errors degrade to a discard logger.
func sessionLog(pp paths.Paths, errOut io.Writer) (*log.Logger, func()) {
	logger, closer, err := logx.New(pp)
	if err != nil {
		if verbose {
			fmt.Fprintf(errOut, "warning: session log unavailable: %v\n", err)
		}
		return logx.Discard(), func() {}
	}
	return logger, func() { _ = closer.Close() }
}

// logStep records a step in the session log and mirrors it to errOut in
// verbose mode.
func logStep(logger *log.Logger, errOut io.Writer, format string, args ...any) {
	logger.Printf(format, args...)
	if verbose {
		fmt.Fprintf(errOut, format+"\n", args...)
	}
}

// cmdContext returns the command's context, falling back to Background for
// commands invoked outside Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
