package cli

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"toolbelt/internal/download"
	"toolbelt/internal/github"
	"toolbelt/internal/platform"
	"toolbelt/internal/run"
	"toolbelt/internal/tools"
	"toolbelt/internal/tui"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <tool> [args...]",
		Short: "Ensure a tool is available, then hand it the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRun,
	}
	// Everything after the tool name belongs to the tool.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	plat, err := platform.Detect()
	if err != nil {
		return err
	}

	tool, ok := tools.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown tool %q (known: %s)", args[0], strings.Join(tools.Names(), ", "))
	}

	logger, closeLog := sessionLog(env.paths, cmd.ErrOrStderr())
	defer closeLog()

	return launchTool(cmd, env, plat, logger, tool, args[1:])
}

// launchTool resolves the tool's binary, spawns it with the caller's
// terminal, and waits for it. A tool's own failure exit is surfaced as a
// warning, never as a launcher error; a clean interrupt stays silent.
func launchTool(cmd *cobra.Command, env environment, plat platform.Descriptor, logger *log.Logger, tool tools.Tool, args []string) error {
	errOut := cmd.ErrOrStderr()

	path, err := resolveBinary(cmd, env, plat, logger, tool)
	if err != nil {
		return err
	}

	logStep(logger, errOut, "launching %s (%s)", tool.Name, path)
	result, err := run.RunInteractive(path, args)
	if err != nil {
		return err
	}

	switch {
	case result.Interrupted:
		logStep(logger, errOut, "%s interrupted", tool.Name)
	case result.Code != 0:
		logStep(logger, errOut, "%s exited with status %d", tool.Name, result.Code)
		warnColor.Fprintf(errOut, "warning: %s exited with status %d\n", tool.Name, result.Code)
	default:
		logStep(logger, errOut, "%s exited cleanly", tool.Name)
	}
	return nil
}

// resolveBinary picks the binary to launch: PATH first when the system
// preference is set, otherwise the cache, installing on a miss. When a
// forced refresh fails, an existing copy keeps the launch alive.
func resolveBinary(cmd *cobra.Command, env environment, plat platform.Descriptor, logger *log.Logger, tool tools.Tool) (string, error) {
	errOut := cmd.ErrOrStderr()

	if env.preferSystem() {
		if path, ok := run.LookPath(tool.Name); ok {
			logStep(logger, errOut, "using system %s at %s", tool.Name, path)
			return path, nil
		}
		logStep(logger, errOut, "%s not on PATH, falling back to the cache", tool.Name)
	}

	// A spinner covers the resolve phase; the byte bar owns the line once
	// bytes start flowing.
	var status *tui.StatusWriter
	if !noProgress && !outputJSON && tui.IsTerminal(cmd.OutOrStdout()) {
		status = tui.NewStatusWriter(cmd.OutOrStdout())
	}
	defer status.Stop()

	d := newDownloader(env)
	d.OnState = func(state download.State, detail string) {
		logStep(logger, errOut, "%s: %s %s", tool.Name, state, detail)
		switch state {
		case download.StateResolving:
			status.Update("resolving " + tool.Name)
		case download.StateCached, download.StateDownloading, download.StateFailed:
			status.Stop()
		}
	}

	bar := newByteBar(cmd.OutOrStdout())
	path, err := d.EnsureBinary(cmdContext(cmd), tool.Name, plat, download.Options{
		Force:       forceDownload,
		KeyringPath: env.cfg.Source.KeyringFile,
		Progress:    bar.update,
	})
	bar.finish()
	if err == nil {
		return path, nil
	}

	if cached, ok := run.CachedBinary(env.paths.CacheRoot, tool.Name, plat); ok {
		warnColor.Fprintf(errOut, "warning: refresh failed (%v); using cached %s\n", err, tool.Name)
		return cached, nil
	}
	if sysPath, ok := run.LookPath(tool.Name); ok {
		warnColor.Fprintf(errOut, "warning: %s unavailable from releases (%v); using system copy\n", tool.Name, err)
		return sysPath, nil
	}
	return "", err
}

// newReleaseClient is a hook for tests to aim commands at a local server.
var newReleaseClient = github.NewClient

func newDownloader(env environment) *download.Downloader {
	d := download.New(newReleaseClient(), env.cfg.GitHub.Owner, env.cfg.GitHub.Repo, env.paths.CacheRoot)
	d.Prerelease = env.cfg.GitHub.CheckPrerelease
	return d
}
