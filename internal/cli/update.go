package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"toolbelt/internal/download"
	"toolbelt/internal/platform"
	"toolbelt/internal/tools"
	"toolbelt/internal/tui"
)

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Refresh every managed tool from the latest release",
		RunE:  runUpdate,
	}
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	plat, err := platform.Detect()
	if err != nil {
		return err
	}

	logger, closeLog := sessionLog(env.paths, cmd.ErrOrStderr())
	defer closeLog()

	return updateAll(cmd, env, plat, logger)
}

type updateResult struct {
	Tool    string `json:"tool"`
	Version string `json:"version,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// updateAll force-refreshes every registered tool, renders per-tool progress
// according to the output mode, and sweeps transient files afterwards when
// auto-clean is on. Any tool failing to update fails the command, after all
// tools have been attempted.
func updateAll(cmd *cobra.Command, env environment, plat platform.Descriptor, logger *log.Logger) error {
	mode := tui.DetectMode(cmd.OutOrStdout(), noProgress, outputJSON)

	var results []updateResult
	var err error
	if mode == tui.ModeTUI {
		results, err = updateWithTable(cmd, env, plat, logger)
	} else {
		results = updatePlain(cmd, env, plat, logger, mode)
	}
	if err != nil {
		return err
	}

	if env.cfg.Cache.AutoCleanEnabled() {
		if removed, cleanErr := download.CleanTransients(env.paths.CacheRoot); cleanErr == nil && removed > 0 {
			logStep(logger, cmd.ErrOrStderr(), "cleaned %d transient file(s) from the cache", removed)
		}
	}

	return writeUpdateReport(cmd, results, mode)
}

func updateOne(ctx context.Context, env environment, plat platform.Descriptor, toolName string, onState download.StateFunc, onProgress download.ProgressFunc) updateResult {
	d := newDownloader(env)
	d.OnState = onState

	if _, err := d.EnsureBinary(ctx, toolName, plat, download.Options{
		Force:       true,
		KeyringPath: env.cfg.Source.KeyringFile,
		Progress:    onProgress,
	}); err != nil {
		return updateResult{Tool: toolName, Status: "failed", Error: err.Error()}
	}

	return updateResult{Tool: toolName, Version: d.InstalledVersion(toolName), Status: "installed"}
}

func updateWithTable(cmd *cobra.Command, env environment, plat platform.Descriptor, logger *log.Logger) ([]updateResult, error) {
	columns := []tui.Column{
		{Header: "TOOL", Width: 8},
		{Header: "STATUS", Width: 12},
		{Header: "PROGRESS", Width: 18},
		{Header: "DETAIL", Width: 36},
	}
	model := tui.NewProgressModel("Updating binaries", columns)
	for _, tool := range tools.All() {
		model.AddRow(tool.Name, []string{tool.Name, "pending", "", ""})
	}

	var results []updateResult
	err := tui.RunWithWork(cmd.OutOrStdout(), model, func(send func(tea.Msg)) {
		for _, tool := range tools.All() {
			reporter := tui.NewReporter(tool.Name, send)
			res := updateOne(cmdContext(cmd), env, plat, tool.Name, reporter.OnState, reporter.OnProgress)
			// stderr is off limits while bubbletea owns the terminal.
			logger.Printf("update %s: %s %s", res.Tool, res.Status, res.Error)
			results = append(results, res)
		}
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func updatePlain(cmd *cobra.Command, env environment, plat platform.Descriptor, logger *log.Logger, mode tui.OutputMode) []updateResult {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	var results []updateResult
	for _, tool := range tools.All() {
		onState := func(state download.State, detail string) {
			logStep(logger, errOut, "%s: %s %s", tool.Name, state, detail)
		}
		res := updateOne(cmdContext(cmd), env, plat, tool.Name, onState, nil)
		if mode == tui.ModePlain {
			if res.Status == "installed" {
				okColor.Fprintf(out, "installed %s %s\n", res.Tool, res.Version)
			} else {
				failColor.Fprintf(out, "failed %s: %s\n", res.Tool, res.Error)
			}
		}
		results = append(results, res)
	}
	return results
}

func writeUpdateReport(cmd *cobra.Command, results []updateResult, mode tui.OutputMode) error {
	out := cmd.OutOrStdout()

	switch mode {
	case tui.ModeJSON:
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("encode update json: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case tui.ModeTUI:
		// The live table is gone once the program exits; leave a summary.
		w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tVERSION\tSTATUS")
		for _, res := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\n", res.Tool, tui.NonEmptyOrDash(res.Version), res.Status)
		}
		w.Flush()
	}

	var failed []string
	for _, res := range results {
		if res.Status != "installed" {
			failed = append(failed, fmt.Sprintf("%s: %s", res.Tool, res.Error))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("update failed for %s", strings.Join(failed, "; "))
	}
	return nil
}
