package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"toolbelt/internal/download"
	"toolbelt/internal/paths"
	"toolbelt/internal/platform"
	"toolbelt/internal/run"
	"toolbelt/internal/tools"
	"toolbelt/internal/tui"
)

var (
	cleanDryRun bool
	cleanAll    bool
)

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover downloads from the cache",
		RunE:  runClean,
	}
	cmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "List what would be removed without deleting")
	cmd.Flags().BoolVar(&cleanAll, "all", false, "Also remove installed binaries and the manifest")
	return cmd
}

type cleanResult struct {
	Removed    int   `json:"removed"`
	FreedBytes int64 `json:"freed_bytes"`
	Skipped    int   `json:"skipped"`
	DryRun     bool  `json:"dry_run"`
}

func runClean(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	targets, err := download.ListTransients(env.paths.CacheRoot)
	if err != nil {
		return fmt.Errorf("scan cache: %w", err)
	}

	if cleanAll {
		plat, err := platform.Detect()
		if err != nil {
			return err
		}
		for _, name := range tools.Names() {
			if path, ok := run.CachedBinary(env.paths.CacheRoot, name, plat); ok {
				targets = append(targets, path)
			}
		}
		manifest := download.ManifestPath(env.paths.CacheRoot)
		if ok, _ := paths.FileExists(manifest); ok {
			targets = append(targets, manifest)
		}
	}

	out := cmd.OutOrStdout()
	result := cleanResult{DryRun: cleanDryRun}

	for _, path := range targets {
		info, err := os.Stat(path)
		if err != nil {
			result.Skipped++
			continue
		}
		size := info.Size()

		if cleanDryRun {
			if !outputJSON {
				fmt.Fprintf(out, "would remove %s (%s)\n", path, tui.HumanBytes(size))
			}
			result.Removed++
			result.FreedBytes += size
			continue
		}

		if err := os.Remove(path); err != nil {
			if !outputJSON {
				fmt.Fprintf(cmd.ErrOrStderr(), "error removing %s: %v\n", path, err)
			}
			result.Skipped++
			continue
		}
		result.Removed++
		result.FreedBytes += size
		if !outputJSON {
			fmt.Fprintf(out, "removed %s (%s)\n", path, tui.HumanBytes(size))
		}
	}

	if outputJSON {
		return json.NewEncoder(out).Encode(result)
	}

	action := "complete"
	if cleanDryRun {
		action = "(dry run)"
	}
	fmt.Fprintf(out, "Clean %s: %d removed, %s freed, %d skipped\n",
		action, result.Removed, tui.HumanBytes(result.FreedBytes), result.Skipped)
	return nil
}
