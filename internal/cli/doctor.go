package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"toolbelt/internal/config"
	"toolbelt/internal/paths"
	"toolbelt/internal/platform"
	"toolbelt/internal/run"
	"toolbelt/internal/tools"
	"toolbelt/internal/tui"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the launcher environment",
		RunE:  runDoctor,
	}
}

type healthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Summary string `json:"summary"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	pp, err := paths.Resolve()
	if err != nil {
		return err
	}

	var checks []healthCheck

	checks = append(checks, checkPlatform())

	cfg, cfgErr := config.Load(pp.ConfigFile)
	checks = append(checks, checkConfig(cfg, cfgErr))
	if cfgErr != nil {
		// The remaining checks need usable settings.
		return writeDoctorResult(cmd, pp, checks)
	}
	pp = paths.ApplyConfig(pp, cfg)

	checks = append(checks, checkCache(pp))

	// The remaining checks can block on the network or on syscalls.
	var status *tui.StatusWriter
	if !outputJSON && tui.IsTerminal(cmd.OutOrStdout()) {
		status = tui.NewStatusWriter(cmd.OutOrStdout())
	}
	status.Update("querying releases")
	checks = append(checks, checkReleases(cmd, cfg))
	status.Update("reading host info")
	checks = append(checks, checkHost(cmd))
	status.Stop()

	return writeDoctorResult(cmd, pp, checks)
}

func checkPlatform() healthCheck {
	plat, err := platform.Detect()
	if err != nil {
		return healthCheck{Name: "Platform", Status: "error", Summary: err.Error()}
	}
	return healthCheck{
		Name:    "Platform",
		Status:  "ok",
		Summary: fmt.Sprintf("%s, assets end in -%s-%s%s", plat, plat.OS, plat.Arch, plat.ArchiveExt),
	}
}

func checkConfig(cfg config.Config, cfgErr error) healthCheck {
	if cfgErr != nil {
		return healthCheck{Name: "Config", Status: "error", Summary: cfgErr.Error()}
	}

	var warnings, errors int
	for _, v := range cfg.Validate() {
		switch v.Level {
		case "warning":
			warnings++
		case "error":
			errors++
		}
	}

	summary := fmt.Sprintf("releases from %s/%s", cfg.GitHub.Owner, cfg.GitHub.Repo)
	if errors > 0 {
		return healthCheck{Name: "Config", Status: "error", Summary: fmt.Sprintf("%s; %d errors", summary, errors)}
	}
	if warnings > 0 {
		return healthCheck{Name: "Config", Status: "warning", Summary: fmt.Sprintf("%s; %d warnings", summary, warnings)}
	}
	return healthCheck{Name: "Config", Status: "ok", Summary: summary}
}

func checkCache(pp paths.Paths) healthCheck {
	if err := pp.EnsureCacheRoot(); err != nil {
		return healthCheck{Name: "Cache", Status: "error", Summary: err.Error()}
	}

	probe, err := os.CreateTemp(pp.CacheRoot, "doctor-*.tmp")
	if err != nil {
		return healthCheck{Name: "Cache", Status: "error", Summary: fmt.Sprintf("cache root not writable: %v", err)}
	}
	probe.Close()
	os.Remove(probe.Name())

	installed := 0
	if plat, err := platform.Detect(); err == nil {
		for _, name := range tools.Names() {
			if _, ok := run.CachedBinary(pp.CacheRoot, name, plat); ok {
				installed++
			}
		}
	}
	return healthCheck{
		Name:    "Cache",
		Status:  "ok",
		Summary: fmt.Sprintf("%s, %d of %d tools installed", pp.CacheRoot, installed, len(tools.Names())),
	}
}

func checkReleases(cmd *cobra.Command, cfg config.Config) healthCheck {
	ctx, cancel := context.WithTimeout(cmdContext(cmd), 10*time.Second)
	defer cancel()

	release, err := fetchRelease(ctx, newReleaseClient(), cfg)
	if err != nil {
		// Cached binaries still work offline, so this is not fatal.
		return healthCheck{
			Name:    "Releases",
			Status:  "warning",
			Summary: fmt.Sprintf("%s/%s unreachable: %v", cfg.GitHub.Owner, cfg.GitHub.Repo, err),
		}
	}
	return healthCheck{
		Name:    "Releases",
		Status:  "ok",
		Summary: fmt.Sprintf("latest %s with %d assets", release.TagName, len(release.Assets)),
	}
}

func checkHost(cmd *cobra.Command) healthCheck {
	ctx, cancel := context.WithTimeout(cmdContext(cmd), 5*time.Second)
	defer cancel()

	summary, err := platform.HostSummary(ctx)
	if err != nil {
		return healthCheck{Name: "Host", Status: "warning", Summary: err.Error()}
	}
	return healthCheck{
		Name:    "Host",
		Status:  "ok",
		Summary: fmt.Sprintf("%s, %s %s, up %s", summary.Hostname, summary.Platform, summary.Version, summary.Uptime),
	}
}

func writeDoctorResult(cmd *cobra.Command, pp paths.Paths, checks []healthCheck) error {
	if outputJSON {
		data, err := json.MarshalIndent(checks, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true)
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bold.Render("ENVIRONMENT HEALTH:")+" "+pp.CacheRoot)

	for _, c := range checks {
		var statusStr string
		switch c.Status {
		case "ok":
			statusStr = green.Render("OK")
		case "warning":
			statusStr = yellow.Render("WARN")
		case "error":
			statusStr = red.Render("ERROR")
		}
		fmt.Fprintf(out, "  %-10s %s    %s\n", c.Name+":", statusStr, c.Summary)
	}

	return nil
}
