package cli

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"toolbelt/internal/config"
	"toolbelt/internal/download"
	"toolbelt/internal/github"
)

// updateCheck holds the result of the startup release probe.
type updateCheck struct {
	LatestTag string
	Outdated  map[string]bool
}

// IsOutdated reports whether a tool's installed version lags the probed
// release. A nil check (probe skipped or failed) marks nothing outdated.
func (c *updateCheck) IsOutdated(tool string) bool {
	return c != nil && c.Outdated[tool]
}

// Clear drops all outdated markers, for after a successful update.
func (c *updateCheck) Clear() {
	if c != nil {
		c.Outdated = nil
	}
}

// maybeCheckUpdates probes the release repository once at startup unless
// disabled by flag or settings. Failures are logged and never fatal.
func maybeCheckUpdates(cmd *cobra.Command, env environment, logger *log.Logger) *updateCheck {
	if noUpdateCheck || !env.cfg.Behavior.AutoUpdateCheckEnabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(cmdContext(cmd), 10*time.Second)
	defer cancel()

	release, err := fetchRelease(ctx, newReleaseClient(), env.cfg)
	if err != nil {
		logStep(logger, cmd.ErrOrStderr(), "update check failed: %v", err)
		return nil
	}

	manifest, err := download.LoadManifest(env.paths.CacheRoot)
	if err != nil {
		logStep(logger, cmd.ErrOrStderr(), "update check skipped: %v", err)
		return nil
	}

	check := &updateCheck{LatestTag: release.TagName, Outdated: map[string]bool{}}
	for name, entry := range manifest.Entries {
		if tagNewer(release.TagName, entry.Version) {
			check.Outdated[name] = true
		}
	}
	if len(check.Outdated) > 0 {
		logStep(logger, cmd.ErrOrStderr(), "release %s is newer than %d installed tool(s)", release.TagName, len(check.Outdated))
	}
	return check
}

func fetchRelease(ctx context.Context, client *github.Client, cfg config.Config) (github.Release, error) {
	if cfg.GitHub.CheckPrerelease {
		return client.FirstRelease(ctx, cfg.GitHub.Owner, cfg.GitHub.Repo)
	}
	return client.LatestRelease(ctx, cfg.GitHub.Owner, cfg.GitHub.Repo)
}

// tagNewer reports whether latest is a strictly newer semantic version than
// installed. Tags are normalized to a leading "v"; tags that still do not
// parse never trigger an update marker.
func tagNewer(latest, installed string) bool {
	latestTag := normalizeTag(latest)
	installedTag := normalizeTag(installed)
	if latestTag == "" || installedTag == "" {
		return false
	}
	return semver.Compare(latestTag, installedTag) > 0
}

func normalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	if !strings.HasPrefix(tag, "v") {
		tag = "v" + tag
	}
	if !semver.IsValid(tag) {
		return ""
	}
	return tag
}
