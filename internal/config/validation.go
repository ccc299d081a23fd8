package config

import (
	"fmt"
	"os"
	"strings"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// Validate checks the settings for values the launcher cannot work with and
// returns structured findings. An empty slice means the config is usable.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateGitHub()...)
	results = append(results, c.validateSource()...)
	results = append(results, c.validateCache()...)
	return results
}

func (c Config) validateGitHub() []ValidationResult {
	var results []ValidationResult
	if strings.TrimSpace(c.GitHub.Owner) == "" {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: "github.owner is empty",
		})
	}
	if strings.TrimSpace(c.GitHub.Repo) == "" {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: "github.repo is empty",
		})
	}
	for _, value := range []string{c.GitHub.Owner, c.GitHub.Repo} {
		if strings.ContainsAny(value, "/ ") {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("github owner/repo %q must be a bare name", value),
			})
		}
	}
	return results
}

func (c Config) validateSource() []ValidationResult {
	if c.Source.KeyringFile == "" {
		return nil
	}
	if _, err := os.Stat(c.Source.KeyringFile); err != nil {
		return []ValidationResult{{
			Level:   "warning",
			Message: fmt.Sprintf("source.keyring_file %q not found; signature checks will fail", c.Source.KeyringFile),
		}}
	}
	return nil
}

func (c Config) validateCache() []ValidationResult {
	if c.Cache.Directory == "" {
		return nil
	}
	info, err := os.Stat(c.Cache.Directory)
	if err != nil {
		// Missing is fine; the downloader creates it on first use.
		if os.IsNotExist(err) {
			return nil
		}
		return []ValidationResult{{
			Level:   "warning",
			Message: fmt.Sprintf("cache.directory %q is not accessible: %v", c.Cache.Directory, err),
		}}
	}
	if !info.IsDir() {
		return []ValidationResult{{
			Level:   "error",
			Message: fmt.Sprintf("cache.directory %q exists but is not a directory", c.Cache.Directory),
		}}
	}
	return nil
}
