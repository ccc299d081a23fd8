package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config captures the launcher settings stored in the user config file.
type Config struct {
	GitHub   GitHubConfig   `yaml:"github"`
	Source   SourceConfig   `yaml:"source"`
	Cache    CacheConfig    `yaml:"cache"`
	Behavior BehaviorConfig `yaml:"behavior"`
}

// GitHubConfig names the repository whose releases carry the tool binaries.
type GitHubConfig struct {
	Owner           string `yaml:"owner"`
	Repo            string `yaml:"repo"`
	CheckPrerelease bool   `yaml:"check_prerelease"`
}

// SourceConfig holds optional artifact trust settings.
type SourceConfig struct {
	// KeyringFile points at an OpenPGP public keyring; when set, release
	// archives are only accepted with a valid detached signature.
	KeyringFile string `yaml:"keyring_file"`
}

// CacheConfig controls where installed binaries live.
type CacheConfig struct {
	Directory string `yaml:"directory"`
	AutoClean *bool  `yaml:"auto_clean,omitempty"`
}

// BehaviorConfig tunes launcher behavior.
type BehaviorConfig struct {
	AutoUpdateCheck   *bool `yaml:"auto_update_check,omitempty"`
	UseSystemBinaries bool  `yaml:"use_system_binaries"`
}

// AutoCleanEnabled returns the effective auto_clean flag applying defaults.
func (c CacheConfig) AutoCleanEnabled() bool {
	if c.AutoClean == nil {
		return true
	}
	return *c.AutoClean
}

// AutoUpdateCheckEnabled returns the effective auto_update_check flag.
func (b BehaviorConfig) AutoUpdateCheckEnabled() bool {
	if b.AutoUpdateCheck == nil {
		return true
	}
	return *b.AutoUpdateCheck
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		GitHub: GitHubConfig{
			Owner: "toolbelt-dev",
			Repo:  "toolbelt",
		},
		Cache: CacheConfig{
			AutoClean: boolPtr(true),
		},
		Behavior: BehaviorConfig{
			AutoUpdateCheck: boolPtr(true),
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Save writes the configuration atomically, creating parent directories as
// needed.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize config: %w", err)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// ApplyDefaults ensures nested fields fall back to sensible defaults when the
// YAML omits them.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.GitHub.Owner == "" {
		c.GitHub.Owner = defaults.GitHub.Owner
	}
	if c.GitHub.Repo == "" {
		c.GitHub.Repo = defaults.GitHub.Repo
	}
	if c.Cache.AutoClean == nil {
		c.Cache.AutoClean = boolPtr(defaults.Cache.AutoCleanEnabled())
	}
	if c.Behavior.AutoUpdateCheck == nil {
		c.Behavior.AutoUpdateCheck = boolPtr(defaults.Behavior.AutoUpdateCheckEnabled())
	}
}

func boolPtr(v bool) *bool {
	return &v
}
