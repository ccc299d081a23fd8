package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"toolbelt/internal/config"
)

// Paths captures canonical on-disk locations for the launcher.
type Paths struct {
	ConfigDir  string
	ConfigFile string
	LogsDir    string
	CacheRoot  string
}

// Resolve determines the default locations for the current user. The cache
// root honors the TOOLBELT_CACHE_DIR environment override; a config-file
// override is applied afterwards via ApplyConfig and wins over both.
func Resolve() (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("detect user config dir: %w", err)
	}
	configDir = filepath.Join(configDir, "toolbelt")

	root, err := cacheRoot()
	if err != nil {
		return Paths{}, err
	}

	return Paths{
		ConfigDir:  configDir,
		ConfigFile: filepath.Join(configDir, "config.yaml"),
		LogsDir:    filepath.Join(configDir, "logs"),
		CacheRoot:  root,
	}, nil
}

// ApplyConfig overlays settings-file overrides onto resolved paths.
func ApplyConfig(p Paths, cfg config.Config) Paths {
	if dir := cfg.Cache.Directory; dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			p.CacheRoot = abs
		} else {
			p.CacheRoot = dir
		}
	}
	return p
}

func cacheRoot() (string, error) {
	if override, ok := os.LookupEnv("TOOLBELT_CACHE_DIR"); ok && override != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", fmt.Errorf("resolve TOOLBELT_CACHE_DIR: %w", err)
		}
		return abs, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Toolbelt", "bin"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "Toolbelt", "bin"), nil
		}
		return filepath.Join(home, "AppData", "Local", "Toolbelt", "bin"), nil
	default:
		return filepath.Join(home, ".local", "share", "toolbelt", "bin"), nil
	}
}

// EnsureCacheRoot creates the cache root if needed.
func (p Paths) EnsureCacheRoot() error {
	if err := os.MkdirAll(p.CacheRoot, 0o755); err != nil {
		return fmt.Errorf("create cache root: %w", err)
	}
	return nil
}

// EnsureLogsDir creates the logs directory if needed.
func (p Paths) EnsureLogsDir() error {
	if err := os.MkdirAll(p.LogsDir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
