package download

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"toolbelt/internal/checksum"
)

const manifestFileName = "manifest.json"

// ManifestPath returns the manifest location under a cache root.
func ManifestPath(cacheRoot string) string {
	return filepath.Join(cacheRoot, manifestFileName)
}

// ManifestEntry records what one installed tool came from.
type ManifestEntry struct {
	Tool        string `json:"tool"`
	Version     string `json:"version"`
	Checksum    string `json:"checksum,omitempty"`
	InstalledAt string `json:"installed_at,omitempty"`
}

// Manifest wraps persisted entries for quick lookup. It is sidecar metadata:
// losing it never breaks the cache, only version reporting.
type Manifest struct {
	Entries map[string]ManifestEntry `json:"entries"`
}

// LoadManifest reads the manifest under cacheRoot. A missing or unreadable
// manifest yields an empty one.
func LoadManifest(cacheRoot string) (Manifest, error) {
	contents, err := os.ReadFile(filepath.Join(cacheRoot, manifestFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{Entries: map[string]ManifestEntry{}}, nil
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(contents, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Entries == nil {
		manifest.Entries = map[string]ManifestEntry{}
	}
	return manifest, nil
}

// SaveManifest writes the manifest atomically.
func SaveManifest(cacheRoot string, m Manifest) error {
	path := filepath.Join(cacheRoot, manifestFileName)
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		return fmt.Errorf("prepare manifest directory: %w", err)
	}

	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tmp, err := os.CreateTemp(cacheRoot, "manifest-*.json")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write manifest temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close manifest temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// recordInstall updates the manifest after a successful install. Manifest
// trouble is never allowed to fail an otherwise good install.
func (d *Downloader) recordInstall(toolName, version, binaryPath string) {
	manifest, err := LoadManifest(d.CacheRoot)
	if err != nil {
		manifest = Manifest{Entries: map[string]ManifestEntry{}}
	}

	entry := ManifestEntry{
		Tool:        toolName,
		Version:     version,
		InstalledAt: time.Now().UTC().Format(time.RFC3339),
	}
	if digest, err := checksum.Digest(binaryPath); err == nil {
		entry.Checksum = digest
	}
	manifest.Entries[toolName] = entry

	_ = SaveManifest(d.CacheRoot, manifest)
}

// InstalledVersion reports the manifest version for a tool, or "" when
// unknown.
func (d *Downloader) InstalledVersion(toolName string) string {
	manifest, err := LoadManifest(d.CacheRoot)
	if err != nil {
		return ""
	}
	return manifest.Entries[toolName].Version
}
