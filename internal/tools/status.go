package tools

import (
	"toolbelt/internal/download"
	"toolbelt/internal/platform"
	"toolbelt/internal/run"
)

// Source labels where a detected binary came from.
const (
	SourceCache  = "cache"
	SourceSystem = "system"
)

// Status reports whether a managed tool is available and from where.
type Status struct {
	Tool      string `json:"tool"`
	Summary   string `json:"summary"`
	Installed bool   `json:"installed"`
	Source    string `json:"source,omitempty"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
}

// Detect inspects the cache and PATH for every managed tool. When
// preferSystem is set a PATH hit wins over a cached copy, matching the
// resolution order used when launching.
func Detect(cacheRoot string, plat platform.Descriptor, preferSystem bool) []Status {
	manifest, err := download.LoadManifest(cacheRoot)
	if err != nil {
		manifest = download.Manifest{}
	}

	statuses := make([]Status, 0, len(registry))
	for _, tool := range registry {
		statuses = append(statuses, detectOne(tool, cacheRoot, plat, preferSystem, manifest))
	}
	return statuses
}

func detectOne(tool Tool, cacheRoot string, plat platform.Descriptor, preferSystem bool, manifest download.Manifest) Status {
	status := Status{Tool: tool.Name, Summary: tool.Summary}

	cachePath, cached := run.CachedBinary(cacheRoot, tool.Name, plat)
	systemPath, onPath := run.LookPath(tool.Name)

	useSystem := onPath && (preferSystem || !cached)
	switch {
	case useSystem:
		status.Installed = true
		status.Source = SourceSystem
		status.Path = systemPath
	case cached:
		status.Installed = true
		status.Source = SourceCache
		status.Path = cachePath
		if entry, ok := manifest.Entries[tool.Name]; ok {
			status.Version = entry.Version
		}
	}
	return status
}
