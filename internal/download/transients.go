package download

import (
	"os"
	"path/filepath"
	"strings"
)

// ListTransients returns leftover download temps, staged extractions, and
// orphaned archives under the cache root. Crashed or killed runs can strand
// these; installed binaries and the manifest are never listed.
func ListTransients(cacheRoot string) ([]string, error) {
	entries, err := os.ReadDir(cacheRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var transients []string
	for _, entry := range entries {
		if entry.IsDir() || !isTransient(entry.Name()) {
			continue
		}
		transients = append(transients, filepath.Join(cacheRoot, entry.Name()))
	}
	return transients, nil
}

// CleanTransients removes every transient file from the cache root and
// returns the number of files removed.
func CleanTransients(cacheRoot string) (int, error) {
	transients, err := ListTransients(cacheRoot)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range transients {
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed, nil
}

func isTransient(name string) bool {
	switch {
	case strings.HasPrefix(name, "download-") && strings.HasSuffix(name, ".tmp"):
		return true
	case strings.HasPrefix(name, "extract-") && strings.HasSuffix(name, ".tmp"):
		return true
	case strings.HasPrefix(name, "manifest-") && strings.HasSuffix(name, ".json") && name != manifestFileName:
		return true
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"),
		strings.HasSuffix(name, ".zip"), strings.HasSuffix(name, ".sig"):
		return true
	default:
		return false
	}
}
