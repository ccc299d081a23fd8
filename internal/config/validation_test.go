package config

import (
	"os"
	"path/filepath"
	"testing"
)

func findLevel(results []ValidationResult, level string) int {
	count := 0
	for _, r := range results {
		if r.Level == level {
			count++
		}
	}
	return count
}

func TestValidateDefaultsClean(t *testing.T) {
	cfg := Default()
	cfg.ApplyDefaults()

	if results := cfg.Validate(); len(results) != 0 {
		t.Fatalf("expected no findings, got %+v", results)
	}
}

func TestValidateEmptyOwner(t *testing.T) {
	cfg := Default()
	cfg.GitHub.Owner = "  "

	results := cfg.Validate()
	if findLevel(results, "error") == 0 {
		t.Fatalf("expected error finding, got %+v", results)
	}
}

func TestValidateSlashInRepo(t *testing.T) {
	cfg := Default()
	cfg.GitHub.Repo = "owner/repo"

	results := cfg.Validate()
	if findLevel(results, "error") == 0 {
		t.Fatalf("expected error finding for slash, got %+v", results)
	}
}

func TestValidateMissingKeyringWarns(t *testing.T) {
	cfg := Default()
	cfg.Source.KeyringFile = filepath.Join(t.TempDir(), "absent.asc")

	results := cfg.Validate()
	if findLevel(results, "warning") != 1 {
		t.Fatalf("expected one warning, got %+v", results)
	}
}

func TestValidateCacheDirIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg := Default()
	cfg.Cache.Directory = path

	results := cfg.Validate()
	if findLevel(results, "error") != 1 {
		t.Fatalf("expected one error, got %+v", results)
	}
}

func TestValidateMissingCacheDirIsFine(t *testing.T) {
	cfg := Default()
	cfg.Cache.Directory = filepath.Join(t.TempDir(), "not-yet-created")

	if results := cfg.Validate(); len(results) != 0 {
		t.Fatalf("expected no findings, got %+v", results)
	}
}
