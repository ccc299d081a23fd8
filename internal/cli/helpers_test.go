package cli

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"toolbelt/internal/download"
	"toolbelt/internal/github"
	"toolbelt/internal/platform"
)

// setTestEnv points every user-level location at per-test directories so
// commands never touch the real home. Returns the cache root.
func setTestEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	cache := filepath.Join(home, "cache")
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData", "Roaming"))
	t.Setenv("TOOLBELT_CACHE_DIR", cache)
	if err := os.MkdirAll(cache, 0o755); err != nil {
		t.Fatalf("create cache root: %v", err)
	}
	return cache
}

// emptyPath makes LookPath deterministic by pointing PATH at an empty
// directory.
func emptyPath(t *testing.T) {
	t.Helper()
	t.Setenv("PATH", t.TempDir())
}

func detectPlatform(t *testing.T) platform.Descriptor {
	t.Helper()
	plat, err := platform.Detect()
	if err != nil {
		t.Skipf("unsupported test platform: %v", err)
	}
	return plat
}

// resetFlags restores the package-level flag values when the test finishes.
func resetFlags(t *testing.T) {
	t.Helper()
	saved := []struct {
		p   *bool
		val bool
	}{
		{&verbose, verbose},
		{&outputJSON, outputJSON},
		{&noProgress, noProgress},
		{&noUpdateCheck, noUpdateCheck},
		{&useSystem, useSystem},
		{&forceDownload, forceDownload},
		{&cleanDryRun, cleanDryRun},
		{&cleanAll, cleanAll},
	}
	t.Cleanup(func() {
		for _, s := range saved {
			*s.p = s.val
		}
	})
}

// execToolbelt runs the root command with the given arguments and captures
// its output streams.
func execToolbelt(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(t)

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(bytes.NewReader(nil))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// pointReleaseClient aims all release lookups at a test server for the
// duration of the test.
func pointReleaseClient(t *testing.T, baseURL string) {
	t.Helper()
	orig := newReleaseClient
	newReleaseClient = func() *github.Client {
		c := github.NewClient()
		c.BaseURL = baseURL
		return c
	}
	t.Cleanup(func() { newReleaseClient = orig })
}

func seedBinary(t *testing.T, cacheRoot, name, content string) string {
	t.Helper()
	plat := detectPlatform(t)
	path := filepath.Join(cacheRoot, plat.BinaryName(name))
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("seed binary %s: %v", name, err)
	}
	return path
}

func seedManifestEntry(t *testing.T, cacheRoot, name, version string) {
	t.Helper()
	m, err := download.LoadManifest(cacheRoot)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if m.Entries == nil {
		m.Entries = map[string]download.ManifestEntry{}
	}
	m.Entries[name] = download.ManifestEntry{Tool: name, Version: version}
	if err := download.SaveManifest(cacheRoot, m); err != nil {
		t.Fatalf("save manifest: %v", err)
	}
}

func tarGzBytes(t *testing.T, member, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	header := &tar.Header{Name: member, Mode: 0o755, Size: int64(len(content)), Typeflag: tar.TypeReg}
	if err := tw.WriteHeader(header); err != nil {
		t.Fatalf("write tar header: %v", err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatalf("write tar entry: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func zipBytes(t *testing.T, member, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	header := &zip.FileHeader{Name: member, Method: zip.Deflate}
	header.SetMode(0o755)
	w, err := zw.CreateHeader(header)
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// archiveBytes packs content in the archive format the platform's release
// assets use.
func archiveBytes(t *testing.T, plat platform.Descriptor, member, content string) []byte {
	t.Helper()
	if plat.ArchiveExt == ".zip" {
		return zipBytes(t, member, content)
	}
	return tarGzBytes(t, member, content)
}

// newToolServer serves one release of the default repository carrying an
// archive per named tool, each packing the given content as the binary.
func newToolServer(t *testing.T, tag string, toolContents map[string]string) *httptest.Server {
	t.Helper()
	plat := detectPlatform(t)

	assets := map[string][]byte{}
	for name, content := range toolContents {
		assets[plat.AssetName(name)] = archiveBytes(t, plat, plat.BinaryName(name), content)
	}

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name, ok := strings.CutPrefix(r.URL.Path, "/assets/"); ok {
			payload, exists := assets[name]
			if !exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
			_, _ = w.Write(payload)
			return
		}

		switch r.URL.Path {
		case "/repos/toolbelt-dev/toolbelt/releases/latest":
			writeTestRelease(t, w, srv.URL, tag, assets)
		case "/repos/toolbelt-dev/toolbelt/releases":
			fmt.Fprint(w, "[")
			writeTestRelease(t, w, srv.URL, tag, assets)
			fmt.Fprint(w, "]")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// failingServer answers every release query with a server error.
func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTestRelease(t *testing.T, w io.Writer, baseURL, tag string, assets map[string][]byte) {
	t.Helper()
	release := github.Release{TagName: tag}
	for name, payload := range assets {
		release.Assets = append(release.Assets, github.Asset{
			Name:               name,
			BrowserDownloadURL: baseURL + "/assets/" + name,
			Size:               int64(len(payload)),
		})
	}
	if err := json.NewEncoder(w).Encode(release); err != nil {
		t.Fatalf("encode release: %v", err)
	}
}

// lineWith returns the first output line containing substr.
func lineWith(t *testing.T, out, substr string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, substr) {
			return line
		}
	}
	t.Fatalf("no line contains %q in:\n%s", substr, out)
	return ""
}
