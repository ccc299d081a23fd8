package download

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"toolbelt/internal/checksum"
	"toolbelt/internal/github"
	"toolbelt/internal/platform"
)

var linuxPlat = platform.Descriptor{OS: "linux", Arch: "x86_64", ArchiveExt: ".tar.gz"}

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

// releaseServer serves a single fake release plus its asset payloads and
// counts every request it answers.
type releaseServer struct {
	srv      *httptest.Server
	requests int64
}

func newReleaseServer(t *testing.T, tag string, assets map[string][]byte) *releaseServer {
	t.Helper()
	rs := &releaseServer{}

	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&rs.requests, 1)

		if name, ok := assetPath(r.URL.Path); ok {
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
		case "/repos/o/r/releases/latest":
			writeReleaseJSON(t, w, rs.URL(), tag, assets)
		case "/repos/o/r/releases":
			fmt.Fprint(w, "[")
			writeReleaseJSON(t, w, rs.URL(), tag, assets)
			fmt.Fprint(w, "]")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *releaseServer) URL() string { return rs.srv.URL }

func (rs *releaseServer) Client() *http.Client { return rs.srv.Client() }

func (rs *releaseServer) count() int64 { return atomic.LoadInt64(&rs.requests) }

func assetPath(path string) (string, bool) {
	const prefix = "/assets/"
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return path[len(prefix):], true
	}
	return "", false
}

func writeReleaseJSON(t *testing.T, w http.ResponseWriter, baseURL, tag string, assets map[string][]byte) {
	type assetJSON struct {
		Name string `json:"name"`
		URL  string `json:"browser_download_url"`
		Size int64  `json:"size"`
	}
	type releaseJSON struct {
		TagName string      `json:"tag_name"`
		Assets  []assetJSON `json:"assets"`
	}

	release := releaseJSON{TagName: tag}
	for name, payload := range assets {
		release.Assets = append(release.Assets, assetJSON{
			Name: name,
			URL:  baseURL + "/assets/" + name,
			Size: int64(len(payload)),
		})
	}
	if err := json.NewEncoder(w).Encode(release); err != nil {
		t.Errorf("encode release: %v", err)
	}
}

func newTestDownloader(rs *releaseServer, cacheRoot string) *Downloader {
	client := github.NewClient()
	client.BaseURL = rs.URL()
	client.HTTPClient = rs.Client()

	d := New(client, "o", "r", cacheRoot)
	d.HTTPClient = rs.Client()
	return d
}

func cacheEntries(t *testing.T, cacheRoot string) []string {
	t.Helper()
	entries, err := os.ReadDir(cacheRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read cache root: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestEnsureBinaryInstallsThenHitsCache(t *testing.T) {
	payload := tarGzBytes(t, "scout", "#!/bin/sh\necho scout\n")
	rs := newReleaseServer(t, "v1.2.0", map[string][]byte{
		"scout-linux-x86_64.tar.gz": payload,
	})

	cacheRoot := filepath.Join(t.TempDir(), "bin")
	d := newTestDownloader(rs, cacheRoot)

	var states []State
	d.OnState = func(s State, _ string) { states = append(states, s) }

	path, err := d.EnsureBinary(context.Background(), "scout", linuxPlat, Options{})
	if err != nil {
		t.Fatalf("EnsureBinary returned error: %v", err)
	}
	if path != filepath.Join(cacheRoot, "scout") {
		t.Fatalf("installed path = %q", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read installed binary: %v", err)
	}
	if string(content) != "#!/bin/sh\necho scout\n" {
		t.Fatalf("installed content = %q", content)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat installed binary: %v", err)
		}
		if info.Mode().Perm() != 0o755 {
			t.Fatalf("installed mode = %v, want 0755", info.Mode().Perm())
		}
	}

	wantStates := []State{StateResolving, StateDownloading, StateVerifying, StateExtracting, StateInstalled}
	if len(states) != len(wantStates) {
		t.Fatalf("states = %v, want %v", states, wantStates)
	}
	for i, s := range wantStates {
		if states[i] != s {
			t.Fatalf("states = %v, want %v", states, wantStates)
		}
	}

	// The archive must be gone; only the binary and manifest remain.
	for _, name := range cacheEntries(t, cacheRoot) {
		if name != "scout" && name != manifestFileName {
			t.Fatalf("unexpected leftover %q in cache root", name)
		}
	}

	requestsAfterInstall := rs.count()
	states = nil

	again, err := d.EnsureBinary(context.Background(), "scout", linuxPlat, Options{})
	if err != nil {
		t.Fatalf("second EnsureBinary returned error: %v", err)
	}
	if again != path {
		t.Fatalf("second path = %q, want %q", again, path)
	}
	if rs.count() != requestsAfterInstall {
		t.Fatalf("cache hit performed %d extra requests", rs.count()-requestsAfterInstall)
	}
	if len(states) != 1 || states[0] != StateCached {
		t.Fatalf("cache hit states = %v, want [cached]", states)
	}
}

func TestEnsureBinaryForceRefreshes(t *testing.T) {
	payload := tarGzBytes(t, "gauge", "v1")
	rs := newReleaseServer(t, "v1.0.0", map[string][]byte{
		"gauge-linux-x86_64.tar.gz": payload,
	})

	cacheRoot := filepath.Join(t.TempDir(), "bin")
	d := newTestDownloader(rs, cacheRoot)

	if _, err := d.EnsureBinary(context.Background(), "gauge", linuxPlat, Options{}); err != nil {
		t.Fatalf("install: %v", err)
	}
	before := rs.count()

	if _, err := d.EnsureBinary(context.Background(), "gauge", linuxPlat, Options{Force: true}); err != nil {
		t.Fatalf("forced refresh: %v", err)
	}
	if rs.count() == before {
		t.Fatal("forced refresh performed no network requests")
	}
}

func TestEnsureBinaryChecksumMismatchLeavesNoPartials(t *testing.T) {
	payload := tarGzBytes(t, "scout", "payload")
	rs := newReleaseServer(t, "v1.0.0", map[string][]byte{
		"scout-linux-x86_64.tar.gz": payload,
	})

	cacheRoot := filepath.Join(t.TempDir(), "bin")
	d := newTestDownloader(rs, cacheRoot)

	_, err := d.EnsureBinary(context.Background(), "scout", linuxPlat, Options{
		ExpectedChecksum: "deadbeef" + hex.EncodeToString(bytes.Repeat([]byte{0}, 28)),
	})
	var mismatch *checksum.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want MismatchError", err)
	}

	if leftovers := cacheEntries(t, cacheRoot); len(leftovers) != 0 {
		t.Fatalf("cache root not clean after abort: %v", leftovers)
	}
}

func TestEnsureBinaryChecksumAccepted(t *testing.T) {
	payload := tarGzBytes(t, "scout", "payload")
	sum := sha256.Sum256(payload)
	rs := newReleaseServer(t, "v1.0.0", map[string][]byte{
		"scout-linux-x86_64.tar.gz": payload,
	})

	d := newTestDownloader(rs, filepath.Join(t.TempDir(), "bin"))

	if _, err := d.EnsureBinary(context.Background(), "scout", linuxPlat, Options{
		ExpectedChecksum: hex.EncodeToString(sum[:]),
	}); err != nil {
		t.Fatalf("EnsureBinary returned error: %v", err)
	}
}

func TestEnsureBinaryNoMatchingAsset(t *testing.T) {
	rs := newReleaseServer(t, "v1.0.0", map[string][]byte{
		"scout-linux-x86_64.tar.gz": tarGzBytes(t, "scout", "posix only"),
	})

	d := newTestDownloader(rs, filepath.Join(t.TempDir(), "bin"))

	winPlat := platform.Descriptor{OS: "windows", Arch: "x86_64", BinaryExt: ".exe", ArchiveExt: ".zip"}
	_, err := d.EnsureBinary(context.Background(), "scout", winPlat, Options{})
	if !errors.Is(err, github.ErrNoMatchingAsset) {
		t.Fatalf("err = %v, want ErrNoMatchingAsset", err)
	}
}

func TestEnsureBinaryProgressMonotonic(t *testing.T) {
	content := bytes.Repeat([]byte("scout payload "), 16*1024) // forces several chunks
	payload := tarGzBytes(t, "scout", string(content))
	rs := newReleaseServer(t, "v1.0.0", map[string][]byte{
		"scout-linux-x86_64.tar.gz": payload,
	})

	d := newTestDownloader(rs, filepath.Join(t.TempDir(), "bin"))

	var writtens []int64
	var totals []int64
	opts := Options{Progress: func(written, total int64) {
		writtens = append(writtens, written)
		totals = append(totals, total)
	}}

	if _, err := d.EnsureBinary(context.Background(), "scout", linuxPlat, opts); err != nil {
		t.Fatalf("EnsureBinary returned error: %v", err)
	}
	if len(writtens) == 0 {
		t.Fatal("progress callback never invoked")
	}
	for i := 1; i < len(writtens); i++ {
		if writtens[i] < writtens[i-1] {
			t.Fatalf("written regressed: %d after %d", writtens[i], writtens[i-1])
		}
	}
	want := int64(len(payload))
	if writtens[len(writtens)-1] != want {
		t.Fatalf("final written = %d, want %d", writtens[len(writtens)-1], want)
	}
	for _, total := range totals {
		if total != want {
			t.Fatalf("total = %d, want content length %d", total, want)
		}
	}
}

func TestEnsureBinaryCancellationCleansUp(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 512*1024)
	payload := tarGzBytes(t, "scout", string(content))
	rs := newReleaseServer(t, "v1.0.0", map[string][]byte{
		"scout-linux-x86_64.tar.gz": payload,
	})

	cacheRoot := filepath.Join(t.TempDir(), "bin")
	d := newTestDownloader(rs, cacheRoot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := Options{Progress: func(written, total int64) {
		cancel() // abort as soon as the first chunk lands
	}}

	_, err := d.EnsureBinary(ctx, "scout", linuxPlat, opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if leftovers := cacheEntries(t, cacheRoot); len(leftovers) != 0 {
		t.Fatalf("cache root not clean after cancellation: %v", leftovers)
	}
}

func TestEnsureBinaryConcurrentForcedRefresh(t *testing.T) {
	payload := tarGzBytes(t, "scout", "#!/bin/sh\necho scout\n")
	rs := newReleaseServer(t, "v1.0.0", map[string][]byte{
		"scout-linux-x86_64.tar.gz": payload,
	})

	cacheRoot := filepath.Join(t.TempDir(), "bin")
	d := newTestDownloader(rs, cacheRoot)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = d.EnsureBinary(context.Background(), "scout", linuxPlat, Options{Force: true})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent refresh %d failed: %v", i, err)
		}
	}

	content, err := os.ReadFile(filepath.Join(cacheRoot, "scout"))
	if err != nil {
		t.Fatalf("read installed binary: %v", err)
	}
	if string(content) != "#!/bin/sh\necho scout\n" {
		t.Fatalf("installed content corrupted: %q", content)
	}
}

func TestEnsureBinarySignatureRequiredAndVerified(t *testing.T) {
	payload := tarGzBytes(t, "scout", "signed payload")

	entity, err := openpgp.NewEntity("Release Signer", "", "releases@example.invalid", nil)
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	var sig bytes.Buffer
	if err := openpgp.DetachSign(&sig, entity, bytes.NewReader(payload), nil); err != nil {
		t.Fatalf("sign payload: %v", err)
	}
	var pub bytes.Buffer
	armored, err := armor.Encode(&pub, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor keyring: %v", err)
	}
	if err := entity.Serialize(armored); err != nil {
		t.Fatalf("serialize key: %v", err)
	}
	if err := armored.Close(); err != nil {
		t.Fatalf("close armor: %v", err)
	}
	keyringPath := filepath.Join(t.TempDir(), "trusted.asc")
	if err := os.WriteFile(keyringPath, pub.Bytes(), 0o644); err != nil {
		t.Fatalf("write keyring: %v", err)
	}

	rs := newReleaseServer(t, "v1.0.0", map[string][]byte{
		"scout-linux-x86_64.tar.gz":     payload,
		"scout-linux-x86_64.tar.gz.sig": sig.Bytes(),
	})

	d := newTestDownloader(rs, filepath.Join(t.TempDir(), "bin"))

	if _, err := d.EnsureBinary(context.Background(), "scout", linuxPlat, Options{KeyringPath: keyringPath}); err != nil {
		t.Fatalf("EnsureBinary with signature returned error: %v", err)
	}

	// A release without a signature must be rejected once a keyring is set.
	unsigned := newReleaseServer(t, "v1.0.1", map[string][]byte{
		"scout-linux-x86_64.tar.gz": payload,
	})
	d2 := newTestDownloader(unsigned, filepath.Join(t.TempDir(), "bin"))
	if _, err := d2.EnsureBinary(context.Background(), "scout", linuxPlat, Options{KeyringPath: keyringPath}); err == nil {
		t.Fatal("expected unsigned release to be rejected")
	}
}

func TestInstalledVersionFromManifest(t *testing.T) {
	payload := tarGzBytes(t, "scout", "payload")
	rs := newReleaseServer(t, "v2.3.4", map[string][]byte{
		"scout-linux-x86_64.tar.gz": payload,
	})

	cacheRoot := filepath.Join(t.TempDir(), "bin")
	d := newTestDownloader(rs, cacheRoot)

	if _, err := d.EnsureBinary(context.Background(), "scout", linuxPlat, Options{}); err != nil {
		t.Fatalf("EnsureBinary returned error: %v", err)
	}

	if got := d.InstalledVersion("scout"); got != "v2.3.4" {
		t.Fatalf("InstalledVersion = %q, want v2.3.4", got)
	}
	if got := d.InstalledVersion("gauge"); got != "" {
		t.Fatalf("InstalledVersion for uninstalled tool = %q, want empty", got)
	}

	manifest, err := LoadManifest(cacheRoot)
	if err != nil {
		t.Fatalf("LoadManifest returned error: %v", err)
	}
	entry := manifest.Entries["scout"]
	if entry.Checksum == "" || entry.InstalledAt == "" {
		t.Fatalf("manifest entry incomplete: %+v", entry)
	}
}

func TestCleanTransients(t *testing.T) {
	cacheRoot := t.TempDir()

	stale := []string{
		"download-12345.tmp",
		"extract-99999.tmp",
		"scout-linux-x86_64.tar.gz",
		"scout-linux-x86_64.tar.gz.sig",
	}
	keep := []string{"scout", "gauge", manifestFileName}
	for _, name := range append(append([]string{}, stale...), keep...) {
		if err := os.WriteFile(filepath.Join(cacheRoot, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	removed, err := CleanTransients(cacheRoot)
	if err != nil {
		t.Fatalf("CleanTransients returned error: %v", err)
	}
	if removed != len(stale) {
		t.Fatalf("removed %d files, want %d", removed, len(stale))
	}
	for _, name := range keep {
		if _, err := os.Stat(filepath.Join(cacheRoot, name)); err != nil {
			t.Fatalf("kept file %s missing: %v", name, err)
		}
	}
}
