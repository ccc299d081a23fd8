// Package download installs tool binaries from release archives into the
// local cache.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"toolbelt/internal/archive"
	"toolbelt/internal/checksum"
	"toolbelt/internal/github"
	"toolbelt/internal/platform"
)

// State labels the stages of one acquisition run.
type State string

const (
	StateCached      State = "cached"
	StateResolving   State = "resolving"
	StateDownloading State = "downloading"
	StateVerifying   State = "verifying"
	StateExtracting  State = "extracting"
	StateInstalled   State = "installed"
	StateFailed      State = "failed"
)

// ProgressFunc receives byte counts after every chunk written. written is
// monotonically non-decreasing within one download; total is 0 when the
// size is unknown.
type ProgressFunc func(written, total int64)

// StateFunc observes state transitions. detail is a short human-readable
// note for the stage.
type StateFunc func(state State, detail string)

const copyChunkSize = 32 * 1024

// Downloader resolves, fetches, verifies, and installs tool binaries. The
// cache root is an explicit value; two Downloaders with different roots
// never interfere.
type Downloader struct {
	Releases   *github.Client
	Owner      string
	Repo       string
	CacheRoot  string
	Prerelease bool
	// HTTPClient fetches artifact payloads. Defaults to
	// http.DefaultClient; cancellation comes from the request context.
	HTTPClient *http.Client
	// OnState, when set, is called at every stage transition.
	OnState StateFunc
}

// Options tune one EnsureBinary run.
type Options struct {
	// Force re-runs the full pipeline even when a cached binary exists.
	Force bool
	// ExpectedChecksum, when non-empty, is the required SHA-256 of the
	// downloaded archive (hex, either case).
	ExpectedChecksum string
	// KeyringPath, when non-empty, requires the release to publish a
	// detached signature for the asset and verifies it.
	KeyringPath string
	// Progress observes the archive transfer.
	Progress ProgressFunc
}

// New returns a Downloader for one release repository and cache root.
func New(releases *github.Client, owner, repo, cacheRoot string) *Downloader {
	return &Downloader{
		Releases:  releases,
		Owner:     owner,
		Repo:      repo,
		CacheRoot: cacheRoot,
	}
}

// EnsureBinary makes the named tool available in the cache and returns its
// absolute path. A cache hit short-circuits without touching the network
// unless opts.Force is set. On failure no partial files remain; a
// previously installed binary survives a failed refresh.
func (d *Downloader) EnsureBinary(ctx context.Context, toolName string, plat platform.Descriptor, opts Options) (string, error) {
	finalPath := filepath.Join(d.CacheRoot, plat.BinaryName(toolName))

	if !opts.Force {
		ok, err := isRegularFile(finalPath)
		if err != nil {
			return "", fmt.Errorf("stat cached binary: %w", err)
		}
		if ok {
			d.notify(StateCached, finalPath)
			return finalPath, nil
		}
	}

	if err := os.MkdirAll(d.CacheRoot, 0o755); err != nil {
		return "", fmt.Errorf("prepare cache root: %w", err)
	}

	path, err := d.install(ctx, toolName, plat, finalPath, opts)
	if err != nil {
		d.notify(StateFailed, err.Error())
		return "", err
	}
	return path, nil
}

func (d *Downloader) install(ctx context.Context, toolName string, plat platform.Descriptor, finalPath string, opts Options) (string, error) {
	d.notify(StateResolving, toolName+" "+plat.String())
	release, err := d.latestRelease(ctx)
	if err != nil {
		return "", err
	}
	asset, err := release.FindAsset(plat.AssetName(toolName))
	if err != nil {
		return "", err
	}

	d.notify(StateDownloading, asset.Name+" ("+release.TagName+")")
	// The archive gets a unique name so concurrent refreshes of the same
	// tool never touch each other's files. The asset name stays as the
	// suffix because format detection keys off it.
	archiveFile, err := os.CreateTemp(d.CacheRoot, "download-*-"+asset.Name)
	if err != nil {
		return "", fmt.Errorf("stage archive: %w", err)
	}
	archivePath := archiveFile.Name()
	defer os.Remove(archivePath)
	if err := archiveFile.Close(); err != nil {
		return "", fmt.Errorf("stage archive: %w", err)
	}
	if err := d.fetchArtifact(ctx, asset, archivePath, opts.Progress); err != nil {
		return "", err
	}

	d.notify(StateVerifying, asset.Name)
	if opts.ExpectedChecksum != "" {
		if err := checksum.Verify(archivePath, opts.ExpectedChecksum); err != nil {
			return "", err
		}
	}
	if opts.KeyringPath != "" {
		if err := d.verifyDetachedSignature(ctx, release, asset, archivePath, opts.KeyringPath); err != nil {
			return "", err
		}
	}

	d.notify(StateExtracting, toolName)
	staged, err := os.CreateTemp(d.CacheRoot, "extract-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	stagedPath := staged.Name()
	if err := staged.Close(); err != nil {
		os.Remove(stagedPath)
		return "", fmt.Errorf("close staging file: %w", err)
	}
	if err := archive.ExtractMember(archivePath, toolName, stagedPath, plat); err != nil {
		os.Remove(stagedPath)
		return "", err
	}
	if plat.OS != "windows" {
		if err := os.Chmod(stagedPath, 0o755); err != nil {
			os.Remove(stagedPath)
			return "", fmt.Errorf("mark executable: %w", err)
		}
	}
	if err := os.Rename(stagedPath, finalPath); err != nil {
		os.Remove(stagedPath)
		return "", fmt.Errorf("finalize binary: %w", err)
	}

	d.recordInstall(toolName, release.TagName, finalPath)
	d.notify(StateInstalled, finalPath)
	return finalPath, nil
}

func (d *Downloader) latestRelease(ctx context.Context) (github.Release, error) {
	if d.Prerelease {
		return d.Releases.FirstRelease(ctx, d.Owner, d.Repo)
	}
	return d.Releases.LatestRelease(ctx, d.Owner, d.Repo)
}

// fetchArtifact streams an asset to destPath via a uniquely named temp file
// in the same directory, renaming only after the full body arrived.
func (d *Downloader) fetchArtifact(ctx context.Context, asset github.Asset, destPath string, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.BrowserDownloadURL, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("User-Agent", d.Releases.UserAgent)

	resp, err := d.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", asset.BrowserDownloadURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download %s: unexpected status %s", asset.BrowserDownloadURL, resp.Status)
	}

	// Content-Length wins over the asset's declared size; zero means the
	// total is unknown and progress reporting degrades gracefully.
	total := resp.ContentLength
	if total <= 0 {
		total = asset.Size
	}
	if total < 0 {
		total = 0
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "download-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			os.Remove(tmpPath)
		}
	}()

	if err := copyChunks(ctx, tmp, resp.Body, total, progress); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	keep = true
	return nil
}

func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress ProgressFunc) error {
	buf := make([]byte, copyChunkSize)
	var written int64
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("download canceled: %w", ctx.Err())
		default:
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write temp file: %w", werr)
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read download stream: %w", rerr)
		}
	}
}

// verifyDetachedSignature enforces the configured keyring: the release must
// publish <asset>.sig and the signature must check out.
func (d *Downloader) verifyDetachedSignature(ctx context.Context, release github.Release, asset github.Asset, archivePath, keyringPath string) error {
	sigAsset, err := release.FindAsset(asset.Name + ".sig")
	if err != nil {
		if errors.Is(err, github.ErrNoMatchingAsset) {
			return fmt.Errorf("keyring configured but release %s publishes no signature for %s", release.TagName, asset.Name)
		}
		return err
	}

	sigPath := archivePath + ".sig"
	if err := d.fetchArtifact(ctx, sigAsset, sigPath, nil); err != nil {
		return err
	}
	defer os.Remove(sigPath)

	return checksum.VerifySignature(archivePath, sigPath, keyringPath)
}

func (d *Downloader) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d *Downloader) notify(state State, detail string) {
	if d.OnState != nil {
		d.OnState(state, detail)
	}
}

func isRegularFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
