// Package github resolves release metadata for the tool suite from the
// GitHub releases API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"toolbelt/internal/version"
)

const defaultBaseURL = "https://api.github.com"

var (
	// ErrNoReleases means the repository exists but has published nothing.
	ErrNoReleases = errors.New("no releases found")
	// ErrNoMatchingAsset means the release carries no asset for the
	// requested tool/platform combination.
	ErrNoMatchingAsset = errors.New("no matching asset")
)

// StatusError reports a non-2xx API response that had no fallback.
type StatusError struct {
	URL    string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("release query %s failed: %s", e.URL, e.Status)
}

// Release is the subset of the GitHub release object the launcher needs.
type Release struct {
	TagName     string  `json:"tag_name"`
	Name        string  `json:"name"`
	PublishedAt string  `json:"published_at"`
	Assets      []Asset `json:"assets"`
}

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// Client queries the releases API for one repository host. BaseURL is
// overridable so tests can point it at a local server.
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// NewClient returns a Client with production defaults.
func NewClient() *Client {
	return &Client{
		BaseURL:    defaultBaseURL,
		UserAgent:  "toolbelt/" + strings.TrimPrefix(version.Version, "v"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// LatestRelease returns the newest release of owner/repo. The dedicated
// latest endpoint is tried first; any non-2xx answer falls back to the
// release list, whose first element is the newest. An empty list is
// ErrNoReleases.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (Release, error) {
	base := fmt.Sprintf("%s/repos/%s/%s/releases", c.BaseURL, owner, repo)

	release, err := c.fetchRelease(ctx, base+"/latest")
	if err == nil {
		return release, nil
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return Release{}, err
	}

	// The latest endpoint 404s on repos that only have prereleases; the
	// plain list still serves those, newest first.
	return c.FirstRelease(ctx, owner, repo)
}

// FirstRelease returns the first entry of the release list, which is the
// newest release including prereleases. An empty list is ErrNoReleases.
func (c *Client) FirstRelease(ctx context.Context, owner, repo string) (Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases", c.BaseURL, owner, repo)

	var releases []Release
	if err := c.getJSON(ctx, url, &releases); err != nil {
		return Release{}, err
	}
	if len(releases) == 0 {
		return Release{}, fmt.Errorf("%w for %s/%s", ErrNoReleases, owner, repo)
	}
	if err := validateRelease(releases[0]); err != nil {
		return Release{}, fmt.Errorf("release list for %s/%s: %w", owner, repo, err)
	}
	return releases[0], nil
}

func (c *Client) fetchRelease(ctx context.Context, url string) (Release, error) {
	var release Release
	if err := c.getJSON(ctx, url, &release); err != nil {
		return Release{}, err
	}
	if err := validateRelease(release); err != nil {
		return Release{}, fmt.Errorf("release at %s: %w", url, err)
	}
	return release, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("query %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: url, Status: resp.Status, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode release response from %s: %w", url, err)
	}
	return nil
}

// validateRelease enforces the fields the pipeline cannot work without.
func validateRelease(r Release) error {
	if strings.TrimSpace(r.TagName) == "" {
		return errors.New("release missing tag_name")
	}
	for _, a := range r.Assets {
		if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.BrowserDownloadURL) == "" {
			return fmt.Errorf("release %s has asset missing name or download URL", r.TagName)
		}
	}
	return nil
}

// FindAsset returns the asset whose file name matches exactly.
func (r Release) FindAsset(assetName string) (Asset, error) {
	for _, a := range r.Assets {
		if a.Name == assetName {
			return a, nil
		}
	}
	return Asset{}, fmt.Errorf("%w: %s in release %s", ErrNoMatchingAsset, assetName, r.TagName)
}
