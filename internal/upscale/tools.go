package upscale

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/renameio/v2"
	gocache "github.com/patrickmn/go-cache"
)

const (
	stateFileName   = "installed.json"
	releaseCacheTTL = time.Hour
	githubAPIBase   = "https://api.github.com"
)

// InstalledTool is one entry of the persisted tool state.
type InstalledTool struct {
	Key         string    `json:"key"`
	Version     string    `json:"version"`
	Path        string    `json:"path"`
	InstalledAt time.Time `json:"installed_at"`
}

// Release is the subset of a GitHub release the manager needs.
type Release struct {
	TagName string         `json:"tag_name"`
	Assets  []ReleaseAsset `json:"assets"`
}

// ReleaseAsset is one downloadable file of a release.
type ReleaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// ToolManager owns the upscaler binary cache: which versions are installed,
// what the latest releases are, and downloads. State survives restarts in a
// JSON file written atomically.
type ToolManager struct {
	dir      string
	apiBase  string
	client   *http.Client
	releases *gocache.Cache
	logger   *slog.Logger

	mu    sync.Mutex
	state map[string]InstalledTool
}

// NewToolManager creates a manager over the given cache directory and loads
// any persisted state. A missing state file starts empty.
func NewToolManager(dir string, logger *slog.Logger) (*ToolManager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tool cache dir: %w", err)
	}
	m := &ToolManager{
		dir:      dir,
		apiBase:  githubAPIBase,
		client:   &http.Client{Timeout: 30 * time.Second},
		releases: gocache.New(releaseCacheTTL, 10*time.Minute),
		logger:   logger.With(slog.String("component", "upscale-tools")),
		state:    make(map[string]InstalledTool),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ToolManager) statePath() string {
	return filepath.Join(m.dir, stateFileName)
}

func (m *ToolManager) load() error {
	data, err := os.ReadFile(m.statePath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading tool state: %w", err)
	}
	if err := json.Unmarshal(data, &m.state); err != nil {
		return fmt.Errorf("parsing tool state: %w", err)
	}
	return nil
}

// saveState persists the installed map. The write is atomic so a crash can
// never leave a truncated state file.
func (m *ToolManager) saveState() error {
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tool state: %w", err)
	}
	if err := renameio.WriteFile(m.statePath(), data, 0o644); err != nil {
		return fmt.Errorf("writing tool state: %w", err)
	}
	return nil
}

// Installed returns the managed install for a key, if any. The entry is
// dropped when its binary has disappeared from disk.
func (m *ToolManager) Installed(key string) (InstalledTool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.state[key]
	if !ok {
		return InstalledTool{}, false
	}
	if _, err := os.Stat(entry.Path); err != nil {
		return InstalledTool{}, false
	}
	return entry, true
}

// BinaryPath resolves the executable for an upscaler key: a managed install
// wins, then a $PATH lookup of the definition's binary name.
func (m *ToolManager) BinaryPath(key string) (string, error) {
	def, ok := Lookup(key)
	if !ok {
		return "", fmt.Errorf("unknown upscaler %q", key)
	}
	if entry, ok := m.Installed(key); ok {
		return entry.Path, nil
	}
	path, err := exec.LookPath(def.Binary)
	if err != nil {
		return "", fmt.Errorf("upscaler %q is not installed: %w", key, err)
	}
	return path, nil
}

// LatestRelease returns the newest GitHub release for an upscaler, cached
// for an hour so repeated UI polls do not hammer the API.
func (m *ToolManager) LatestRelease(ctx context.Context, key string) (*Release, error) {
	def, ok := Lookup(key)
	if !ok {
		return nil, fmt.Errorf("unknown upscaler %q", key)
	}
	if cached, found := m.releases.Get(key); found {
		release := cached.(Release)
		return &release, nil
	}

	url := fmt.Sprintf("%s/repos/%s/releases/latest", m.apiBase, def.Repo)
	var release Release
	fetch := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		resp, err := m.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("release lookup for %s returned %d", def.Repo, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		return json.NewDecoder(resp.Body).Decode(&release)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		return nil, err
	}

	m.releases.Set(key, release, gocache.DefaultExpiration)
	return &release, nil
}

// Install downloads the latest release asset for this platform, extracts the
// binary into the cache, and records the version.
func (m *ToolManager) Install(ctx context.Context, key string) (InstalledTool, error) {
	def, ok := Lookup(key)
	if !ok {
		return InstalledTool{}, fmt.Errorf("unknown upscaler %q", key)
	}
	release, err := m.LatestRelease(ctx, key)
	if err != nil {
		return InstalledTool{}, err
	}
	asset, ok := SelectAsset(release.Assets, runtime.GOOS)
	if !ok {
		return InstalledTool{}, fmt.Errorf("release %s of %s has no asset for %s", release.TagName, def.Repo, runtime.GOOS)
	}

	archive, err := m.download(ctx, asset.BrowserDownloadURL)
	if err != nil {
		return InstalledTool{}, err
	}
	defer os.Remove(archive)

	binPath := filepath.Join(m.dir, key, def.Binary)
	if err := extractBinary(archive, def.Binary, binPath); err != nil {
		return InstalledTool{}, err
	}

	entry := InstalledTool{
		Key:         key,
		Version:     release.TagName,
		Path:        binPath,
		InstalledAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.state[key] = entry
	err = m.saveState()
	m.mu.Unlock()
	if err != nil {
		return InstalledTool{}, err
	}

	m.logger.Info("upscaler installed",
		slog.String("upscaler", key),
		slog.String("version", entry.Version),
		slog.String("path", binPath))
	return entry, nil
}

// download fetches a release asset to a temp file, retrying transient
// failures with exponential backoff.
func (m *ToolManager) download(ctx context.Context, url string) (string, error) {
	tmp, err := os.CreateTemp(m.dir, "download-*.zip")
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	tmp.Close()

	fetch := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := m.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("downloading %s returned %d", url, resp.StatusCode)
		}
		out, err := os.Create(tmp.Name())
		if err != nil {
			return backoff.Permanent(err)
		}
		defer out.Close()
		if _, err := io.Copy(out, resp.Body); err != nil {
			return err
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// CheckUpdates compares installed versions against the latest releases and
// logs when a newer one exists. Nothing is installed automatically.
func (m *ToolManager) CheckUpdates(ctx context.Context) {
	m.mu.Lock()
	entries := make([]InstalledTool, 0, len(m.state))
	for _, entry := range m.state {
		entries = append(entries, entry)
	}
	m.mu.Unlock()

	for _, entry := range entries {
		release, err := m.LatestRelease(ctx, entry.Key)
		if err != nil {
			m.logger.Warn("upscaler update check failed",
				slog.String("upscaler", entry.Key),
				slog.String("error", err.Error()))
			continue
		}
		if release.TagName != entry.Version {
			m.logger.Info("upscaler update available",
				slog.String("upscaler", entry.Key),
				slog.String("installed", entry.Version),
				slog.String("latest", release.TagName))
		}
	}
}

// Run performs periodic update checks until the context is cancelled.
func (m *ToolManager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.CheckUpdates(ctx)
		}
	}
}

// SelectAsset picks the release asset for an OS. Upstream archives name their
// platform inside the filename (ubuntu/linux, windows, macos), always zipped.
func SelectAsset(assets []ReleaseAsset, goos string) (ReleaseAsset, bool) {
	var keywords []string
	switch goos {
	case "linux":
		keywords = []string{"ubuntu", "linux"}
	case "darwin":
		keywords = []string{"macos"}
	case "windows":
		keywords = []string{"windows"}
	default:
		return ReleaseAsset{}, false
	}
	for _, keyword := range keywords {
		for _, asset := range assets {
			name := strings.ToLower(asset.Name)
			if strings.HasSuffix(name, ".zip") && strings.Contains(name, keyword) {
				return asset, true
			}
		}
	}
	return ReleaseAsset{}, false
}

// extractBinary pulls the named executable out of a zip archive and writes
// it atomically with execute permissions.
func extractBinary(archive, binaryName, dest string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if filepath.Base(file.Name) != binaryName {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("opening %s in archive: %w", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("reading %s from archive: %w", file.Name, err)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("creating install dir: %w", err)
		}
		if err := renameio.WriteFile(dest, data, 0o755); err != nil {
			return fmt.Errorf("installing binary: %w", err)
		}
		return nil
	}
	return fmt.Errorf("archive contains no %s", binaryName)
}
