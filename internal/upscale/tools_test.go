package upscale

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectAsset(t *testing.T) {
	assets := []ReleaseAsset{
		{Name: "realesrgan-ncnn-vulkan-20220424-windows.zip"},
		{Name: "realesrgan-ncnn-vulkan-20220424-ubuntu.zip"},
		{Name: "realesrgan-ncnn-vulkan-20220424-macos.zip"},
		{Name: "Source code (tar.gz)"},
	}

	asset, ok := SelectAsset(assets, "linux")
	require.True(t, ok)
	assert.Contains(t, asset.Name, "ubuntu")

	asset, ok = SelectAsset(assets, "windows")
	require.True(t, ok)
	assert.Contains(t, asset.Name, "windows")

	asset, ok = SelectAsset(assets, "darwin")
	require.True(t, ok)
	assert.Contains(t, asset.Name, "macos")

	_, ok = SelectAsset(assets, "plan9")
	assert.False(t, ok)

	// linux falls back to a plain "linux" name when no ubuntu build exists
	asset, ok = SelectAsset([]ReleaseAsset{{Name: "tool-linux-x64.zip"}}, "linux")
	require.True(t, ok)
	assert.Equal(t, "tool-linux-x64.zip", asset.Name)

	// Non-zip assets never match
	_, ok = SelectAsset([]ReleaseAsset{{Name: "tool-linux.tar.gz"}}, "linux")
	assert.False(t, ok)
}

func TestToolManager_StateRoundtrip(t *testing.T) {
	dir := t.TempDir()
	m, err := NewToolManager(dir, nil)
	require.NoError(t, err)

	binary := filepath.Join(dir, "realesrgan", "realesrgan-ncnn-vulkan")
	require.NoError(t, os.MkdirAll(filepath.Dir(binary), 0o755))
	require.NoError(t, os.WriteFile(binary, []byte("bin"), 0o755))

	m.mu.Lock()
	m.state["realesrgan"] = InstalledTool{Key: "realesrgan", Version: "v0.2.0", Path: binary}
	require.NoError(t, m.saveState())
	m.mu.Unlock()

	// A fresh manager over the same directory sees the install
	reloaded, err := NewToolManager(dir, nil)
	require.NoError(t, err)
	entry, ok := reloaded.Installed("realesrgan")
	require.True(t, ok)
	assert.Equal(t, "v0.2.0", entry.Version)
	assert.Equal(t, binary, entry.Path)

	path, err := reloaded.BinaryPath("realesrgan")
	require.NoError(t, err)
	assert.Equal(t, binary, path)

	// Entries whose binary vanished are not reported
	require.NoError(t, os.Remove(binary))
	_, ok = reloaded.Installed("realesrgan")
	assert.False(t, ok)
}

func TestToolManager_BinaryPathErrors(t *testing.T) {
	m, err := NewToolManager(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = m.BinaryPath("not-an-upscaler")
	assert.ErrorContains(t, err, "unknown upscaler")

	// Nothing managed and nothing on PATH
	t.Setenv("PATH", t.TempDir())
	_, err = m.BinaryPath("waifu2x")
	assert.ErrorContains(t, err, "not installed")
}

func TestToolManager_LatestReleaseCached(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/repos/xinntao/Real-ESRGAN/releases/latest", r.URL.Path)
		fmt.Fprint(w, `{"tag_name":"v0.2.5","assets":[{"name":"realesrgan-ubuntu.zip","browser_download_url":"http://example.invalid/a.zip"}]}`)
	}))
	defer server.Close()

	m, err := NewToolManager(t.TempDir(), nil)
	require.NoError(t, err)
	m.apiBase = server.URL

	ctx := context.Background()
	release, err := m.LatestRelease(ctx, "realesrgan")
	require.NoError(t, err)
	assert.Equal(t, "v0.2.5", release.TagName)
	require.Len(t, release.Assets, 1)

	_, err = m.LatestRelease(ctx, "realesrgan")
	require.NoError(t, err)
	assert.Equal(t, 1, requests, "second lookup must hit the cache")
}

func TestToolManager_Install(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("asset naming covered for unix platforms")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("realesrgan-ncnn-vulkan-20220424/realesrgan-ncnn-vulkan")
	require.NoError(t, err)
	_, err = f.Write([]byte("fake upscaler binary"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/repos/xinntao/Real-ESRGAN/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name":"v0.2.5","assets":[{"name":"realesrgan-ubuntu.zip","browser_download_url":"%s/download/realesrgan-ubuntu.zip"},{"name":"realesrgan-macos.zip","browser_download_url":"%s/download/realesrgan-ubuntu.zip"}]}`, server.URL, server.URL)
	})
	mux.HandleFunc("/download/realesrgan-ubuntu.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	})

	dir := t.TempDir()
	m, err := NewToolManager(dir, nil)
	require.NoError(t, err)
	m.apiBase = server.URL

	entry, err := m.Install(context.Background(), "realesrgan")
	require.NoError(t, err)
	assert.Equal(t, "v0.2.5", entry.Version)

	info, err := os.Stat(entry.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	data, err := os.ReadFile(entry.Path)
	require.NoError(t, err)
	assert.Equal(t, "fake upscaler binary", string(data))

	// State survives a reload
	reloaded, err := NewToolManager(dir, nil)
	require.NoError(t, err)
	got, ok := reloaded.Installed("realesrgan")
	require.True(t, ok)
	assert.Equal(t, entry.Path, got.Path)
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	m, err := NewToolManager(dir, nil)
	require.NoError(t, err)

	binary := filepath.Join(dir, "realcugan", "realcugan-ncnn-vulkan")
	require.NoError(t, os.MkdirAll(filepath.Dir(binary), 0o755))
	require.NoError(t, os.WriteFile(binary, []byte("bin"), 0o755))
	m.mu.Lock()
	m.state["realcugan"] = InstalledTool{Key: "realcugan", Version: "v1", Path: binary}
	m.mu.Unlock()

	t.Setenv("PATH", t.TempDir())
	results := Detect(m)
	require.Len(t, results, len(Definitions))

	byKey := make(map[string]DetectResult, len(results))
	for _, r := range results {
		byKey[r.Key] = r
	}
	assert.True(t, byKey["realcugan"].Installed)
	assert.Equal(t, "v1", byKey["realcugan"].Version)
	assert.False(t, byKey["realesrgan"].Installed)
	assert.False(t, byKey["waifu2x"].Installed)
}
