package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/recodarr/recodarr/internal/models"
	"golang.org/x/sys/unix"
)

// OptimizedSuffix marks our own transcode output while it is in flight.
// Files carrying it are never treated as scan candidates.
const OptimizedSuffix = "_optimized"

// IsCandidate reports whether a path is eligible for queueing: its extension
// is in the allowlist and it is not one of our own outputs.
func IsCandidate(path string, extensions map[string]bool) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !extensions[ext] {
		return false
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return !strings.HasSuffix(stem, OptimizedSuffix)
}

// Enumerate lists candidate files under root in sorted order. With recursive
// false only the top level is listed. Unreadable subdirectories are skipped
// rather than failing the walk.
func Enumerate(root string, recursive bool, extensions map[string]bool) ([]string, error) {
	var paths []string

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", root, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(root, entry.Name())
			if IsCandidate(path, extensions) {
				paths = append(paths, path)
			}
		}
		sort.Strings(paths)
		return paths, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if IsCandidate(path, extensions) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// CheckAccess verifies that the file can be read and its directory written,
// since finalising replaces the file in place.
func CheckAccess(path string) (models.PermissionStatus, string) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return models.PermissionNotFound, fmt.Sprintf("file not found: %s", path)
		}
		return models.PermissionNoRead, err.Error()
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return models.PermissionNoRead, fmt.Sprintf("no read permission: %s", path)
	}
	if err := unix.Access(filepath.Dir(path), unix.W_OK); err != nil {
		return models.PermissionNoWrite, fmt.Sprintf("no write permission on directory: %s", filepath.Dir(path))
	}
	return models.PermissionOK, ""
}
