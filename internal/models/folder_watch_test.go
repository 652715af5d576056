package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFolderWatch_ExtensionSet(t *testing.T) {
	w := &FolderWatch{Path: "/media", ProfileID: NewULID()}

	// Empty uses the default allowlist
	set := w.ExtensionSet()
	assert.True(t, set[".mkv"])
	assert.True(t, set[".mp4"])
	assert.True(t, set[".m2ts"])
	assert.False(t, set[".txt"])

	// Custom list is normalised: lowercased, dotted, trimmed
	w.Extensions = "MKV, .mp4 ,webm"
	set = w.ExtensionSet()
	assert.Equal(t, map[string]bool{".mkv": true, ".mp4": true, ".webm": true}, set)
}

func TestFolderWatch_Flags(t *testing.T) {
	w := &FolderWatch{Path: "/media", ProfileID: NewULID()}
	// nil pointers default to true
	assert.True(t, w.IsEnabled())
	assert.True(t, w.IsRecursive())
	assert.True(t, w.ShouldAutoQueue())

	w.Enabled = BoolPtr(false)
	w.AutoQueue = BoolPtr(false)
	assert.False(t, w.IsEnabled())
	assert.False(t, w.ShouldAutoQueue())
}

func TestFolderWatch_Validate(t *testing.T) {
	w := &FolderWatch{Path: "/media", ProfileID: NewULID()}
	assert.NoError(t, w.Validate())

	w.Path = ""
	assert.ErrorIs(t, w.Validate(), ErrPathRequired)

	w = &FolderWatch{Path: "/media"}
	assert.ErrorIs(t, w.Validate(), ErrProfileRequired)
}

func TestExternalConnection_Validate(t *testing.T) {
	c := &ExternalConnection{Name: "radarr", Kind: KindCatalogMovie, BaseURL: "http://localhost:7878"}
	assert.NoError(t, c.Validate())

	c.Kind = "torrent"
	assert.ErrorIs(t, c.Validate(), ErrInvalidConnectionKind)

	c = &ExternalConnection{Kind: KindCatalogSeries, BaseURL: "http://x"}
	assert.ErrorIs(t, c.Validate(), ErrNameRequired)

	c = &ExternalConnection{Name: "sonarr", Kind: KindCatalogSeries}
	assert.ErrorIs(t, c.Validate(), ErrBaseURLRequired)
}
