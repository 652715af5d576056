package models

import (
	"strings"

	"gorm.io/gorm"
)

// DefaultVideoExtensions is the allowlist applied to new watches and scans.
// Extensions are stored lowercased with the leading dot.
var DefaultVideoExtensions = []string{
	".mkv", ".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm",
	".m4v", ".ts", ".mpg", ".mpeg", ".m2ts", ".vob",
}

// FolderWatch is a directory polled for newly appearing media files.
// The watcher owns an in-memory known-files set per watch; only files that
// appear after the initial seeding pass get queued.
type FolderWatch struct {
	BaseModel

	// Path is the watched directory.
	Path string `gorm:"not null;uniqueIndex;size:1024" json:"path"`

	// ProfileID is the encoding recipe applied to queued files.
	ProfileID ULID `gorm:"not null;type:varchar(26);index" json:"profile_id"`

	// Enabled controls whether the watcher polls this path.
	Enabled *bool `gorm:"default:true" json:"enabled"`

	// Recursive controls whether subdirectories are enumerated.
	Recursive *bool `gorm:"default:true" json:"recursive"`

	// AutoQueue controls whether detected files are queued automatically.
	AutoQueue *bool `gorm:"default:true" json:"auto_queue"`

	// Extensions is a comma-separated allowlist, e.g. ".mkv,.mp4".
	// Empty uses DefaultVideoExtensions.
	Extensions string `gorm:"size:255" json:"extensions,omitempty"`

	// LastCheck is stamped after each poll of this watch.
	LastCheck *Time `json:"last_check,omitempty"`
}

// TableName returns the table name for FolderWatch.
func (FolderWatch) TableName() string {
	return "folder_watches"
}

// IsEnabled returns the effective enabled flag.
func (w *FolderWatch) IsEnabled() bool {
	return BoolVal(w.Enabled)
}

// IsRecursive returns the effective recursive flag.
func (w *FolderWatch) IsRecursive() bool {
	return BoolVal(w.Recursive)
}

// ShouldAutoQueue returns the effective auto-queue flag.
func (w *FolderWatch) ShouldAutoQueue() bool {
	return BoolVal(w.AutoQueue)
}

// ExtensionSet returns the lowercased extension allowlist for this watch.
func (w *FolderWatch) ExtensionSet() map[string]bool {
	set := make(map[string]bool)
	if strings.TrimSpace(w.Extensions) == "" {
		for _, ext := range DefaultVideoExtensions {
			set[ext] = true
		}
		return set
	}
	for _, ext := range strings.Split(w.Extensions, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// Validate performs basic validation on the watch.
func (w *FolderWatch) Validate() error {
	if w.Path == "" {
		return ErrPathRequired
	}
	if w.ProfileID.IsZero() {
		return ErrProfileRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the watch and generates a ULID.
func (w *FolderWatch) BeforeCreate(tx *gorm.DB) error {
	if err := w.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return w.Validate()
}

// BeforeUpdate is a GORM hook that validates the watch before update.
func (w *FolderWatch) BeforeUpdate(tx *gorm.DB) error {
	return w.Validate()
}
