package models

import (
	"gorm.io/gorm"
)

// ScanRoot is a directory the scanner is allowed to enumerate.
type ScanRoot struct {
	BaseModel

	// Path is the absolute directory path.
	Path string `gorm:"not null;uniqueIndex;size:1024" json:"path"`

	// ProfileID links the encoding recipe applied to discovered files.
	ProfileID ULID `gorm:"not null;type:varchar(26);index" json:"profile_id"`

	// ExternalConnectionID optionally links the catalog service that manages
	// this library, so pushed download events can be routed here.
	ExternalConnectionID ULID `gorm:"type:varchar(26);index" json:"external_connection_id,omitempty"`

	// LibraryType is a free-form tag, e.g. "movies", "series", "custom".
	LibraryType string `gorm:"size:50;default:'custom'" json:"library_type"`

	// Recursive controls whether subdirectories are enumerated.
	Recursive *bool `gorm:"default:true" json:"recursive"`

	// Enabled controls whether the root participates in scans.
	Enabled *bool `gorm:"default:true" json:"enabled"`

	// Upscale policy: when enabled, files whose height is below
	// UpscaleTriggerBelow get an upscale plan targeting UpscaleTargetHeight.
	UpscaleEnabled      bool   `gorm:"default:false" json:"upscale_enabled"`
	UpscaleTriggerBelow int    `gorm:"default:720" json:"upscale_trigger_below"`
	UpscaleTargetHeight int    `gorm:"default:1080" json:"upscale_target_height"`
	UpscaleKey          string `gorm:"size:50;default:'realesrgan'" json:"upscale_key"`
	UpscaleModel        string `gorm:"size:100;default:'realesrgan-x4plus'" json:"upscale_model"`
	UpscaleFactor       int    `gorm:"default:2" json:"upscale_factor"`

	// LastScanned is stamped after each completed scan of this root.
	LastScanned *Time `json:"last_scanned,omitempty"`
}

// TableName returns the table name for ScanRoot.
func (ScanRoot) TableName() string {
	return "scan_roots"
}

// IsEnabled returns the effective enabled flag.
func (r *ScanRoot) IsEnabled() bool {
	return BoolVal(r.Enabled)
}

// IsRecursive returns the effective recursive flag.
func (r *ScanRoot) IsRecursive() bool {
	return BoolVal(r.Recursive)
}

// Validate performs basic validation on the scan root.
func (r *ScanRoot) Validate() error {
	if r.Path == "" {
		return ErrPathRequired
	}
	if r.ProfileID.IsZero() {
		return ErrProfileRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the root and generates a ULID.
func (r *ScanRoot) BeforeCreate(tx *gorm.DB) error {
	if err := r.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return r.Validate()
}

// BeforeUpdate is a GORM hook that validates the root before update.
func (r *ScanRoot) BeforeUpdate(tx *gorm.DB) error {
	return r.Validate()
}
