package models

import (
	"gorm.io/gorm"
)

// Setting is a persisted runtime setting, keyed by name. Settings changed
// through the API override the config file defaults without a restart.
type Setting struct {
	BaseModel

	Key   string `gorm:"not null;uniqueIndex;size:100" json:"key"`
	Value string `gorm:"size:4096" json:"value"`
}

// TableName returns the table name for Setting.
func (Setting) TableName() string {
	return "settings"
}

// Validate performs basic validation on the setting.
func (s *Setting) Validate() error {
	if s.Key == "" {
		return ErrValidation{Field: "key", Message: "must not be empty"}
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the setting and generates a ULID.
func (s *Setting) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return s.Validate()
}
