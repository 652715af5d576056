package models

import (
	"gorm.io/gorm"
)

// ConnectionKind identifies the flavour of external catalog service.
type ConnectionKind string

const (
	// KindCatalogMovie is a movie catalog (Radarr-style API).
	KindCatalogMovie ConnectionKind = "catalog-movie"
	// KindCatalogSeries is a series catalog (Sonarr-style API).
	KindCatalogSeries ConnectionKind = "catalog-series"
	// KindSceneLibrary is a scene library; sync is not implemented yet.
	KindSceneLibrary ConnectionKind = "scene-library"
)

// Valid returns true if the kind is known.
func (k ConnectionKind) Valid() bool {
	switch k {
	case KindCatalogMovie, KindCatalogSeries, KindSceneLibrary:
		return true
	}
	return false
}

// ExternalConnection is a configured catalog service instance.
// The API key is stored encrypted and never leaves the process in cleartext;
// API responses carry only a ****last4 preview.
type ExternalConnection struct {
	BaseModel

	// Name labels the connection for display.
	Name string `gorm:"not null;size:255" json:"name"`

	// Kind selects the service flavour.
	Kind ConnectionKind `gorm:"not null;size:20;index" json:"kind"`

	// BaseURL is the service root, without the /api/v3 suffix.
	BaseURL string `gorm:"not null;size:1024" json:"base_url"`

	// APIKeyEncrypted is the AEAD-encrypted API key. Excluded from JSON;
	// handlers expose MaskedKey() instead.
	APIKeyEncrypted string `gorm:"size:1024" json:"-" masq:"secret"`

	// Enabled controls whether sync and webhooks act on this connection.
	Enabled *bool `gorm:"default:true" json:"enabled"`

	// LastTested and LastSynced are stamped by the respective operations.
	LastTested *Time `json:"last_tested,omitempty"`
	LastSynced *Time `json:"last_synced,omitempty"`
}

// TableName returns the table name for ExternalConnection.
func (ExternalConnection) TableName() string {
	return "external_connections"
}

// IsEnabled returns the effective enabled flag.
func (c *ExternalConnection) IsEnabled() bool {
	return BoolVal(c.Enabled)
}

// Validate performs basic validation on the connection.
func (c *ExternalConnection) Validate() error {
	if c.Name == "" {
		return ErrNameRequired
	}
	if !c.Kind.Valid() {
		return ErrInvalidConnectionKind
	}
	if c.BaseURL == "" {
		return ErrBaseURLRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the connection and generates a ULID.
func (c *ExternalConnection) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return c.Validate()
}

// BeforeUpdate is a GORM hook that validates the connection before update.
func (c *ExternalConnection) BeforeUpdate(tx *gorm.DB) error {
	return c.Validate()
}
