package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SpecsSchemaVersion is the current on-disk schema version for the JSON
// column types below. Rows written before versioning carry no version field
// and are read as version 1.
const SpecsSchemaVersion = 1

// AudioTrack describes one audio stream of a probed file.
type AudioTrack struct {
	Codec      string `json:"codec"`
	Language   string `json:"language,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// MediaSpecs is the probe snapshot stored on a queue item.
// It is serialised as JSON at the persistence boundary only; no other
// component parses the raw column.
type MediaSpecs struct {
	SchemaVersion int          `json:"schema_version"`
	Codec         string       `json:"codec"`
	Resolution    string       `json:"resolution,omitempty"` // "WxH"
	Width         int          `json:"width,omitempty"`
	Height        int          `json:"height,omitempty"`
	Framerate     float64      `json:"framerate,omitempty"`
	DurationSec   float64      `json:"duration_seconds,omitempty"`
	BitRate       int64        `json:"bit_rate,omitempty"`
	AudioTracks   []AudioTrack `json:"audio_tracks,omitempty"`
	// Source records where the specs came from: "probe" or a catalog kind.
	Source string `json:"source,omitempty"`
}

// IsUnknown returns true if probing failed to identify the video codec.
func (m MediaSpecs) IsUnknown() bool {
	return m.Codec == "" || m.Codec == "unknown"
}

// Value implements driver.Valuer.
func (m MediaSpecs) Value() (driver.Value, error) {
	m.SchemaVersion = SpecsSchemaVersion
	return jsonColumnValue(m)
}

// Scan implements sql.Scanner.
func (m *MediaSpecs) Scan(value any) error {
	if err := jsonColumnScan(value, m); err != nil {
		return fmt.Errorf("scanning media specs: %w", err)
	}
	if m.SchemaVersion == 0 {
		m.SchemaVersion = 1
	}
	return nil
}

// TargetSpecs is the encoding target derived from a profile, stored on a
// queue item so the job remains runnable even if the profile changes later.
type TargetSpecs struct {
	SchemaVersion    int    `json:"schema_version"`
	Codec            string `json:"codec"`
	Resolution       string `json:"resolution,omitempty"`
	Container        string `json:"container,omitempty"`
	AudioStrategy    string `json:"audio_strategy,omitempty"`
	SubtitleStrategy string `json:"subtitle_strategy,omitempty"`
}

// Value implements driver.Valuer.
func (t TargetSpecs) Value() (driver.Value, error) {
	t.SchemaVersion = SpecsSchemaVersion
	return jsonColumnValue(t)
}

// Scan implements sql.Scanner.
func (t *TargetSpecs) Scan(value any) error {
	if err := jsonColumnScan(value, t); err != nil {
		return fmt.Errorf("scanning target specs: %w", err)
	}
	if t.SchemaVersion == 0 {
		t.SchemaVersion = 1
	}
	return nil
}

// UpscalePlan describes the optional AI upscale pre-stage for a queue item.
// A nil plan means no upscaling.
type UpscalePlan struct {
	SchemaVersion int    `json:"schema_version"`
	UpscalerKey   string `json:"upscaler_key"`
	Model         string `json:"model"`
	Factor        int    `json:"factor"`
	SourceHeight  int    `json:"source_height"`
	TargetHeight  int    `json:"target_height"`
}

// Value implements driver.Valuer. A nil plan stores NULL.
func (p *UpscalePlan) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	cp := *p
	cp.SchemaVersion = SpecsSchemaVersion
	return jsonColumnValue(cp)
}

// Scan implements sql.Scanner.
func (p *UpscalePlan) Scan(value any) error {
	if value == nil {
		return nil
	}
	if err := jsonColumnScan(value, p); err != nil {
		return fmt.Errorf("scanning upscale plan: %w", err)
	}
	if p.SchemaVersion == 0 {
		p.SchemaVersion = 1
	}
	return nil
}

// GormDataType returns the GORM data type for the JSON columns.
func (MediaSpecs) GormDataType() string   { return "text" }
func (TargetSpecs) GormDataType() string  { return "text" }
func (*UpscalePlan) GormDataType() string { return "text" }

func jsonColumnValue(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding JSON column: %w", err)
	}
	return string(data), nil
}

func jsonColumnScan(value, dst any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	default:
		return fmt.Errorf("unsupported type %T", value)
	}
}
