package models

import (
	"gorm.io/gorm"
)

// VideoCodec is a supported target video codec.
type VideoCodec string

const (
	CodecAV1  VideoCodec = "av1"
	CodecH265 VideoCodec = "h265"
	CodecH264 VideoCodec = "h264"
	CodecVP9  VideoCodec = "vp9"
)

// Valid returns true if the codec is a supported encode target.
func (c VideoCodec) Valid() bool {
	switch c {
	case CodecAV1, CodecH265, CodecH264, CodecVP9:
		return true
	}
	return false
}

// Container is a supported output container.
type Container string

const (
	ContainerMKV  Container = "mkv"
	ContainerMP4  Container = "mp4"
	ContainerWebM Container = "webm"
)

// Valid returns true if the container is supported.
func (c Container) Valid() bool {
	switch c {
	case ContainerMKV, ContainerMP4, ContainerWebM:
		return true
	}
	return false
}

// AudioStrategy selects how audio tracks are carried into the output.
type AudioStrategy string

const (
	// AudioPreserveAll copies every audio track unchanged.
	AudioPreserveAll AudioStrategy = "preserve_all"
	// AudioKeepPrimary keeps only the first track, transcoded per codec mapping.
	AudioKeepPrimary AudioStrategy = "keep_primary"
	// AudioStereoMixdown mixes the first track down to stereo AAC.
	AudioStereoMixdown AudioStrategy = "stereo_mixdown"
	// AudioHDPlusAAC keeps the first track as passthrough plus a stereo AAC copy.
	AudioHDPlusAAC AudioStrategy = "hd_plus_aac"
	// AudioHighQuality encodes the first track as high-bitrate stereo AAC.
	AudioHighQuality AudioStrategy = "high_quality"
)

// Valid returns true if the strategy is known.
func (s AudioStrategy) Valid() bool {
	switch s {
	case AudioPreserveAll, AudioKeepPrimary, AudioStereoMixdown, AudioHDPlusAAC, AudioHighQuality:
		return true
	}
	return false
}

// SubtitleStrategy selects how subtitle tracks are carried into the output.
type SubtitleStrategy string

const (
	SubtitlePreserveAll SubtitleStrategy = "preserve_all"
	SubtitleKeepEnglish SubtitleStrategy = "keep_english"
	SubtitleBurnIn      SubtitleStrategy = "burn_in"
	SubtitleForeignScan SubtitleStrategy = "foreign_scan"
	SubtitleNone        SubtitleStrategy = "none"
)

// Valid returns true if the strategy is known.
func (s SubtitleStrategy) Valid() bool {
	switch s {
	case SubtitlePreserveAll, SubtitleKeepEnglish, SubtitleBurnIn, SubtitleForeignScan, SubtitleNone:
		return true
	}
	return false
}

// Profile is a named encoding recipe.
type Profile struct {
	BaseModel

	// Name uniquely identifies the profile.
	Name string `gorm:"not null;uniqueIndex;size:255" json:"name"`

	// Codec is the target video codec.
	Codec VideoCodec `gorm:"not null;size:10" json:"codec"`

	// Encoder is the encoder identifier (software or hardware variant),
	// e.g. "svt_av1", "x265", "nvenc_h265". Empty selects the software
	// encoder for the codec.
	Encoder string `gorm:"size:50" json:"encoder,omitempty"`

	// Quality is the codec-specific CRF/CQ value (0-51, lower = better).
	Quality int `gorm:"not null;default:28" json:"quality"`

	// Container is the output container.
	Container Container `gorm:"not null;size:10;default:'mkv'" json:"container"`

	// Resolution optionally forces an output resolution ("WxH").
	Resolution string `gorm:"size:20" json:"resolution,omitempty"`

	// Framerate optionally forces an output framerate.
	Framerate float64 `json:"framerate,omitempty"`

	// AudioStrategy selects the audio track handling.
	AudioStrategy AudioStrategy `gorm:"not null;size:20;default:'preserve_all'" json:"audio_strategy"`

	// SubtitleStrategy selects the subtitle track handling.
	SubtitleStrategy SubtitleStrategy `gorm:"not null;size:20;default:'preserve_all'" json:"subtitle_strategy"`

	// EnableFilters turns on comb detection, decomb, light denoise, and
	// auto-crop.
	EnableFilters bool `gorm:"default:false" json:"enable_filters"`

	// ChapterMarkers preserves chapter markers in the output.
	ChapterMarkers *bool `gorm:"default:true" json:"chapter_markers"`

	// HWAccelEnabled allows selection of a hardware encoder variant when one
	// is available; falls back to software silently otherwise.
	HWAccelEnabled bool `gorm:"default:false" json:"hw_accel_enabled"`

	// Preset is the encoder-dependent speed preset.
	Preset string `gorm:"size:50" json:"preset,omitempty"`

	// TwoPass enables two-pass encoding.
	TwoPass bool `gorm:"default:false" json:"two_pass"`

	// CustomArgs is appended verbatim to the transcoder invocation, last,
	// so it can override anything the builder produced.
	CustomArgs string `gorm:"size:2048" json:"custom_args,omitempty"`

	// IsDefault marks the profile used when nothing else is linked.
	// At most one profile may be default at a time.
	IsDefault bool `gorm:"default:false;index" json:"is_default"`
}

// TableName returns the table name for Profile.
func (Profile) TableName() string {
	return "profiles"
}

// TargetSpecs derives the encoding target stored on queue items.
func (p *Profile) TargetSpecs() TargetSpecs {
	return TargetSpecs{
		Codec:            string(p.Codec),
		Resolution:       p.Resolution,
		Container:        string(p.Container),
		AudioStrategy:    string(p.AudioStrategy),
		SubtitleStrategy: string(p.SubtitleStrategy),
	}
}

// Validate performs basic validation on the profile.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if !p.Codec.Valid() {
		return ErrInvalidCodec
	}
	if !p.Container.Valid() {
		return ErrInvalidContainer
	}
	if !p.AudioStrategy.Valid() {
		return ErrInvalidAudioStrategy
	}
	if !p.SubtitleStrategy.Valid() {
		return ErrInvalidSubtitleStrategy
	}
	if p.Quality < 0 || p.Quality > 51 {
		return ErrInvalidQuality
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the profile and generates a ULID.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}

// BeforeUpdate is a GORM hook that validates the profile before update.
func (p *Profile) BeforeUpdate(tx *gorm.DB) error {
	return p.Validate()
}
