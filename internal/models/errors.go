package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrNameRequired indicates a required name field is empty.
	ErrNameRequired = errors.New("name is required")

	// ErrPathRequired indicates a required path field is empty.
	ErrPathRequired = errors.New("path is required")

	// ErrProfileRequired indicates a profile reference is missing.
	ErrProfileRequired = errors.New("profile_id is required")

	// ErrInvalidCodec indicates an unsupported target video codec.
	ErrInvalidCodec = errors.New("invalid codec: must be one of av1, h265, h264, vp9")

	// ErrInvalidContainer indicates an unsupported output container.
	ErrInvalidContainer = errors.New("invalid container: must be one of mkv, mp4, webm")

	// ErrInvalidAudioStrategy indicates an unknown audio strategy.
	ErrInvalidAudioStrategy = errors.New("invalid audio strategy")

	// ErrInvalidSubtitleStrategy indicates an unknown subtitle strategy.
	ErrInvalidSubtitleStrategy = errors.New("invalid subtitle strategy")

	// ErrInvalidQuality indicates a quality value outside the 0-51 range.
	ErrInvalidQuality = errors.New("invalid quality: must be between 0 and 51")

	// ErrInvalidStatus indicates a queue status outside the closed status set.
	ErrInvalidStatus = errors.New("invalid queue status")

	// ErrInvalidPermissionStatus indicates an unknown permission status.
	ErrInvalidPermissionStatus = errors.New("invalid permission status")

	// ErrInvalidConnectionKind indicates an unknown external connection kind.
	ErrInvalidConnectionKind = errors.New("invalid connection kind: must be one of catalog-movie, catalog-series, scene-library")

	// ErrBaseURLRequired indicates a required base URL field is empty.
	ErrBaseURLRequired = errors.New("base_url is required")

	// ErrInvalidTimeOfDay indicates a malformed HH:MM value.
	ErrInvalidTimeOfDay = errors.New("invalid time of day: expected HH:MM")

	// ErrInvalidDaysOfWeek indicates a malformed days-of-week set.
	ErrInvalidDaysOfWeek = errors.New("invalid days_of_week: expected comma-separated values 0-6")
)
