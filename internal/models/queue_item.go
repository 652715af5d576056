package models

import (
	"gorm.io/gorm"
)

// QueueStatus is the closed status set for queue items.
type QueueStatus string

const (
	// StatusPending indicates the item is waiting to be claimed.
	StatusPending QueueStatus = "pending"
	// StatusProcessing indicates a supervisor owns the item.
	StatusProcessing QueueStatus = "processing"
	// StatusPaused indicates the transcoder child is stopped on host pressure.
	StatusPaused QueueStatus = "paused"
	// StatusCompleted indicates the transcode finished and the file was replaced.
	StatusCompleted QueueStatus = "completed"
	// StatusFailed indicates the job failed; the original file is intact.
	StatusFailed QueueStatus = "failed"
	// StatusPermissionError indicates the file or its directory is not accessible.
	StatusPermissionError QueueStatus = "permission_error"
)

// Valid returns true if the status is in the closed set.
func (s QueueStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPaused, StatusCompleted, StatusFailed, StatusPermissionError:
		return true
	}
	return false
}

// IsTerminal returns true for statuses that end the item's lifecycle.
func (s QueueStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PermissionStatus is the result of the pre-queue access check.
type PermissionStatus string

const (
	PermissionOK       PermissionStatus = "ok"
	PermissionNoRead   PermissionStatus = "no_read"
	PermissionNoWrite  PermissionStatus = "no_write"
	PermissionNotFound PermissionStatus = "not_found"
)

// Valid returns true if the permission status is known.
func (s PermissionStatus) Valid() bool {
	switch s {
	case PermissionOK, PermissionNoRead, PermissionNoWrite, PermissionNotFound:
		return true
	}
	return false
}

// QueueItem is one (file, profile) work record; the unit of scheduling.
type QueueItem struct {
	BaseModel

	// FilePath is the absolute path of the source file. At most one item per
	// path may be in a non-terminal status at any time.
	FilePath string `gorm:"not null;size:1024;index" json:"file_path"`

	// ProfileID is the encoding recipe to apply.
	ProfileID ULID `gorm:"not null;type:varchar(26);index" json:"profile_id"`

	// RootID is the scan root the file was discovered under. NULLed when the
	// root is deleted; the item stays runnable.
	RootID ULID `gorm:"type:varchar(26);index" json:"root_id,omitempty"`

	// Status is the lifecycle state.
	Status QueueStatus `gorm:"not null;default:'pending';size:20;index" json:"status"`

	// Priority determines claim order (higher runs first).
	Priority int `gorm:"not null;default:50;index" json:"priority"`

	// CurrentSpecs is the probe snapshot at queue time.
	CurrentSpecs MediaSpecs `gorm:"type:text" json:"current_specs"`

	// TargetSpecs is the encoding target derived from the profile.
	TargetSpecs TargetSpecs `gorm:"type:text" json:"target_specs"`

	// UpscalePlan is the optional AI upscale pre-stage; nil means none.
	UpscalePlan *UpscalePlan `gorm:"type:text" json:"upscale_plan,omitempty"`

	// FileSizeBytes is the source size at queue time.
	FileSizeBytes int64 `json:"file_size_bytes"`

	// EstimatedSavingsBytes is the projected size reduction.
	EstimatedSavingsBytes int64 `json:"estimated_savings_bytes"`

	// Progress is the transcode progress percentage (0-100).
	// Progress reaches exactly 100 only on completion.
	Progress float64 `gorm:"default:0" json:"progress"`

	// ProcessCPUPercent and ProcessRSSMB are the last observed child stats.
	// RSSMB needs an explicit column name: the naming strategy would fold
	// the initialism into process_rssmb.
	ProcessCPUPercent float64 `json:"process_cpu_percent,omitempty"`
	ProcessRSSMB      float64 `gorm:"column:process_rss_mb" json:"process_rss_mb,omitempty"`

	// PermissionStatus is the access check result.
	PermissionStatus PermissionStatus `gorm:"size:20;default:'ok'" json:"permission_status"`

	// PermissionMessage explains a non-ok permission status.
	PermissionMessage string `gorm:"size:1024" json:"permission_message,omitempty"`

	// ErrorMessage explains a failed status.
	ErrorMessage string `gorm:"size:4096" json:"error_message,omitempty"`

	// PausedReason explains a paused status (which threshold tripped).
	PausedReason string `gorm:"size:255" json:"paused_reason,omitempty"`

	// StartedAt is stamped when the item is claimed.
	StartedAt *Time `json:"started_at,omitempty"`

	// CompletedAt is stamped exactly when the status becomes terminal.
	CompletedAt *Time `json:"completed_at,omitempty"`
}

// TableName returns the table name for QueueItem.
func (QueueItem) TableName() string {
	return "queue_items"
}

// IsTerminal returns true if the item's lifecycle has ended.
func (q *QueueItem) IsTerminal() bool {
	return q.Status.IsTerminal()
}

// IsRunnable returns true if the encoder pool may claim the item.
func (q *QueueItem) IsRunnable() bool {
	return q.Status == StatusPending
}

// MarkProcessing transitions the item to processing and stamps StartedAt.
func (q *QueueItem) MarkProcessing() {
	q.Status = StatusProcessing
	now := Now()
	q.StartedAt = &now
	q.PausedReason = ""
	q.ErrorMessage = ""
}

// MarkPaused records a throttling pause with its reason.
func (q *QueueItem) MarkPaused(reason string) {
	q.Status = StatusPaused
	q.PausedReason = reason
}

// MarkResumed returns a paused item to processing.
func (q *QueueItem) MarkResumed() {
	q.Status = StatusProcessing
	q.PausedReason = ""
}

// MarkCompleted finishes the item successfully. Progress is forced to 100
// and CompletedAt is stamped.
func (q *QueueItem) MarkCompleted() {
	q.Status = StatusCompleted
	q.Progress = 100
	now := Now()
	q.CompletedAt = &now
	q.ErrorMessage = ""
	q.PausedReason = ""
}

// MarkFailed finishes the item with an error. CompletedAt is stamped so the
// terminal invariant holds for failures too.
func (q *QueueItem) MarkFailed(errMsg string) {
	q.Status = StatusFailed
	now := Now()
	q.CompletedAt = &now
	q.ErrorMessage = errMsg
	q.PausedReason = ""
	if q.Progress >= 100 {
		q.Progress = 99.9
	}
}

// MarkPermissionError records an access failure found at queue time.
func (q *QueueItem) MarkPermissionError(status PermissionStatus, message string) {
	q.Status = StatusPermissionError
	q.PermissionStatus = status
	q.PermissionMessage = message
}

// Validate performs basic validation on the queue item.
func (q *QueueItem) Validate() error {
	if q.FilePath == "" {
		return ErrPathRequired
	}
	if q.ProfileID.IsZero() {
		return ErrProfileRequired
	}
	if !q.Status.Valid() {
		return ErrInvalidStatus
	}
	if q.PermissionStatus != "" && !q.PermissionStatus.Valid() {
		return ErrInvalidPermissionStatus
	}
	// completed_at is set iff the status is terminal
	if q.Status.IsTerminal() != (q.CompletedAt != nil) {
		return ErrValidation{Field: "completed_at", Message: "must be set exactly when status is terminal"}
	}
	// progress 100 is reserved for completion
	if q.Progress >= 100 && q.Status != StatusCompleted {
		return ErrValidation{Field: "progress", Message: "only completed items may reach 100"}
	}
	if q.Status == StatusCompleted && q.Progress != 100 {
		return ErrValidation{Field: "progress", Message: "completed items must have progress 100"}
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the item and generates a ULID.
func (q *QueueItem) BeforeCreate(tx *gorm.DB) error {
	if err := q.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return q.Validate()
}

// BeforeUpdate is a GORM hook that validates the item before update.
func (q *QueueItem) BeforeUpdate(tx *gorm.DB) error {
	return q.Validate()
}
