package models

// HistoryRecord is an immutable row written exactly once when a job
// completes successfully. SavingsBytes may be negative when the output grew.
type HistoryRecord struct {
	BaseModel

	// FilePath is the post-rename path of the finished file.
	FilePath string `gorm:"not null;size:1024;index" json:"file_path"`

	// ProfileName is recorded by name so history survives profile deletion.
	ProfileName string `gorm:"size:255" json:"profile_name"`

	OriginalSizeBytes int64 `json:"original_size_bytes"`
	NewSizeBytes      int64 `json:"new_size_bytes"`
	SavingsBytes      int64 `json:"savings_bytes"`

	// EncodingTimeSeconds is the wall-clock transcode duration.
	EncodingTimeSeconds float64 `json:"encoding_time_seconds"`

	// Codec and Container describe the produced file.
	Codec     string `gorm:"size:10" json:"codec"`
	Container string `gorm:"size:10" json:"container"`

	// CompletedAtTime is when the atomic replace finished.
	CompletedAtTime Time `gorm:"not null;index;column:completed_at" json:"completed_at"`
}

// TableName returns the table name for HistoryRecord.
func (HistoryRecord) TableName() string {
	return "history_records"
}
