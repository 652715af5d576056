// Package repository defines data access interfaces for recodarr entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/recodarr/recodarr/internal/models"
)

// QueueSortField selects the ordering used by Reprioritize.
type QueueSortField string

const (
	// SortByFileSize orders by source file size.
	SortByFileSize QueueSortField = "file_size"
	// SortByEstimatedSavings orders by projected size reduction.
	SortByEstimatedSavings QueueSortField = "estimated_savings"
	// SortByFileName orders lexically by path.
	SortByFileName QueueSortField = "filename"
)

// Valid returns true if the sort field is known.
func (f QueueSortField) Valid() bool {
	switch f {
	case SortByFileSize, SortByEstimatedSavings, SortByFileName:
		return true
	}
	return false
}

// QueueCounts summarises the queue by status.
type QueueCounts struct {
	Pending         int64 `json:"pending"`
	Processing      int64 `json:"processing"`
	Paused          int64 `json:"paused"`
	Completed       int64 `json:"completed"`
	Failed          int64 `json:"failed"`
	PermissionError int64 `json:"permission_error"`
	Total           int64 `json:"total"`
}

// QueueRepository defines operations for queue item persistence.
type QueueRepository interface {
	// Create creates a new queue item.
	Create(ctx context.Context, item *models.QueueItem) error
	// GetByID retrieves a queue item by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.QueueItem, error)
	// GetAll retrieves queue items ordered by priority, optionally filtered
	// by status, with pagination. Returns items and the total matching count.
	GetAll(ctx context.Context, status *models.QueueStatus, offset, limit int) ([]*models.QueueItem, int64, error)
	// GetByStatus retrieves all items with the given status.
	GetByStatus(ctx context.Context, status models.QueueStatus) ([]*models.QueueItem, error)
	// FindActiveByPath retrieves the non-terminal item for a path, if any.
	// Backs the one-active-item-per-path invariant.
	FindActiveByPath(ctx context.Context, path string) (*models.QueueItem, error)
	// ClaimNextPending atomically claims the highest-priority pending item,
	// flips it to processing, and stamps started_at. Returns nil when the
	// queue is empty. Concurrent callers never receive the same item.
	ClaimNextPending(ctx context.Context) (*models.QueueItem, error)
	// Update saves the full item.
	Update(ctx context.Context, item *models.QueueItem) error
	// UpdateProgress writes progress and process stats without touching the
	// rest of the row. Callers coalesce writes to at most one per second.
	UpdateProgress(ctx context.Context, id models.ULID, progress, cpuPercent, rssMB float64) error
	// Delete removes an item by ID.
	Delete(ctx context.Context, id models.ULID) error
	// ClearCompleted removes all completed items, returning the count.
	ClearCompleted(ctx context.Context) (int64, error)
	// Counts returns per-status queue counts.
	Counts(ctx context.Context) (*QueueCounts, error)
	// Reprioritize rewrites the priority of every pending item in one
	// transaction: items are ranked by the sort field and priority becomes
	// (total-rank)*10, so the first-ranked item runs first.
	Reprioritize(ctx context.Context, sortBy QueueSortField, descending bool) (int64, error)
	// RequeueInterrupted returns processing/paused items to pending. Called
	// on startup to recover items orphaned by an unclean shutdown.
	RequeueInterrupted(ctx context.Context) (int64, error)
	// GetUnknownCodec retrieves non-terminal items whose probe snapshot has
	// an unknown codec, for re-probing.
	GetUnknownCodec(ctx context.Context) ([]*models.QueueItem, error)
	// CountActiveByProfile returns the number of non-terminal items that
	// reference a profile. Used to refuse profile deletion.
	CountActiveByProfile(ctx context.Context, profileID models.ULID) (int64, error)
	// ClearRootRefs NULLs root_id on items that reference a scan root.
	ClearRootRefs(ctx context.Context, rootID models.ULID) error
}

// ProfileRepository defines operations for encoding profile persistence.
type ProfileRepository interface {
	// Create creates a new profile.
	Create(ctx context.Context, profile *models.Profile) error
	// GetByID retrieves a profile by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.Profile, error)
	// GetByName retrieves a profile by name.
	GetByName(ctx context.Context, name string) (*models.Profile, error)
	// GetAll retrieves all profiles.
	GetAll(ctx context.Context) ([]*models.Profile, error)
	// GetDefault retrieves the default profile, or nil when none is marked.
	GetDefault(ctx context.Context) (*models.Profile, error)
	// Update updates an existing profile.
	Update(ctx context.Context, profile *models.Profile) error
	// Delete deletes a profile by ID. Returns ErrProfileInUse when any
	// non-terminal queue item still references it.
	Delete(ctx context.Context, id models.ULID) error
	// SetDefault marks a profile as the default, clearing any previous one,
	// in a single transaction.
	SetDefault(ctx context.Context, id models.ULID) error
	// Count returns the total number of profiles.
	Count(ctx context.Context) (int64, error)
}

// DashboardStats summarises transcode history for the dashboard.
type DashboardStats struct {
	TotalTranscodes  int64   `json:"total_transcodes"`
	TotalSavedBytes  int64   `json:"total_saved_bytes"`
	AvgSavingsPct    float64 `json:"avg_savings_pct"`
	TotalEncodingSec float64 `json:"total_encoding_sec"`
}

// HistoryRepository defines operations for transcode history persistence.
type HistoryRepository interface {
	// Record writes one immutable history row.
	Record(ctx context.Context, record *models.HistoryRecord) error
	// GetRecent retrieves history ordered by completion time, newest first,
	// with pagination. Returns records and the total count.
	GetRecent(ctx context.Context, offset, limit int) ([]*models.HistoryRecord, int64, error)
	// Stats aggregates history over the trailing number of days; days <= 0
	// aggregates everything.
	Stats(ctx context.Context, days int) (*DashboardStats, error)
	// DeleteOlderThan removes records completed before the given time.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// ScanRootRepository defines operations for scan root persistence.
type ScanRootRepository interface {
	// Create creates a new scan root.
	Create(ctx context.Context, root *models.ScanRoot) error
	// GetByID retrieves a scan root by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.ScanRoot, error)
	// GetAll retrieves all scan roots.
	GetAll(ctx context.Context) ([]*models.ScanRoot, error)
	// GetEnabled retrieves all enabled scan roots.
	GetEnabled(ctx context.Context) ([]*models.ScanRoot, error)
	// GetByConnectionID retrieves roots linked to an external connection.
	GetByConnectionID(ctx context.Context, connectionID models.ULID) ([]*models.ScanRoot, error)
	// Update updates an existing scan root.
	Update(ctx context.Context, root *models.ScanRoot) error
	// Delete deletes a scan root and NULLs root references on queue items in
	// the same transaction. Queue items themselves are kept.
	Delete(ctx context.Context, id models.ULID) error
	// UpdateLastScanned stamps the last completed scan time.
	UpdateLastScanned(ctx context.Context, id models.ULID, at time.Time) error
}

// FolderWatchRepository defines operations for folder watch persistence.
type FolderWatchRepository interface {
	// Create creates a new folder watch.
	Create(ctx context.Context, watch *models.FolderWatch) error
	// GetByID retrieves a folder watch by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.FolderWatch, error)
	// GetAll retrieves all folder watches.
	GetAll(ctx context.Context) ([]*models.FolderWatch, error)
	// GetEnabled retrieves all enabled folder watches.
	GetEnabled(ctx context.Context) ([]*models.FolderWatch, error)
	// Update updates an existing folder watch.
	Update(ctx context.Context, watch *models.FolderWatch) error
	// Delete deletes a folder watch by ID.
	Delete(ctx context.Context, id models.ULID) error
	// UpdateLastCheck stamps the last poll time.
	UpdateLastCheck(ctx context.Context, id models.ULID, at time.Time) error
}

// ScheduleRepository defines operations for the singleton schedule row.
type ScheduleRepository interface {
	// Get retrieves the schedule, creating the default row when missing.
	Get(ctx context.Context) (*models.Schedule, error)
	// Update saves the schedule.
	Update(ctx context.Context, schedule *models.Schedule) error
}

// ConnectionRepository defines operations for external connection persistence.
type ConnectionRepository interface {
	// Create creates a new connection.
	Create(ctx context.Context, conn *models.ExternalConnection) error
	// GetByID retrieves a connection by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.ExternalConnection, error)
	// GetAll retrieves all connections.
	GetAll(ctx context.Context) ([]*models.ExternalConnection, error)
	// GetEnabled retrieves all enabled connections.
	GetEnabled(ctx context.Context) ([]*models.ExternalConnection, error)
	// GetByKind retrieves connections of one kind.
	GetByKind(ctx context.Context, kind models.ConnectionKind) ([]*models.ExternalConnection, error)
	// Update updates an existing connection.
	Update(ctx context.Context, conn *models.ExternalConnection) error
	// Delete deletes a connection by ID.
	Delete(ctx context.Context, id models.ULID) error
	// UpdateLastTested stamps the last successful connectivity test.
	UpdateLastTested(ctx context.Context, id models.ULID, at time.Time) error
	// UpdateLastSynced stamps the last completed library sync.
	UpdateLastSynced(ctx context.Context, id models.ULID, at time.Time) error
}

// SettingRepository defines operations for runtime settings persistence.
type SettingRepository interface {
	// Get retrieves a setting value; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set creates or updates a setting.
	Set(ctx context.Context, key, value string) error
	// GetAll retrieves all settings as a key/value map.
	GetAll(ctx context.Context) (map[string]string, error)
	// Delete removes a setting by key.
	Delete(ctx context.Context, key string) error
}
