package repository

import (
	"context"
	"fmt"

	"github.com/recodarr/recodarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// queueRepo implements QueueRepository using GORM.
type queueRepo struct {
	db *gorm.DB
}

// NewQueueRepository creates a new QueueRepository.
func NewQueueRepository(db *gorm.DB) *queueRepo {
	return &queueRepo{db: db}
}

// Create creates a new queue item.
func (r *queueRepo) Create(ctx context.Context, item *models.QueueItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("creating queue item: %w", err)
	}
	return nil
}

// GetByID retrieves a queue item by ID.
func (r *queueRepo) GetByID(ctx context.Context, id models.ULID) (*models.QueueItem, error) {
	var item models.QueueItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting queue item by ID: %w", err)
	}
	return &item, nil
}

// GetAll retrieves queue items ordered by priority with pagination.
func (r *queueRepo) GetAll(ctx context.Context, status *models.QueueStatus, offset, limit int) ([]*models.QueueItem, int64, error) {
	var items []*models.QueueItem
	var total int64

	query := r.db.WithContext(ctx).Model(&models.QueueItem{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting queue items: %w", err)
	}

	query = query.Order("priority DESC, created_at ASC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("getting queue items: %w", err)
	}
	return items, total, nil
}

// GetByStatus retrieves all items with the given status.
func (r *queueRepo) GetByStatus(ctx context.Context, status models.QueueStatus) ([]*models.QueueItem, error) {
	var items []*models.QueueItem
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("priority DESC, created_at ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("getting queue items by status: %w", err)
	}
	return items, nil
}

// FindActiveByPath retrieves the non-terminal item for a path, if any.
func (r *queueRepo) FindActiveByPath(ctx context.Context, path string) (*models.QueueItem, error) {
	var item models.QueueItem
	if err := r.db.WithContext(ctx).
		Where("file_path = ? AND status NOT IN (?, ?)", path, models.StatusCompleted, models.StatusFailed).
		First(&item).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("finding active queue item by path: %w", err)
	}
	return &item, nil
}

// ClaimNextPending atomically claims the highest-priority pending item.
// Uses SELECT FOR UPDATE with SKIP LOCKED so concurrent workers never
// receive the same item.
func (r *queueRepo) ClaimNextPending(ctx context.Context) (*models.QueueItem, error) {
	var item models.QueueItem

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", models.StatusPending).
			Order("priority DESC, created_at ASC").
			Limit(1)

		if err := query.First(&item).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return err // Will cause nil return
			}
			return fmt.Errorf("finding pending queue item: %w", err)
		}

		item.MarkProcessing()
		if err := tx.Save(&item).Error; err != nil {
			return fmt.Errorf("claiming queue item: %w", err)
		}
		return nil
	})

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil // Queue is empty
		}
		return nil, err
	}

	return &item, nil
}

// Update saves the full item.
func (r *queueRepo) Update(ctx context.Context, item *models.QueueItem) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return fmt.Errorf("updating queue item: %w", err)
	}
	return nil
}

// UpdateProgress writes progress and process stats directly. Uses
// UpdateColumns to skip hooks; progress 100 is reserved for completion, so
// parser overshoot is clamped to 99.9 here. Terminal items are excluded in
// the WHERE clause so a late sample cannot rewrite a completed item's
// progress below 100.
func (r *queueRepo) UpdateProgress(ctx context.Context, id models.ULID, progress, cpuPercent, rssMB float64) error {
	if progress >= 100 {
		progress = 99.9
	}
	if progress < 0 {
		progress = 0
	}

	result := r.db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("id = ? AND status NOT IN (?, ?)", id, models.StatusCompleted, models.StatusFailed).
		UpdateColumns(map[string]interface{}{
			"progress":            progress,
			"process_cpu_percent": cpuPercent,
			"process_rss_mb":      rssMB,
		})
	if result.Error != nil {
		return fmt.Errorf("updating queue item progress: %w", result.Error)
	}
	return nil
}

// Delete removes an item by ID.
func (r *queueRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.QueueItem{}).Error; err != nil {
		return fmt.Errorf("deleting queue item: %w", err)
	}
	return nil
}

// ClearCompleted removes all completed items.
func (r *queueRepo) ClearCompleted(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ?", models.StatusCompleted).
		Delete(&models.QueueItem{})
	if result.Error != nil {
		return 0, fmt.Errorf("clearing completed queue items: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Counts returns per-status queue counts.
func (r *queueRepo) Counts(ctx context.Context) (*QueueCounts, error) {
	var rows []struct {
		Status models.QueueStatus
		N      int64
	}
	if err := r.db.WithContext(ctx).Model(&models.QueueItem{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("counting queue items by status: %w", err)
	}

	counts := &QueueCounts{}
	for _, row := range rows {
		counts.Total += row.N
		switch row.Status {
		case models.StatusPending:
			counts.Pending = row.N
		case models.StatusProcessing:
			counts.Processing = row.N
		case models.StatusPaused:
			counts.Paused = row.N
		case models.StatusCompleted:
			counts.Completed = row.N
		case models.StatusFailed:
			counts.Failed = row.N
		case models.StatusPermissionError:
			counts.PermissionError = row.N
		}
	}
	return counts, nil
}

// Reprioritize rewrites the priority of every pending item in one
// transaction. Items are ranked by the sort field and priority becomes
// (total-rank)*10, so spacing is left for manual adjustments in between.
// Inserts racing the rewrite queue behind the transaction.
func (r *queueRepo) Reprioritize(ctx context.Context, sortBy QueueSortField, descending bool) (int64, error) {
	if !sortBy.Valid() {
		return 0, fmt.Errorf("unknown sort field: %s", sortBy)
	}

	var column string
	switch sortBy {
	case SortByFileSize:
		column = "file_size_bytes"
	case SortByEstimatedSavings:
		column = "estimated_savings_bytes"
	case SortByFileName:
		column = "file_path"
	}
	direction := "ASC"
	if descending {
		direction = "DESC"
	}

	var updated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []models.ULID
		if err := tx.Model(&models.QueueItem{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ?", models.StatusPending).
			Order(column + " " + direction).
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("ranking pending queue items: %w", err)
		}

		total := len(ids)
		for rank, id := range ids {
			priority := (total - rank) * 10
			if err := tx.Model(&models.QueueItem{}).Where("id = ?", id).
				UpdateColumn("priority", priority).Error; err != nil {
				return fmt.Errorf("updating queue item priority: %w", err)
			}
		}
		updated = int64(total)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// RequeueInterrupted returns processing/paused items to pending. Called on
// startup to recover items orphaned by an unclean shutdown.
func (r *queueRepo) RequeueInterrupted(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("status IN (?, ?)", models.StatusProcessing, models.StatusPaused).
		UpdateColumns(map[string]interface{}{
			"status":        models.StatusPending,
			"started_at":    nil,
			"paused_reason": "",
			"progress":      0,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("requeueing interrupted items: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetUnknownCodec retrieves non-terminal items whose probe snapshot has an
// unknown codec. The specs column is JSON text, so this matches on the
// serialised codec field.
func (r *queueRepo) GetUnknownCodec(ctx context.Context) ([]*models.QueueItem, error) {
	var items []*models.QueueItem
	if err := r.db.WithContext(ctx).
		Where("status NOT IN (?, ?)", models.StatusCompleted, models.StatusFailed).
		Where(`current_specs IS NULL OR current_specs = '' OR current_specs LIKE ?`, `%"codec":"unknown"%`).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("getting unknown-codec queue items: %w", err)
	}
	return items, nil
}

// CountActiveByProfile returns the number of non-terminal items referencing
// a profile.
func (r *queueRepo) CountActiveByProfile(ctx context.Context, profileID models.ULID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("profile_id = ? AND status NOT IN (?, ?)", profileID, models.StatusCompleted, models.StatusFailed).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting active items for profile: %w", err)
	}
	return count, nil
}

// ClearRootRefs NULLs root_id on items referencing a scan root.
func (r *queueRepo) ClearRootRefs(ctx context.Context, rootID models.ULID) error {
	result := r.db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("root_id = ?", rootID).
		UpdateColumn("root_id", nil)
	if result.Error != nil {
		return fmt.Errorf("clearing root references: %w", result.Error)
	}
	return nil
}

// Ensure queueRepo implements QueueRepository at compile time.
var _ QueueRepository = (*queueRepo)(nil)
