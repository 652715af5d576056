package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/recodarr/recodarr/internal/models"
	"gorm.io/gorm"
)

// historyRepo implements HistoryRepository using GORM.
type historyRepo struct {
	db *gorm.DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *gorm.DB) *historyRepo {
	return &historyRepo{db: db}
}

// Record writes one immutable history row.
func (r *historyRepo) Record(ctx context.Context, record *models.HistoryRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("recording history: %w", err)
	}
	return nil
}

// GetRecent retrieves history ordered by completion time, newest first.
func (r *historyRepo) GetRecent(ctx context.Context, offset, limit int) ([]*models.HistoryRecord, int64, error) {
	var records []*models.HistoryRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.HistoryRecord{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting history: %w", err)
	}

	query = query.Order("completed_at DESC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("getting history: %w", err)
	}
	return records, total, nil
}

// Stats aggregates history over the trailing number of days; days <= 0
// aggregates everything. Average savings is computed per record against the
// original size, so one huge file cannot dominate the percentage.
func (r *historyRepo) Stats(ctx context.Context, days int) (*DashboardStats, error) {
	query := r.db.WithContext(ctx).Model(&models.HistoryRecord{})
	if days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		query = query.Where("completed_at >= ?", cutoff)
	}

	var row struct {
		N        int64
		Saved    int64
		AvgPct   float64
		Encoding float64
	}
	err := query.Select(
		`count(*) as n,
		 coalesce(sum(savings_bytes), 0) as saved,
		 coalesce(avg(case when original_size_bytes > 0
			then savings_bytes * 100.0 / original_size_bytes else 0 end), 0) as avg_pct,
		 coalesce(sum(encoding_time_seconds), 0) as encoding`,
	).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("aggregating history stats: %w", err)
	}

	return &DashboardStats{
		TotalTranscodes:  row.N,
		TotalSavedBytes:  row.Saved,
		AvgSavingsPct:    row.AvgPct,
		TotalEncodingSec: row.Encoding,
	}, nil
}

// DeleteOlderThan removes records completed before the given time.
func (r *historyRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("completed_at < ?", before).
		Delete(&models.HistoryRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting old history: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Ensure historyRepo implements HistoryRepository at compile time.
var _ HistoryRepository = (*historyRepo)(nil)
