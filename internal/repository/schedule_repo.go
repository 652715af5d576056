package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/recodarr/recodarr/internal/models"
	"gorm.io/gorm"
)

// scheduleRepo implements ScheduleRepository using GORM.
type scheduleRepo struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new ScheduleRepository.
func NewScheduleRepository(db *gorm.DB) *scheduleRepo {
	return &scheduleRepo{db: db}
}

// Get retrieves the singleton schedule row, creating the default when the
// table is empty.
func (r *scheduleRepo) Get(ctx context.Context) (*models.Schedule, error) {
	var schedule models.Schedule
	err := r.db.WithContext(ctx).First(&schedule).Error
	if err == nil {
		return &schedule, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("getting schedule: %w", err)
	}

	created := models.DefaultSchedule()
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		return nil, fmt.Errorf("creating default schedule: %w", err)
	}
	return created, nil
}

// Update saves the schedule.
func (r *scheduleRepo) Update(ctx context.Context, schedule *models.Schedule) error {
	if err := r.db.WithContext(ctx).Save(schedule).Error; err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	return nil
}

// Ensure scheduleRepo implements ScheduleRepository at compile time.
var _ ScheduleRepository = (*scheduleRepo)(nil)
