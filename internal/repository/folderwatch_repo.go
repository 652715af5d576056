package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/recodarr/recodarr/internal/models"
	"gorm.io/gorm"
)

// folderWatchRepo implements FolderWatchRepository using GORM.
type folderWatchRepo struct {
	db *gorm.DB
}

// NewFolderWatchRepository creates a new FolderWatchRepository.
func NewFolderWatchRepository(db *gorm.DB) *folderWatchRepo {
	return &folderWatchRepo{db: db}
}

// Create creates a new folder watch.
func (r *folderWatchRepo) Create(ctx context.Context, watch *models.FolderWatch) error {
	if err := r.db.WithContext(ctx).Create(watch).Error; err != nil {
		return fmt.Errorf("creating folder watch: %w", err)
	}
	return nil
}

// GetByID retrieves a folder watch by ID.
func (r *folderWatchRepo) GetByID(ctx context.Context, id models.ULID) (*models.FolderWatch, error) {
	var watch models.FolderWatch
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&watch).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting folder watch by ID: %w", err)
	}
	return &watch, nil
}

// GetAll retrieves all folder watches.
func (r *folderWatchRepo) GetAll(ctx context.Context) ([]*models.FolderWatch, error) {
	var watches []*models.FolderWatch
	if err := r.db.WithContext(ctx).Order("path ASC").Find(&watches).Error; err != nil {
		return nil, fmt.Errorf("getting all folder watches: %w", err)
	}
	return watches, nil
}

// GetEnabled retrieves all enabled folder watches.
func (r *folderWatchRepo) GetEnabled(ctx context.Context) ([]*models.FolderWatch, error) {
	var watches []*models.FolderWatch
	if err := r.db.WithContext(ctx).
		Where("enabled = ? OR enabled IS NULL", true).
		Order("path ASC").
		Find(&watches).Error; err != nil {
		return nil, fmt.Errorf("getting enabled folder watches: %w", err)
	}
	return watches, nil
}

// Update updates an existing folder watch.
func (r *folderWatchRepo) Update(ctx context.Context, watch *models.FolderWatch) error {
	if err := r.db.WithContext(ctx).Save(watch).Error; err != nil {
		return fmt.Errorf("updating folder watch: %w", err)
	}
	return nil
}

// Delete deletes a folder watch by ID.
func (r *folderWatchRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FolderWatch{}).Error; err != nil {
		return fmt.Errorf("deleting folder watch: %w", err)
	}
	return nil
}

// UpdateLastCheck stamps the last poll time.
func (r *folderWatchRepo) UpdateLastCheck(ctx context.Context, id models.ULID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.FolderWatch{}).
		Where("id = ?", id).
		UpdateColumn("last_check", at)
	if result.Error != nil {
		return fmt.Errorf("updating last check: %w", result.Error)
	}
	return nil
}

// Ensure folderWatchRepo implements FolderWatchRepository at compile time.
var _ FolderWatchRepository = (*folderWatchRepo)(nil)
