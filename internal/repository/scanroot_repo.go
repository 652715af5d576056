package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/recodarr/recodarr/internal/models"
	"gorm.io/gorm"
)

// scanRootRepo implements ScanRootRepository using GORM.
type scanRootRepo struct {
	db *gorm.DB
}

// NewScanRootRepository creates a new ScanRootRepository.
func NewScanRootRepository(db *gorm.DB) *scanRootRepo {
	return &scanRootRepo{db: db}
}

// Create creates a new scan root.
func (r *scanRootRepo) Create(ctx context.Context, root *models.ScanRoot) error {
	if err := r.db.WithContext(ctx).Create(root).Error; err != nil {
		return fmt.Errorf("creating scan root: %w", err)
	}
	return nil
}

// GetByID retrieves a scan root by ID.
func (r *scanRootRepo) GetByID(ctx context.Context, id models.ULID) (*models.ScanRoot, error) {
	var root models.ScanRoot
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&root).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting scan root by ID: %w", err)
	}
	return &root, nil
}

// GetAll retrieves all scan roots.
func (r *scanRootRepo) GetAll(ctx context.Context) ([]*models.ScanRoot, error) {
	var roots []*models.ScanRoot
	if err := r.db.WithContext(ctx).Order("path ASC").Find(&roots).Error; err != nil {
		return nil, fmt.Errorf("getting all scan roots: %w", err)
	}
	return roots, nil
}

// GetEnabled retrieves all enabled scan roots.
func (r *scanRootRepo) GetEnabled(ctx context.Context) ([]*models.ScanRoot, error) {
	var roots []*models.ScanRoot
	if err := r.db.WithContext(ctx).
		Where("enabled = ? OR enabled IS NULL", true).
		Order("path ASC").
		Find(&roots).Error; err != nil {
		return nil, fmt.Errorf("getting enabled scan roots: %w", err)
	}
	return roots, nil
}

// GetByConnectionID retrieves roots linked to an external connection.
func (r *scanRootRepo) GetByConnectionID(ctx context.Context, connectionID models.ULID) ([]*models.ScanRoot, error) {
	var roots []*models.ScanRoot
	if err := r.db.WithContext(ctx).
		Where("external_connection_id = ?", connectionID).
		Find(&roots).Error; err != nil {
		return nil, fmt.Errorf("getting scan roots by connection: %w", err)
	}
	return roots, nil
}

// Update updates an existing scan root.
func (r *scanRootRepo) Update(ctx context.Context, root *models.ScanRoot) error {
	if err := r.db.WithContext(ctx).Save(root).Error; err != nil {
		return fmt.Errorf("updating scan root: %w", err)
	}
	return nil
}

// Delete deletes a scan root and NULLs root references on queue items in the
// same transaction. The items stay runnable; only the provenance link goes.
func (r *scanRootRepo) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.QueueItem{}).
			Where("root_id = ?", id).
			UpdateColumn("root_id", nil).Error; err != nil {
			return fmt.Errorf("clearing root references: %w", err)
		}

		if err := tx.Where("id = ?", id).Delete(&models.ScanRoot{}).Error; err != nil {
			return fmt.Errorf("deleting scan root: %w", err)
		}
		return nil
	})
}

// UpdateLastScanned stamps the last completed scan time.
func (r *scanRootRepo) UpdateLastScanned(ctx context.Context, id models.ULID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.ScanRoot{}).
		Where("id = ?", id).
		UpdateColumn("last_scanned", at)
	if result.Error != nil {
		return fmt.Errorf("updating last scanned: %w", result.Error)
	}
	return nil
}

// Ensure scanRootRepo implements ScanRootRepository at compile time.
var _ ScanRootRepository = (*scanRootRepo)(nil)
