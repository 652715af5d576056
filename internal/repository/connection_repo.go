package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/recodarr/recodarr/internal/models"
	"gorm.io/gorm"
)

// connectionRepo implements ConnectionRepository using GORM.
type connectionRepo struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new ConnectionRepository.
func NewConnectionRepository(db *gorm.DB) *connectionRepo {
	return &connectionRepo{db: db}
}

// Create creates a new connection.
func (r *connectionRepo) Create(ctx context.Context, conn *models.ExternalConnection) error {
	if err := r.db.WithContext(ctx).Create(conn).Error; err != nil {
		return fmt.Errorf("creating connection: %w", err)
	}
	return nil
}

// GetByID retrieves a connection by ID.
func (r *connectionRepo) GetByID(ctx context.Context, id models.ULID) (*models.ExternalConnection, error) {
	var conn models.ExternalConnection
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conn).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting connection by ID: %w", err)
	}
	return &conn, nil
}

// GetAll retrieves all connections.
func (r *connectionRepo) GetAll(ctx context.Context) ([]*models.ExternalConnection, error) {
	var conns []*models.ExternalConnection
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("getting all connections: %w", err)
	}
	return conns, nil
}

// GetEnabled retrieves all enabled connections.
func (r *connectionRepo) GetEnabled(ctx context.Context) ([]*models.ExternalConnection, error) {
	var conns []*models.ExternalConnection
	if err := r.db.WithContext(ctx).
		Where("enabled = ? OR enabled IS NULL", true).
		Order("name ASC").
		Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("getting enabled connections: %w", err)
	}
	return conns, nil
}

// GetByKind retrieves connections of one kind.
func (r *connectionRepo) GetByKind(ctx context.Context, kind models.ConnectionKind) ([]*models.ExternalConnection, error) {
	var conns []*models.ExternalConnection
	if err := r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("name ASC").
		Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("getting connections by kind: %w", err)
	}
	return conns, nil
}

// Update updates an existing connection.
func (r *connectionRepo) Update(ctx context.Context, conn *models.ExternalConnection) error {
	if err := r.db.WithContext(ctx).Save(conn).Error; err != nil {
		return fmt.Errorf("updating connection: %w", err)
	}
	return nil
}

// Delete deletes a connection by ID.
func (r *connectionRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ExternalConnection{}).Error; err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	return nil
}

// UpdateLastTested stamps the last successful connectivity test.
func (r *connectionRepo) UpdateLastTested(ctx context.Context, id models.ULID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.ExternalConnection{}).
		Where("id = ?", id).
		UpdateColumn("last_tested", at)
	if result.Error != nil {
		return fmt.Errorf("updating last tested: %w", result.Error)
	}
	return nil
}

// UpdateLastSynced stamps the last completed library sync.
func (r *connectionRepo) UpdateLastSynced(ctx context.Context, id models.ULID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.ExternalConnection{}).
		Where("id = ?", id).
		UpdateColumn("last_synced", at)
	if result.Error != nil {
		return fmt.Errorf("updating last synced: %w", result.Error)
	}
	return nil
}

// Ensure connectionRepo implements ConnectionRepository at compile time.
var _ ConnectionRepository = (*connectionRepo)(nil)
