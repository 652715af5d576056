package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/recodarr/recodarr/internal/models"
	"gorm.io/gorm"
)

// ErrProfileInUse is returned when deleting a profile that non-terminal
// queue items still reference.
var ErrProfileInUse = errors.New("profile is referenced by active queue items")

// profileRepo implements ProfileRepository using GORM.
type profileRepo struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *gorm.DB) *profileRepo {
	return &profileRepo{db: db}
}

// Create creates a new profile.
func (r *profileRepo) Create(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}
	return nil
}

// GetByID retrieves a profile by ID.
func (r *profileRepo) GetByID(ctx context.Context, id models.ULID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting profile by ID: %w", err)
	}
	return &profile, nil
}

// GetByName retrieves a profile by name.
func (r *profileRepo) GetByName(ctx context.Context, name string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting profile by name: %w", err)
	}
	return &profile, nil
}

// GetAll retrieves all profiles.
func (r *profileRepo) GetAll(ctx context.Context) ([]*models.Profile, error) {
	var profiles []*models.Profile
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("getting all profiles: %w", err)
	}
	return profiles, nil
}

// GetDefault retrieves the default profile, or nil when none is marked.
func (r *profileRepo) GetDefault(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("is_default = ?", true).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting default profile: %w", err)
	}
	return &profile, nil
}

// Update updates an existing profile.
func (r *profileRepo) Update(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

// Delete deletes a profile by ID. Refuses with ErrProfileInUse when any
// non-terminal queue item still references the profile; completed and failed
// items keep their reference since history is recorded by name.
func (r *profileRepo) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.QueueItem{}).
			Where("profile_id = ? AND status NOT IN (?, ?)", id, models.StatusCompleted, models.StatusFailed).
			Count(&count).Error; err != nil {
			return fmt.Errorf("counting active items for profile: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %d items", ErrProfileInUse, count)
		}

		if err := tx.Where("id = ?", id).Delete(&models.Profile{}).Error; err != nil {
			return fmt.Errorf("deleting profile: %w", err)
		}
		return nil
	})
}

// SetDefault marks a profile as the default, clearing any previous default
// in the same transaction so at most one row carries the flag.
func (r *profileRepo) SetDefault(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.Profile
		if err := tx.Where("id = ?", id).First(&profile).Error; err != nil {
			return fmt.Errorf("getting profile: %w", err)
		}

		if err := tx.Model(&models.Profile{}).
			Where("is_default = ?", true).
			UpdateColumn("is_default", false).Error; err != nil {
			return fmt.Errorf("clearing previous default: %w", err)
		}

		if err := tx.Model(&models.Profile{}).
			Where("id = ?", id).
			UpdateColumn("is_default", true).Error; err != nil {
			return fmt.Errorf("setting default profile: %w", err)
		}
		return nil
	})
}

// Count returns the total number of profiles.
func (r *profileRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Profile{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting profiles: %w", err)
	}
	return count, nil
}

// Ensure profileRepo implements ProfileRepository at compile time.
var _ ProfileRepository = (*profileRepo)(nil)
