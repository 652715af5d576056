package repository

import (
	"context"
	"testing"

	"github.com/recodarr/recodarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRepo_CRUD(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	profile := &models.Profile{
		Name:             "AV1 Archive",
		Codec:            models.CodecAV1,
		Quality:          28,
		Container:        models.ContainerMKV,
		AudioStrategy:    models.AudioPreserveAll,
		SubtitleStrategy: models.SubtitlePreserveAll,
	}
	require.NoError(t, repo.Create(ctx, profile))
	assert.False(t, profile.ID.IsZero())

	found, err := repo.GetByName(ctx, "AV1 Archive")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, profile.ID, found.ID)

	found.Quality = 30
	require.NoError(t, repo.Update(ctx, found))

	reloaded, err := repo.GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, reloaded.Quality)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.Delete(ctx, profile.ID))
	gone, err := repo.GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestProfileRepo_DeleteRefusedWhileInUse(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewProfileRepository(db)
	queueRepo := NewQueueRepository(db)
	ctx := context.Background()

	profile := createTestProfile(t, db)
	item := newTestItem(profile.ID, "/media/a.mkv", 50)
	require.NoError(t, queueRepo.Create(ctx, item))

	err := repo.Delete(ctx, profile.ID)
	assert.ErrorIs(t, err, ErrProfileInUse)

	// Still present
	found, err := repo.GetByID(ctx, profile.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	// Terminal references do not block deletion
	item.MarkProcessing()
	item.MarkCompleted()
	require.NoError(t, queueRepo.Update(ctx, item))

	assert.NoError(t, repo.Delete(ctx, profile.ID))
}

func TestProfileRepo_SetDefault(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	first := createTestProfile(t, db)
	second := createTestProfile(t, db)

	require.NoError(t, repo.SetDefault(ctx, first.ID))
	def, err := repo.GetDefault(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, first.ID, def.ID)

	// Switching clears the previous default
	require.NoError(t, repo.SetDefault(ctx, second.ID))
	def, err = repo.GetDefault(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, second.ID, def.ID)

	var defaults int64
	require.NoError(t, db.Model(&models.Profile{}).Where("is_default = ?", true).Count(&defaults).Error)
	assert.Equal(t, int64(1), defaults)

	// Unknown ID errors without disturbing the current default
	assert.Error(t, repo.SetDefault(ctx, models.NewULID()))
	def, err = repo.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)
}

func TestProfileRepo_GetDefault_NoneMarked(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	createTestProfile(t, db)

	def, err := repo.GetDefault(ctx)
	require.NoError(t, err)
	assert.Nil(t, def)
}
