package repository

import (
	"context"
	"testing"
	"time"

	"github.com/recodarr/recodarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderWatchRepo_CRUD(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewFolderWatchRepository(db)
	ctx := context.Background()
	profile := createTestProfile(t, db)

	watch := &models.FolderWatch{Path: "/media/incoming", ProfileID: profile.ID}
	require.NoError(t, repo.Create(ctx, watch))

	enabled, err := repo.GetEnabled(ctx)
	require.NoError(t, err)
	assert.Len(t, enabled, 1)

	at := time.Now().Truncate(time.Second)
	require.NoError(t, repo.UpdateLastCheck(ctx, watch.ID, at))

	found, err := repo.GetByID(ctx, watch.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastCheck)
	assert.WithinDuration(t, at, *found.LastCheck, time.Second)

	found.Enabled = models.BoolPtr(false)
	require.NoError(t, repo.Update(ctx, found))
	enabled, err = repo.GetEnabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, repo.Delete(ctx, watch.ID))
	gone, err := repo.GetByID(ctx, watch.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestScheduleRepo_GetCreatesDefault(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewScheduleRepository(db)
	ctx := context.Background()

	schedule, err := repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, schedule)
	assert.False(t, schedule.Enabled)
	assert.Equal(t, "22:00", schedule.StartTime)
	assert.Equal(t, "06:00", schedule.EndTime)

	// Second Get returns the same row
	again, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, schedule.ID, again.ID)

	again.Enabled = true
	again.DaysOfWeek = "5,6"
	require.NoError(t, repo.Update(ctx, again))

	reloaded, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.True(t, reloaded.Enabled)
	assert.Equal(t, "5,6", reloaded.DaysOfWeek)
}

func TestConnectionRepo_CRUD(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewConnectionRepository(db)
	ctx := context.Background()

	conn := &models.ExternalConnection{
		Name:            "radarr",
		Kind:            models.KindCatalogMovie,
		BaseURL:         "http://localhost:7878",
		APIKeyEncrypted: "ciphertext",
	}
	require.NoError(t, repo.Create(ctx, conn))

	movies, err := repo.GetByKind(ctx, models.KindCatalogMovie)
	require.NoError(t, err)
	assert.Len(t, movies, 1)

	series, err := repo.GetByKind(ctx, models.KindCatalogSeries)
	require.NoError(t, err)
	assert.Empty(t, series)

	at := time.Now().Truncate(time.Second)
	require.NoError(t, repo.UpdateLastTested(ctx, conn.ID, at))
	require.NoError(t, repo.UpdateLastSynced(ctx, conn.ID, at))

	found, err := repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastTested)
	require.NotNil(t, found.LastSynced)

	found.Enabled = models.BoolPtr(false)
	require.NoError(t, repo.Update(ctx, found))
	enabled, err := repo.GetEnabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, repo.Delete(ctx, conn.ID))
	gone, err := repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSettingRepo_SetGetDelete(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewSettingRepository(db)
	ctx := context.Background()

	_, ok, err := repo.Get(ctx, "watcher.poll_interval")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(ctx, "watcher.poll_interval", "60s"))
	value, ok, err := repo.Get(ctx, "watcher.poll_interval")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "60s", value)

	// Set on an existing key overwrites
	require.NoError(t, repo.Set(ctx, "watcher.poll_interval", "120s"))
	value, _, err = repo.Get(ctx, "watcher.poll_interval")
	require.NoError(t, err)
	assert.Equal(t, "120s", value)

	require.NoError(t, repo.Set(ctx, "encoder.nice", "15"))
	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "15", all["encoder.nice"])

	require.NoError(t, repo.Delete(ctx, "encoder.nice"))
	_, ok, err = repo.Get(ctx, "encoder.nice")
	require.NoError(t, err)
	assert.False(t, ok)
}
