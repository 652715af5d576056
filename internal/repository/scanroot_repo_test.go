package repository

import (
	"context"
	"testing"
	"time"

	"github.com/recodarr/recodarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanRootRepo_CRUD(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewScanRootRepository(db)
	ctx := context.Background()
	profile := createTestProfile(t, db)

	root := &models.ScanRoot{
		Path:        "/media/movies",
		ProfileID:   profile.ID,
		LibraryType: "movies",
	}
	require.NoError(t, repo.Create(ctx, root))

	found, err := repo.GetByID(ctx, root.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.IsEnabled())
	assert.True(t, found.IsRecursive())

	found.Enabled = models.BoolPtr(false)
	require.NoError(t, repo.Update(ctx, found))

	enabled, err := repo.GetEnabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestScanRootRepo_DeleteClearsQueueRefs(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewScanRootRepository(db)
	queueRepo := NewQueueRepository(db)
	ctx := context.Background()
	profile := createTestProfile(t, db)

	root := &models.ScanRoot{Path: "/media/movies", ProfileID: profile.ID}
	require.NoError(t, repo.Create(ctx, root))

	item := newTestItem(profile.ID, "/media/movies/a.mkv", 50)
	item.RootID = root.ID
	require.NoError(t, queueRepo.Create(ctx, item))

	require.NoError(t, repo.Delete(ctx, root.ID))

	// Root gone, item kept with the reference cleared
	gone, err := repo.GetByID(ctx, root.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := queueRepo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.True(t, kept.RootID.IsZero())
	assert.Equal(t, models.StatusPending, kept.Status)
}

func TestScanRootRepo_UpdateLastScanned(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewScanRootRepository(db)
	ctx := context.Background()
	profile := createTestProfile(t, db)

	root := &models.ScanRoot{Path: "/media/movies", ProfileID: profile.ID}
	require.NoError(t, repo.Create(ctx, root))
	require.Nil(t, root.LastScanned)

	at := time.Now().Truncate(time.Second)
	require.NoError(t, repo.UpdateLastScanned(ctx, root.ID, at))

	found, err := repo.GetByID(ctx, root.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastScanned)
	assert.WithinDuration(t, at, *found.LastScanned, time.Second)
}

func TestScanRootRepo_GetByConnectionID(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewScanRootRepository(db)
	ctx := context.Background()
	profile := createTestProfile(t, db)
	connID := models.NewULID()

	linked := &models.ScanRoot{Path: "/media/movies", ProfileID: profile.ID, ExternalConnectionID: connID}
	unlinked := &models.ScanRoot{Path: "/media/other", ProfileID: profile.ID}
	require.NoError(t, repo.Create(ctx, linked))
	require.NoError(t, repo.Create(ctx, unlinked))

	roots, err := repo.GetByConnectionID(ctx, connID)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "/media/movies", roots[0].Path)
}
