package repository

import (
	"context"
	"testing"
	"time"

	"github.com/recodarr/recodarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordAt(path string, original, saved int64, completed time.Time) *models.HistoryRecord {
	return &models.HistoryRecord{
		FilePath:            path,
		ProfileName:         "Default (H.265)",
		OriginalSizeBytes:   original,
		NewSizeBytes:        original - saved,
		SavingsBytes:        saved,
		EncodingTimeSeconds: 1200,
		Codec:               "h265",
		Container:           "mkv",
		CompletedAtTime:     completed,
	}
}

func TestHistoryRepo_RecordAndGetRecent(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Record(ctx, recordAt("/media/old.mkv", 4<<30, 2<<30, now.Add(-48*time.Hour))))
	require.NoError(t, repo.Record(ctx, recordAt("/media/new.mkv", 2<<30, 1<<30, now)))

	records, total, err := repo.GetRecent(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 2)
	// Newest first
	assert.Equal(t, "/media/new.mkv", records[0].FilePath)

	// Pagination
	records, total, err = repo.GetRecent(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 1)
	assert.Equal(t, "/media/old.mkv", records[0].FilePath)
}

func TestHistoryRepo_Stats(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()
	now := time.Now()

	// 50% savings inside the window, 25% savings outside it
	require.NoError(t, repo.Record(ctx, recordAt("/media/recent.mkv", 4<<30, 2<<30, now.Add(-time.Hour))))
	require.NoError(t, repo.Record(ctx, recordAt("/media/ancient.mkv", 4<<30, 1<<30, now.Add(-30*24*time.Hour))))

	stats, err := repo.Stats(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalTranscodes)
	assert.Equal(t, int64(2<<30), stats.TotalSavedBytes)
	assert.InDelta(t, 50.0, stats.AvgSavingsPct, 0.01)

	// days <= 0 aggregates everything
	stats, err = repo.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalTranscodes)
	assert.Equal(t, int64(3<<30), stats.TotalSavedBytes)
	assert.InDelta(t, 37.5, stats.AvgSavingsPct, 0.01)
	assert.InDelta(t, 2400.0, stats.TotalEncodingSec, 0.01)
}

func TestHistoryRepo_Stats_Empty(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewHistoryRepository(db)

	stats, err := repo.Stats(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalTranscodes)
	assert.Zero(t, stats.TotalSavedBytes)
	assert.Zero(t, stats.AvgSavingsPct)
}

func TestHistoryRepo_DeleteOlderThan(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Record(ctx, recordAt("/media/old.mkv", 4<<30, 2<<30, now.Add(-90*24*time.Hour))))
	require.NoError(t, repo.Record(ctx, recordAt("/media/new.mkv", 4<<30, 2<<30, now)))

	n, err := repo.DeleteOlderThan(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, total, err := repo.GetRecent(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
