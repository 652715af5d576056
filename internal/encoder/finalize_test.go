package encoder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupEncoderTest(t *testing.T) (*gorm.DB, repository.QueueRepository, repository.HistoryRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Profile{},
		&models.QueueItem{},
		&models.HistoryRecord{},
	))
	return db, repository.NewQueueRepository(db), repository.NewHistoryRepository(db)
}

func createQueueItem(t *testing.T, db *gorm.DB, queue repository.QueueRepository, path string) (*models.QueueItem, *models.Profile) {
	t.Helper()

	profile := &models.Profile{
		Name:             "h265-" + models.NewULID().String(),
		Codec:            models.CodecH265,
		Quality:          22,
		Container:        models.ContainerMKV,
		AudioStrategy:    models.AudioPreserveAll,
		SubtitleStrategy: models.SubtitlePreserveAll,
	}
	require.NoError(t, db.Create(profile).Error)

	item := &models.QueueItem{
		FilePath:     path,
		ProfileID:    profile.ID,
		Status:       models.StatusPending,
		Priority:     50,
		CurrentSpecs: models.MediaSpecs{Codec: "h264", Width: 1920, Height: 1080},
		TargetSpecs:  models.TargetSpecs{Codec: "h265", Container: "mkv"},
	}
	require.NoError(t, queue.Create(context.Background(), item))
	return item, profile
}

func TestFinalize_Success(t *testing.T) {
	db, queue, history := setupEncoderTest(t)
	ctx := context.Background()
	dir := t.TempDir()

	original := filepath.Join(dir, "movie.avi")
	require.NoError(t, os.WriteFile(original, []byte("original content, quite large"), 0o644))

	item, profile := createQueueItem(t, db, queue, original)
	item.MarkProcessing()
	started := time.Now().Add(-90 * time.Second)
	item.StartedAt = &started
	require.NoError(t, queue.Update(ctx, item))

	output := OutputPath(original, profile.Container)
	require.NoError(t, os.WriteFile(output, []byte("smaller"), 0o644))

	f := NewFinalizer(queue, history, nil, nil)
	require.NoError(t, f.Finalize(ctx, item, profile, output))

	// Original replaced by the renamed output under the new extension
	final := filepath.Join(dir, "movie.mkv")
	assert.NoFileExists(t, original)
	assert.NoFileExists(t, output)
	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "smaller", string(data))

	stored, err := queue.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	var records []models.HistoryRecord
	require.NoError(t, db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, final, records[0].FilePath)
	assert.Equal(t, int64(29), records[0].OriginalSizeBytes)
	assert.Equal(t, int64(7), records[0].NewSizeBytes)
	assert.Equal(t, int64(22), records[0].SavingsBytes)
	assert.InDelta(t, 90, records[0].EncodingTimeSeconds, 5)
	assert.Equal(t, "h265", records[0].Codec)
}

func TestFinalize_OutputMissingKeepsOriginal(t *testing.T) {
	db, queue, history := setupEncoderTest(t)
	ctx := context.Background()
	dir := t.TempDir()

	original := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(original, []byte("original"), 0o644))

	item, profile := createQueueItem(t, db, queue, original)
	item.MarkProcessing()
	require.NoError(t, queue.Update(ctx, item))

	f := NewFinalizer(queue, history, nil, nil)
	err := f.Finalize(ctx, item, profile, filepath.Join(dir, "movie_optimized.mkv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output file missing")

	assert.FileExists(t, original)
	stored, getErr := queue.GetByID(ctx, item.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusFailed, stored.Status)

	var count int64
	require.NoError(t, db.Model(&models.HistoryRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFinalize_EmptyOutputFails(t *testing.T) {
	db, queue, history := setupEncoderTest(t)
	ctx := context.Background()
	dir := t.TempDir()

	original := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(original, []byte("original"), 0o644))

	item, profile := createQueueItem(t, db, queue, original)
	item.MarkProcessing()
	require.NoError(t, queue.Update(ctx, item))

	output := filepath.Join(dir, "movie_optimized.mkv")
	require.NoError(t, os.WriteFile(output, nil, 0o644))

	f := NewFinalizer(queue, history, nil, nil)
	err := f.Finalize(ctx, item, profile, output)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output file empty")
	assert.FileExists(t, original)
}

func TestFinalize_AlreadyFinalised(t *testing.T) {
	db, queue, history := setupEncoderTest(t)
	ctx := context.Background()
	dir := t.TempDir()

	original := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(original, []byte("original"), 0o644))

	item, profile := createQueueItem(t, db, queue, original)
	item.MarkProcessing()
	item.MarkCompleted()
	require.NoError(t, queue.Update(ctx, item))

	f := NewFinalizer(queue, history, nil, nil)
	err := f.Finalize(ctx, item, profile, filepath.Join(dir, "movie_optimized.mkv"))
	assert.ErrorIs(t, err, ErrAlreadyFinalised)
	// The filesystem is untouched
	assert.FileExists(t, original)
}
