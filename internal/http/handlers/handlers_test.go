package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Profile{},
		&models.QueueItem{},
		&models.ScanRoot{},
		&models.FolderWatch{},
		&models.Schedule{},
		&models.ExternalConnection{},
		&models.HistoryRecord{},
		&models.Setting{},
	))
	return db
}

func createProfile(t *testing.T, db *gorm.DB, codec models.VideoCodec) *models.Profile {
	t.Helper()
	profile := &models.Profile{
		Name:             "profile-" + models.NewULID().String(),
		Codec:            codec,
		Quality:          22,
		Container:        models.ContainerMKV,
		AudioStrategy:    models.AudioPreserveAll,
		SubtitleStrategy: models.SubtitlePreserveAll,
	}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

func createQueueItem(t *testing.T, queue repository.QueueRepository, profileID models.ULID, path string, size int64) *models.QueueItem {
	t.Helper()
	item := &models.QueueItem{
		FilePath:      path,
		ProfileID:     profileID,
		Status:        models.StatusPending,
		Priority:      50,
		FileSizeBytes: size,
		CurrentSpecs:  models.MediaSpecs{Codec: "h264", Resolution: "1920x1080"},
		TargetSpecs:   models.TargetSpecs{Codec: "h265"},
	}
	require.NoError(t, queue.Create(context.Background(), item))
	return item
}

// writeScript drops an executable shell script into dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}
