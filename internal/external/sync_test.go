package external

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/recodarr/recodarr/internal/config"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/probe"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type syncFixture struct {
	db          *gorm.DB
	queue       repository.QueueRepository
	connections repository.ConnectionRepository
	syncer      *Syncer
	cipher      *Cipher
}

func setupSyncTest(t *testing.T) *syncFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Profile{},
		&models.ScanRoot{},
		&models.QueueItem{},
		&models.ExternalConnection{},
	))

	queue := repository.NewQueueRepository(db)
	profiles := repository.NewProfileRepository(db)
	scanner := scan.NewScanner(
		queue,
		repository.NewScanRootRepository(db),
		profiles,
		probe.NewProber("/nonexistent/ffprobe", nil),
		nil,
		nil,
	)

	cipher, err := NewCipher("test-secret")
	require.NoError(t, err)

	connections := repository.NewConnectionRepository(db)
	syncer := NewSyncer(
		config.ExternalConfig{HTTPTimeout: 2 * time.Second},
		connections, profiles, repository.NewScanRootRepository(db), scanner, cipher, nil,
	)
	return &syncFixture{db: db, queue: queue, connections: connections, syncer: syncer, cipher: cipher}
}

func (f *syncFixture) createDefaultProfile(t *testing.T) *models.Profile {
	t.Helper()
	profile := &models.Profile{
		Name:             "default-" + models.NewULID().String(),
		Codec:            models.CodecH265,
		Quality:          22,
		Container:        models.ContainerMKV,
		AudioStrategy:    models.AudioPreserveAll,
		SubtitleStrategy: models.SubtitlePreserveAll,
		IsDefault:        true,
	}
	require.NoError(t, f.db.Create(profile).Error)
	return profile
}

func (f *syncFixture) createConnection(t *testing.T, kind models.ConnectionKind, baseURL string) *models.ExternalConnection {
	t.Helper()
	encrypted, err := f.cipher.Encrypt("api-key-1234")
	require.NoError(t, err)
	conn := &models.ExternalConnection{
		Name:            "test-" + string(kind),
		Kind:            kind,
		BaseURL:         baseURL,
		APIKeyEncrypted: encrypted,
	}
	require.NoError(t, f.connections.Create(context.Background(), conn))
	return conn
}

func TestSyncerTest_StampsLastTested(t *testing.T) {
	f := setupSyncTest(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "api-key-1234", r.Header.Get("X-Api-Key"))
		fmt.Fprint(w, `{"appName":"Radarr","version":"5.2.6"}`)
	}))
	defer server.Close()

	conn := f.createConnection(t, models.KindCatalogMovie, server.URL)
	ctx := context.Background()

	status, err := f.syncer.Test(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Radarr", status.AppName)

	stored, err := f.connections.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastTested)
}

func TestSync_QueuesThroughScanPipeline(t *testing.T) {
	f := setupSyncTest(t)
	f.createDefaultProfile(t)

	moviePath := filepath.Join(t.TempDir(), "movie.mkv")
	require.NoError(t, os.WriteFile(moviePath, []byte("bits"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"id":1,"title":"A","movieFile":{"path":%q,"size":4,
			"mediaInfo":{"videoCodec":"x264","videoResolution":"1920x1080"}}}]`, moviePath)
	}))
	defer server.Close()

	conn := f.createConnection(t, models.KindCatalogMovie, server.URL)
	ctx := context.Background()

	result, err := f.syncer.Sync(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 1, result.Queued)

	item, err := f.queue.FindActiveByPath(ctx, moviePath)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "h264", item.CurrentSpecs.Codec)
	assert.Equal(t, "catalog-movie", item.CurrentSpecs.Source)

	// A second sync dedupes against the active item
	result, err = f.syncer.Sync(ctx, conn.ID)
	require.NoError(t, err)
	assert.Zero(t, result.Queued)
	assert.Equal(t, 1, result.Skipped)

	stored, err := f.connections.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastSynced)
}

func TestSync_NoDefaultProfile(t *testing.T) {
	f := setupSyncTest(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	conn := f.createConnection(t, models.KindCatalogMovie, server.URL)
	_, err := f.syncer.Sync(context.Background(), conn.ID)
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestSync_UnsupportedKind(t *testing.T) {
	f := setupSyncTest(t)
	conn := f.createConnection(t, models.KindSceneLibrary, "http://unused.invalid")
	_, err := f.syncer.Sync(context.Background(), conn.ID)
	assert.ErrorIs(t, err, ErrSyncUnsupported)
}

func TestHandlePush_DownloadQueues(t *testing.T) {
	f := setupSyncTest(t)
	f.createDefaultProfile(t)
	ctx := context.Background()

	moviePath := filepath.Join(t.TempDir(), "pushed.mkv")
	require.NoError(t, os.WriteFile(moviePath, []byte("bits"), 0o644))

	payload := fmt.Sprintf(`{"eventType":"Download","movieFile":{"path":%q,"size":4,
		"mediaInfo":{"videoCodec":"x264","videoResolution":"1920x1080"}}}`, moviePath)

	result, err := f.syncer.HandlePush(ctx, models.KindCatalogMovie, []byte(payload))
	require.NoError(t, err)
	assert.True(t, result.Queued)

	item, err := f.queue.FindActiveByPath(ctx, moviePath)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "h264", item.CurrentSpecs.Codec)
}

func TestHandlePush_IgnoresOtherEvents(t *testing.T) {
	f := setupSyncTest(t)
	f.createDefaultProfile(t)

	result, err := f.syncer.HandlePush(context.Background(), models.KindCatalogMovie,
		[]byte(`{"eventType":"Test"}`))
	require.NoError(t, err)
	assert.False(t, result.Queued)
	assert.Contains(t, result.Message, "ignored")

	result, err = f.syncer.HandlePush(context.Background(), models.KindCatalogMovie,
		[]byte(`{"eventType":"Rename","movieFile":{"path":"/media/x.mkv"}}`))
	require.NoError(t, err)
	assert.False(t, result.Queued)
}

func TestHandlePush_SeriesPayload(t *testing.T) {
	f := setupSyncTest(t)
	f.createDefaultProfile(t)
	ctx := context.Background()

	epPath := filepath.Join(t.TempDir(), "s01e01.mkv")
	require.NoError(t, os.WriteFile(epPath, []byte("bits"), 0o644))

	payload := fmt.Sprintf(`{"eventType":"Upgrade","episodeFile":{"path":%q,"size":4,
		"mediaInfo":{"videoCodec":"hevc","resolution":"1280x720"}}}`, epPath)

	result, err := f.syncer.HandlePush(ctx, models.KindCatalogSeries, []byte(payload))
	require.NoError(t, err)
	// hevc already matches the h265 target, so the scan pipeline skips it
	assert.False(t, result.Queued)
	assert.Contains(t, result.Message, "skipped")

	item, err := f.queue.FindActiveByPath(ctx, epPath)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestHandlePush_MissingPath(t *testing.T) {
	f := setupSyncTest(t)
	f.createDefaultProfile(t)

	_, err := f.syncer.HandlePush(context.Background(), models.KindCatalogMovie,
		[]byte(`{"eventType":"Download"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no file path")
}

func TestSync_LinkedRootProfileWins(t *testing.T) {
	f := setupSyncTest(t)
	f.createDefaultProfile(t)

	av1 := &models.Profile{
		Name:             "linked-av1",
		Codec:            models.CodecAV1,
		Quality:          24,
		Container:        models.ContainerMKV,
		AudioStrategy:    models.AudioPreserveAll,
		SubtitleStrategy: models.SubtitlePreserveAll,
	}
	require.NoError(t, f.db.Create(av1).Error)

	dir := t.TempDir()
	moviePath := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(moviePath, []byte("bits"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"id":1,"title":"A","movieFile":{"path":%q,"size":4,
			"mediaInfo":{"videoCodec":"x264","videoResolution":"1920x1080"}}}]`, moviePath)
	}))
	defer server.Close()

	conn := f.createConnection(t, models.KindCatalogMovie, server.URL)
	ctx := context.Background()

	root := &models.ScanRoot{
		Path:                 dir,
		ProfileID:            av1.ID,
		ExternalConnectionID: conn.ID,
	}
	require.NoError(t, f.db.Create(root).Error)

	result, err := f.syncer.Sync(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)

	item, err := f.queue.FindActiveByPath(ctx, moviePath)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, av1.ID, item.ProfileID)
	assert.Equal(t, root.ID, item.RootID)
	assert.Equal(t, "av1", item.TargetSpecs.Codec)
}

func TestHandlePush_UnderEnabledRoot(t *testing.T) {
	f := setupSyncTest(t)
	f.createDefaultProfile(t)

	h264 := &models.Profile{
		Name:             "root-h264",
		Codec:            models.CodecH264,
		Quality:          26,
		Container:        models.ContainerMKV,
		AudioStrategy:    models.AudioPreserveAll,
		SubtitleStrategy: models.SubtitlePreserveAll,
	}
	require.NoError(t, f.db.Create(h264).Error)

	dir := t.TempDir()
	epPath := filepath.Join(dir, "s01e01.mkv")
	require.NoError(t, os.WriteFile(epPath, []byte("bits"), 0o644))

	root := &models.ScanRoot{Path: dir, ProfileID: h264.ID}
	require.NoError(t, f.db.Create(root).Error)

	payload := fmt.Sprintf(`{"eventType":"Download","episodeFile":{"path":%q,
		"mediaInfo":{"videoCodec":"hevc","videoResolution":"1920x1080"}}}`, epPath)
	result, err := f.syncer.HandlePush(context.Background(), models.KindCatalogSeries, []byte(payload))
	require.NoError(t, err)
	assert.True(t, result.Queued)

	item, err := f.queue.FindActiveByPath(context.Background(), epPath)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, h264.ID, item.ProfileID)
	assert.Equal(t, "h264", item.TargetSpecs.Codec)
}
