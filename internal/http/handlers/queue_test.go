package handlers

import (
	"context"
	"testing"

	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/probe"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProbeScript emits a fixed ffprobe result: 1920x1080 h264 at 24fps.
const fakeProbeScript = `
cat << 'JSON'
{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
     "r_frame_rate": "24/1", "avg_frame_rate": "24/1"}
  ],
  "format": {"duration": "60.0", "bit_rate": "5000000"}
}
JSON
`

func TestQueueList_FiltersAndPaginates(t *testing.T) {
	db := setupDB(t)
	queue := repository.NewQueueRepository(db)
	profile := createProfile(t, db, models.CodecH265)
	handler := NewQueueHandler(queue, nil, nil)
	ctx := context.Background()

	createQueueItem(t, queue, profile.ID, "/media/a.mkv", 100)
	createQueueItem(t, queue, profile.ID, "/media/b.mkv", 200)
	done := createQueueItem(t, queue, profile.ID, "/media/c.mkv", 300)
	done.MarkProcessing()
	done.MarkCompleted()
	require.NoError(t, queue.Update(ctx, done))

	out, err := handler.List(ctx, &ListQueueInput{
		Pagination: Pagination{Page: 1, Limit: 10},
		Status:     "pending",
	})
	require.NoError(t, err)
	assert.Len(t, out.Body.Items, 2)
	assert.Equal(t, int64(2), out.Body.Pagination.TotalItems)

	out, err = handler.List(ctx, &ListQueueInput{
		Pagination: Pagination{Page: 2, Limit: 1},
	})
	require.NoError(t, err)
	assert.Len(t, out.Body.Items, 1)
	assert.Equal(t, int64(3), out.Body.Pagination.TotalItems)

	_, err = handler.List(ctx, &ListQueueInput{Status: "bogus"})
	require.Error(t, err)

	counts, err := handler.Counts(ctx, &struct{}{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Body.Pending)
	assert.Equal(t, int64(1), counts.Body.Completed)
}

func TestQueueDelete_RefusesProcessing(t *testing.T) {
	db := setupDB(t)
	queue := repository.NewQueueRepository(db)
	profile := createProfile(t, db, models.CodecH265)
	handler := NewQueueHandler(queue, nil, nil)
	ctx := context.Background()

	item := createQueueItem(t, queue, profile.ID, "/media/busy.mkv", 100)
	item.MarkProcessing()
	require.NoError(t, queue.Update(ctx, item))

	_, err := handler.Delete(ctx, &QueueItemInput{ID: item.ID.String()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processed")

	item.MarkFailed("boom")
	require.NoError(t, queue.Update(ctx, item))
	_, err = handler.Delete(ctx, &QueueItemInput{ID: item.ID.String()})
	require.NoError(t, err)

	stored, err := queue.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestQueuePrioritize(t *testing.T) {
	db := setupDB(t)
	queue := repository.NewQueueRepository(db)
	profile := createProfile(t, db, models.CodecH265)
	handler := NewQueueHandler(queue, nil, nil)
	ctx := context.Background()

	small := createQueueItem(t, queue, profile.ID, "/media/small.mkv", 100)
	large := createQueueItem(t, queue, profile.ID, "/media/large.mkv", 9000)

	input := &PrioritizeInput{}
	input.Body.SortBy = "file_size"
	input.Body.Descending = true
	out, err := handler.Prioritize(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Body.Updated)

	largeStored, err := queue.GetByID(ctx, large.ID)
	require.NoError(t, err)
	smallStored, err := queue.GetByID(ctx, small.ID)
	require.NoError(t, err)
	assert.Greater(t, largeStored.Priority, smallStored.Priority)

	input.Body.SortBy = "bogus"
	_, err = handler.Prioritize(ctx, input)
	require.Error(t, err)
}

func TestQueueReprobe(t *testing.T) {
	db := setupDB(t)
	queue := repository.NewQueueRepository(db)
	ctx := context.Background()

	ffprobe := writeScript(t, t.TempDir(), "ffprobe", fakeProbeScript)
	handler := NewQueueHandler(queue, probe.NewProber(ffprobe, nil), nil)

	// Target differs from the probed codec: specs get refreshed.
	h265 := createProfile(t, db, models.CodecH265)
	stale := &models.QueueItem{
		FilePath:     "/media/stale.mkv",
		ProfileID:    h265.ID,
		Status:       models.StatusPending,
		Priority:     50,
		CurrentSpecs: models.MediaSpecs{Codec: "unknown"},
		TargetSpecs:  models.TargetSpecs{Codec: "h265"},
	}
	require.NoError(t, queue.Create(ctx, stale))

	// Target matches the probed codec: the item is removed.
	h264 := createProfile(t, db, models.CodecH264)
	settled := &models.QueueItem{
		FilePath:     "/media/settled.mkv",
		ProfileID:    h264.ID,
		Status:       models.StatusPending,
		Priority:     50,
		CurrentSpecs: models.MediaSpecs{Codec: "unknown"},
		TargetSpecs:  models.TargetSpecs{Codec: "h264"},
	}
	require.NoError(t, queue.Create(ctx, settled))

	out, err := handler.Reprobe(ctx, &struct{}{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Body.Checked)
	assert.Equal(t, 1, out.Body.Updated)
	assert.Equal(t, 1, out.Body.Removed)
	assert.Zero(t, out.Body.Errors)

	refreshed, err := queue.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.Equal(t, "h264", refreshed.CurrentSpecs.Codec)

	gone, err := queue.GetByID(ctx, settled.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
