package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/observability"
	"github.com/recodarr/recodarr/internal/repository"
)

// ErrAlreadyFinalised is returned when finalisation is requested for an item
// that already completed. The filesystem is not touched in that case.
var ErrAlreadyFinalised = errors.New("item already finalised")

// Finalizer performs the atomic replace at the end of a successful
// transcode and records history.
type Finalizer struct {
	queue   repository.QueueRepository
	history repository.HistoryRepository
	stats   *observability.StatsLog
	logger  *slog.Logger
}

// NewFinalizer creates a finalizer over the given repositories.
func NewFinalizer(queue repository.QueueRepository, history repository.HistoryRepository, stats *observability.StatsLog, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{
		queue:   queue,
		history: history,
		stats:   stats,
		logger:  logger.With(slog.String("component", "finalize")),
	}
}

// Finalize replaces the original file with the transcoder output and writes
// the history record. On any failure before the original is removed, the
// original is left intact, the item is marked failed, and no history is
// written.
func (f *Finalizer) Finalize(ctx context.Context, item *models.QueueItem, profile *models.Profile, outputPath string) error {
	if item.Status == models.StatusCompleted {
		return ErrAlreadyFinalised
	}

	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return f.fail(ctx, item, fmt.Sprintf("output file missing: %s", outputPath))
	}
	if outInfo.Size() == 0 {
		return f.fail(ctx, item, fmt.Sprintf("output file empty: %s", outputPath))
	}

	origInfo, err := os.Stat(item.FilePath)
	if err != nil {
		return f.fail(ctx, item, fmt.Sprintf("original file missing: %s", item.FilePath))
	}
	originalSize := origInfo.Size()
	newSize := outInfo.Size()

	finalPath := FinalPath(item.FilePath, profile.Container)
	if err := os.Remove(item.FilePath); err != nil {
		return f.fail(ctx, item, fmt.Sprintf("removing original: %v", err))
	}
	if err := os.Rename(outputPath, finalPath); err != nil {
		// The original is already gone; surface the stranded output path.
		return f.fail(ctx, item, fmt.Sprintf("renaming output to %s: %v (output left at %s)", finalPath, err, outputPath))
	}

	var encodingSeconds float64
	if item.StartedAt != nil {
		encodingSeconds = time.Since(*item.StartedAt).Seconds()
	}

	item.MarkCompleted()
	if err := f.queue.Update(ctx, item); err != nil {
		return fmt.Errorf("marking item completed: %w", err)
	}

	record := &models.HistoryRecord{
		FilePath:            finalPath,
		ProfileName:         profile.Name,
		OriginalSizeBytes:   originalSize,
		NewSizeBytes:        newSize,
		SavingsBytes:        originalSize - newSize,
		EncodingTimeSeconds: encodingSeconds,
		Codec:               string(profile.Codec),
		Container:           string(profile.Container),
		CompletedAtTime:     models.Now(),
	}
	if err := f.history.Record(ctx, record); err != nil {
		return fmt.Errorf("recording history: %w", err)
	}

	if f.stats != nil {
		f.stats.TranscodeComplete(finalPath, originalSize, newSize, time.Duration(encodingSeconds*float64(time.Second)))
	}
	f.logger.Info("transcode finalised",
		slog.String("path", finalPath),
		slog.Int64("original_bytes", originalSize),
		slog.Int64("new_bytes", newSize),
		slog.Int64("savings_bytes", originalSize-newSize))
	return nil
}

// fail marks the item failed with the given reason. The caller's error is
// the reason string so failures surface uniformly.
func (f *Finalizer) fail(ctx context.Context, item *models.QueueItem, reason string) error {
	item.MarkFailed(reason)
	if err := f.queue.Update(ctx, item); err != nil {
		return fmt.Errorf("marking item failed after %q: %w", reason, err)
	}
	if f.stats != nil {
		f.stats.TranscodeError(item.FilePath, reason)
	}
	return errors.New(reason)
}
