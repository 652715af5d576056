// Package scan discovers media files, decides whether they need encoding,
// and inserts queue items. The folder watcher and external sync reuse the
// same per-file pipeline so dedup and estimation behave identically for
// every discovery source.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/observability"
	"github.com/recodarr/recodarr/internal/probe"
	"github.com/recodarr/recodarr/internal/repository"
)

// Outcome classifies what Process did with one candidate.
type Outcome string

const (
	// OutcomeQueued means a pending queue item was inserted.
	OutcomeQueued Outcome = "queued"
	// OutcomeSkipped means the candidate was not queued; Result.Reason says why.
	OutcomeSkipped Outcome = "skipped"
	// OutcomePermissionError means an item was inserted in permission_error state.
	OutcomePermissionError Outcome = "permission_error"
)

// Result is the verdict for one processed candidate.
type Result struct {
	Outcome Outcome
	Reason  string
	Item    *models.QueueItem
}

// Scanner walks roots and funnels candidates into the queue.
type Scanner struct {
	queue    repository.QueueRepository
	roots    repository.ScanRootRepository
	profiles repository.ProfileRepository
	prober   *probe.Prober
	stats    *observability.StatsLog
	logger   *slog.Logger
}

// NewScanner creates a scanner over the given repositories.
func NewScanner(
	queue repository.QueueRepository,
	roots repository.ScanRootRepository,
	profiles repository.ProfileRepository,
	prober *probe.Prober,
	stats *observability.StatsLog,
	logger *slog.Logger,
) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		queue:    queue,
		roots:    roots,
		profiles: profiles,
		prober:   prober,
		stats:    stats,
		logger:   logger.With(slog.String("component", "scan")),
	}
}

// ScanRoot enumerates one root and queues the files that need encoding.
// Returns the number of items inserted.
func (s *Scanner) ScanRoot(ctx context.Context, rootID models.ULID) (int, error) {
	root, err := s.roots.GetByID(ctx, rootID)
	if err != nil {
		return 0, fmt.Errorf("loading scan root: %w", err)
	}
	if root == nil {
		return 0, fmt.Errorf("scan root %s not found", rootID)
	}
	if !root.IsEnabled() {
		s.logger.Info("scan root disabled, skipping", slog.String("path", root.Path))
		return 0, nil
	}

	profile, err := s.profiles.GetByID(ctx, root.ProfileID)
	if err != nil {
		return 0, fmt.Errorf("loading profile for root %s: %w", root.Path, err)
	}
	if profile == nil {
		return 0, fmt.Errorf("profile %s for root %s not found", root.ProfileID, root.Path)
	}

	start := time.Now()
	extensions := defaultExtensionSet()
	paths, err := Enumerate(root.Path, root.IsRecursive(), extensions)
	if err != nil {
		return 0, fmt.Errorf("enumerating root %s: %w", root.Path, err)
	}

	added := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		result, err := s.Process(ctx, path, profile, root, nil)
		if err != nil {
			s.logger.Warn("processing candidate failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		if result.Outcome == OutcomeQueued {
			added++
		}
	}

	if err := s.roots.UpdateLastScanned(ctx, root.ID, time.Now()); err != nil {
		s.logger.Warn("stamping last_scanned failed", slog.String("error", err.Error()))
	}
	if s.stats != nil {
		s.stats.ScanComplete(root.Path, len(paths), time.Since(start))
	}
	s.logger.Info("scan complete",
		slog.String("path", root.Path),
		slog.Int("files_found", len(paths)),
		slog.Int("added", added),
		slog.Duration("duration", time.Since(start)))
	return added, nil
}

// ScanAllRoots scans every enabled root. A failing root is logged and does
// not abort the remaining roots.
func (s *Scanner) ScanAllRoots(ctx context.Context) (int, error) {
	roots, err := s.roots.GetEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading scan roots: %w", err)
	}

	total := 0
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		added, err := s.ScanRoot(ctx, root.ID)
		if err != nil {
			s.logger.Error("scanning root failed",
				slog.String("path", root.Path),
				slog.String("error", err.Error()))
			continue
		}
		total += added
	}
	return total, nil
}

// Process runs the full per-candidate pipeline for one path: dedup against
// the queue, access check, probe (unless specs are presupplied by a catalog
// service), needs-encoding decision, savings estimate, upscale plan, insert.
// root may be nil for candidates discovered outside a scan root.
func (s *Scanner) Process(ctx context.Context, path string, profile *models.Profile, root *models.ScanRoot, presupplied *models.MediaSpecs) (Result, error) {
	existing, err := s.queue.FindActiveByPath(ctx, path)
	if err != nil {
		return Result{}, fmt.Errorf("checking queue for %s: %w", path, err)
	}
	if existing != nil {
		return Result{Outcome: OutcomeSkipped, Reason: "already queued"}, nil
	}

	item := &models.QueueItem{
		FilePath:         path,
		ProfileID:        profile.ID,
		Status:           models.StatusPending,
		PermissionStatus: models.PermissionOK,
	}
	if root != nil {
		item.RootID = root.ID
	}

	permStatus, permMessage := CheckAccess(path)
	if permStatus != models.PermissionOK {
		item.MarkPermissionError(permStatus, permMessage)
		item.CurrentSpecs = models.MediaSpecs{Codec: "unknown", Source: "probe"}
		item.TargetSpecs = profile.TargetSpecs()
		if err := s.queue.Create(ctx, item); err != nil {
			return Result{}, fmt.Errorf("inserting permission_error item for %s: %w", path, err)
		}
		return Result{Outcome: OutcomePermissionError, Reason: permMessage, Item: item}, nil
	}

	if info, err := os.Stat(path); err == nil {
		item.FileSizeBytes = info.Size()
	}

	var specs models.MediaSpecs
	if presupplied != nil {
		specs = *presupplied
	} else {
		// Probe errors degrade to codec "unknown", which still queues.
		specs, _ = s.prober.Probe(ctx, path)
	}
	item.CurrentSpecs = specs
	item.TargetSpecs = profile.TargetSpecs()

	if !NeedsEncoding(specs, item.TargetSpecs) {
		s.logger.Debug("candidate does not need encoding",
			slog.String("path", path),
			slog.String("codec", specs.Codec))
		return Result{Outcome: OutcomeSkipped, Reason: "already matches target"}, nil
	}

	item.EstimatedSavingsBytes = EstimateSavings(specs.Codec, item.TargetSpecs.Codec, item.FileSizeBytes)
	if root != nil {
		item.UpscalePlan = PlanUpscale(root, specs)
	}

	if err := s.queue.Create(ctx, item); err != nil {
		return Result{}, fmt.Errorf("inserting queue item for %s: %w", path, err)
	}
	s.logger.Info("queued for encoding",
		slog.String("path", path),
		slog.String("codec", specs.Codec),
		slog.String("target", item.TargetSpecs.Codec),
		slog.Int64("estimated_savings", item.EstimatedSavingsBytes))
	return Result{Outcome: OutcomeQueued, Item: item}, nil
}

// NeedsEncoding is the shared predicate deciding whether a file goes on the
// queue. An unknown source codec always queues; re-probing at encode time is
// preferred over silently skipping a file we could not inspect.
func NeedsEncoding(current models.MediaSpecs, target models.TargetSpecs) bool {
	if current.IsUnknown() {
		return true
	}
	if target.Codec != "" && current.Codec != target.Codec {
		return true
	}
	if target.Resolution != "" && current.Resolution != "" && current.Resolution != target.Resolution {
		return true
	}
	return false
}

// PlanUpscale returns the upscale pre-stage plan for a candidate, or nil
// when the root's policy does not apply. Sources whose height is already at
// or above 85% of the target are close enough and are not upscaled.
func PlanUpscale(root *models.ScanRoot, specs models.MediaSpecs) *models.UpscalePlan {
	if root == nil || !root.UpscaleEnabled {
		return nil
	}
	if specs.Height <= 0 || specs.Height >= root.UpscaleTriggerBelow {
		return nil
	}
	if float64(specs.Height) >= float64(root.UpscaleTargetHeight)*0.85 {
		return nil
	}
	return &models.UpscalePlan{
		UpscalerKey:  root.UpscaleKey,
		Model:        root.UpscaleModel,
		Factor:       root.UpscaleFactor,
		SourceHeight: specs.Height,
		TargetHeight: root.UpscaleTargetHeight,
	}
}

func defaultExtensionSet() map[string]bool {
	set := make(map[string]bool, len(models.DefaultVideoExtensions))
	for _, ext := range models.DefaultVideoExtensions {
		set[ext] = true
	}
	return set
}
