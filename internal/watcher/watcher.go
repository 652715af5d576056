// Package watcher polls watched folders for newly appearing media files and
// feeds them into the scan pipeline. The first pass over each watch only
// seeds the known-files set; files already present at startup are never
// queued, only files that appear afterwards.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/recodarr/recodarr/internal/config"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/scan"
)

// WatchStatus is the reportable state of one watch.
type WatchStatus struct {
	ID         models.ULID  `json:"id"`
	Path       string       `json:"path"`
	Enabled    bool         `json:"enabled"`
	Seeded     bool         `json:"seeded"`
	KnownFiles int          `json:"known_files"`
	LastCheck  *models.Time `json:"last_check,omitempty"`
}

// Watcher owns the poll loop and the per-watch known-files sets.
type Watcher struct {
	cfg      config.WatcherConfig
	watches  repository.FolderWatchRepository
	profiles repository.ProfileRepository
	scanner  *scan.Scanner
	logger   *slog.Logger

	mu     sync.Mutex
	known  map[models.ULID]map[string]bool
	seeded map[models.ULID]bool

	// kick requests an early poll (ForceCheck, inotify assist).
	kick   chan struct{}
	notify *notifyAssist
}

// New creates a watcher. A zero poll interval defaults to 60 seconds.
func New(
	cfg config.WatcherConfig,
	watches repository.FolderWatchRepository,
	profiles repository.ProfileRepository,
	scanner *scan.Scanner,
	logger *slog.Logger,
) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:      cfg,
		watches:  watches,
		profiles: profiles,
		scanner:  scanner,
		logger:   logger.With(slog.String("component", "watcher")),
		known:    make(map[models.ULID]map[string]bool),
		seeded:   make(map[models.ULID]bool),
		kick:     make(chan struct{}, 1),
	}
}

// Run polls until the context is cancelled. The loop wakes every second so
// shutdown is observed promptly regardless of the poll interval.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher started",
		slog.Duration("poll_interval", w.cfg.PollInterval),
		slog.Bool("notify_assist", w.cfg.NotifyAssist))

	if w.cfg.NotifyAssist {
		assist, err := newNotifyAssist(w.kick, w.logger)
		if err != nil {
			w.logger.Warn("inotify assist unavailable, polling only",
				slog.String("error", err.Error()))
		} else {
			w.notify = assist
			defer w.notify.Close()
		}
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	nextPoll := time.Now()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return ctx.Err()
		case <-w.kick:
			nextPoll = time.Now()
		case <-ticker.C:
		}

		if time.Now().Before(nextPoll) {
			continue
		}
		nextPoll = time.Now().Add(w.cfg.PollInterval)

		if _, err := w.CheckAll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("poll failed", slog.String("error", err.Error()))
		}
	}
}

// CheckAll polls every enabled watch once. Returns the number of items queued.
func (w *Watcher) CheckAll(ctx context.Context) (int, error) {
	watches, err := w.watches.GetEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading watches: %w", err)
	}

	w.pruneStale(watches)
	if w.notify != nil {
		w.notify.Track(watches)
	}

	queued := 0
	for _, watch := range watches {
		if err := ctx.Err(); err != nil {
			return queued, err
		}
		n, err := w.checkOne(ctx, watch)
		if err != nil {
			w.logger.Warn("checking watch failed",
				slog.String("path", watch.Path),
				slog.String("error", err.Error()))
			continue
		}
		queued += n
	}
	return queued, nil
}

// ForceCheck polls one watch immediately, or every enabled watch when id is
// nil. Returns the number of items queued.
func (w *Watcher) ForceCheck(ctx context.Context, id *models.ULID) (int, error) {
	if id == nil {
		return w.CheckAll(ctx)
	}
	watch, err := w.watches.GetByID(ctx, *id)
	if err != nil {
		return 0, fmt.Errorf("loading watch: %w", err)
	}
	if watch == nil {
		return 0, fmt.Errorf("watch %s not found", *id)
	}
	return w.checkOne(ctx, watch)
}

// Status reports the state of every watch, enabled or not.
func (w *Watcher) Status(ctx context.Context) ([]WatchStatus, error) {
	watches, err := w.watches.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading watches: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	statuses := make([]WatchStatus, 0, len(watches))
	for _, watch := range watches {
		statuses = append(statuses, WatchStatus{
			ID:         watch.ID,
			Path:       watch.Path,
			Enabled:    watch.IsEnabled(),
			Seeded:     w.seeded[watch.ID],
			KnownFiles: len(w.known[watch.ID]),
			LastCheck:  watch.LastCheck,
		})
	}
	return statuses, nil
}

// checkOne enumerates a watch, queues paths not seen before, and replaces
// the known set with the fresh enumeration.
func (w *Watcher) checkOne(ctx context.Context, watch *models.FolderWatch) (int, error) {
	paths, err := scan.Enumerate(watch.Path, watch.IsRecursive(), watch.ExtensionSet())
	if err != nil {
		return 0, fmt.Errorf("enumerating %s: %w", watch.Path, err)
	}

	fresh := make(map[string]bool, len(paths))
	for _, path := range paths {
		fresh[path] = true
	}

	w.mu.Lock()
	previous := w.known[watch.ID]
	firstPass := !w.seeded[watch.ID]
	w.known[watch.ID] = fresh
	w.seeded[watch.ID] = true
	w.mu.Unlock()

	queued := 0
	if firstPass {
		w.logger.Info("watch seeded",
			slog.String("path", watch.Path),
			slog.Int("existing_files", len(fresh)))
	} else if watch.ShouldAutoQueue() {
		var profile *models.Profile
		for _, path := range paths {
			if previous[path] {
				continue
			}
			if profile == nil {
				profile, err = w.profiles.GetByID(ctx, watch.ProfileID)
				if err != nil {
					return queued, fmt.Errorf("loading profile for watch %s: %w", watch.Path, err)
				}
				if profile == nil {
					return queued, fmt.Errorf("profile %s for watch %s not found", watch.ProfileID, watch.Path)
				}
			}
			result, err := w.scanner.Process(ctx, path, profile, nil, nil)
			if err != nil {
				w.logger.Warn("queueing new file failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
				continue
			}
			if result.Outcome == scan.OutcomeQueued {
				queued++
				w.logger.Info("new file queued", slog.String("path", path))
			}
		}
	}

	if err := w.watches.UpdateLastCheck(ctx, watch.ID, time.Now()); err != nil {
		w.logger.Warn("stamping last_check failed", slog.String("error", err.Error()))
	}
	return queued, nil
}

// pruneStale drops in-memory state for watches that no longer exist or were
// disabled, so re-enabling a watch seeds it again.
func (w *Watcher) pruneStale(current []*models.FolderWatch) {
	active := make(map[models.ULID]bool, len(current))
	for _, watch := range current {
		active[watch.ID] = true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for id := range w.known {
		if !active[id] {
			delete(w.known, id)
			delete(w.seeded, id)
		}
	}
}
