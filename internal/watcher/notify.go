package watcher

import (
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/recodarr/recodarr/internal/models"
)

// notifyAssist wires inotify events into the poll loop. Create and Rename
// events on a watched directory schedule an immediate poll instead of
// waiting for the next interval. It is an accelerator only; the poll loop
// stays authoritative because inotify does not fire on network mounts.
type notifyAssist struct {
	watcher *fsnotify.Watcher
	kick    chan<- struct{}
	logger  *slog.Logger

	mu      sync.Mutex
	tracked map[string]bool
	done    chan struct{}
}

func newNotifyAssist(kick chan<- struct{}, logger *slog.Logger) (*notifyAssist, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	a := &notifyAssist{
		watcher: fsw,
		kick:    kick,
		logger:  logger,
		tracked: make(map[string]bool),
		done:    make(chan struct{}),
	}
	go a.loop()
	return a, nil
}

// Track aligns the inotify subscriptions with the current watch set. Only
// the top-level directory of each watch is subscribed; new files land there
// or trigger the subsequent poll anyway.
func (a *notifyAssist) Track(watches []*models.FolderWatch) {
	a.mu.Lock()
	defer a.mu.Unlock()

	wanted := make(map[string]bool, len(watches))
	for _, watch := range watches {
		wanted[watch.Path] = true
	}

	for path := range a.tracked {
		if !wanted[path] {
			_ = a.watcher.Remove(path)
			delete(a.tracked, path)
		}
	}
	for path := range wanted {
		if a.tracked[path] {
			continue
		}
		if err := a.watcher.Add(path); err != nil {
			a.logger.Debug("inotify subscribe failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		a.tracked[path] = true
	}
}

func (a *notifyAssist) loop() {
	for {
		select {
		case <-a.done:
			return
		case event, ok := <-a.watcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
				select {
				case a.kick <- struct{}{}:
				default:
				}
			}
		case err, ok := <-a.watcher.Errors:
			if !ok {
				return
			}
			a.logger.Debug("inotify error", slog.String("error", err.Error()))
		}
	}
}

func (a *notifyAssist) Close() {
	close(a.done)
	_ = a.watcher.Close()
}
