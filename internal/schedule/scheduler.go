// Package schedule gates the encoder pool to the configured rest window.
// A cron tick evaluates window membership every minute and starts or stops
// the pool, unless a manual override is in force.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/robfig/cron/v3"
)

// Pool is the encoder pool surface the scheduler drives.
type Pool interface {
	Start()
	Stop()
	Running() bool
}

// ActiveHoursProvider reports the host's active-hours metadata when the
// platform exposes it. The rest window is the complement of the active
// hours. Hosts without the metadata return ok false.
type ActiveHoursProvider interface {
	ActiveHours() (start, end string, ok bool)
}

// noHostHours is the provider for platforms without active-hours metadata.
type noHostHours struct{}

func (noHostHours) ActiveHours() (string, string, bool) { return "", "", false }

// NoHostActiveHours returns the provider used on hosts that do not expose
// active-hours metadata.
func NoHostActiveHours() ActiveHoursProvider { return noHostHours{} }

// Status is the reportable scheduler state.
type Status struct {
	Enabled        bool   `json:"enabled"`
	WithinWindow   bool   `json:"within_window"`
	ManualOverride bool   `json:"manual_override"`
	PoolRunning    bool   `json:"pool_running"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
}

// Scheduler ticks once a minute and reconciles the pool with the window.
type Scheduler struct {
	schedules repository.ScheduleRepository
	pool      Pool
	hostHours ActiveHoursProvider
	logger    *slog.Logger

	cron *cron.Cron

	mu             sync.Mutex
	manualOverride bool
}

// New creates a scheduler. A nil provider means no host active-hours
// metadata is available.
func New(schedules repository.ScheduleRepository, pool Pool, hostHours ActiveHoursProvider, logger *slog.Logger) *Scheduler {
	if hostHours == nil {
		hostHours = NoHostActiveHours()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedules: schedules,
		pool:      pool,
		hostHours: hostHours,
		logger:    logger.With(slog.String("component", "schedule")),
	}
}

// Start registers the minute tick and begins evaluation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	c := cron.New()
	if _, err := c.AddFunc("* * * * *", func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("registering tick: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("scheduler started")
	return nil
}

// Stop halts the tick. The pool is left in its current state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.logger.Info("scheduler stopped")
}

// Tick evaluates the window once and reconciles the pool. Exposed so manual
// schedule edits can take effect without waiting for the next minute.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	override := s.manualOverride
	s.mu.Unlock()
	if override {
		return
	}

	sched, err := s.schedules.Get(ctx)
	if err != nil {
		s.logger.Error("loading schedule failed", slog.String("error", err.Error()))
		return
	}

	within := s.withinWindow(sched, time.Now())
	switch {
	case within && !s.pool.Running():
		s.logger.Info("rest window open, starting encoder pool")
		s.pool.Start()
	case !within && s.pool.Running():
		s.logger.Info("rest window closed, stopping encoder pool")
		s.pool.Stop()
	}
}

// ManualStart starts the pool and suspends tick actions until the schedule
// is re-enabled.
func (s *Scheduler) ManualStart() {
	s.mu.Lock()
	s.manualOverride = true
	s.mu.Unlock()
	s.logger.Info("manual start, scheduler override set")
	s.pool.Start()
}

// ManualStop stops the pool and suspends tick actions until the schedule is
// re-enabled.
func (s *Scheduler) ManualStop() {
	s.mu.Lock()
	s.manualOverride = true
	s.mu.Unlock()
	s.logger.Info("manual stop, scheduler override set")
	s.pool.Stop()
}

// ClearOverride returns window control to the tick. Called when the user
// re-enables the schedule.
func (s *Scheduler) ClearOverride() {
	s.mu.Lock()
	s.manualOverride = false
	s.mu.Unlock()
	s.logger.Info("scheduler override cleared")
}

// Status reports the current scheduler state.
func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	sched, err := s.schedules.Get(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("loading schedule: %w", err)
	}

	s.mu.Lock()
	override := s.manualOverride
	s.mu.Unlock()

	return Status{
		Enabled:        sched.Enabled,
		WithinWindow:   s.withinWindow(sched, time.Now()),
		ManualOverride: override,
		PoolRunning:    s.pool.Running(),
		StartTime:      sched.StartTime,
		EndTime:        sched.EndTime,
	}, nil
}

// withinWindow resolves the effective window, substituting the complement
// of the host's active hours when configured and available.
func (s *Scheduler) withinWindow(sched *models.Schedule, now time.Time) bool {
	start, end := sched.StartTime, sched.EndTime
	if sched.UseHostRestHours {
		if activeStart, activeEnd, ok := s.hostHours.ActiveHours(); ok {
			// Host active 08:00-22:00 means resting 22:00-08:00.
			start, end = activeEnd, activeStart
		}
	}
	return WithinWindow(sched, start, end, now)
}

// WithinWindow reports whether now falls inside the rest window. A window
// whose end is at or before its start spans midnight.
func WithinWindow(sched *models.Schedule, start, end string, now time.Time) bool {
	if !sched.Enabled {
		return false
	}

	if loc, err := time.LoadLocation(sched.Timezone); err == nil && sched.Timezone != "" {
		now = now.In(loc)
	}

	days, err := sched.Days()
	if err != nil {
		return false
	}
	if !containsDay(days, models.Weekday(now)) {
		return false
	}

	startH, startM, err := models.ParseTimeOfDay(start)
	if err != nil {
		return false
	}
	endH, endM, err := models.ParseTimeOfDay(end)
	if err != nil {
		return false
	}

	nowMin := now.Hour()*60 + now.Minute()
	startMin := startH*60 + startM
	endMin := endH*60 + endM

	// end at or before start spans midnight
	if startMin < endMin {
		return nowMin >= startMin && nowMin <= endMin
	}
	return nowMin >= startMin || nowMin <= endMin
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
