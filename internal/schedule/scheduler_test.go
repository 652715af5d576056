package schedule

import (
	"context"
	"sync"
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

type fakePool struct {
	mu      sync.Mutex
	running bool
	starts  int
	stops   int
}

func (p *fakePool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = true
	p.starts++
}

func (p *fakePool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	p.stops++
}

func (p *fakePool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

type fixedHours struct {
	start, end string
	ok         bool
}

func (h fixedHours) ActiveHours() (string, string, bool) { return h.start, h.end, h.ok }

func setupScheduleTest(t *testing.T) (*Scheduler, *fakePool, repository.ScheduleRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Schedule{}))

	repo := repository.NewScheduleRepository(db)
	pool := &fakePool{}
	return New(repo, pool, nil, nil), pool, repo
}

// at builds a time on a fixed reference week: 2026-08-24 is a Monday.
func at(weekday int, hour, minute int) time.Time {
	return time.Date(2026, 8, 24+weekday, hour, minute, 0, 0, time.UTC)
}

func enabledSchedule(start, end, days string) *models.Schedule {
	return &models.Schedule{
		Enabled:           true,
		DaysOfWeek:        days,
		StartTime:         start,
		EndTime:           end,
		Timezone:          "UTC",
		MaxConcurrentJobs: 1,
	}
}

func TestWithinWindow_Daytime(t *testing.T) {
	sched := enabledSchedule("09:00", "17:00", "0,1,2,3,4,5,6")

	assert.True(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 12, 0)))
	assert.True(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 9, 0)))
	assert.True(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 17, 0)))
	assert.False(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 8, 59)))
	assert.False(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 17, 1)))
}

func TestWithinWindow_Overnight(t *testing.T) {
	sched := enabledSchedule("22:00", "06:00", "0,1,2,3,4,5,6")

	assert.True(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 23, 30)))
	assert.True(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 2, 0)))
	assert.True(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 22, 0)))
	assert.True(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 6, 0)))
	assert.False(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 12, 0)))
	assert.False(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 21, 59)))
}

func TestWithinWindow_DisabledAndDays(t *testing.T) {
	sched := enabledSchedule("00:00", "23:59", "0,1,2,3,4")
	sched.Enabled = false
	assert.False(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 12, 0)))

	sched.Enabled = true
	// Monday (0) through Friday (4) only
	assert.True(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 12, 0)))
	assert.True(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(4, 12, 0)))
	assert.False(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(5, 12, 0)))
	assert.False(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(6, 12, 0)))
}

func TestWithinWindow_EqualBoundsSpansMidnight(t *testing.T) {
	// end == start is an overnight window covering everything but the
	// instants strictly between end and start, i.e. always within
	sched := enabledSchedule("08:00", "08:00", "0,1,2,3,4,5,6")
	assert.True(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 8, 0)))
	assert.True(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 20, 0)))
	assert.True(t, WithinWindow(sched, sched.StartTime, sched.EndTime, at(0, 7, 59)))
}

func TestScheduler_HostRestHoursComplement(t *testing.T) {
	s, _, repo := setupScheduleTest(t)
	ctx := context.Background()

	sched, err := repo.Get(ctx)
	require.NoError(t, err)
	sched.Enabled = true
	sched.UseHostRestHours = true
	sched.StartTime = "01:00"
	sched.EndTime = "02:00"
	require.NoError(t, repo.Update(ctx, sched))

	// Host active 08:00-22:00, so resting 22:00-08:00
	s.hostHours = fixedHours{start: "08:00", end: "22:00", ok: true}
	assert.True(t, s.withinWindow(sched, at(0, 23, 0)))
	assert.False(t, s.withinWindow(sched, at(0, 12, 0)))

	// Without host metadata the configured window applies
	s.hostHours = NoHostActiveHours()
	assert.True(t, s.withinWindow(sched, at(0, 1, 30)))
	assert.False(t, s.withinWindow(sched, at(0, 23, 0)))
}

func TestScheduler_TickStartsAndStopsPool(t *testing.T) {
	s, pool, repo := setupScheduleTest(t)
	ctx := context.Background()

	sched, err := repo.Get(ctx)
	require.NoError(t, err)
	sched.Enabled = true
	sched.StartTime = "00:00"
	sched.EndTime = "23:59"
	require.NoError(t, repo.Update(ctx, sched))

	s.Tick(ctx)
	assert.True(t, pool.Running())
	assert.Equal(t, 1, pool.starts)

	// Already running, second tick does nothing
	s.Tick(ctx)
	assert.Equal(t, 1, pool.starts)

	// Close the window
	sched.Enabled = false
	require.NoError(t, repo.Update(ctx, sched))
	s.Tick(ctx)
	assert.False(t, pool.Running())
	assert.Equal(t, 1, pool.stops)
}

func TestScheduler_ManualOverrideBlocksTick(t *testing.T) {
	s, pool, repo := setupScheduleTest(t)
	ctx := context.Background()

	sched, err := repo.Get(ctx)
	require.NoError(t, err)
	sched.Enabled = true
	sched.StartTime = "00:00"
	sched.EndTime = "23:59"
	require.NoError(t, repo.Update(ctx, sched))

	s.ManualStop()
	assert.False(t, pool.Running())

	// The window is open but the override holds
	s.Tick(ctx)
	assert.False(t, pool.Running())

	s.ClearOverride()
	s.Tick(ctx)
	assert.True(t, pool.Running())
}

func TestScheduler_ManualStart(t *testing.T) {
	s, pool, _ := setupScheduleTest(t)

	s.ManualStart()
	assert.True(t, pool.Running())

	status, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.ManualOverride)
	assert.True(t, status.PoolRunning)
}

func TestScheduler_StartStop(t *testing.T) {
	s, _, _ := setupScheduleTest(t)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx))
	s.Stop()
	// Stop is idempotent
	s.Stop()
}
