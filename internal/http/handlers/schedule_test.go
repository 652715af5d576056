package handlers

import (
	"context"
	"testing"

	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePool tracks start/stop calls for scheduler-driven tests.
type fakePool struct {
	running bool
}

func (p *fakePool) Start()        { p.running = true }
func (p *fakePool) Stop()         { p.running = false }
func (p *fakePool) Running() bool { return p.running }

func TestScheduleGetCreatesDefault(t *testing.T) {
	db := setupDB(t)
	handler := NewScheduleHandler(repository.NewScheduleRepository(db), nil)

	out, err := handler.Get(context.Background(), &struct{}{})
	require.NoError(t, err)
	assert.False(t, out.Body.Enabled)
	assert.Equal(t, "22:00", out.Body.StartTime)
	assert.Equal(t, "06:00", out.Body.EndTime)
}

func TestScheduleUpdate(t *testing.T) {
	db := setupDB(t)
	schedules := repository.NewScheduleRepository(db)
	pool := &fakePool{}
	scheduler := schedule.New(schedules, pool, nil, nil)
	handler := NewScheduleHandler(schedules, scheduler)
	ctx := context.Background()

	input := &UpdateScheduleInput{}
	input.Body.Enabled = true
	input.Body.StartTime = "23:30"
	input.Body.EndTime = "05:00"
	input.Body.MaxConcurrentJobs = 2

	out, err := handler.Update(ctx, input)
	require.NoError(t, err)
	assert.True(t, out.Body.Enabled)
	assert.Equal(t, "23:30", out.Body.StartTime)
	assert.Equal(t, 2, out.Body.MaxConcurrentJobs)

	stored, err := schedules.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "23:30", stored.StartTime)

	status, err := handler.Status(ctx, &struct{}{})
	require.NoError(t, err)
	assert.True(t, status.Body.Enabled)
	assert.False(t, status.Body.ManualOverride)
}
