package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/schedule"
)

// ScheduleHandler handles rest-window schedule API endpoints.
type ScheduleHandler struct {
	schedules repository.ScheduleRepository
	scheduler *schedule.Scheduler
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(schedules repository.ScheduleRepository, scheduler *schedule.Scheduler) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, scheduler: scheduler}
}

// Register registers the schedule routes with the API.
func (h *ScheduleHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSchedule",
		Method:      "GET",
		Path:        "/api/v1/schedule",
		Summary:     "Get schedule",
		Tags:        []string{"Schedule"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "updateSchedule",
		Method:      "PUT",
		Path:        "/api/v1/schedule",
		Summary:     "Update schedule",
		Description: "Updates the rest window. The change takes effect immediately and clears any manual override.",
		Tags:        []string{"Schedule"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "getScheduleStatus",
		Method:      "GET",
		Path:        "/api/v1/schedule/status",
		Summary:     "Get schedule status",
		Description: "Reports window membership, override state, and whether the pool is running",
		Tags:        []string{"Schedule"},
	}, h.Status)
}

// ScheduleOutput is the output for the schedule endpoint.
type ScheduleOutput struct {
	Body models.Schedule
}

// Get returns the schedule, creating the default row when missing.
func (h *ScheduleHandler) Get(ctx context.Context, input *struct{}) (*ScheduleOutput, error) {
	sched, err := h.schedules.Get(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get schedule", err)
	}
	return &ScheduleOutput{Body: *sched}, nil
}

// UpdateScheduleInput is the input for updating the schedule.
type UpdateScheduleInput struct {
	Body struct {
		Enabled           bool   `json:"enabled" doc:"Gate the encoder pool to the rest window"`
		DaysOfWeek        string `json:"days_of_week,omitempty" default:"0,1,2,3,4,5,6" doc:"Comma-separated weekdays, 0=Sunday"`
		StartTime         string `json:"start_time,omitempty" default:"22:00" doc:"Window start, HH:MM"`
		EndTime           string `json:"end_time,omitempty" default:"06:00" doc:"Window end, HH:MM; before start means overnight"`
		Timezone          string `json:"timezone,omitempty" default:"UTC" doc:"IANA timezone for the window"`
		UseHostRestHours  bool   `json:"use_host_rest_hours,omitempty" doc:"Derive the window from the host's active hours when available"`
		MaxConcurrentJobs int    `json:"max_concurrent_jobs,omitempty" minimum:"1" default:"1" doc:"Concurrent transcodes while the window is open"`
	}
}

// Update saves the schedule and applies it immediately.
func (h *ScheduleHandler) Update(ctx context.Context, input *UpdateScheduleInput) (*ScheduleOutput, error) {
	sched, err := h.schedules.Get(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get schedule", err)
	}

	sched.Enabled = input.Body.Enabled
	if input.Body.DaysOfWeek != "" {
		sched.DaysOfWeek = input.Body.DaysOfWeek
	}
	if input.Body.StartTime != "" {
		sched.StartTime = input.Body.StartTime
	}
	if input.Body.EndTime != "" {
		sched.EndTime = input.Body.EndTime
	}
	if input.Body.Timezone != "" {
		sched.Timezone = input.Body.Timezone
	}
	sched.UseHostRestHours = input.Body.UseHostRestHours
	if input.Body.MaxConcurrentJobs > 0 {
		sched.MaxConcurrentJobs = input.Body.MaxConcurrentJobs
	}

	if err := h.schedules.Update(ctx, sched); err != nil {
		return nil, huma.Error422UnprocessableEntity("failed to update schedule", err)
	}

	// Re-enabling the schedule returns control to the tick.
	if h.scheduler != nil {
		h.scheduler.ClearOverride()
		h.scheduler.Tick(ctx)
	}
	return &ScheduleOutput{Body: *sched}, nil
}

// ScheduleStatusOutput is the output for the schedule status endpoint.
type ScheduleStatusOutput struct {
	Body schedule.Status
}

// Status reports the current scheduler state.
func (h *ScheduleHandler) Status(ctx context.Context, input *struct{}) (*ScheduleStatusOutput, error) {
	status, err := h.scheduler.Status(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get schedule status", err)
	}
	return &ScheduleStatusOutput{Body: status}, nil
}
