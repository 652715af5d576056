package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/encoder"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/schedule"
)

// EncoderHandler handles encoder pool control endpoints.
type EncoderHandler struct {
	pool      *encoder.Pool
	scheduler *schedule.Scheduler
	queue     repository.QueueRepository
}

// NewEncoderHandler creates a new encoder control handler.
func NewEncoderHandler(pool *encoder.Pool, scheduler *schedule.Scheduler, queue repository.QueueRepository) *EncoderHandler {
	return &EncoderHandler{pool: pool, scheduler: scheduler, queue: queue}
}

// Register registers the encoder control routes with the API.
func (h *EncoderHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "startEncoder",
		Method:      "POST",
		Path:        "/api/v1/encoder/start",
		Summary:     "Start the encoder pool",
		Description: "Starts claiming queue items and suspends the schedule until it is re-enabled",
		Tags:        []string{"Encoder"},
	}, h.Start)

	huma.Register(api, huma.Operation{
		OperationID: "stopEncoder",
		Method:      "POST",
		Path:        "/api/v1/encoder/stop",
		Summary:     "Stop the encoder pool",
		Description: "Stops active transcodes gracefully and suspends the schedule until it is re-enabled",
		Tags:        []string{"Encoder"},
	}, h.Stop)

	huma.Register(api, huma.Operation{
		OperationID: "getEncoderStatus",
		Method:      "GET",
		Path:        "/api/v1/encoder/status",
		Summary:     "Get encoder status",
		Tags:        []string{"Encoder"},
	}, h.Status)
}

// Start starts the pool under a manual override.
func (h *EncoderHandler) Start(ctx context.Context, input *struct{}) (*MessageOutput, error) {
	h.scheduler.ManualStart()
	return messageOutput("encoder started"), nil
}

// Stop stops the pool under a manual override.
func (h *EncoderHandler) Stop(ctx context.Context, input *struct{}) (*MessageOutput, error) {
	h.scheduler.ManualStop()
	return messageOutput("encoder stopped"), nil
}

// EncoderStatusOutput is the output for the encoder status endpoint.
type EncoderStatusOutput struct {
	Body struct {
		Running    bool                `json:"running"`
		ActiveJobs int                 `json:"active_jobs"`
		Active     []*models.QueueItem `json:"active"`
	}
}

// Status reports whether the pool is running and what it is working on.
func (h *EncoderHandler) Status(ctx context.Context, input *struct{}) (*EncoderStatusOutput, error) {
	out := &EncoderStatusOutput{}
	out.Body.Running = h.pool.Running()
	out.Body.ActiveJobs = h.pool.ActiveCount()

	processing, err := h.queue.GetByStatus(ctx, models.StatusProcessing)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list active items", err)
	}
	paused, err := h.queue.GetByStatus(ctx, models.StatusPaused)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list paused items", err)
	}
	out.Body.Active = append(processing, paused...)
	return out, nil
}
