package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/probe"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/scan"
)

// QueueHandler handles transcode queue API endpoints.
type QueueHandler struct {
	queue  repository.QueueRepository
	prober *probe.Prober
	logger *slog.Logger
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(queue repository.QueueRepository, prober *probe.Prober, logger *slog.Logger) *QueueHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueHandler{queue: queue, prober: prober, logger: logger}
}

// Register registers the queue routes with the API.
func (h *QueueHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listQueue",
		Method:      "GET",
		Path:        "/api/v1/queue",
		Summary:     "List queue items",
		Description: "Returns queue items ordered by priority, optionally filtered by status",
		Tags:        []string{"Queue"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getQueueCounts",
		Method:      "GET",
		Path:        "/api/v1/queue/counts",
		Summary:     "Get queue counts",
		Description: "Returns per-status queue item counts",
		Tags:        []string{"Queue"},
	}, h.Counts)

	huma.Register(api, huma.Operation{
		OperationID: "getQueueItem",
		Method:      "GET",
		Path:        "/api/v1/queue/{id}",
		Summary:     "Get queue item",
		Tags:        []string{"Queue"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "deleteQueueItem",
		Method:      "DELETE",
		Path:        "/api/v1/queue/{id}",
		Summary:     "Delete queue item",
		Description: "Removes a queue item. Items being processed should be stopped first.",
		Tags:        []string{"Queue"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "clearCompletedQueueItems",
		Method:      "POST",
		Path:        "/api/v1/queue/clear-completed",
		Summary:     "Clear completed items",
		Tags:        []string{"Queue"},
	}, h.ClearCompleted)

	huma.Register(api, huma.Operation{
		OperationID: "prioritizeQueue",
		Method:      "POST",
		Path:        "/api/v1/queue/prioritize",
		Summary:     "Reprioritize pending items",
		Description: "Rewrites the priority of every pending item ranked by the chosen field",
		Tags:        []string{"Queue"},
	}, h.Prioritize)

	huma.Register(api, huma.Operation{
		OperationID: "reprobeQueue",
		Method:      "POST",
		Path:        "/api/v1/queue/reprobe",
		Summary:     "Re-probe unknown-codec items",
		Description: "Re-runs the prober against items whose codec was unknown at queue time. Items that turn out to already match their target are removed.",
		Tags:        []string{"Queue"},
	}, h.Reprobe)
}

// ListQueueInput is the input for listing queue items.
type ListQueueInput struct {
	Pagination
	Status string `query:"status" required:"false" doc:"Filter by status" enum:"pending,processing,paused,completed,failed,permission_error,"`
}

// ListQueueOutput is the output for listing queue items.
type ListQueueOutput struct {
	Body struct {
		Items      []*models.QueueItem `json:"items"`
		Pagination PaginationMeta      `json:"pagination"`
	}
}

// List returns queue items ordered by priority.
func (h *QueueHandler) List(ctx context.Context, input *ListQueueInput) (*ListQueueOutput, error) {
	var status *models.QueueStatus
	if input.Status != "" {
		s := models.QueueStatus(input.Status)
		if !s.Valid() {
			return nil, huma.Error400BadRequest("invalid status filter")
		}
		status = &s
	}

	items, total, err := h.queue.GetAll(ctx, status, input.Offset(), input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list queue", err)
	}

	out := &ListQueueOutput{}
	out.Body.Items = items
	out.Body.Pagination = PaginationMeta{
		CurrentPage: input.Page,
		PageSize:    input.Limit,
		TotalItems:  total,
	}
	return out, nil
}

// QueueCountsOutput is the output for queue counts.
type QueueCountsOutput struct {
	Body repository.QueueCounts
}

// Counts returns per-status queue counts.
func (h *QueueHandler) Counts(ctx context.Context, input *struct{}) (*QueueCountsOutput, error) {
	counts, err := h.queue.Counts(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to count queue", err)
	}
	return &QueueCountsOutput{Body: *counts}, nil
}

// QueueItemInput identifies one queue item.
type QueueItemInput struct {
	ID string `path:"id" doc:"Queue item ID (ULID)"`
}

// QueueItemOutput is the output for a single queue item.
type QueueItemOutput struct {
	Body models.QueueItem
}

// GetByID returns a queue item by ID.
func (h *QueueHandler) GetByID(ctx context.Context, input *QueueItemInput) (*QueueItemOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid queue item ID", err)
	}
	item, err := h.queue.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get queue item", err)
	}
	if item == nil {
		return nil, huma.Error404NotFound("queue item not found")
	}
	return &QueueItemOutput{Body: *item}, nil
}

// Delete removes a queue item.
func (h *QueueHandler) Delete(ctx context.Context, input *QueueItemInput) (*MessageOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid queue item ID", err)
	}
	item, err := h.queue.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get queue item", err)
	}
	if item == nil {
		return nil, huma.Error404NotFound("queue item not found")
	}
	if item.Status == models.StatusProcessing {
		return nil, huma.Error409Conflict("item is being processed; stop the encoder first")
	}
	if err := h.queue.Delete(ctx, id); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete queue item", err)
	}
	return messageOutput("queue item deleted"), nil
}

// ClearCompletedOutput reports how many completed items were removed.
type ClearCompletedOutput struct {
	Body struct {
		Removed int64 `json:"removed"`
	}
}

// ClearCompleted removes all completed items.
func (h *QueueHandler) ClearCompleted(ctx context.Context, input *struct{}) (*ClearCompletedOutput, error) {
	removed, err := h.queue.ClearCompleted(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to clear completed items", err)
	}
	out := &ClearCompletedOutput{}
	out.Body.Removed = removed
	return out, nil
}

// PrioritizeInput selects the ranking for pending items.
type PrioritizeInput struct {
	Body struct {
		SortBy     string `json:"sort_by" doc:"Ranking field" enum:"file_size,estimated_savings,filename"`
		Descending bool   `json:"descending,omitempty" doc:"Rank largest/last first" default:"true"`
	}
}

// PrioritizeOutput reports how many items were reprioritized.
type PrioritizeOutput struct {
	Body struct {
		Updated int64 `json:"updated"`
	}
}

// Prioritize rewrites pending item priorities by the chosen ranking.
func (h *QueueHandler) Prioritize(ctx context.Context, input *PrioritizeInput) (*PrioritizeOutput, error) {
	field := repository.QueueSortField(input.Body.SortBy)
	if !field.Valid() {
		return nil, huma.Error400BadRequest("invalid sort field")
	}
	updated, err := h.queue.Reprioritize(ctx, field, input.Body.Descending)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to reprioritize queue", err)
	}
	out := &PrioritizeOutput{}
	out.Body.Updated = updated
	return out, nil
}

// ReprobeOutput summarises a re-probe pass.
type ReprobeOutput struct {
	Body struct {
		Checked int `json:"checked"`
		Updated int `json:"updated"`
		Removed int `json:"removed"`
		Errors  int `json:"errors"`
	}
}

// Reprobe re-runs the prober against unknown-codec items.
func (h *QueueHandler) Reprobe(ctx context.Context, input *struct{}) (*ReprobeOutput, error) {
	items, err := h.queue.GetUnknownCodec(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to find unknown-codec items", err)
	}

	out := &ReprobeOutput{}
	out.Body.Checked = len(items)
	for _, item := range items {
		specs, err := h.prober.Probe(ctx, item.FilePath)
		if err != nil || specs.IsUnknown() {
			out.Body.Errors++
			continue
		}
		if !scan.NeedsEncoding(specs, item.TargetSpecs) {
			// The file already matches its target; nothing to transcode.
			if err := h.queue.Delete(ctx, item.ID); err != nil {
				out.Body.Errors++
				continue
			}
			out.Body.Removed++
			continue
		}
		item.CurrentSpecs = specs
		item.EstimatedSavingsBytes = scan.EstimateSavings(specs.Codec, item.TargetSpecs.Codec, item.FileSizeBytes)
		if err := h.queue.Update(ctx, item); err != nil {
			out.Body.Errors++
			continue
		}
		out.Body.Updated++
	}

	h.logger.Info("re-probe pass complete",
		slog.Int("checked", out.Body.Checked),
		slog.Int("updated", out.Body.Updated),
		slog.Int("removed", out.Body.Removed))
	return out, nil
}
