package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
)

// StatsHandler exposes transcode history and dashboard statistics.
type StatsHandler struct {
	history repository.HistoryRepository
	queue   repository.QueueRepository
}

// NewStatsHandler creates a new statistics handler.
func NewStatsHandler(history repository.HistoryRepository, queue repository.QueueRepository) *StatsHandler {
	return &StatsHandler{history: history, queue: queue}
}

// Register registers the statistics routes with the API.
func (h *StatsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listHistory",
		Method:      "GET",
		Path:        "/api/v1/history",
		Summary:     "List transcode history",
		Description: "Returns completed transcodes, newest first",
		Tags:        []string{"Statistics"},
	}, h.History)

	huma.Register(api, huma.Operation{
		OperationID: "getStatistics",
		Method:      "GET",
		Path:        "/api/v1/statistics",
		Summary:     "Get dashboard statistics",
		Description: "Aggregates transcode history and current queue counts",
		Tags:        []string{"Statistics"},
	}, h.Statistics)
}

// HistoryInput is the input for listing history.
type HistoryInput struct {
	Pagination
}

// HistoryOutput is the output for listing history.
type HistoryOutput struct {
	Body struct {
		Records    []*models.HistoryRecord `json:"records"`
		Pagination PaginationMeta          `json:"pagination"`
	}
}

// History returns completed transcodes, newest first.
func (h *StatsHandler) History(ctx context.Context, input *HistoryInput) (*HistoryOutput, error) {
	records, total, err := h.history.GetRecent(ctx, input.Offset(), input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list history", err)
	}
	out := &HistoryOutput{}
	out.Body.Records = records
	out.Body.Pagination = PaginationMeta{
		CurrentPage: input.Page,
		PageSize:    input.Limit,
		TotalItems:  total,
	}
	return out, nil
}

// StatisticsInput selects the aggregation window.
type StatisticsInput struct {
	Days int `query:"days" default:"0" minimum:"0" doc:"Trailing window in days; 0 aggregates everything"`
}

// StatisticsOutput is the output for the statistics endpoint.
type StatisticsOutput struct {
	Body struct {
		History repository.DashboardStats `json:"history"`
		Queue   repository.QueueCounts    `json:"queue"`
	}
}

// Statistics aggregates history and queue counts for the dashboard.
func (h *StatsHandler) Statistics(ctx context.Context, input *StatisticsInput) (*StatisticsOutput, error) {
	stats, err := h.history.Stats(ctx, input.Days)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to aggregate history", err)
	}
	counts, err := h.queue.Counts(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to count queue", err)
	}
	out := &StatisticsOutput{}
	out.Body.History = *stats
	out.Body.Queue = *counts
	return out, nil
}
