package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/observability"
)

// LogsHandler exposes the on-disk logs to the log viewer.
type LogsHandler struct {
	logs *observability.LogSet
}

// NewLogsHandler creates a new logs handler.
func NewLogsHandler(logs *observability.LogSet) *LogsHandler {
	return &LogsHandler{logs: logs}
}

// Register registers the log routes with the API.
func (h *LogsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "tailLogs",
		Method:      "GET",
		Path:        "/api/v1/logs",
		Summary:     "Tail logs",
		Description: "Returns the last lines of the selected log, optionally filtered by level",
		Tags:        []string{"Logs"},
	}, h.Tail)
}

// TailLogsInput selects the log and page size.
type TailLogsInput struct {
	Type  string `query:"type" default:"app" enum:"app,transcoder,errors" doc:"Which log to read"`
	Lines int    `query:"lines" default:"200" minimum:"1" maximum:"5000" doc:"Number of trailing lines"`
	Level string `query:"level" required:"false" doc:"Level filter (debug, info, warn, error); empty or ALL disables"`
}

// TailLogsOutput is a page of log lines.
type TailLogsOutput struct {
	Body observability.TailResult
}

// Tail returns the last lines of the selected log.
func (h *LogsHandler) Tail(ctx context.Context, input *TailLogsInput) (*TailLogsOutput, error) {
	if h.logs == nil {
		return nil, huma.Error404NotFound("file logging is not enabled")
	}
	result, err := h.logs.Tail(input.Type, input.Lines, input.Level)
	if err != nil {
		return nil, huma.Error400BadRequest("failed to read log", err)
	}
	return &TailLogsOutput{Body: *result}, nil
}
