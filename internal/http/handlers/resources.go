package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/resources"
)

// ResourcesHandler exposes host utilisation snapshots.
type ResourcesHandler struct {
	monitor *resources.Monitor
}

// NewResourcesHandler creates a new resources handler.
func NewResourcesHandler(monitor *resources.Monitor) *ResourcesHandler {
	return &ResourcesHandler{monitor: monitor}
}

// Register registers the resource routes with the API.
func (h *ResourcesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getResources",
		Method:      "GET",
		Path:        "/api/v1/resources",
		Summary:     "Get host utilisation",
		Description: "Samples CPU, memory, and GPU utilisation and reports the throttling verdict",
		Tags:        []string{"Resources"},
	}, h.Get)
}

// ResourcesOutput is the output for the resources endpoint.
type ResourcesOutput struct {
	Body struct {
		Snapshot resources.Snapshot `json:"snapshot"`
		Decision resources.Decision `json:"decision"`
	}
}

// Get samples the host and reports the throttling verdict.
func (h *ResourcesHandler) Get(ctx context.Context, input *struct{}) (*ResourcesOutput, error) {
	snap := h.monitor.Snapshot(ctx)
	out := &ResourcesOutput{}
	out.Body.Snapshot = snap
	out.Body.Decision = h.monitor.Check(snap)
	return out, nil
}
