package handlers

import (
	"context"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/watcher"
)

// WatchHandler handles folder watch API endpoints.
type WatchHandler struct {
	watches  repository.FolderWatchRepository
	profiles repository.ProfileRepository
	watcher  *watcher.Watcher
}

// NewWatchHandler creates a new folder watch handler.
func NewWatchHandler(
	watches repository.FolderWatchRepository,
	profiles repository.ProfileRepository,
	w *watcher.Watcher,
) *WatchHandler {
	return &WatchHandler{watches: watches, profiles: profiles, watcher: w}
}

// Register registers the folder watch routes with the API.
func (h *WatchHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listWatches",
		Method:      "GET",
		Path:        "/api/v1/watches",
		Summary:     "List folder watches",
		Tags:        []string{"Folder Watches"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getWatchStatus",
		Method:      "GET",
		Path:        "/api/v1/watches/status",
		Summary:     "Get watch runtime status",
		Description: "Returns seeding state and known-file counts per watch",
		Tags:        []string{"Folder Watches"},
	}, h.Status)

	huma.Register(api, huma.Operation{
		OperationID: "checkWatches",
		Method:      "POST",
		Path:        "/api/v1/watches/check",
		Summary:     "Force a poll",
		Description: "Polls all watches, or one when id is given, without waiting for the next interval",
		Tags:        []string{"Folder Watches"},
	}, h.Check)

	huma.Register(api, huma.Operation{
		OperationID: "createWatch",
		Method:      "POST",
		Path:        "/api/v1/watches",
		Summary:     "Create folder watch",
		Tags:        []string{"Folder Watches"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "getWatch",
		Method:      "GET",
		Path:        "/api/v1/watches/{id}",
		Summary:     "Get folder watch",
		Tags:        []string{"Folder Watches"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "updateWatch",
		Method:      "PUT",
		Path:        "/api/v1/watches/{id}",
		Summary:     "Update folder watch",
		Tags:        []string{"Folder Watches"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteWatch",
		Method:      "DELETE",
		Path:        "/api/v1/watches/{id}",
		Summary:     "Delete folder watch",
		Tags:        []string{"Folder Watches"},
	}, h.Delete)
}

// WatchBody is the writable subset of a folder watch.
type WatchBody struct {
	Path       string `json:"path" minLength:"1" maxLength:"1024" doc:"Absolute directory path"`
	ProfileID  string `json:"profile_id" doc:"Encoding profile applied to new files"`
	Enabled    *bool  `json:"enabled,omitempty" doc:"Poll this watch (default true)"`
	Recursive  *bool  `json:"recursive,omitempty" doc:"Watch subdirectories (default true)"`
	AutoQueue  *bool  `json:"auto_queue,omitempty" doc:"Queue new files automatically (default true)"`
	Extensions string `json:"extensions,omitempty" maxLength:"255" doc:"Comma-separated extension filter; empty uses the default video set"`
}

func (b WatchBody) apply(watch *models.FolderWatch) error {
	profileID, err := models.ParseULID(b.ProfileID)
	if err != nil {
		return huma.Error400BadRequest("invalid profile ID", err)
	}
	watch.Path = b.Path
	watch.ProfileID = profileID
	if b.Enabled != nil {
		watch.Enabled = b.Enabled
	}
	if b.Recursive != nil {
		watch.Recursive = b.Recursive
	}
	if b.AutoQueue != nil {
		watch.AutoQueue = b.AutoQueue
	}
	watch.Extensions = b.Extensions
	return nil
}

// ListWatchesOutput is the output for listing folder watches.
type ListWatchesOutput struct {
	Body struct {
		Watches []*models.FolderWatch `json:"watches"`
	}
}

// List returns all folder watches.
func (h *WatchHandler) List(ctx context.Context, input *struct{}) (*ListWatchesOutput, error) {
	watches, err := h.watches.GetAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list watches", err)
	}
	out := &ListWatchesOutput{}
	out.Body.Watches = watches
	return out, nil
}

// WatchStatusOutput is the output for the watch status endpoint.
type WatchStatusOutput struct {
	Body struct {
		Watches []watcher.WatchStatus `json:"watches"`
	}
}

// Status returns seeding state and known-file counts per watch.
func (h *WatchHandler) Status(ctx context.Context, input *struct{}) (*WatchStatusOutput, error) {
	statuses, err := h.watcher.Status(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get watch status", err)
	}
	out := &WatchStatusOutput{}
	out.Body.Watches = statuses
	return out, nil
}

// CheckWatchesInput optionally narrows the forced poll to one watch.
type CheckWatchesInput struct {
	Body struct {
		ID string `json:"id,omitempty" doc:"Watch ID; empty polls all watches"`
	}
}

// CheckWatchesOutput reports how many files the poll queued.
type CheckWatchesOutput struct {
	Body struct {
		Queued int `json:"queued"`
	}
}

// Check forces a poll without waiting for the next interval.
func (h *WatchHandler) Check(ctx context.Context, input *CheckWatchesInput) (*CheckWatchesOutput, error) {
	var id *models.ULID
	if input.Body.ID != "" {
		parsed, err := models.ParseULID(input.Body.ID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid watch ID", err)
		}
		id = &parsed
	}
	queued, err := h.watcher.ForceCheck(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("watch check failed", err)
	}
	out := &CheckWatchesOutput{}
	out.Body.Queued = queued
	return out, nil
}

// WatchIDInput identifies one folder watch.
type WatchIDInput struct {
	ID string `path:"id" doc:"Watch ID (ULID)"`
}

// WatchOutput is the output for a single folder watch.
type WatchOutput struct {
	Body models.FolderWatch
}

// GetByID returns a folder watch by ID.
func (h *WatchHandler) GetByID(ctx context.Context, input *WatchIDInput) (*WatchOutput, error) {
	watch, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &WatchOutput{Body: *watch}, nil
}

// CreateWatchInput is the input for creating a folder watch.
type CreateWatchInput struct {
	Body WatchBody
}

// Create creates a new folder watch.
func (h *WatchHandler) Create(ctx context.Context, input *CreateWatchInput) (*WatchOutput, error) {
	watch := &models.FolderWatch{}
	if err := input.Body.apply(watch); err != nil {
		return nil, err
	}
	if info, err := os.Stat(watch.Path); err != nil || !info.IsDir() {
		return nil, huma.Error422UnprocessableEntity("path is not an accessible directory")
	}
	profile, err := h.profiles.GetByID(ctx, watch.ProfileID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get profile", err)
	}
	if profile == nil {
		return nil, huma.Error422UnprocessableEntity("profile not found")
	}
	if err := h.watches.Create(ctx, watch); err != nil {
		return nil, huma.Error422UnprocessableEntity("failed to create watch", err)
	}
	return &WatchOutput{Body: *watch}, nil
}

// UpdateWatchInput is the input for updating a folder watch.
type UpdateWatchInput struct {
	ID   string `path:"id" doc:"Watch ID (ULID)"`
	Body WatchBody
}

// Update replaces the writable fields of a folder watch.
func (h *WatchHandler) Update(ctx context.Context, input *UpdateWatchInput) (*WatchOutput, error) {
	watch, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := input.Body.apply(watch); err != nil {
		return nil, err
	}
	if err := h.watches.Update(ctx, watch); err != nil {
		return nil, huma.Error422UnprocessableEntity("failed to update watch", err)
	}
	return &WatchOutput{Body: *watch}, nil
}

// Delete removes a folder watch.
func (h *WatchHandler) Delete(ctx context.Context, input *WatchIDInput) (*MessageOutput, error) {
	watch, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.watches.Delete(ctx, watch.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete watch", err)
	}
	return messageOutput("folder watch deleted"), nil
}

func (h *WatchHandler) lookup(ctx context.Context, rawID string) (*models.FolderWatch, error) {
	id, err := models.ParseULID(rawID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid watch ID", err)
	}
	watch, err := h.watches.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get watch", err)
	}
	if watch == nil {
		return nil, huma.Error404NotFound("folder watch not found")
	}
	return watch, nil
}
