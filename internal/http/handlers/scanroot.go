package handlers

import (
	"context"
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/scan"
)

// ScanRootHandler handles scan root API endpoints.
type ScanRootHandler struct {
	roots    repository.ScanRootRepository
	profiles repository.ProfileRepository
	scanner  *scan.Scanner
	logger   *slog.Logger
}

// NewScanRootHandler creates a new scan root handler.
func NewScanRootHandler(
	roots repository.ScanRootRepository,
	profiles repository.ProfileRepository,
	scanner *scan.Scanner,
	logger *slog.Logger,
) *ScanRootHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanRootHandler{roots: roots, profiles: profiles, scanner: scanner, logger: logger}
}

// Register registers the scan root routes with the API.
func (h *ScanRootHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listScanRoots",
		Method:      "GET",
		Path:        "/api/v1/scan-roots",
		Summary:     "List scan roots",
		Tags:        []string{"Scan Roots"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "createScanRoot",
		Method:      "POST",
		Path:        "/api/v1/scan-roots",
		Summary:     "Create scan root",
		Tags:        []string{"Scan Roots"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "getScanRoot",
		Method:      "GET",
		Path:        "/api/v1/scan-roots/{id}",
		Summary:     "Get scan root",
		Tags:        []string{"Scan Roots"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "updateScanRoot",
		Method:      "PUT",
		Path:        "/api/v1/scan-roots/{id}",
		Summary:     "Update scan root",
		Tags:        []string{"Scan Roots"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteScanRoot",
		Method:      "DELETE",
		Path:        "/api/v1/scan-roots/{id}",
		Summary:     "Delete scan root",
		Description: "Deletes a scan root. Queue items discovered under it are kept with the root reference cleared.",
		Tags:        []string{"Scan Roots"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "scanRoot",
		Method:      "POST",
		Path:        "/api/v1/scan-roots/{id}/scan",
		Summary:     "Scan one root",
		Description: "Walks the root and queues candidates. Blocks until the walk finishes.",
		Tags:        []string{"Scan Roots"},
	}, h.Scan)

	huma.Register(api, huma.Operation{
		OperationID: "scanAllRoots",
		Method:      "POST",
		Path:        "/api/v1/scan-roots/scan-all",
		Summary:     "Scan all enabled roots",
		Tags:        []string{"Scan Roots"},
	}, h.ScanAll)
}

// ScanRootBody is the writable subset of a scan root.
type ScanRootBody struct {
	Path                 string `json:"path" minLength:"1" maxLength:"1024" doc:"Absolute directory path"`
	ProfileID            string `json:"profile_id" doc:"Encoding profile applied to discovered files"`
	ExternalConnectionID string `json:"external_connection_id,omitempty" doc:"Linked external connection, if any"`
	LibraryType          string `json:"library_type,omitempty" default:"custom" doc:"Library flavour (movies, series, custom)"`
	Recursive            *bool  `json:"recursive,omitempty" doc:"Walk subdirectories (default true)"`
	Enabled              *bool  `json:"enabled,omitempty" doc:"Include in scans (default true)"`
	UpscaleEnabled       bool   `json:"upscale_enabled,omitempty" doc:"Plan AI upscales for low-resolution files"`
	UpscaleTriggerBelow  int    `json:"upscale_trigger_below,omitempty" default:"720" doc:"Plan an upscale when source height is below this"`
	UpscaleTargetHeight  int    `json:"upscale_target_height,omitempty" default:"1080" doc:"Upscale target height"`
	UpscaleKey           string `json:"upscale_key,omitempty" default:"realesrgan" doc:"Upscaler registry key"`
	UpscaleModel         string `json:"upscale_model,omitempty" doc:"Upscaler model name"`
	UpscaleFactor        int    `json:"upscale_factor,omitempty" default:"2" doc:"Upscale factor"`
}

func (b ScanRootBody) apply(root *models.ScanRoot) error {
	profileID, err := models.ParseULID(b.ProfileID)
	if err != nil {
		return huma.Error400BadRequest("invalid profile ID", err)
	}
	root.Path = b.Path
	root.ProfileID = profileID
	if b.ExternalConnectionID != "" {
		connID, err := models.ParseULID(b.ExternalConnectionID)
		if err != nil {
			return huma.Error400BadRequest("invalid connection ID", err)
		}
		root.ExternalConnectionID = connID
	}
	if b.LibraryType != "" {
		root.LibraryType = b.LibraryType
	}
	if b.Recursive != nil {
		root.Recursive = b.Recursive
	}
	if b.Enabled != nil {
		root.Enabled = b.Enabled
	}
	root.UpscaleEnabled = b.UpscaleEnabled
	if b.UpscaleTriggerBelow > 0 {
		root.UpscaleTriggerBelow = b.UpscaleTriggerBelow
	}
	if b.UpscaleTargetHeight > 0 {
		root.UpscaleTargetHeight = b.UpscaleTargetHeight
	}
	if b.UpscaleKey != "" {
		root.UpscaleKey = b.UpscaleKey
	}
	if b.UpscaleModel != "" {
		root.UpscaleModel = b.UpscaleModel
	}
	if b.UpscaleFactor > 0 {
		root.UpscaleFactor = b.UpscaleFactor
	}
	return nil
}

// ListScanRootsOutput is the output for listing scan roots.
type ListScanRootsOutput struct {
	Body struct {
		Roots []*models.ScanRoot `json:"roots"`
	}
}

// List returns all scan roots.
func (h *ScanRootHandler) List(ctx context.Context, input *struct{}) (*ListScanRootsOutput, error) {
	roots, err := h.roots.GetAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list scan roots", err)
	}
	out := &ListScanRootsOutput{}
	out.Body.Roots = roots
	return out, nil
}

// ScanRootIDInput identifies one scan root.
type ScanRootIDInput struct {
	ID string `path:"id" doc:"Scan root ID (ULID)"`
}

// ScanRootOutput is the output for a single scan root.
type ScanRootOutput struct {
	Body models.ScanRoot
}

// GetByID returns a scan root by ID.
func (h *ScanRootHandler) GetByID(ctx context.Context, input *ScanRootIDInput) (*ScanRootOutput, error) {
	root, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ScanRootOutput{Body: *root}, nil
}

// CreateScanRootInput is the input for creating a scan root.
type CreateScanRootInput struct {
	Body ScanRootBody
}

// Create creates a new scan root.
func (h *ScanRootHandler) Create(ctx context.Context, input *CreateScanRootInput) (*ScanRootOutput, error) {
	root := &models.ScanRoot{}
	if err := input.Body.apply(root); err != nil {
		return nil, err
	}
	if info, err := os.Stat(root.Path); err != nil || !info.IsDir() {
		return nil, huma.Error422UnprocessableEntity("path is not an accessible directory")
	}
	profile, err := h.profiles.GetByID(ctx, root.ProfileID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get profile", err)
	}
	if profile == nil {
		return nil, huma.Error422UnprocessableEntity("profile not found")
	}
	if err := h.roots.Create(ctx, root); err != nil {
		return nil, huma.Error422UnprocessableEntity("failed to create scan root", err)
	}
	return &ScanRootOutput{Body: *root}, nil
}

// UpdateScanRootInput is the input for updating a scan root.
type UpdateScanRootInput struct {
	ID   string `path:"id" doc:"Scan root ID (ULID)"`
	Body ScanRootBody
}

// Update replaces the writable fields of a scan root.
func (h *ScanRootHandler) Update(ctx context.Context, input *UpdateScanRootInput) (*ScanRootOutput, error) {
	root, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := input.Body.apply(root); err != nil {
		return nil, err
	}
	if err := h.roots.Update(ctx, root); err != nil {
		return nil, huma.Error422UnprocessableEntity("failed to update scan root", err)
	}
	return &ScanRootOutput{Body: *root}, nil
}

// Delete removes a scan root, keeping its queue items.
func (h *ScanRootHandler) Delete(ctx context.Context, input *ScanRootIDInput) (*MessageOutput, error) {
	root, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.roots.Delete(ctx, root.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete scan root", err)
	}
	return messageOutput("scan root deleted"), nil
}

// ScanResultOutput reports how many items a scan queued.
type ScanResultOutput struct {
	Body struct {
		Queued int `json:"queued"`
	}
}

// Scan walks one root and queues candidates.
func (h *ScanRootHandler) Scan(ctx context.Context, input *ScanRootIDInput) (*ScanResultOutput, error) {
	root, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	queued, err := h.scanner.ScanRoot(ctx, root.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("scan failed", err)
	}
	out := &ScanResultOutput{}
	out.Body.Queued = queued
	return out, nil
}

// ScanAll walks every enabled root.
func (h *ScanRootHandler) ScanAll(ctx context.Context, input *struct{}) (*ScanResultOutput, error) {
	queued, err := h.scanner.ScanAllRoots(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("scan failed", err)
	}
	out := &ScanResultOutput{}
	out.Body.Queued = queued
	return out, nil
}

func (h *ScanRootHandler) lookup(ctx context.Context, rawID string) (*models.ScanRoot, error) {
	id, err := models.ParseULID(rawID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid scan root ID", err)
	}
	root, err := h.roots.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get scan root", err)
	}
	if root == nil {
		return nil, huma.Error404NotFound("scan root not found")
	}
	return root, nil
}
