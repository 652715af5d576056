package handlers

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/repository"
)

// SettingHandler serves the persisted key/value settings.
type SettingHandler struct {
	settings repository.SettingRepository
}

// NewSettingHandler creates a new setting handler.
func NewSettingHandler(settings repository.SettingRepository) *SettingHandler {
	return &SettingHandler{settings: settings}
}

// Register registers the settings routes with the API.
func (h *SettingHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listSettings",
		Method:      "GET",
		Path:        "/api/v1/settings",
		Summary:     "List settings",
		Tags:        []string{"Settings"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getSetting",
		Method:      "GET",
		Path:        "/api/v1/settings/{key}",
		Summary:     "Get a setting",
		Tags:        []string{"Settings"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "putSetting",
		Method:      "PUT",
		Path:        "/api/v1/settings/{key}",
		Summary:     "Create or update a setting",
		Tags:        []string{"Settings"},
	}, h.Put)

	huma.Register(api, huma.Operation{
		OperationID: "deleteSetting",
		Method:      "DELETE",
		Path:        "/api/v1/settings/{key}",
		Summary:     "Delete a setting",
		Tags:        []string{"Settings"},
	}, h.Delete)
}

// ListSettingsOutput is the response for listing settings.
type ListSettingsOutput struct {
	Body struct {
		Settings map[string]string `json:"settings"`
	}
}

// List returns all settings.
func (h *SettingHandler) List(ctx context.Context, _ *struct{}) (*ListSettingsOutput, error) {
	settings, err := h.settings.GetAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list settings", err)
	}
	out := &ListSettingsOutput{}
	out.Body.Settings = settings
	return out, nil
}

// SettingKeyInput identifies a setting by key.
type SettingKeyInput struct {
	Key string `path:"key" maxLength:"100" doc:"Setting key"`
}

// SettingOutput is the response for a single setting.
type SettingOutput struct {
	Body struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
}

// Get returns one setting.
func (h *SettingHandler) Get(ctx context.Context, input *SettingKeyInput) (*SettingOutput, error) {
	value, ok, err := h.settings.Get(ctx, input.Key)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get setting", err)
	}
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("Setting %q not found", input.Key))
	}
	out := &SettingOutput{}
	out.Body.Key = input.Key
	out.Body.Value = value
	return out, nil
}

// PutSettingInput carries the value for a create-or-update.
type PutSettingInput struct {
	Key  string `path:"key" maxLength:"100" doc:"Setting key"`
	Body struct {
		Value string `json:"value" maxLength:"4096" doc:"Setting value"`
	}
}

// Put creates or updates a setting.
func (h *SettingHandler) Put(ctx context.Context, input *PutSettingInput) (*SettingOutput, error) {
	if err := h.settings.Set(ctx, input.Key, input.Body.Value); err != nil {
		return nil, huma.Error500InternalServerError("Failed to store setting", err)
	}
	out := &SettingOutput{}
	out.Body.Key = input.Key
	out.Body.Value = input.Body.Value
	return out, nil
}

// Delete removes a setting. Deleting an absent key is a no-op.
func (h *SettingHandler) Delete(ctx context.Context, input *SettingKeyInput) (*MessageOutput, error) {
	if err := h.settings.Delete(ctx, input.Key); err != nil {
		return nil, huma.Error500InternalServerError("Failed to delete setting", err)
	}
	return messageOutput("setting deleted"), nil
}
