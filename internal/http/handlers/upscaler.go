package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/upscale"
)

// UpscalerHandler exposes the upscaler registry and tool manager.
type UpscalerHandler struct {
	tools *upscale.ToolManager
}

// NewUpscalerHandler creates a new upscaler handler.
func NewUpscalerHandler(tools *upscale.ToolManager) *UpscalerHandler {
	return &UpscalerHandler{tools: tools}
}

// Register registers the upscaler routes with the API.
func (h *UpscalerHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listUpscalers",
		Method:      "GET",
		Path:        "/api/v1/upscalers",
		Summary:     "List upscalers",
		Description: "Returns the upscaler registry with install state per tool",
		Tags:        []string{"Upscalers"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "installUpscaler",
		Method:      "POST",
		Path:        "/api/v1/upscalers/{key}/install",
		Summary:     "Install upscaler",
		Description: "Downloads the latest release of an upscaler into the tool cache",
		Tags:        []string{"Upscalers"},
	}, h.Install)
}

// ListUpscalersOutput is the output for listing upscalers.
type ListUpscalersOutput struct {
	Body struct {
		Upscalers []upscale.DetectResult `json:"upscalers"`
	}
}

// List returns the registry with install state per tool.
func (h *UpscalerHandler) List(ctx context.Context, input *struct{}) (*ListUpscalersOutput, error) {
	out := &ListUpscalersOutput{}
	out.Body.Upscalers = upscale.Detect(h.tools)
	return out, nil
}

// InstallUpscalerInput identifies the upscaler to install.
type InstallUpscalerInput struct {
	Key string `path:"key" doc:"Upscaler registry key" enum:"realesrgan,realcugan,waifu2x"`
}

// InstallUpscalerOutput reports the installed tool.
type InstallUpscalerOutput struct {
	Body upscale.InstalledTool
}

// Install downloads the latest release into the tool cache.
func (h *UpscalerHandler) Install(ctx context.Context, input *InstallUpscalerInput) (*InstallUpscalerOutput, error) {
	installed, err := h.tools.Install(ctx, input.Key)
	if err != nil {
		return nil, huma.Error502BadGateway("install failed", err)
	}
	return &InstallUpscalerOutput{Body: installed}, nil
}
