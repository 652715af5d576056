package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/external"
	"github.com/recodarr/recodarr/internal/models"
)

// WebhookHandler receives push notifications from catalog services. The
// endpoint is unauthenticated; it is meant for LAN-local catalog instances.
type WebhookHandler struct {
	syncer *external.Syncer
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(syncer *external.Syncer) *WebhookHandler {
	return &WebhookHandler{syncer: syncer}
}

// Register registers the webhook route with the API.
func (h *WebhookHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "receiveWebhook",
		Method:      "POST",
		Path:        "/api/v1/webhooks/{kind}",
		Summary:     "Receive catalog push",
		Description: "Accepts download notifications from catalog services. Download and Upgrade events queue the new file; everything else is acknowledged and ignored.",
		Tags:        []string{"Connections"},
	}, h.Receive)
}

// WebhookInput carries the raw notification payload.
type WebhookInput struct {
	Kind    string `path:"kind" doc:"Connection kind the push belongs to" enum:"catalog-movie,catalog-series"`
	RawBody []byte `contentType:"application/json"`
}

// WebhookOutput is the verdict for one delivery.
type WebhookOutput struct {
	Body external.PushResult
}

// Receive processes one push notification.
func (h *WebhookHandler) Receive(ctx context.Context, input *WebhookInput) (*WebhookOutput, error) {
	result, err := h.syncer.HandlePush(ctx, models.ConnectionKind(input.Kind), input.RawBody)
	if err != nil {
		if errors.Is(err, external.ErrNoProfile) {
			return nil, huma.Error422UnprocessableEntity("no default profile configured")
		}
		return nil, huma.Error400BadRequest("webhook rejected", err)
	}
	return &WebhookOutput{Body: *result}, nil
}
