package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/external"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
)

// ConnectionHandler handles external connection API endpoints. API keys are
// encrypted at rest and never leave the server unmasked.
type ConnectionHandler struct {
	connections repository.ConnectionRepository
	syncer      *external.Syncer
	cipher      *external.Cipher

	// publicURL is the address catalog services reach this server on,
	// used when registering webhooks.
	publicURL string
}

// NewConnectionHandler creates a new connection handler.
func NewConnectionHandler(
	connections repository.ConnectionRepository,
	syncer *external.Syncer,
	cipher *external.Cipher,
	publicURL string,
) *ConnectionHandler {
	return &ConnectionHandler{
		connections: connections,
		syncer:      syncer,
		cipher:      cipher,
		publicURL:   publicURL,
	}
}

// Register registers the connection routes with the API.
func (h *ConnectionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listConnections",
		Method:      "GET",
		Path:        "/api/v1/connections",
		Summary:     "List connections",
		Tags:        []string{"Connections"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "createConnection",
		Method:      "POST",
		Path:        "/api/v1/connections",
		Summary:     "Create connection",
		Tags:        []string{"Connections"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "syncAllConnections",
		Method:      "POST",
		Path:        "/api/v1/connections/sync-all",
		Summary:     "Sync all enabled connections",
		Tags:        []string{"Connections"},
	}, h.SyncAll)

	huma.Register(api, huma.Operation{
		OperationID: "getConnection",
		Method:      "GET",
		Path:        "/api/v1/connections/{id}",
		Summary:     "Get connection",
		Tags:        []string{"Connections"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "updateConnection",
		Method:      "PUT",
		Path:        "/api/v1/connections/{id}",
		Summary:     "Update connection",
		Tags:        []string{"Connections"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteConnection",
		Method:      "DELETE",
		Path:        "/api/v1/connections/{id}",
		Summary:     "Delete connection",
		Tags:        []string{"Connections"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "testConnection",
		Method:      "POST",
		Path:        "/api/v1/connections/{id}/test",
		Summary:     "Test connection",
		Description: "Verifies connectivity and credentials against the remote service",
		Tags:        []string{"Connections"},
	}, h.Test)

	huma.Register(api, huma.Operation{
		OperationID: "syncConnection",
		Method:      "POST",
		Path:        "/api/v1/connections/{id}/sync",
		Summary:     "Sync connection library",
		Description: "Pulls the remote library and funnels candidates through the scan pipeline",
		Tags:        []string{"Connections"},
	}, h.Sync)

	huma.Register(api, huma.Operation{
		OperationID: "registerConnectionWebhook",
		Method:      "POST",
		Path:        "/api/v1/connections/{id}/register-webhook",
		Summary:     "Register push webhook",
		Description: "Installs this server as a notification target so downloads push immediately",
		Tags:        []string{"Connections"},
	}, h.RegisterWebhook)
}

// ConnectionResponse is an external connection with the API key masked.
type ConnectionResponse struct {
	ID           models.ULID           `json:"id"`
	Name         string                `json:"name"`
	Kind         models.ConnectionKind `json:"kind"`
	BaseURL      string                `json:"base_url"`
	APIKeyMasked string                `json:"api_key_masked,omitempty"`
	Enabled      bool                  `json:"enabled"`
	LastTested   *models.Time          `json:"last_tested,omitempty"`
	LastSynced   *models.Time          `json:"last_synced,omitempty"`
}

func (h *ConnectionHandler) response(conn *models.ExternalConnection) ConnectionResponse {
	resp := ConnectionResponse{
		ID:         conn.ID,
		Name:       conn.Name,
		Kind:       conn.Kind,
		BaseURL:    conn.BaseURL,
		Enabled:    models.BoolVal(conn.Enabled),
		LastTested: conn.LastTested,
		LastSynced: conn.LastSynced,
	}
	if conn.APIKeyEncrypted != "" && h.cipher != nil {
		if key, err := h.cipher.Decrypt(conn.APIKeyEncrypted); err == nil {
			resp.APIKeyMasked = external.Mask(key)
		}
	}
	return resp
}

// ConnectionBody is the writable subset of a connection.
type ConnectionBody struct {
	Name    string `json:"name" minLength:"1" maxLength:"255" doc:"Connection name"`
	Kind    string `json:"kind" enum:"catalog-movie,catalog-series,scene-library" doc:"Connection kind"`
	BaseURL string `json:"base_url" minLength:"1" maxLength:"1024" doc:"Service root URL"`
	APIKey  string `json:"api_key,omitempty" doc:"API key; stored encrypted, omit on update to keep the current one"`
	Enabled *bool  `json:"enabled,omitempty" doc:"Include in sync-all (default true)"`
}

func (h *ConnectionHandler) apply(body ConnectionBody, conn *models.ExternalConnection) error {
	conn.Name = body.Name
	conn.Kind = models.ConnectionKind(body.Kind)
	conn.BaseURL = body.BaseURL
	if body.Enabled != nil {
		conn.Enabled = body.Enabled
	}
	if body.APIKey != "" {
		if h.cipher == nil {
			return huma.Error422UnprocessableEntity("no secret key configured to store API keys")
		}
		encrypted, err := h.cipher.Encrypt(body.APIKey)
		if err != nil {
			return huma.Error500InternalServerError("failed to encrypt API key", err)
		}
		conn.APIKeyEncrypted = encrypted
	}
	return nil
}

// ListConnectionsOutput is the output for listing connections.
type ListConnectionsOutput struct {
	Body struct {
		Connections []ConnectionResponse `json:"connections"`
	}
}

// List returns all connections with masked keys.
func (h *ConnectionHandler) List(ctx context.Context, input *struct{}) (*ListConnectionsOutput, error) {
	conns, err := h.connections.GetAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list connections", err)
	}
	out := &ListConnectionsOutput{}
	out.Body.Connections = make([]ConnectionResponse, len(conns))
	for i, conn := range conns {
		out.Body.Connections[i] = h.response(conn)
	}
	return out, nil
}

// ConnectionIDInput identifies one connection.
type ConnectionIDInput struct {
	ID string `path:"id" doc:"Connection ID (ULID)"`
}

// ConnectionOutput is the output for a single connection.
type ConnectionOutput struct {
	Body ConnectionResponse
}

// GetByID returns a connection by ID with the key masked.
func (h *ConnectionHandler) GetByID(ctx context.Context, input *ConnectionIDInput) (*ConnectionOutput, error) {
	conn, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ConnectionOutput{Body: h.response(conn)}, nil
}

// CreateConnectionInput is the input for creating a connection.
type CreateConnectionInput struct {
	Body ConnectionBody
}

// Create creates a new connection.
func (h *ConnectionHandler) Create(ctx context.Context, input *CreateConnectionInput) (*ConnectionOutput, error) {
	conn := &models.ExternalConnection{}
	if err := h.apply(input.Body, conn); err != nil {
		return nil, err
	}
	if err := h.connections.Create(ctx, conn); err != nil {
		return nil, huma.Error422UnprocessableEntity("failed to create connection", err)
	}
	return &ConnectionOutput{Body: h.response(conn)}, nil
}

// UpdateConnectionInput is the input for updating a connection.
type UpdateConnectionInput struct {
	ID   string `path:"id" doc:"Connection ID (ULID)"`
	Body ConnectionBody
}

// Update replaces the writable fields of a connection. An empty api_key
// keeps the stored one.
func (h *ConnectionHandler) Update(ctx context.Context, input *UpdateConnectionInput) (*ConnectionOutput, error) {
	conn, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.apply(input.Body, conn); err != nil {
		return nil, err
	}
	if err := h.connections.Update(ctx, conn); err != nil {
		return nil, huma.Error422UnprocessableEntity("failed to update connection", err)
	}
	return &ConnectionOutput{Body: h.response(conn)}, nil
}

// Delete removes a connection.
func (h *ConnectionHandler) Delete(ctx context.Context, input *ConnectionIDInput) (*MessageOutput, error) {
	conn, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.connections.Delete(ctx, conn.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete connection", err)
	}
	return messageOutput("connection deleted"), nil
}

// TestConnectionOutput is the output for the connection test endpoint.
type TestConnectionOutput struct {
	Body external.SystemStatus
}

// Test verifies connectivity and credentials.
func (h *ConnectionHandler) Test(ctx context.Context, input *ConnectionIDInput) (*TestConnectionOutput, error) {
	conn, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	status, err := h.syncer.Test(ctx, conn.ID)
	if err != nil {
		return nil, huma.Error502BadGateway("connection test failed", err)
	}
	return &TestConnectionOutput{Body: *status}, nil
}

// SyncConnectionOutput is the output for a library sync.
type SyncConnectionOutput struct {
	Body external.SyncResult
}

// Sync pulls the connection's library through the scan pipeline.
func (h *ConnectionHandler) Sync(ctx context.Context, input *ConnectionIDInput) (*SyncConnectionOutput, error) {
	conn, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	result, err := h.syncer.Sync(ctx, conn.ID)
	if err != nil {
		return nil, huma.Error502BadGateway("sync failed", err)
	}
	return &SyncConnectionOutput{Body: *result}, nil
}

// SyncAll pulls every enabled connection.
func (h *ConnectionHandler) SyncAll(ctx context.Context, input *struct{}) (*SyncConnectionOutput, error) {
	result, err := h.syncer.SyncAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("sync failed", err)
	}
	return &SyncConnectionOutput{Body: *result}, nil
}

// RegisterWebhookOutput reports the installed webhook URL.
type RegisterWebhookOutput struct {
	Body struct {
		WebhookURL string `json:"webhook_url"`
	}
}

// RegisterWebhook installs the push endpoint on the remote service.
func (h *ConnectionHandler) RegisterWebhook(ctx context.Context, input *ConnectionIDInput) (*RegisterWebhookOutput, error) {
	conn, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	url, err := h.syncer.RegisterWebhook(ctx, conn.ID, h.publicURL)
	if err != nil {
		return nil, huma.Error502BadGateway("webhook registration failed", err)
	}
	out := &RegisterWebhookOutput{}
	out.Body.WebhookURL = url
	return out, nil
}

func (h *ConnectionHandler) lookup(ctx context.Context, rawID string) (*models.ExternalConnection, error) {
	id, err := models.ParseULID(rawID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid connection ID", err)
	}
	conn, err := h.connections.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get connection", err)
	}
	if conn == nil {
		return nil, huma.Error404NotFound("connection not found")
	}
	return conn, nil
}
