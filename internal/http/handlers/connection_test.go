package handlers

import (
	"context"
	"testing"

	"github.com/recodarr/recodarr/internal/external"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnectionHandler(t *testing.T) (*ConnectionHandler, repository.ConnectionRepository, *external.Cipher) {
	t.Helper()
	db := setupDB(t)
	connections := repository.NewConnectionRepository(db)
	cipher, err := external.NewCipher("test-secret")
	require.NoError(t, err)
	return NewConnectionHandler(connections, nil, cipher, "http://recodarr:8484"), connections, cipher
}

func TestConnectionCreate_MasksKey(t *testing.T) {
	handler, connections, cipher := newConnectionHandler(t)
	ctx := context.Background()

	create := &CreateConnectionInput{}
	create.Body = ConnectionBody{
		Name:    "radarr",
		Kind:    "catalog-movie",
		BaseURL: "http://radarr:7878",
		APIKey:  "radarr-api-key-12345",
	}
	out, err := handler.Create(ctx, create)
	require.NoError(t, err)
	assert.Equal(t, "****2345", out.Body.APIKeyMasked)
	assert.True(t, out.Body.Enabled)

	// The stored key is encrypted, never plaintext.
	stored, err := connections.GetByID(ctx, out.Body.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.APIKeyEncrypted, "radarr-api-key")
	decrypted, err := cipher.Decrypt(stored.APIKeyEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "radarr-api-key-12345", decrypted)
}

func TestConnectionUpdate_EmptyKeyKeepsStored(t *testing.T) {
	handler, connections, cipher := newConnectionHandler(t)
	ctx := context.Background()

	create := &CreateConnectionInput{}
	create.Body = ConnectionBody{
		Name:    "sonarr",
		Kind:    "catalog-series",
		BaseURL: "http://sonarr:8989",
		APIKey:  "sonarr-api-key-67890",
	}
	created, err := handler.Create(ctx, create)
	require.NoError(t, err)

	update := &UpdateConnectionInput{ID: created.Body.ID.String()}
	update.Body = ConnectionBody{
		Name:    "sonarr-renamed",
		Kind:    "catalog-series",
		BaseURL: "http://sonarr:8989",
	}
	updated, err := handler.Update(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, "sonarr-renamed", updated.Body.Name)
	assert.Equal(t, "****7890", updated.Body.APIKeyMasked)

	stored, err := connections.GetByID(ctx, created.Body.ID)
	require.NoError(t, err)
	decrypted, err := cipher.Decrypt(stored.APIKeyEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "sonarr-api-key-67890", decrypted)
}

func TestConnectionGet_NotFound(t *testing.T) {
	handler, _, _ := newConnectionHandler(t)

	_, err := handler.GetByID(context.Background(), &ConnectionIDInput{ID: "not-a-ulid"})
	require.Error(t, err)

	_, err = handler.GetByID(context.Background(), &ConnectionIDInput{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
