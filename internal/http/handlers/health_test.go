package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthLivez(t *testing.T) {
	handler := NewHealthHandler("1.0.0")

	out, err := handler.GetLivez(context.Background(), &LivezInput{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Body.Status)
}

func TestHealthReadyz(t *testing.T) {
	t.Run("not ready without a database", func(t *testing.T) {
		handler := NewHealthHandler("1.0.0")

		out, err := handler.GetReadyz(context.Background(), &ReadyzInput{})
		require.NoError(t, err)
		assert.Equal(t, "not_ready", out.Body.Status)
		assert.Equal(t, "not_configured", out.Body.Components["database"])
	})

	t.Run("ready with a reachable database", func(t *testing.T) {
		handler := NewHealthHandler("1.0.0").WithDB(setupDB(t))

		out, err := handler.GetReadyz(context.Background(), &ReadyzInput{})
		require.NoError(t, err)
		assert.Equal(t, "ready", out.Body.Status)
		assert.Equal(t, "ok", out.Body.Components["database"])
	})
}

func TestHealthVersion(t *testing.T) {
	handler := NewHealthHandler("1.0.0")

	out, err := handler.GetVersion(context.Background(), &VersionInput{})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Body.GoVersion)
	assert.NotEmpty(t, out.Body.Platform)
}
