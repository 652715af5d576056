package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recodarr/recodarr/internal/config"
)

func testLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:   "debug",
		Format:  "text",
		MaxSize: config.ByteSize(1024 * 1024),
		Backups: 2,
	}
}

func TestLogSet_WritesAppLog(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLogSet(testLoggingConfig(), dir)
	require.NoError(t, err)
	defer ls.Close()

	ls.Logger().Info("hello from app")

	data, err := os.ReadFile(filepath.Join(dir, AppLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from app")
}

func TestLogSet_MirrorsErrorsToErrorLog(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLogSet(testLoggingConfig(), dir)
	require.NoError(t, err)
	defer ls.Close()

	ls.Logger().Info("routine event")
	ls.Logger().Error("something broke")

	errData, err := os.ReadFile(filepath.Join(dir, ErrorLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(errData), "something broke")
	assert.NotContains(t, string(errData), "routine event")

	appData, err := os.ReadFile(filepath.Join(dir, AppLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(appData), "something broke")
	assert.Contains(t, string(appData), "routine event")
}

func TestLogSet_TranscoderLogIsSeparate(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLogSet(testLoggingConfig(), dir)
	require.NoError(t, err)
	defer ls.Close()

	ls.TranscoderLogger().Debug("Encoding: task 1 of 1, 42.00 %")

	tData, err := os.ReadFile(filepath.Join(dir, TranscoderLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(tData), "42.00")

	appData, err := os.ReadFile(filepath.Join(dir, AppLogFile))
	require.NoError(t, err)
	assert.NotContains(t, string(appData), "42.00")
}

func TestLogSet_Tail(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLogSet(testLoggingConfig(), dir)
	require.NoError(t, err)
	defer ls.Close()

	for i := 0; i < 5; i++ {
		ls.Logger().Info("info line")
	}
	ls.Logger().Error("error line")

	res, err := ls.Tail("app", 3, "")
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total)
	assert.Equal(t, 3, res.Showing)

	res, err = ls.Tail("app", 100, "error")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Showing)
	assert.Contains(t, res.Lines[0], "error line")

	_, err = ls.Tail("bogus", 10, "")
	assert.Error(t, err)
}

func TestRotatingWriter_Rotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.log")

	w, err := NewRotatingWriter(path, 64, 2)
	require.NoError(t, err)
	defer w.Close()

	line := strings.Repeat("x", 30) + "\n"
	for i := 0; i < 5; i++ {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	// Rotation should have produced at least one backup
	_, err = os.Stat(path + ".1")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(64))
}
