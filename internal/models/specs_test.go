package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaSpecs_ValueStampsVersion(t *testing.T) {
	m := MediaSpecs{Codec: "h264", Resolution: "1920x1080"}
	v, err := m.Value()
	require.NoError(t, err)

	var scanned MediaSpecs
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, SpecsSchemaVersion, scanned.SchemaVersion)
	assert.Equal(t, "h264", scanned.Codec)
	assert.Equal(t, "1920x1080", scanned.Resolution)
}

func TestMediaSpecs_ScanLegacyRow(t *testing.T) {
	// Rows written before versioning have no schema_version field
	var m MediaSpecs
	require.NoError(t, m.Scan(`{"codec":"h265","height":720}`))
	assert.Equal(t, 1, m.SchemaVersion)
	assert.Equal(t, "h265", m.Codec)
	assert.Equal(t, 720, m.Height)
}

func TestMediaSpecs_IsUnknown(t *testing.T) {
	assert.True(t, MediaSpecs{}.IsUnknown())
	assert.True(t, MediaSpecs{Codec: "unknown"}.IsUnknown())
	assert.False(t, MediaSpecs{Codec: "av1"}.IsUnknown())
}

func TestMediaSpecs_ScanByteSliceAndEmpty(t *testing.T) {
	var m MediaSpecs
	require.NoError(t, m.Scan([]byte(`{"codec":"vp9"}`)))
	assert.Equal(t, "vp9", m.Codec)

	var empty MediaSpecs
	require.NoError(t, empty.Scan(""))
	require.NoError(t, empty.Scan(nil))
	assert.Error(t, empty.Scan(42))
}

func TestUpscalePlan_NilStoresNull(t *testing.T) {
	var p *UpscalePlan
	v, err := p.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestUpscalePlan_Roundtrip(t *testing.T) {
	p := &UpscalePlan{
		UpscalerKey:  "realesrgan",
		Model:        "realesrgan-x4plus",
		Factor:       2,
		SourceHeight: 480,
		TargetHeight: 1080,
	}
	v, err := p.Value()
	require.NoError(t, err)

	var scanned UpscalePlan
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, SpecsSchemaVersion, scanned.SchemaVersion)
	assert.Equal(t, "realesrgan", scanned.UpscalerKey)
	assert.Equal(t, 2, scanned.Factor)
	assert.Equal(t, 1080, scanned.TargetHeight)
}

func TestTargetSpecs_Roundtrip(t *testing.T) {
	ts := TargetSpecs{Codec: "av1", Container: "mkv", AudioStrategy: "preserve_all"}
	v, err := ts.Value()
	require.NoError(t, err)

	var scanned TargetSpecs
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, ts.Codec, scanned.Codec)
	assert.Equal(t, ts.Container, scanned.Container)
	assert.Equal(t, SpecsSchemaVersion, scanned.SchemaVersion)
}
