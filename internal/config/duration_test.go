package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"1w2d12h", 9*24*time.Hour + 12*time.Hour, false},
		{"720h", 720 * time.Hour, false},
		{"90s", 90 * time.Second, false},
		{"1.5d", 36 * time.Hour, false},
		{"-1d", -24 * time.Hour, false},
		{"", 0, true},
		{"1x", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Duration())
		})
	}
}

func TestDuration_String(t *testing.T) {
	assert.Equal(t, "0s", Duration(0).String())
	assert.Equal(t, "1w", Duration(7*24*time.Hour).String())
	assert.Equal(t, "2d12h0m0s", Duration(60*time.Hour).String())
	assert.Equal(t, "45s", Duration(45*time.Second).String())
}

func TestDuration_Roundtrip(t *testing.T) {
	for _, s := range []string{"1w", "3d", "1w2d12h", "15m"} {
		d, err := ParseDuration(s)
		require.NoError(t, err)
		back, err := ParseDuration(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, back, "roundtrip of %s", s)
	}
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"2d"`)))
	assert.Equal(t, 48*time.Hour, d.Duration())

	// Raw nanoseconds fallback
	require.NoError(t, d.UnmarshalJSON([]byte(`1000000000`)))
	assert.Equal(t, time.Second, d.Duration())
}
