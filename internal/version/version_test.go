package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setBuildInfo(t *testing.T, version, commit string) {
	t.Helper()
	origVersion, origCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = origVersion, origCommit })
	Version, Commit = version, commit
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestString(t *testing.T) {
	setBuildInfo(t, "1.0.0", "abc123def456789")

	s := String()
	assert.Contains(t, s, ApplicationName)
	assert.Contains(t, s, "1.0.0")
	assert.Contains(t, s, "abc123de")

	// Without a stamped commit the short form is used
	setBuildInfo(t, "1.0.0", "unknown")
	assert.NotContains(t, String(), "commit:")
}

func TestShort(t *testing.T) {
	setBuildInfo(t, "1.0.0", "abc123def456789")
	assert.Equal(t, "recodarr 1.0.0 (abc123de)", Short())

	setBuildInfo(t, "dev", "unknown")
	assert.Equal(t, "recodarr dev", Short())
}

func TestUserAgent(t *testing.T) {
	setBuildInfo(t, "1.0.0", "unknown")
	assert.Equal(t, "recodarr/1.0.0", UserAgent())
}

func TestSnapshotDetection(t *testing.T) {
	tests := []struct {
		version  string
		snapshot bool
	}{
		{"dev", true},
		{"1.0.0", false},
		{"1.0.1-SNAPSHOT.abc1234", true},
		{"1.2.3-alpha.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			setBuildInfo(t, tt.version, "unknown")
			assert.Equal(t, tt.snapshot, IsSnapshot())
			assert.Equal(t, !tt.snapshot, IsRelease())
		})
	}
}
