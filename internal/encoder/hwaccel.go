package encoder

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/recodarr/recodarr/internal/models"
)

// softwareEncoders is the fallback encoder per target codec.
var softwareEncoders = map[models.VideoCodec]string{
	models.CodecAV1:  "svt_av1",
	models.CodecH265: "x265",
	models.CodecH264: "x264",
	models.CodecVP9:  "VP9",
}

// hardwareEncoders maps (vendor, codec) onto the HandBrake encoder name.
// Vendors follow the hwaccel_priority config values.
var hardwareEncoders = map[string]map[models.VideoCodec]string{
	"nvenc": {
		models.CodecAV1:  "nvenc_av1",
		models.CodecH265: "nvenc_h265",
		models.CodecH264: "nvenc_h264",
	},
	"qsv": {
		models.CodecAV1:  "qsv_av1",
		models.CodecH265: "qsv_h265",
		models.CodecH264: "qsv_h264",
	},
	"vce": {
		models.CodecAV1:  "vce_av1",
		models.CodecH265: "vce_h265",
		models.CodecH264: "vce_h264",
	},
	"videotoolbox": {
		models.CodecH265: "vt_h265",
		models.CodecH264: "vt_h264",
	},
}

// HWAccelDetector discovers which encoders the installed HandBrakeCLI build
// supports. Detection runs once and is cached for the process lifetime.
type HWAccelDetector struct {
	binary string
	logger *slog.Logger

	once      sync.Once
	available map[string]bool
}

// NewHWAccelDetector creates a detector for the given HandBrakeCLI binary.
func NewHWAccelDetector(binary string, logger *slog.Logger) *HWAccelDetector {
	if binary == "" {
		binary = "HandBrakeCLI"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HWAccelDetector{binary: binary, logger: logger}
}

// SelectEncoder resolves the encoder for a profile. An explicit profile
// encoder wins. With hw_accel_enabled the priority list is walked for the
// first hardware variant the binary supports; otherwise, or when none is
// available, the software encoder is used silently.
func (d *HWAccelDetector) SelectEncoder(ctx context.Context, profile *models.Profile, priority []string) string {
	if profile.Encoder != "" {
		return profile.Encoder
	}

	software := softwareEncoders[profile.Codec]
	if !profile.HWAccelEnabled {
		return software
	}

	available := d.detect(ctx)
	for _, vendor := range priority {
		name, ok := hardwareEncoders[vendor][profile.Codec]
		if !ok {
			continue
		}
		if available[name] {
			d.logger.Debug("hardware encoder selected",
				slog.String("encoder", name),
				slog.String("vendor", vendor))
			return name
		}
	}
	return software
}

// detect scans the HandBrakeCLI help text for known hardware encoder names.
// A failing scan leaves the set empty, which degrades to software encoding.
func (d *HWAccelDetector) detect(ctx context.Context) map[string]bool {
	d.once.Do(func() {
		output, err := exec.CommandContext(ctx, d.binary, "--help").CombinedOutput()
		if err != nil {
			d.logger.Warn("transcoder encoder detection failed",
				slog.String("binary", d.binary),
				slog.String("error", err.Error()))
			d.available = map[string]bool{}
			return
		}
		d.available = parseEncoderSupport(string(output))
		d.logger.Info("transcoder encoders detected",
			slog.Int("hardware_variants", len(d.available)))
	})
	return d.available
}

// parseEncoderSupport extracts hardware encoder names from help output.
func parseEncoderSupport(help string) map[string]bool {
	available := make(map[string]bool)
	for _, vendors := range hardwareEncoders {
		for _, name := range vendors {
			if containsWord(help, name) {
				available[name] = true
			}
		}
	}
	return available
}

// containsWord reports whether name appears in text bounded by non-word
// characters, so "nvenc_h264" does not match inside "nvenc_h264_10bit"
// incorrectly claiming the 8-bit variant is absent.
func containsWord(text, name string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], name)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(name)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
