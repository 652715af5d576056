// Package probe inspects media files with ffprobe and condenses the output
// into the spec snapshot stored on queue items.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"time"

	"github.com/recodarr/recodarr/internal/models"
	"golang.org/x/text/language"
)

// ProbeResult is the decoded ffprobe JSON output.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat carries container-level fields.
type ProbeFormat struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

// ProbeStream carries the per-stream fields we read.
type ProbeStream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecType     string            `json:"codec_type"` // video, audio, subtitle
	Width         int               `json:"width,omitempty"`
	Height        int               `json:"height,omitempty"`
	RFrameRate    string            `json:"r_frame_rate,omitempty"`
	AvgFrameRate  string            `json:"avg_frame_rate,omitempty"`
	SampleRate    string            `json:"sample_rate,omitempty"`
	Channels      int               `json:"channels,omitempty"`
	ChannelLayout string            `json:"channel_layout,omitempty"`
	BitRate       string            `json:"bit_rate,omitempty"`
	Disposition   ProbeDisposition  `json:"disposition,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// ProbeDisposition carries the disposition flags we read.
type ProbeDisposition struct {
	Default        int `json:"default"`
	Forced         int `json:"forced"`
	AttachedPic    int `json:"attached_pic"`
	HearingImpaird int `json:"hearing_impaired"`
}

// Prober runs ffprobe against local files.
type Prober struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewProber creates a prober. An empty binary path resolves ffprobe from $PATH.
func NewProber(binary string, logger *slog.Logger) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		binary:  binary,
		timeout: 30 * time.Second,
		logger:  logger.With(slog.String("component", "probe")),
	}
}

// WithTimeout sets the per-file probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

// Probe inspects a file and returns its media specs. On any failure the
// returned specs carry codec "unknown" alongside the error, so callers can
// still queue the file.
func (p *Prober) Probe(ctx context.Context, path string) (models.MediaSpecs, error) {
	result, err := p.Raw(ctx, path)
	if err != nil {
		p.logger.Warn("probe failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return models.MediaSpecs{Codec: "unknown", Source: "probe"}, err
	}
	return FromResult(result), nil
}

// Raw runs ffprobe and returns the decoded JSON output.
func (p *Prober) Raw(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("probe timeout after %v", p.timeout)
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	return &result, nil
}

// FromResult condenses a probe result into media specs. The first video
// stream that is not an attached picture supplies the video fields.
func FromResult(result *ProbeResult) models.MediaSpecs {
	specs := models.MediaSpecs{Codec: "unknown", Source: "probe"}

	if result.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
			specs.DurationSec = dur
		}
	}
	if result.Format.BitRate != "" {
		if br, err := strconv.ParseInt(result.Format.BitRate, 10, 64); err == nil {
			specs.BitRate = br
		}
	}

	for _, stream := range result.Streams {
		switch stream.CodecType {
		case "video":
			if stream.Disposition.AttachedPic == 1 || specs.Codec != "unknown" {
				continue
			}
			specs.Codec = NormalizeCodec(stream.CodecName)
			specs.Width = stream.Width
			specs.Height = stream.Height
			if stream.Width > 0 && stream.Height > 0 {
				specs.Resolution = fmt.Sprintf("%dx%d", stream.Width, stream.Height)
			}
			specs.Framerate = streamFramerate(stream)

		case "audio":
			track := models.AudioTrack{
				Codec:    normalizeLower(stream.CodecName),
				Language: NormalizeLanguage(stream.Tags["language"]),
				Channels: stream.Channels,
			}
			if stream.SampleRate != "" {
				if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
					track.SampleRate = sr
				}
			}
			specs.AudioTracks = append(specs.AudioTracks, track)
		}
	}

	return specs
}

// streamFramerate derives the framerate, preferring r_frame_rate over
// avg_frame_rate, rounded to three decimals.
func streamFramerate(stream ProbeStream) float64 {
	if fr := parseRational(stream.RFrameRate); fr > 0 {
		return fr
	}
	return parseRational(stream.AvgFrameRate)
}

// parseRational parses a "num/den" rational. "0/0" and a zero denominator
// yield zero.
func parseRational(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	num, den, ok := splitRational(s)
	if !ok || den == 0 {
		return 0
	}
	return math.Round(num/den*1000) / 1000
}

func splitRational(s string) (num, den float64, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			n, err1 := strconv.ParseFloat(s[:i], 64)
			d, err2 := strconv.ParseFloat(s[i+1:], 64)
			return n, d, err1 == nil && err2 == nil
		}
	}
	// Plain number without a denominator
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, 1, true
	}
	return 0, 0, false
}

// NormalizeLanguage canonicalises a stream language tag to its ISO 639-3
// code ("en" and "eng" both become "eng"). Undetermined or unparseable tags
// yield an empty string.
func NormalizeLanguage(tag string) string {
	if tag == "" || tag == "und" {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return ""
	}
	base, _ := parsed.Base()
	return base.ISO3()
}
