// Package encoder drives the external transcoder: command planning, the
// per-job supervisor with signal-based throttling, finalisation, and the
// pool that serialises claimed queue items.
package encoder

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/recodarr/recodarr/internal/models"
)

// keepPrimaryCodecs maps a source audio codec onto the HandBrake encoder
// used when only the primary track is kept.
var keepPrimaryCodecs = map[string]string{
	"aac":         "av_aac",
	"opus":        "opus",
	"ac3":         "ac3",
	"flac":        "flac24",
	"passthrough": "copy",
}

// containerFormats maps output containers onto HandBrake format flags.
var containerFormats = map[models.Container]string{
	models.ContainerMKV:  "av_mkv",
	models.ContainerMP4:  "av_mp4",
	models.ContainerWebM: "av_webm",
}

// OutputPath returns the sibling temp path the transcoder writes to:
// the input stem plus "_optimized" and the target container's extension.
func OutputPath(input string, container models.Container) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), fmt.Sprintf("%s_optimized.%s", stem, container))
}

// FinalPath returns the path the output is renamed to after the original is
// removed: the original stem with the new container's extension.
func FinalPath(input string, container models.Container) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), fmt.Sprintf("%s.%s", stem, container))
}

// CommandBuilder composes a HandBrakeCLI invocation from a profile.
type CommandBuilder struct {
	profile *models.Profile
	specs   models.MediaSpecs
	encoder string
	input   string
	output  string
}

// NewCommandBuilder creates a builder for one job. encoder is the resolved
// HandBrake encoder name (hardware selection already applied).
func NewCommandBuilder(profile *models.Profile, specs models.MediaSpecs, encoder, input, output string) *CommandBuilder {
	return &CommandBuilder{
		profile: profile,
		specs:   specs,
		encoder: encoder,
		input:   input,
		output:  output,
	}
}

// Build returns the full argument list. Custom args are appended last so
// the profile can override anything the builder produced.
func (b *CommandBuilder) Build() []string {
	args := []string{
		"-i", b.input,
		"-o", b.output,
		"--format", containerFormats[b.profile.Container],
		"--encoder", b.encoder,
		"--quality", fmt.Sprintf("%d", b.profile.Quality),
	}

	if b.profile.Preset != "" {
		args = append(args, "--encoder-preset", b.profile.Preset)
	}

	if b.profile.Resolution != "" {
		if width, height, ok := splitResolution(b.profile.Resolution); ok {
			args = append(args, "--width", width, "--height", height)
		}
	}

	if b.profile.Framerate > 0 {
		args = append(args, "--rate", formatFramerate(b.profile.Framerate))
	} else {
		// Preserve the source timing
		args = append(args, "--vfr")
	}

	args = append(args, b.audioArgs()...)
	args = append(args, b.subtitleArgs()...)

	if b.profile.EnableFilters {
		args = append(args,
			"--comb-detect",
			"--decomb",
			"--hqdn3d", "ultralight",
			"--crop-mode", "auto",
		)
	}
	if models.BoolVal(b.profile.ChapterMarkers) {
		args = append(args, "--markers")
	}
	if b.profile.TwoPass {
		args = append(args, "--two-pass")
	}

	if b.profile.CustomArgs != "" {
		args = append(args, strings.Fields(b.profile.CustomArgs)...)
	}
	return args
}

func (b *CommandBuilder) audioArgs() []string {
	switch b.profile.AudioStrategy {
	case models.AudioPreserveAll:
		return []string{
			"--audio", trackList(10),
			"--aencoder", "copy",
			"--audio-fallback", "av_aac",
		}
	case models.AudioKeepPrimary:
		codec := "av_aac"
		if len(b.specs.AudioTracks) > 0 {
			if mapped, ok := keepPrimaryCodecs[b.specs.AudioTracks[0].Codec]; ok {
				codec = mapped
			}
		}
		return []string{"--audio", "1", "--aencoder", codec}
	case models.AudioStereoMixdown:
		return []string{
			"--audio", "1",
			"--aencoder", "av_aac",
			"--ab", "192",
			"--mixdown", "stereo",
		}
	case models.AudioHDPlusAAC:
		// Primary track passed through plus a stereo AAC copy of it.
		return []string{
			"--audio", "1,1",
			"--aencoder", "copy,av_aac",
			"--ab", ",192",
			"--mixdown", ",stereo",
			"--audio-fallback", "av_aac",
		}
	case models.AudioHighQuality:
		return []string{
			"--audio", "1",
			"--aencoder", "av_aac",
			"--ab", "256",
			"--mixdown", "stereo",
		}
	}
	return nil
}

func (b *CommandBuilder) subtitleArgs() []string {
	switch b.profile.SubtitleStrategy {
	case models.SubtitlePreserveAll:
		args := []string{"--subtitle", trackList(10)}
		if b.profile.Container == models.ContainerMP4 {
			// mp4 players auto-enable a default subtitle track
			args = append(args, "--subtitle-default=none")
		}
		return args
	case models.SubtitleKeepEnglish:
		return []string{"--subtitle-lang-list", "eng", "--all-subtitles"}
	case models.SubtitleBurnIn:
		return []string{"--subtitle", "1", "--subtitle-burned"}
	case models.SubtitleForeignScan:
		return []string{"--subtitle", "scan", "--subtitle-forced"}
	case models.SubtitleNone:
		return nil
	}
	return nil
}

// trackList returns "1,2,...,n".
func trackList(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%d", i+1)
	}
	return strings.Join(parts, ",")
}

func splitResolution(res string) (width, height string, ok bool) {
	parts := strings.SplitN(strings.ToLower(res), "x", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func formatFramerate(rate float64) string {
	if rate == float64(int(rate)) {
		return fmt.Sprintf("%d", int(rate))
	}
	return strings.TrimRight(fmt.Sprintf("%.3f", rate), "0")
}
