package encoder

import (
	"strings"
	"testing"

	"github.com/recodarr/recodarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() *models.Profile {
	return &models.Profile{
		Name:             "test",
		Codec:            models.CodecH265,
		Quality:          22,
		Container:        models.ContainerMKV,
		AudioStrategy:    models.AudioPreserveAll,
		SubtitleStrategy: models.SubtitlePreserveAll,
		ChapterMarkers:   models.BoolPtr(true),
	}
}

func buildArgs(p *models.Profile) string {
	args := NewCommandBuilder(p, models.MediaSpecs{}, "x265", "/media/in.avi", "/media/in_optimized.mkv").Build()
	return strings.Join(args, " ")
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "/media/movie_optimized.mkv", OutputPath("/media/movie.avi", models.ContainerMKV))
	assert.Equal(t, "/media/movie_optimized.mp4", OutputPath("/media/movie.mkv", models.ContainerMP4))
}

func TestFinalPath(t *testing.T) {
	assert.Equal(t, "/media/movie.mkv", FinalPath("/media/movie.avi", models.ContainerMKV))
	assert.Equal(t, "/media/movie.webm", FinalPath("/media/movie.mkv", models.ContainerWebM))
}

func TestBuild_Basics(t *testing.T) {
	args := buildArgs(testProfile())

	assert.Contains(t, args, "-i /media/in.avi")
	assert.Contains(t, args, "-o /media/in_optimized.mkv")
	assert.Contains(t, args, "--format av_mkv")
	assert.Contains(t, args, "--encoder x265")
	assert.Contains(t, args, "--quality 22")
	assert.Contains(t, args, "--markers")
	// No forced framerate preserves source timing
	assert.Contains(t, args, "--vfr")
	assert.NotContains(t, args, "--rate")
	assert.NotContains(t, args, "--two-pass")
}

func TestBuild_ResolutionAndFramerate(t *testing.T) {
	p := testProfile()
	p.Resolution = "1920x1080"
	p.Framerate = 23.976
	args := buildArgs(p)

	assert.Contains(t, args, "--width 1920 --height 1080")
	assert.Contains(t, args, "--rate 23.976")
	assert.NotContains(t, args, "--vfr")

	p.Framerate = 25
	assert.Contains(t, buildArgs(p), "--rate 25")
}

func TestBuild_AudioStrategies(t *testing.T) {
	p := testProfile()

	p.AudioStrategy = models.AudioPreserveAll
	args := buildArgs(p)
	assert.Contains(t, args, "--audio 1,2,3,4,5,6,7,8,9,10")
	assert.Contains(t, args, "--aencoder copy")
	assert.Contains(t, args, "--audio-fallback av_aac")

	p.AudioStrategy = models.AudioStereoMixdown
	args = buildArgs(p)
	assert.Contains(t, args, "--audio 1 --aencoder av_aac --ab 192 --mixdown stereo")

	p.AudioStrategy = models.AudioHighQuality
	args = buildArgs(p)
	assert.Contains(t, args, "--ab 256")

	p.AudioStrategy = models.AudioHDPlusAAC
	args = buildArgs(p)
	assert.Contains(t, args, "--audio 1,1")
	assert.Contains(t, args, "--aencoder copy,av_aac")
}

func TestBuild_KeepPrimaryMapsSourceCodec(t *testing.T) {
	p := testProfile()
	p.AudioStrategy = models.AudioKeepPrimary

	specs := models.MediaSpecs{AudioTracks: []models.AudioTrack{{Codec: "flac"}}}
	args := strings.Join(NewCommandBuilder(p, specs, "x265", "in", "out").Build(), " ")
	assert.Contains(t, args, "--audio 1 --aencoder flac24")

	// Unmapped source codecs transcode to AAC
	specs = models.MediaSpecs{AudioTracks: []models.AudioTrack{{Codec: "dts"}}}
	args = strings.Join(NewCommandBuilder(p, specs, "x265", "in", "out").Build(), " ")
	assert.Contains(t, args, "--audio 1 --aencoder av_aac")
}

func TestBuild_SubtitleStrategies(t *testing.T) {
	p := testProfile()

	p.SubtitleStrategy = models.SubtitlePreserveAll
	args := buildArgs(p)
	assert.Contains(t, args, "--subtitle 1,2,3,4,5,6,7,8,9,10")
	assert.NotContains(t, args, "--subtitle-default=none")

	// mp4 containers force no default subtitle track
	p.Container = models.ContainerMP4
	args = buildArgs(p)
	assert.Contains(t, args, "--subtitle-default=none")

	p.Container = models.ContainerMKV
	p.SubtitleStrategy = models.SubtitleKeepEnglish
	args = buildArgs(p)
	assert.Contains(t, args, "--subtitle-lang-list eng --all-subtitles")

	p.SubtitleStrategy = models.SubtitleBurnIn
	args = buildArgs(p)
	assert.Contains(t, args, "--subtitle 1 --subtitle-burned")

	p.SubtitleStrategy = models.SubtitleForeignScan
	args = buildArgs(p)
	assert.Contains(t, args, "--subtitle scan --subtitle-forced")

	p.SubtitleStrategy = models.SubtitleNone
	args = buildArgs(p)
	assert.NotContains(t, args, "--subtitle")
}

func TestBuild_FiltersAndTwoPass(t *testing.T) {
	p := testProfile()
	p.EnableFilters = true
	p.TwoPass = true
	args := buildArgs(p)

	assert.Contains(t, args, "--comb-detect")
	assert.Contains(t, args, "--decomb")
	assert.Contains(t, args, "--hqdn3d ultralight")
	assert.Contains(t, args, "--crop-mode auto")
	assert.Contains(t, args, "--two-pass")
}

func TestBuild_CustomArgsLast(t *testing.T) {
	p := testProfile()
	p.CustomArgs = "--quality 18 --custom-flag"

	args := NewCommandBuilder(p, models.MediaSpecs{}, "x265", "in", "out").Build()
	require.GreaterOrEqual(t, len(args), 2)
	assert.Equal(t, "--custom-flag", args[len(args)-1])
	assert.Equal(t, "18", args[len(args)-2])
	// The profile quality is still present earlier; custom args override by
	// arriving later on the command line
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "--quality 22")
	idxBuilder := strings.Index(joined, "--quality 22")
	idxCustom := strings.Index(joined, "--quality 18")
	assert.Greater(t, idxCustom, idxBuilder)
}
