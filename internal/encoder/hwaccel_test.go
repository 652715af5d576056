package encoder

import (
	"context"
	"testing"

	"github.com/recodarr/recodarr/internal/models"
	"github.com/stretchr/testify/assert"
)

const sampleHelp = `
   --encoder <string>  Select video encoder:
                           svt_av1
                           svt_av1_10bit
                           nvenc_h264
                           nvenc_h265
                           nvenc_h265_10bit
                           x264
                           x264_10bit
                           x265
                           VP9
`

// detectorWith returns a detector whose detection already ran, reporting the
// given encoder names as available.
func detectorWith(names ...string) *HWAccelDetector {
	d := NewHWAccelDetector("HandBrakeCLI", nil)
	d.once.Do(func() {})
	d.available = make(map[string]bool, len(names))
	for _, name := range names {
		d.available[name] = true
	}
	return d
}

func TestParseEncoderSupport(t *testing.T) {
	available := parseEncoderSupport(sampleHelp)

	assert.True(t, available["nvenc_h264"])
	assert.True(t, available["nvenc_h265"])
	assert.False(t, available["qsv_h265"])
	assert.False(t, available["vce_h265"])
	assert.False(t, available["vt_h265"])
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("use nvenc_h265 here", "nvenc_h265"))
	assert.True(t, containsWord("nvenc_h265", "nvenc_h265"))
	// A 10-bit variant must not satisfy the plain name on its own
	assert.False(t, containsWord("only nvenc_h265_10bit", "nvenc_h265"))
	// But the plain name still matches when both are listed
	assert.True(t, containsWord("nvenc_h265 nvenc_h265_10bit", "nvenc_h265"))
	assert.False(t, containsWord("", "nvenc_h265"))
}

func TestSelectEncoder_ExplicitWins(t *testing.T) {
	d := detectorWith("nvenc_h265")
	p := testProfile()
	p.Encoder = "x265_10bit"
	p.HWAccelEnabled = true

	assert.Equal(t, "x265_10bit", d.SelectEncoder(context.Background(), p, []string{"nvenc"}))
}

func TestSelectEncoder_SoftwareWhenDisabled(t *testing.T) {
	d := detectorWith("nvenc_h265")
	p := testProfile()
	p.HWAccelEnabled = false

	assert.Equal(t, "x265", d.SelectEncoder(context.Background(), p, []string{"nvenc"}))
}

func TestSelectEncoder_PriorityOrder(t *testing.T) {
	d := detectorWith("nvenc_h265", "qsv_h265")
	p := testProfile()
	p.HWAccelEnabled = true

	ctx := context.Background()
	assert.Equal(t, "qsv_h265", d.SelectEncoder(ctx, p, []string{"qsv", "nvenc"}))
	assert.Equal(t, "nvenc_h265", d.SelectEncoder(ctx, p, []string{"nvenc", "qsv"}))
	// Vendors without a variant for the codec are skipped
	assert.Equal(t, "nvenc_h265", d.SelectEncoder(ctx, p, []string{"videotoolbox", "nvenc"}))
}

func TestSelectEncoder_FallsBackToSoftware(t *testing.T) {
	d := detectorWith()
	p := testProfile()
	p.HWAccelEnabled = true

	assert.Equal(t, "x265", d.SelectEncoder(context.Background(), p, []string{"nvenc", "qsv", "vce"}))

	p.Codec = models.CodecAV1
	assert.Equal(t, "svt_av1", d.SelectEncoder(context.Background(), p, []string{"nvenc"}))
}
