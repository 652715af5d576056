package probe

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCodec(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hevc", "h265"},
		{"HEVC", "h265"},
		{"h.265", "h265"},
		{"x265", "h265"},
		{"avc", "h264"},
		{"x264", "h264"},
		{"av01", "av1"},
		{"vp09", "vp9"},
		{"mpeg2video", "mpeg2"},
		{"xvid", "mpeg4"},
		{"divx", "mpeg4"},
		{"wmv3", "wmv"},
		{"wmv2", "wmv"},
		{"prores", "prores"},
		{"", "unknown"},
		{"  HEVC  ", "h265"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCodec(tt.in), "input %q", tt.in)
	}
}

func TestParseRational(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30000/1001", 29.97},
		{"25/1", 25},
		{"24000/1001", 23.976},
		{"0/0", 0},
		{"25/0", 0},
		{"", 0},
		{"23.976", 23.976},
		{"garbage", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, parseRational(tt.in), 0.001, "input %q", tt.in)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "eng", NormalizeLanguage("eng"))
	assert.Equal(t, "eng", NormalizeLanguage("en"))
	assert.Equal(t, "eng", NormalizeLanguage("en-US"))
	assert.Equal(t, "fra", NormalizeLanguage("fre"))
	assert.Equal(t, "deu", NormalizeLanguage("ger"))
	assert.Empty(t, NormalizeLanguage("und"))
	assert.Empty(t, NormalizeLanguage(""))
	assert.Empty(t, NormalizeLanguage("!!"))
}

const sampleProbeJSON = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "hevc",
      "codec_type": "video",
      "width": 1920,
      "height": 1080,
      "r_frame_rate": "24000/1001",
      "avg_frame_rate": "24000/1001"
    },
    {
      "index": 1,
      "codec_name": "eac3",
      "codec_type": "audio",
      "channels": 6,
      "sample_rate": "48000",
      "tags": {"language": "eng"}
    },
    {
      "index": 2,
      "codec_name": "aac",
      "codec_type": "audio",
      "channels": 2,
      "sample_rate": "44100",
      "tags": {"language": "fre"}
    },
    {
      "index": 3,
      "codec_name": "subrip",
      "codec_type": "subtitle",
      "tags": {"language": "eng"}
    },
    {
      "index": 4,
      "codec_name": "mjpeg",
      "codec_type": "video",
      "disposition": {"attached_pic": 1}
    }
  ],
  "format": {
    "filename": "/media/movie.mkv",
    "format_name": "matroska,webm",
    "duration": "5400.024000",
    "size": "4294967296",
    "bit_rate": "6363000"
  }
}`

func TestFromResult(t *testing.T) {
	var result ProbeResult
	require.NoError(t, json.Unmarshal([]byte(sampleProbeJSON), &result))

	specs := FromResult(&result)
	assert.Equal(t, "h265", specs.Codec)
	assert.Equal(t, "1920x1080", specs.Resolution)
	assert.Equal(t, 1920, specs.Width)
	assert.Equal(t, 1080, specs.Height)
	assert.InDelta(t, 23.976, specs.Framerate, 0.001)
	assert.InDelta(t, 5400.024, specs.DurationSec, 0.001)
	assert.Equal(t, int64(6363000), specs.BitRate)
	assert.Equal(t, "probe", specs.Source)

	require.Len(t, specs.AudioTracks, 2)
	assert.Equal(t, "eac3", specs.AudioTracks[0].Codec)
	assert.Equal(t, "eng", specs.AudioTracks[0].Language)
	assert.Equal(t, 6, specs.AudioTracks[0].Channels)
	assert.Equal(t, 48000, specs.AudioTracks[0].SampleRate)
	assert.Equal(t, "fra", specs.AudioTracks[1].Language)
}

func TestFromResult_AttachedPicIgnored(t *testing.T) {
	result := &ProbeResult{
		Streams: []ProbeStream{
			{CodecType: "video", CodecName: "mjpeg", Disposition: ProbeDisposition{AttachedPic: 1}},
			{CodecType: "video", CodecName: "h264", Width: 1280, Height: 720, RFrameRate: "25/1"},
		},
	}

	specs := FromResult(result)
	assert.Equal(t, "h264", specs.Codec)
	assert.Equal(t, "1280x720", specs.Resolution)
}

func TestFromResult_NoVideoStream(t *testing.T) {
	result := &ProbeResult{
		Streams: []ProbeStream{{CodecType: "audio", CodecName: "mp3", Channels: 2}},
	}

	specs := FromResult(result)
	assert.True(t, specs.IsUnknown())
	assert.Len(t, specs.AudioTracks, 1)
}

func TestProbe_MissingBinary(t *testing.T) {
	p := NewProber("/nonexistent/ffprobe", nil)

	specs, err := p.Probe(context.Background(), "/media/file.mkv")
	require.Error(t, err)
	assert.Equal(t, "unknown", specs.Codec)
	assert.Equal(t, "probe", specs.Source)
}

func TestFromResult_FramerateFallsBackToAvg(t *testing.T) {
	result := &ProbeResult{
		Streams: []ProbeStream{
			{CodecType: "video", CodecName: "h264", RFrameRate: "0/0", AvgFrameRate: "30/1"},
		},
	}

	specs := FromResult(result)
	assert.InDelta(t, 30.0, specs.Framerate, 0.001)
}
