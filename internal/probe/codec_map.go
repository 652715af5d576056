package probe

import "strings"

// codecAliases maps the codec names ffprobe and catalog services report onto
// the canonical names the rest of the pipeline compares against.
var codecAliases = map[string]string{
	"av1":    "av1",
	"av01":   "av1",
	"hevc":   "h265",
	"h265":   "h265",
	"h.265":  "h265",
	"x265":   "h265",
	"avc":    "h264",
	"h264":   "h264",
	"h.264":  "h264",
	"x264":   "h264",
	"vp9":    "vp9",
	"vp09":   "vp9",
	"vp8":    "vp8",
	"mpeg4":  "mpeg4",
	"xvid":   "mpeg4",
	"divx":   "mpeg4",
	"mpeg2":  "mpeg2",
	"mpeg-2": "mpeg2",
	// ffprobe reports MPEG-2 video as mpeg2video
	"mpeg2video": "mpeg2",
}

func normalizeLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeCodec maps a reported video codec name onto its canonical form.
// WMV variants collapse to "wmv"; unrecognised names are kept lowercased.
func NormalizeCodec(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "unknown"
	}
	if canonical, ok := codecAliases[name]; ok {
		return canonical
	}
	if strings.HasPrefix(name, "wmv") {
		return "wmv"
	}
	return name
}
