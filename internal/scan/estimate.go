package scan

// savingsFractions holds the expected fraction of the current file size that
// a codec transition saves. Keys are source codec, then target codec.
// Transitions that would grow the file (encoding upward in efficiency) are
// absent and estimate to zero.
var savingsFractions = map[string]map[string]float64{
	"av1": {
		"av1": 0.0,
	},
	"h265": {
		"av1":  0.50,
		"h265": 0.0,
	},
	"h264": {
		"av1":  0.50,
		"h265": 0.40,
		"h264": 0.0,
	},
}

// legacySavings applies to mpeg2, mpeg4, wmv, and unknown sources.
var legacySavings = map[string]float64{
	"av1":  0.50,
	"h265": 0.40,
	"h264": 0.30,
}

// EstimateSavings projects how many bytes a codec transition saves for a
// file of the given size. Transitions to a less efficient codec estimate
// to zero rather than promising savings that cannot materialise.
func EstimateSavings(currentCodec, targetCodec string, sizeBytes int64) int64 {
	if sizeBytes <= 0 {
		return 0
	}
	fraction := savingsFraction(currentCodec, targetCodec)
	return int64(float64(sizeBytes) * fraction)
}

func savingsFraction(currentCodec, targetCodec string) float64 {
	if row, ok := savingsFractions[currentCodec]; ok {
		return row[targetCodec]
	}
	switch currentCodec {
	case "mpeg2", "mpeg4", "wmv", "unknown", "":
		return legacySavings[targetCodec]
	}
	// Codecs outside the table (vp8, vp9, prores, ...) behave like legacy
	// sources for estimation purposes.
	return legacySavings[targetCodec]
}
