// Package estimator implements the Space Estimator (H): a pure function
// from (input_bytes, settings) to predicted output/temp byte counts, used
// for admission checks and batch registration.
package estimator

import (
	"strings"
	"sync"
)

// Settings is the per-estimate configuration: codec/format/resolution
// selection plus the optional explicit bitrate a preset may specify.
type Settings struct {
	Codec           string
	Container       string
	Resolution      string // "8k","4k","1440p","1080p","720p", ...
	Quality         string // "low","medium","high","ultra" — used only when bitrate is absent
	VideoBitrateKbs int    // 0 means "absent"
}

// Result is the Estimator's output (spec §4.8).
type Result struct {
	EstimatedOutputBytes int64
	TempBytes            int64
	TotalRequiredBytes   int64
	CompressionRatio     float64
}

var formatMultiplier = map[string]float64{
	"mp4": 1.02, "mov": 1.02, "mkv": 1.05, "webm": 1.05, "avi": 1.08,
}
var resolutionMultiplier = map[string]float64{
	"8k": 2.0, "4k": 1.5, "1440p": 1.2, "1080p": 1.0, "720p": 0.7, "480p": 0.5,
}
var qualityMultiplier = map[string]float64{
	"low": 0.8, "medium": 1.0, "high": 1.2, "ultra": 1.4,
}

var losslessCodecs = map[string]bool{
	"prores_ks": true, "ffv1": true, "flac": true, "pcm_s16le": true,
}

// codecTable holds each codec's calibratable base compression ratio,
// seeded from spec §4.8's example table and adjustable via RecordActual.
type codecTable struct {
	mu    sync.Mutex
	ratio map[string]float64
}

var codecs = &codecTable{
	ratio: map[string]float64{
		"h264_nvenc": 0.65,
		"libx264":    0.70,
		"h264_qsv":   0.68,
		"h264_vaapi": 0.68,
		"libx265":    0.50,
		"hevc_nvenc": 0.52,
		"av1":        0.38,
		"libaom-av1": 0.38,
		"libvpx-vp9": 0.45,
	},
}

const defaultRatio = 0.70

func baseRatio(codec string) float64 {
	codecs.mu.Lock()
	defer codecs.mu.Unlock()
	for name, r := range codecs.ratio {
		if strings.Contains(codec, name) || strings.Contains(name, codec) {
			return r
		}
	}
	return defaultRatio
}

// RecordActual is the calibration hook: it nudges codec's base ratio
// toward the observed actual_output_bytes/input_bytes with a 30% weight.
func RecordActual(codec string, inputBytes, actualOutputBytes int64) {
	if inputBytes <= 0 {
		return
	}
	observed := float64(actualOutputBytes) / float64(inputBytes)

	codecs.mu.Lock()
	defer codecs.mu.Unlock()
	current, ok := codecs.ratio[codec]
	if !ok {
		current = defaultRatio
	}
	codecs.ratio[codec] = current*0.7 + observed*0.3
}

// Estimate implements spec §4.8's model exactly.
func Estimate(inputBytes int64, s Settings) Result {
	ratio := baseRatio(s.Codec)

	if s.VideoBitrateKbs > 0 {
		originalBitrateKbps := estimateOriginalBitrateKbps(inputBytes)
		scale := float64(s.VideoBitrateKbs) / originalBitrateKbps
		ratio *= clamp(scale, 0.2, 2.0)
	}

	ratio *= multiplierOr(formatMultiplier, s.Container, 1.02)
	ratio *= multiplierOr(resolutionMultiplier, s.Resolution, 1.0)
	if s.VideoBitrateKbs <= 0 {
		ratio *= multiplierOr(qualityMultiplier, s.Quality, 1.0)
	}

	estimated := float64(inputBytes) * ratio

	lowerBound := 0.1 * float64(inputBytes)
	upperBound := upperClampMultiplier(s) * float64(inputBytes)
	estimated = clamp(estimated, lowerBound, upperBound)

	tempBytes := int64(float64(inputBytes) * 1.25)
	outputBytes := int64(estimated)

	return Result{
		EstimatedOutputBytes: outputBytes,
		TempBytes:            tempBytes,
		TotalRequiredBytes:   outputBytes + tempBytes,
		CompressionRatio:     ratio,
	}
}

func upperClampMultiplier(s Settings) float64 {
	if strings.EqualFold(s.Container, "gif") {
		return 5.0
	}
	if losslessCodecs[s.Codec] {
		return 3.0
	}
	return 2.0
}

// estimateOriginalBitrateKbps assumes a 30-minute (1800 s) source, per
// spec §4.8.
func estimateOriginalBitrateKbps(inputBytes int64) float64 {
	kbps := float64(inputBytes)*8/1800/1000 - 128
	if kbps < 500 {
		kbps = 500
	}
	return kbps
}

func multiplierOr(table map[string]float64, key string, fallback float64) float64 {
	if v, ok := table[strings.ToLower(key)]; ok {
		return v
	}
	return fallback
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
