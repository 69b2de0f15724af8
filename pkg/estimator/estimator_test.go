package estimator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimate_SanityClampDefault(t *testing.T) {
	r := Estimate(1_000_000, Settings{Codec: "libx264", Container: "mp4", Resolution: "1080p", Quality: "ultra"})
	require.GreaterOrEqual(t, r.EstimatedOutputBytes, int64(100_000))
	require.LessOrEqual(t, r.EstimatedOutputBytes, int64(2_000_000))
}

func TestEstimate_LosslessCodecExtendsUpperBound(t *testing.T) {
	r := Estimate(1_000_000, Settings{Codec: "prores_ks", Container: "mov", VideoBitrateKbs: 500_000})
	require.LessOrEqual(t, r.EstimatedOutputBytes, int64(3_000_000))
}

func TestEstimate_GIFExtendsUpperBoundFurther(t *testing.T) {
	r := Estimate(1_000_000, Settings{Codec: "gif", Container: "gif", VideoBitrateKbs: 50_000})
	require.LessOrEqual(t, r.EstimatedOutputBytes, int64(5_000_000))
}

func TestEstimate_TempBytesFormula(t *testing.T) {
	r := Estimate(1_000_000, Settings{Codec: "libx264"})
	require.Equal(t, int64(1_250_000), r.TempBytes)
}

func TestEstimate_UnknownCodecUsesDefaultRatio(t *testing.T) {
	r := Estimate(1_000_000, Settings{Codec: "some_weird_codec"})
	// Default codec ratio 0.70 times the 1.02 multiplier for an unset container.
	require.InDelta(t, 0.70*1.02, r.CompressionRatio, 0.01)
}

func TestRecordActual_NudgesRatioTowardObservation(t *testing.T) {
	before := Estimate(1_000_000, Settings{Codec: "libx264"}).CompressionRatio
	RecordActual("libx264", 1_000_000, 400_000) // observed ratio 0.4
	after := Estimate(1_000_000, Settings{Codec: "libx264"}).CompressionRatio
	require.Less(t, after, before)
	require.InDelta(t, before*0.7+0.4*0.3, after, 0.01)
}

func TestEstimate_BitrateScaleClamped(t *testing.T) {
	// A wildly high requested bitrate should clamp the scale factor at 2.0.
	r := Estimate(10_000_000, Settings{Codec: "libx264", VideoBitrateKbs: 1_000_000_000})
	require.LessOrEqual(t, r.EstimatedOutputBytes, int64(20_000_000))
}
