package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"videoconv/pkg/preset"
	"videoconv/pkg/store"
)

func TestParseVideoQuality_CRF(t *testing.T) {
	crf, bitrate, ok := parseVideoQuality("23")
	require.True(t, ok)
	require.NotNil(t, crf)
	require.Equal(t, 23, *crf)
	require.Nil(t, bitrate)
}

func TestParseVideoQuality_Bitrate(t *testing.T) {
	crf, bitrate, ok := parseVideoQuality("4000k")
	require.True(t, ok)
	require.Nil(t, crf)
	require.NotNil(t, bitrate)
	require.Equal(t, 4000, *bitrate)
}

func TestParseVideoQuality_Empty(t *testing.T) {
	_, _, ok := parseVideoQuality("")
	require.False(t, ok)
}

func TestParseVideoQuality_Malformed(t *testing.T) {
	_, _, ok := parseVideoQuality("abck")
	require.False(t, ok)
}

func TestOverridesFromRequest_MapsRecognizedFields(t *testing.T) {
	fastStart := true
	req := StartConversionRequest{
		OutputFormat:     "mkv",
		VideoCodec:       "libx265",
		AudioCodec:       "aac",
		EncodingPreset:   "slow",
		Profile:          "main",
		CustomWidth:      1920,
		CustomHeight:     1080,
		FrameRate:        30,
		FastStart:        &fastStart,
		Deinterlace:      true,
		VideoQuality:     "2000k",
		GeneratePreviews: true,
	}
	ov := overridesFromRequest(req)
	require.Equal(t, "mkv", ov["container"])
	require.Equal(t, "libx265", ov["video_codec"])
	require.Equal(t, "aac", ov["audio_codec"])
	require.Equal(t, "slow", ov["encoder_preset"])
	require.Equal(t, "main", ov["profile"])
	require.Equal(t, "1920", ov["width"])
	require.Equal(t, "1080", ov["height"])
	require.Equal(t, "30", ov["frame_rate"])
	require.Equal(t, "true", ov["fast_start"])
	require.Equal(t, "true", ov["deinterlace"])
	require.Equal(t, "2000", ov["video_bitrate_kbs"])
	require.Equal(t, "true", ov["generate_previews"])
}

func TestOverridesFromRequest_EmptyRequestYieldsEmptyMap(t *testing.T) {
	ov := overridesFromRequest(StartConversionRequest{})
	require.Empty(t, ov)
}

func TestOverridesFromRequest_MapsTrimAudioAndRawFields(t *testing.T) {
	copyTS := true
	req := StartConversionRequest{
		Denoise:              "hqdn3d",
		AudioBitrate:         192,
		AudioSampleRate:      48000,
		AudioChannels:        2,
		StartTime:            5.5,
		EndTime:              65,
		DurationLimit:        30,
		HardwareAcceleration: "cuda",
		VideoFilters:         "hue=s=0",
		AudioFilters:         "loudnorm",
		TwoPass:              true,
		CopyTimestamps:       &copyTS,
		CustomParams:         "  -movflags  +faststart ",
	}
	ov := overridesFromRequest(req)
	require.Equal(t, "hqdn3d", ov["denoise"])
	require.Equal(t, "192", ov["audio_bitrate_kbs"])
	require.Equal(t, "48000", ov["audio_sample_rate"])
	require.Equal(t, "2", ov["audio_channels"])
	require.Equal(t, "5.5", ov["start_time_sec"])
	require.Equal(t, "65", ov["end_time_sec"])
	require.Equal(t, "30", ov["duration_limit_sec"])
	require.Equal(t, "cuda", ov["hardware_acceleration"])
	require.Equal(t, "hue=s=0", ov["video_filters"])
	require.Equal(t, "loudnorm", ov["audio_filters"])
	require.Equal(t, "true", ov["two_pass"])
	require.Equal(t, "true", ov["copy_timestamps"])
	require.Equal(t, "-movflags +faststart", ov["custom_params"])
}

// Both trim values are carried through; the -t over -to priority is applied
// later, when pkg/preset builds the argument vector.
func TestOverridesFromRequest_KeepsBothEndTimeAndDurationLimit(t *testing.T) {
	ov := overridesFromRequest(StartConversionRequest{EndTime: 65, DurationLimit: 30})
	require.Equal(t, "65", ov["end_time_sec"])
	require.Equal(t, "30", ov["duration_limit_sec"])
}

func TestResolutionLabel(t *testing.T) {
	require.Equal(t, "4k", resolutionLabel(3840, 2160))
	require.Equal(t, "1080p", resolutionLabel(1920, 1080))
	require.Equal(t, "720p", resolutionLabel(1280, 720))
	require.Equal(t, "480p", resolutionLabel(640, 360))
	require.Equal(t, "", resolutionLabel(0, 0))
}

func TestDefaultOutputPath_UsesContainerAsExtension(t *testing.T) {
	require.Equal(t, "/out/job-1.mkv", defaultOutputPath("/out", "job-1", "mkv"))
}

func TestDefaultOutputPath_DefaultsToMP4WhenContainerEmpty(t *testing.T) {
	require.Equal(t, "/out/job-1.mp4", defaultOutputPath("/out", "job-1", ""))
}

func TestEstimatorSettingsFor_PrefersRequestOverridesOverPreset(t *testing.T) {
	p := preset.Preset{Container: "mp4", VideoCodec: "libx264", Width: 1920, Height: 1080, VideoBitrateKbs: 3000}
	req := StartConversionRequest{OutputFormat: "webm", VideoCodec: "libvpx-vp9", Resolution: "720p"}
	s := estimatorSettingsFor(req, p)
	require.Equal(t, "webm", s.Container)
	require.Equal(t, "libvpx-vp9", s.Codec)
	require.Equal(t, "720p", s.Resolution)
	require.Equal(t, 3000, s.VideoBitrateKbs)
}

func TestEstimatorSettingsFor_FallsBackToPreset(t *testing.T) {
	p := preset.Preset{Container: "mp4", VideoCodec: "libx264", Width: 1920, Height: 1080}
	s := estimatorSettingsFor(StartConversionRequest{}, p)
	require.Equal(t, "mp4", s.Container)
	require.Equal(t, "libx264", s.Codec)
	require.Equal(t, "1080p", s.Resolution)
}

func TestToJobDTO_FormatsTimestamps(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	j := store.Job{ID: "abc", Status: store.StatusCompleted, CreatedAt: now, StartedAt: &now, CompletedAt: &now}
	dto := toJobDTO(j)
	require.Equal(t, "abc", dto.ID)
	require.Equal(t, int(store.StatusCompleted), dto.Status)
	require.Equal(t, now.Format(rfc3339), dto.CreatedAt)
	require.NotNil(t, dto.StartedAt)
	require.Equal(t, now.Format(rfc3339), *dto.StartedAt)
}
