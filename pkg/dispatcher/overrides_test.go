package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverridesFromMap_OnlyRecognizedKeysMapped(t *testing.T) {
	ov := overridesFromMap(map[string]string{
		"video_codec": "libx265",
		"unknown_key": "ignored",
	})
	require.NotNil(t, ov.VideoCodec)
	require.Equal(t, "libx265", *ov.VideoCodec)
	require.Nil(t, ov.AudioCodec)
	require.Nil(t, ov.Container)
}

func TestOverridesFromMap_Empty(t *testing.T) {
	ov := overridesFromMap(nil)
	require.Nil(t, ov.VideoCodec)
	require.Nil(t, ov.Container)
}

func TestOverridesFromMap_NumericAndBoolFields(t *testing.T) {
	ov := overridesFromMap(map[string]string{
		"crf": "20", "width": "1280", "height": "720",
		"fast_start": "false", "denoise": "hqdn3d",
	})
	require.NotNil(t, ov.CRF)
	require.Equal(t, 20, *ov.CRF)
	require.NotNil(t, ov.Width)
	require.Equal(t, 1280, *ov.Width)
	require.NotNil(t, ov.Height)
	require.Equal(t, 720, *ov.Height)
	require.NotNil(t, ov.FastStart)
	require.False(t, *ov.FastStart)
	require.NotNil(t, ov.Denoise)
	require.Equal(t, "hqdn3d", *ov.Denoise)
	require.Nil(t, ov.Deinterlace)
}

func TestOverridesFromMap_TrimAndCustomParamsFields(t *testing.T) {
	ov := overridesFromMap(map[string]string{
		"audio_bitrate_kbs": "192", "audio_sample_rate": "48000", "audio_channels": "2",
		"start_time_sec": "5.5", "end_time_sec": "30", "duration_limit_sec": "20",
		"hardware_acceleration": "cuda", "video_filters": "hue=s=0", "audio_filters": "loudnorm",
		"two_pass": "true", "copy_timestamps": "true", "custom_params": "-movflags +faststart",
	})
	require.NotNil(t, ov.AudioBitrateKbs)
	require.Equal(t, 192, *ov.AudioBitrateKbs)
	require.NotNil(t, ov.AudioSampleRate)
	require.Equal(t, 48000, *ov.AudioSampleRate)
	require.NotNil(t, ov.AudioChannels)
	require.Equal(t, 2, *ov.AudioChannels)
	require.NotNil(t, ov.StartTimeSec)
	require.Equal(t, 5.5, *ov.StartTimeSec)
	require.NotNil(t, ov.EndTimeSec)
	require.Equal(t, 30.0, *ov.EndTimeSec)
	require.NotNil(t, ov.DurationLimitSec)
	require.Equal(t, 20.0, *ov.DurationLimitSec)
	require.NotNil(t, ov.HardwareAcceleration)
	require.Equal(t, "cuda", *ov.HardwareAcceleration)
	require.NotNil(t, ov.VideoFilters)
	require.Equal(t, "hue=s=0", *ov.VideoFilters)
	require.NotNil(t, ov.AudioFilters)
	require.Equal(t, "loudnorm", *ov.AudioFilters)
	require.NotNil(t, ov.TwoPass)
	require.True(t, *ov.TwoPass)
	require.NotNil(t, ov.CopyTimestamps)
	require.True(t, *ov.CopyTimestamps)
	require.Equal(t, []string{"-movflags", "+faststart"}, ov.CustomParams)
}

func TestOverridesFromMap_MalformedValuesIgnored(t *testing.T) {
	ov := overridesFromMap(map[string]string{"crf": "not-a-number", "fast_start": "not-a-bool"})
	require.Nil(t, ov.CRF)
	require.Nil(t, ov.FastStart)
}
