package preset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuild_FastStartOnlyForMp4Mov(t *testing.T) {
	p, ok := GetByName("fast-1080p30")
	require.True(t, ok)
	argv := Build(p, Overrides{}, JobInput{InputPath: "in.mov", OutputPath: "out.mp4"})
	require.Contains(t, argv, "-movflags")

	webm, ok := GetByName("webm-1080p")
	require.True(t, ok)
	argv = Build(webm, Overrides{}, JobInput{InputPath: "in.mov", OutputPath: "out.webm"})
	require.NotContains(t, argv, "-movflags")
}

func TestBuild_AudioOnlySuppressesVideo(t *testing.T) {
	p, ok := GetByName("audio-aac")
	require.True(t, ok)
	argv := Build(p, Overrides{}, JobInput{InputPath: "in.mp4", OutputPath: "out.aac"})
	require.Contains(t, argv, "-vn")
	require.NotContains(t, argv, "-c:v")
	require.NotContains(t, argv, "-vf")
}

func TestBuild_OverrideWinsOverPreset(t *testing.T) {
	p := GetDefault()
	crf := 30
	argv := Build(p, Overrides{CRF: &crf}, JobInput{InputPath: "in.mp4", OutputPath: "out.mp4"})
	joined := strings.Join(argv, " ")
	require.Contains(t, joined, "-crf 30")
	require.NotContains(t, joined, "-crf 23")
}

func TestBuild_GPUCodecOptsOnlyForGPUEncoders(t *testing.T) {
	p := GetDefault()
	codec := "h264_nvenc"
	argv := Build(p, Overrides{VideoCodec: &codec}, JobInput{InputPath: "in.mp4", OutputPath: "out.mp4"})
	require.Contains(t, argv, "-rc")
	require.Contains(t, argv, "-hwaccel")

	cpuArgv := Build(p, Overrides{}, JobInput{InputPath: "in.mp4", OutputPath: "out.mp4"})
	require.NotContains(t, cpuArgv, "-rc")
	require.NotContains(t, cpuArgv, "-hwaccel")
}

func TestBuild_FiltersCoalescedIntoSingleVF(t *testing.T) {
	p := GetDefault()
	p.Denoise = "hqdn3d"
	p.Deinterlace = true
	argv := Build(p, Overrides{}, JobInput{InputPath: "in.mp4", OutputPath: "out.mp4"})
	count := 0
	for _, a := range argv {
		if a == "-vf" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestBuild_ArgOrder_HWAccelBeforeInput(t *testing.T) {
	p := GetDefault()
	codec := "h264_nvenc"
	argv := Build(p, Overrides{VideoCodec: &codec}, JobInput{InputPath: "in.mp4", OutputPath: "out.mp4"})
	var hwIdx, inputIdx int = -1, -1
	for i, a := range argv {
		if a == "-hwaccel" {
			hwIdx = i
		}
		if a == "-i" {
			inputIdx = i
		}
	}
	require.NotEqual(t, -1, hwIdx)
	require.NotEqual(t, -1, inputIdx)
	require.Less(t, hwIdx, inputIdx)
}
