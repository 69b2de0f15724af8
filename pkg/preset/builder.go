package preset

import (
	"fmt"
	"strconv"
	"strings"

	"videoconv/pkg/ffmpeg"
)

var audioOnlyContainers = map[string]bool{
	"mp3": true, "aac": true, "flac": true, "wav": true, "ogg": true, "m4a": true,
}

var fastStartContainers = map[string]bool{"mp4": true, "mov": true}

// gpuCodecOpts maps a codec-name substring to the extra options that
// encoder recognizes (spec §4.5: "the builder keeps a small table keyed by
// codec-name substring"). Checked in order; first match wins.
var gpuCodecOpts = []struct {
	substr string
	opts   func(p Preset) []string
}{
	{"nvenc", func(p Preset) []string {
		opts := []string{"-rc", "vbr"}
		if p.CRF > 0 {
			opts = append(opts, "-cq", strconv.Itoa(p.CRF))
		}
		return opts
	}},
	{"qsv", func(p Preset) []string {
		return []string{"-look_ahead", "1"}
	}},
	{"amf", func(p Preset) []string {
		return []string{"-quality", "balanced"}
	}},
	{"vaapi", func(p Preset) []string {
		return []string{"-low_power", "1"}
	}},
}

// hwAccelArgs resolves the -hwaccel flags to emit. "auto" (the default,
// including an unset override) keeps the teacher's codec-substring
// detection; "none" disables hwaccel outright; any other value names a
// vendor directly, bypassing codec sniffing (spec §6.1
// "hardwareAcceleration (auto/none/<vendor>)").
func hwAccelArgs(p Preset) []string {
	switch p.HardwareAcceleration {
	case "none":
		return nil
	case "", "auto":
		return hwAccelArgsForCodec(p.VideoCodec)
	default:
		return hwAccelArgsForVendor(p.HardwareAcceleration)
	}
}

func hwAccelArgsForCodec(videoCodec string) []string {
	switch {
	case strings.Contains(videoCodec, "nvenc"):
		return []string{"-hwaccel", "cuda"}
	case strings.Contains(videoCodec, "qsv"):
		return []string{"-hwaccel", "qsv"}
	case strings.Contains(videoCodec, "vaapi"):
		return []string{"-hwaccel", "vaapi", "-vaapi_device", "/dev/dri/renderD128"}
	case strings.Contains(videoCodec, "amf"):
		return []string{"-hwaccel", "d3d11va"}
	default:
		return nil
	}
}

func hwAccelArgsForVendor(vendor string) []string {
	switch vendor {
	case "cuda", "nvenc":
		return []string{"-hwaccel", "cuda"}
	case "qsv":
		return []string{"-hwaccel", "qsv"}
	case "vaapi":
		return []string{"-hwaccel", "vaapi", "-vaapi_device", "/dev/dri/renderD128"}
	case "amf", "d3d11va":
		return []string{"-hwaccel", "d3d11va"}
	default:
		return []string{"-hwaccel", vendor}
	}
}

// JobInput is the minimal view of a job the Builder needs: input/output
// paths and nothing else, so pkg/preset doesn't depend on pkg/store.
type JobInput struct {
	InputPath  string
	OutputPath string
}

// Build applies overrides onto preset (a set, non-empty override field
// wins; see Overrides), then emits the full FFmpeg argument vector per spec §4.3.2/§4.5.
func Build(p Preset, ov Overrides, job JobInput) []string {
	p = applyOverrides(p, ov)

	args := []string{"-y", "-progress", "pipe:2"}
	args = append(args, hwAccelArgs(p)...)

	preTrim, postTrim := trimArgs(p)
	args = append(args, preTrim...)
	args = append(args, "-i", job.InputPath)
	args = append(args, postTrim...)

	audioOnly := audioOnlyContainers[p.Container]

	if audioOnly {
		args = append(args, "-vn")
	} else {
		args = append(args, videoOpts(p)...)
	}
	args = append(args, audioOpts(p)...)

	if !audioOnly {
		if vf := buildFilterChain(p); vf != "" {
			args = append(args, "-vf", vf)
		}
	}
	if p.AudioFilters != "" {
		args = append(args, "-af", p.AudioFilters)
	}

	args = append(args, muxerOpts(p, audioOnly)...)
	args = append(args, p.CustomParams...)
	args = append(args, job.OutputPath)
	return args
}

// trimArgs splits the trim options into the input-side seek (-ss before
// -i, for fast seeking) and the output-side duration/end bound (-t takes
// priority over -to when both are set, spec §6.1 "startTime, endTime,
// durationLimit").
func trimArgs(p Preset) (preInput, postInput []string) {
	if p.StartTimeSec > 0 {
		preInput = append(preInput, "-ss", formatSeconds(p.StartTimeSec))
	}
	switch {
	case p.DurationLimitSec > 0:
		postInput = append(postInput, "-t", formatSeconds(p.DurationLimitSec))
	case p.EndTimeSec > 0:
		postInput = append(postInput, "-to", formatSeconds(p.EndTimeSec))
	}
	return preInput, postInput
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func videoOpts(p Preset) []string {
	var args []string
	if p.VideoCodec != "" {
		args = append(args, "-c:v", p.VideoCodec)
	}
	if p.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(p.CRF))
	} else if p.VideoBitrateKbs > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", p.VideoBitrateKbs))
	}
	if p.EncoderPreset != "" {
		args = append(args, "-preset", p.EncoderPreset)
	}
	if p.Profile != "" {
		args = append(args, "-profile:v", p.Profile)
	}
	if p.PixelFormat != "" {
		args = append(args, "-pix_fmt", p.PixelFormat)
	}
	if p.ColorSpace != "" {
		args = append(args, "-colorspace", p.ColorSpace)
	}
	if p.CopyTimestamps {
		args = append(args, "-copyts")
	}
	if p.TwoPass {
		args = append(args, "-pass", "1")
	}
	for _, e := range gpuCodecOpts {
		if strings.Contains(p.VideoCodec, e.substr) {
			args = append(args, e.opts(p)...)
			break
		}
	}
	return args
}

func audioOpts(p Preset) []string {
	if p.AudioCodec == "" {
		return nil
	}
	args := []string{"-c:a", p.AudioCodec}
	if p.AudioBitrateKbs > 0 {
		args = append(args, "-b:a", fmt.Sprintf("%dk", p.AudioBitrateKbs))
	}
	if p.AudioSampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(p.AudioSampleRate))
	}
	if p.AudioChannels > 0 {
		args = append(args, "-ac", strconv.Itoa(p.AudioChannels))
	}
	return args
}

// buildFilterChain coalesces resolution scaling, frame-rate adjustment,
// denoise and deinterlace into a single -vf argument, reusing the
// teacher's FilterChain builder.
func buildFilterChain(p Preset) string {
	fc := ffmpeg.NewFilterChain()
	if p.Deinterlace {
		fc = fc.Raw("yadif")
	}
	if p.Denoise != "" {
		fc = fc.Raw(p.Denoise)
	}
	switch {
	case p.Width > 0 && p.Height > 0:
		fc = fc.Scale(p.Width, p.Height)
	case p.Height > 0:
		fc = fc.ScaleToHeight(p.Height)
	}
	if p.FrameRate > 0 {
		fc = fc.FPS(p.FrameRate)
	}
	if p.VideoFilters != "" {
		fc = fc.Raw(p.VideoFilters)
	}
	return fc.String()
}

func muxerOpts(p Preset, audioOnly bool) []string {
	var args []string
	if !audioOnly && p.FastStart && fastStartContainers[p.Container] {
		args = append(args, "-movflags", "+faststart")
	}
	return args
}

func applyOverrides(p Preset, ov Overrides) Preset {
	if ov.Container != nil && *ov.Container != "" {
		p.Container = *ov.Container
	}
	if ov.VideoCodec != nil && *ov.VideoCodec != "" {
		p.VideoCodec = *ov.VideoCodec
	}
	if ov.AudioCodec != nil && *ov.AudioCodec != "" {
		p.AudioCodec = *ov.AudioCodec
	}
	if ov.CRF != nil && *ov.CRF != 0 {
		p.CRF = *ov.CRF
		p.VideoBitrateKbs = 0
	}
	if ov.VideoBitrateKbs != nil && *ov.VideoBitrateKbs != 0 {
		p.VideoBitrateKbs = *ov.VideoBitrateKbs
		p.CRF = 0
	}
	if ov.EncoderPreset != nil && *ov.EncoderPreset != "" {
		p.EncoderPreset = *ov.EncoderPreset
	}
	if ov.Profile != nil && *ov.Profile != "" {
		p.Profile = *ov.Profile
	}
	if ov.Width != nil && *ov.Width != 0 {
		p.Width = *ov.Width
	}
	if ov.Height != nil && *ov.Height != 0 {
		p.Height = *ov.Height
	}
	if ov.FrameRate != nil && *ov.FrameRate != 0 {
		p.FrameRate = *ov.FrameRate
	}
	if ov.FastStart != nil {
		p.FastStart = *ov.FastStart
	}
	if ov.Denoise != nil {
		p.Denoise = *ov.Denoise
	}
	if ov.Deinterlace != nil {
		p.Deinterlace = *ov.Deinterlace
	}
	if ov.TwoPass != nil {
		p.TwoPass = *ov.TwoPass
	}
	if ov.CopyTimestamps != nil {
		p.CopyTimestamps = *ov.CopyTimestamps
	}
	if ov.AudioBitrateKbs != nil && *ov.AudioBitrateKbs != 0 {
		p.AudioBitrateKbs = *ov.AudioBitrateKbs
	}
	if ov.AudioSampleRate != nil && *ov.AudioSampleRate != 0 {
		p.AudioSampleRate = *ov.AudioSampleRate
	}
	if ov.AudioChannels != nil && *ov.AudioChannels != 0 {
		p.AudioChannels = *ov.AudioChannels
	}
	if ov.StartTimeSec != nil {
		p.StartTimeSec = *ov.StartTimeSec
	}
	if ov.EndTimeSec != nil {
		p.EndTimeSec = *ov.EndTimeSec
	}
	if ov.DurationLimitSec != nil {
		p.DurationLimitSec = *ov.DurationLimitSec
	}
	if ov.HardwareAcceleration != nil {
		p.HardwareAcceleration = *ov.HardwareAcceleration
	}
	if ov.VideoFilters != nil {
		p.VideoFilters = *ov.VideoFilters
	}
	if ov.AudioFilters != nil {
		p.AudioFilters = *ov.AudioFilters
	}
	if len(ov.CustomParams) > 0 {
		p.CustomParams = ov.CustomParams
	}
	return p
}
