package httpapi

import (
	"path/filepath"
	"strconv"
	"strings"

	"videoconv/pkg/estimator"
	"videoconv/pkg/preset"
	"videoconv/pkg/store"
)

// StartConversionRequest is the POST /jobs body (spec §6.1 option table).
// InputPath names the already-staged source file: chunk assembly and the
// multipart upload surface itself are explicitly out of scope (spec §1),
// so the Job API's only contract is "the file already exists on disk".
type StartConversionRequest struct {
	InputPath string `json:"inputPath"`
	TaskName  string `json:"taskName"`
	Preset    string `json:"preset"`
	BatchID   string `json:"batchId,omitempty"`

	OutputFormat string `json:"outputFormat,omitempty"`
	Resolution   string `json:"resolution,omitempty"`
	CustomWidth  int    `json:"customWidth,omitempty"`
	CustomHeight int    `json:"customHeight,omitempty"`
	VideoCodec   string `json:"videoCodec,omitempty"`
	AudioCodec   string `json:"audioCodec,omitempty"`
	VideoQuality string `json:"videoQuality,omitempty"` // CRF string or "NNNNk"

	FrameRate      int    `json:"frameRate,omitempty"`
	EncodingPreset string `json:"encodingPreset,omitempty"`
	Profile        string `json:"profile,omitempty"`

	Deinterlace bool   `json:"deinterlace,omitempty"`
	FastStart   *bool  `json:"fastStart,omitempty"`
	Denoise     string `json:"denoise,omitempty"` // filter expression, e.g. "hqdn3d"

	AudioBitrate    int `json:"audioBitrate,omitempty"`
	AudioSampleRate int `json:"audioSampleRate,omitempty"`
	AudioChannels   int `json:"audioChannels,omitempty"`

	StartTime     float64 `json:"startTime,omitempty"`
	EndTime       float64 `json:"endTime,omitempty"`
	DurationLimit float64 `json:"durationLimit,omitempty"`

	HardwareAcceleration string `json:"hardwareAcceleration,omitempty"`
	VideoFilters         string `json:"videoFilters,omitempty"`
	AudioFilters         string `json:"audioFilters,omitempty"`
	TwoPass              bool   `json:"twoPass,omitempty"`
	CopyTimestamps       *bool  `json:"copyTimestamps,omitempty"`

	// CustomParams is a raw argument suffix, space-separated (spec §6.1
	// "customParams | raw argument suffix").
	CustomParams string `json:"customParams,omitempty"`

	GeneratePreviews bool `json:"generatePreviews,omitempty"`
}

// jobDTO is the wire shape of GET /jobs/{id} (spec §3.1, §6.1): statuses
// as the integers 0..4 in wire order, not the Go Status.String() form.
type jobDTO struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	InputPath   string            `json:"inputPath"`
	OutputPath  string            `json:"outputPath"`
	InputBytes  int64             `json:"inputBytes"`
	OutputBytes int64             `json:"outputBytes"`
	PresetName  string            `json:"presetName"`
	Overrides   map[string]string `json:"overrides,omitempty"`
	Status      int               `json:"status"`
	Progress    int               `json:"progress"`
	DurationSec *float64          `json:"durationSec,omitempty"`
	CurrentSec  *float64          `json:"currentSec,omitempty"`
	Speed       *float64          `json:"speed,omitempty"`
	ETASec      *float64          `json:"etaSec,omitempty"`
	Error       string            `json:"error,omitempty"`
	BatchID     string            `json:"batchId,omitempty"`
	CreatedAt   string            `json:"createdAt"`
	StartedAt   *string           `json:"startedAt,omitempty"`
	CompletedAt *string           `json:"completedAt,omitempty"`
}

func toJobDTO(j store.Job) jobDTO {
	dto := jobDTO{
		ID: j.ID, Name: j.Name, InputPath: j.InputPath, OutputPath: j.OutputPath,
		InputBytes: j.InputBytes, OutputBytes: j.OutputBytes, PresetName: j.PresetName,
		Overrides: j.Overrides, Status: int(j.Status), Progress: j.Progress,
		DurationSec: j.DurationSec, CurrentSec: j.CurrentSec, Speed: j.Speed, ETASec: j.ETASec,
		Error: j.Error, BatchID: j.BatchID, CreatedAt: j.CreatedAt.Format(rfc3339),
	}
	if j.StartedAt != nil {
		s := j.StartedAt.Format(rfc3339)
		dto.StartedAt = &s
	}
	if j.CompletedAt != nil {
		s := j.CompletedAt.Format(rfc3339)
		dto.CompletedAt = &s
	}
	return dto
}

const rfc3339 = "2006-01-02T15:04:05Z07:00"

// overridesFromRequest maps a StartConversionRequest's recognized options
// into the Task Store's string-valued override bag (the same shape
// dispatcher.overridesFromMap decodes back into preset.Overrides when the
// job is dispatched).
func overridesFromRequest(req StartConversionRequest) map[string]string {
	ov := make(map[string]string)
	if req.OutputFormat != "" {
		ov["container"] = req.OutputFormat
	}
	if req.VideoCodec != "" {
		ov["video_codec"] = req.VideoCodec
	}
	if req.AudioCodec != "" {
		ov["audio_codec"] = req.AudioCodec
	}
	if req.EncodingPreset != "" {
		ov["encoder_preset"] = req.EncodingPreset
	}
	if req.Profile != "" {
		ov["profile"] = req.Profile
	}
	if req.CustomWidth > 0 {
		ov["width"] = strconv.Itoa(req.CustomWidth)
	}
	if req.CustomHeight > 0 {
		ov["height"] = strconv.Itoa(req.CustomHeight)
	}
	if req.FrameRate > 0 {
		ov["frame_rate"] = strconv.Itoa(req.FrameRate)
	}
	if req.FastStart != nil {
		ov["fast_start"] = strconv.FormatBool(*req.FastStart)
	}
	if req.Deinterlace {
		ov["deinterlace"] = "true"
	}
	if crf, bitrate, ok := parseVideoQuality(req.VideoQuality); ok {
		if crf != nil {
			ov["crf"] = strconv.Itoa(*crf)
		}
		if bitrate != nil {
			ov["video_bitrate_kbs"] = strconv.Itoa(*bitrate)
		}
	}
	if req.Denoise != "" {
		ov["denoise"] = req.Denoise
	}
	if req.AudioBitrate > 0 {
		ov["audio_bitrate_kbs"] = strconv.Itoa(req.AudioBitrate)
	}
	if req.AudioSampleRate > 0 {
		ov["audio_sample_rate"] = strconv.Itoa(req.AudioSampleRate)
	}
	if req.AudioChannels > 0 {
		ov["audio_channels"] = strconv.Itoa(req.AudioChannels)
	}
	if req.StartTime > 0 {
		ov["start_time_sec"] = strconv.FormatFloat(req.StartTime, 'f', -1, 64)
	}
	if req.EndTime > 0 {
		ov["end_time_sec"] = strconv.FormatFloat(req.EndTime, 'f', -1, 64)
	}
	if req.DurationLimit > 0 {
		ov["duration_limit_sec"] = strconv.FormatFloat(req.DurationLimit, 'f', -1, 64)
	}
	if req.HardwareAcceleration != "" {
		ov["hardware_acceleration"] = req.HardwareAcceleration
	}
	if req.VideoFilters != "" {
		ov["video_filters"] = req.VideoFilters
	}
	if req.AudioFilters != "" {
		ov["audio_filters"] = req.AudioFilters
	}
	if req.TwoPass {
		ov["two_pass"] = "true"
	}
	if req.CopyTimestamps != nil {
		ov["copy_timestamps"] = strconv.FormatBool(*req.CopyTimestamps)
	}
	if strings.TrimSpace(req.CustomParams) != "" {
		ov["custom_params"] = strings.Join(strings.Fields(req.CustomParams), " ")
	}
	if req.GeneratePreviews {
		ov["generate_previews"] = "true"
	}
	return ov
}

// parseVideoQuality decodes the option table's "CRF string or NNNNk"
// convention: a trailing 'k' selects qualityMode=Bitrate, anything else
// parses as a CRF integer.
func parseVideoQuality(v string) (crf *int, bitrateKbs *int, ok bool) {
	if v == "" {
		return nil, nil, false
	}
	if n := len(v); n > 1 && v[n-1] == 'k' {
		if kbs, err := strconv.Atoi(v[:n-1]); err == nil {
			return nil, &kbs, true
		}
		return nil, nil, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return &n, nil, true
	}
	return nil, nil, false
}

// estimatorSettingsFor builds the Space Estimator's input from the
// request and the resolved preset, so admission checks reflect any
// container/codec override rather than just the preset's defaults.
func estimatorSettingsFor(req StartConversionRequest, p preset.Preset) estimator.Settings {
	container := p.Container
	if req.OutputFormat != "" {
		container = req.OutputFormat
	}
	codec := p.VideoCodec
	if req.VideoCodec != "" {
		codec = req.VideoCodec
	}
	resolution := req.Resolution
	if resolution == "" {
		resolution = resolutionLabel(p.Width, p.Height)
	}
	return estimator.Settings{
		Codec: codec, Container: container, Resolution: resolution,
		VideoBitrateKbs: p.VideoBitrateKbs,
	}
}

func resolutionLabel(width, height int) string {
	switch {
	case height >= 2160:
		return "4k"
	case height >= 1440:
		return "1440p"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height > 0:
		return "480p"
	default:
		return ""
	}
}

// defaultOutputPath derives a job's output file path from its job ID,
// the resolved container, and the durable outputs/ root (spec §6.3).
func defaultOutputPath(outputRoot, jobID, container string) string {
	ext := container
	if ext == "" {
		ext = "mp4"
	}
	return filepath.Join(outputRoot, jobID+"."+ext)
}
