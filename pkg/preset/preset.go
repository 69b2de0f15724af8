// Package preset implements the static preset library and the Args Builder
// (spec §4.5): mapping a named preset plus per-job overrides into an FFmpeg
// argument vector.
package preset

// Preset groups the defaults the Builder applies unless an override wins.
type Preset struct {
	Name            string
	Container       string // mp4, mkv, webm, mov, mp3, aac, flac, wav, ogg, m4a, ...
	VideoCodec      string
	AudioCodec      string
	CRF             int // 0 means "use bitrate instead"
	VideoBitrateKbs int
	EncoderPreset   string // "fast", "medium", "slow", ... (x264/x265 -preset)
	Profile         string
	Width           int
	Height          int
	FrameRate       int
	PixelFormat     string
	ColorSpace      string
	FastStart       bool
	CopyTimestamps  bool
	TwoPass         bool
	Denoise         string // filter expression, e.g. "hqdn3d"; empty means no denoise filter
	Deinterlace     bool

	AudioBitrateKbs int
	AudioSampleRate int
	AudioChannels   int

	// StartTimeSec, EndTimeSec, DurationLimitSec trim the encode (spec
	// §6.1 "startTime, endTime, durationLimit"); zero means unset.
	StartTimeSec     float64
	EndTimeSec       float64
	DurationLimitSec float64

	// HardwareAcceleration selects the -hwaccel flags explicitly: "auto"
	// (or empty) falls back to codec-substring detection, "none" disables
	// hwaccel outright, anything else names a vendor directly.
	HardwareAcceleration string
	VideoFilters         string // appended to the builder's own -vf chain
	AudioFilters         string // emitted verbatim as -af

	// CustomParams is a raw argument suffix appended just before the
	// output path (spec §6.1 "customParams | raw argument suffix").
	CustomParams []string
}

// Overrides is the per-job bag of recognized options (spec §3.1). Scalar
// fields are pointers so "unset" and "explicitly zero" are distinguishable.
// A non-nil override wins over the preset default, except that an empty
// string or zero for the container, codec, CRF, bitrate, encoder preset,
// profile, width/height, frame rate and audio bitrate/sample rate/channels
// leaves the default in place; CustomParams wins only when non-empty.
type Overrides struct {
	Container       *string
	VideoCodec      *string
	AudioCodec      *string
	CRF             *int
	VideoBitrateKbs *int
	EncoderPreset   *string
	Profile         *string
	Width           *int
	Height          *int
	FrameRate       *int
	FastStart       *bool
	Denoise         *string
	Deinterlace     *bool

	AudioBitrateKbs *int
	AudioSampleRate *int
	AudioChannels   *int

	StartTimeSec     *float64
	EndTimeSec       *float64
	DurationLimitSec *float64

	HardwareAcceleration *string
	VideoFilters         *string
	AudioFilters         *string
	TwoPass              *bool
	CopyTimestamps       *bool

	CustomParams []string
}

var library = map[string]Preset{
	"fast-1080p30": {
		Name: "Fast 1080p30", Container: "mp4", VideoCodec: "libx264", AudioCodec: "aac",
		CRF: 23, EncoderPreset: "veryfast", Profile: "high",
		Width: 1920, Height: 1080, FrameRate: 30,
		PixelFormat: "yuv420p", FastStart: true,
	},
	"hq-1080p": {
		Name: "High Quality 1080p", Container: "mp4", VideoCodec: "libx264", AudioCodec: "aac",
		CRF: 18, EncoderPreset: "slow", Profile: "high",
		Width: 1920, Height: 1080, FrameRate: 0,
		PixelFormat: "yuv420p", FastStart: true,
	},
	"fast-720p30": {
		Name: "Fast 720p30", Container: "mp4", VideoCodec: "libx264", AudioCodec: "aac",
		CRF: 23, EncoderPreset: "veryfast", Profile: "main",
		Width: 1280, Height: 720, FrameRate: 30,
		PixelFormat: "yuv420p", FastStart: true,
	},
	"hevc-1080p": {
		Name: "HEVC 1080p", Container: "mp4", VideoCodec: "libx265", AudioCodec: "aac",
		CRF: 24, EncoderPreset: "medium", Profile: "main",
		Width: 1920, Height: 1080,
		PixelFormat: "yuv420p", FastStart: true,
	},
	"webm-1080p": {
		Name: "WebM 1080p", Container: "webm", VideoCodec: "libvpx-vp9", AudioCodec: "libopus",
		CRF: 31, Width: 1920, Height: 1080,
	},
	"audio-aac": {
		Name: "Audio AAC", Container: "aac", AudioCodec: "aac", VideoBitrateKbs: 0,
	},
	"archive-prores": {
		Name: "Archive ProRes", Container: "mov", VideoCodec: "prores_ks", AudioCodec: "pcm_s16le",
		Profile: "3", PixelFormat: "yuv422p10le",
	},
}

// DefaultPresetName is returned by GetDefault; chosen to mirror the
// teacher's own default quality ladder rung, a 1080p/H.264 rendition.
const DefaultPresetName = "fast-1080p30"

func GetDefault() Preset {
	return library[DefaultPresetName]
}

func GetByName(name string) (Preset, bool) {
	p, ok := library[name]
	return p, ok
}

func Names() []string {
	names := make([]string, 0, len(library))
	for n := range library {
		names = append(names, n)
	}
	return names
}
