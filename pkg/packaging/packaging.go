// Package packaging wires the dropped HLS and preview modules into the
// supplemented "previews" and "hls" container paths: a job whose preset
// has Container == "hls" gets single-variant HLS segments plus a master
// playlist, and a job with GeneratePreviews set gets a scrubber sprite
// sheet, WebVTT cue file, and poster frame alongside its normal output.
package packaging

import (
	"context"
	"fmt"
	"path/filepath"

	ff "videoconv/pkg/ffmpeg"
	"videoconv/pkg/hls"
	"videoconv/pkg/preview"
)

const (
	spriteCols     = 10
	spriteRows     = 10
	spriteThumbW   = 160
	spriteThumbH   = 90
	spriteFPS      = 1.0
	defaultSegSecs = 6
)

// PreviewOutputs are the file paths written by GeneratePreviews, each
// joined onto the output directory the caller supplied.
type PreviewOutputs struct {
	SpritePath string
	VTTPath    string
	PosterPath string
}

// GeneratePreviews builds a scrubber sprite sheet, a matching WebVTT cue
// file, and a single poster frame from the already-encoded output, using
// the teacher's sprite/VTT builders unchanged.
func GeneratePreviews(ctx context.Context, ffmpegPath, sourcePath, outputDir string, durationSec float64) (PreviewOutputs, error) {
	out := previewOutputPaths(outputDir)

	totalThumbs := spriteCols * spriteRows
	if err := preview.NewSprite(ffmpegPath).
		Input(sourcePath).
		Output(out.SpritePath).
		Grid(spriteCols, spriteRows).
		ThumbWidth(spriteThumbW).
		FPS(spriteFPS).
		Frames(totalThumbs).
		Run(ctx); err != nil {
		return PreviewOutputs{}, fmt.Errorf("generate sprite: %w", err)
	}

	vtt := preview.NewVTT().
		UsingSprite(filepath.Base(out.SpritePath)).
		Grid(spriteCols, spriteRows, spriteThumbW, spriteThumbH).
		AddGridTimeline(spriteFPS, durationSec, totalThumbs)
	if err := vtt.WriteFile(out.VTTPath); err != nil {
		return PreviewOutputs{}, fmt.Errorf("write preview vtt: %w", err)
	}

	if err := ff.New(ffmpegPath).
		Overwrite(true).
		Input(sourcePath).
		Arg("-ss", "1").
		Arg("-frames:v", "1").
		Output(out.PosterPath).
		Run(ctx); err != nil {
		return PreviewOutputs{}, fmt.Errorf("generate poster: %w", err)
	}

	return out, nil
}

func previewOutputPaths(outputDir string) PreviewOutputs {
	return PreviewOutputs{
		SpritePath: filepath.Join(outputDir, "sprite.jpg"),
		VTTPath:    filepath.Join(outputDir, "preview.vtt"),
		PosterPath: filepath.Join(outputDir, "poster.jpg"),
	}
}

// HLSOutputs names the files GenerateHLS writes.
type HLSOutputs struct {
	SegmentPattern string
	MediaPlaylist  string
	MasterPlaylist string
}

// GenerateHLS segments an already-encoded output into a single-variant
// HLS rendition (the job model is one preset -> one output, not a
// multi-rendition ladder) and writes a one-variant master playlist via
// the teacher's MasterBuilder.
func GenerateHLS(ctx context.Context, ffmpegPath, sourcePath, outputDir string, videoBitrateKbs int, width, height int) (HLSOutputs, error) {
	out := hlsOutputPaths(outputDir)

	if err := ff.New(ffmpegPath).
		Overwrite(true).
		Input(sourcePath).
		Arg("-c", "copy").
		HLS(defaultSegSecs, "vod", "", out.SegmentPattern).
		Output(out.MediaPlaylist).
		Run(ctx); err != nil {
		return HLSOutputs{}, fmt.Errorf("segment hls: %w", err)
	}

	master := hls.NewMaster().AddVariant(filepath.Base(out.MediaPlaylist), hls.StreamInfAttr{
		Bandwidth:   bandwidthFor(videoBitrateKbs),
		ResolutionW: width,
		ResolutionH: height,
	})
	if err := master.WriteFile(out.MasterPlaylist); err != nil {
		return HLSOutputs{}, fmt.Errorf("write master playlist: %w", err)
	}

	return out, nil
}

func hlsOutputPaths(outputDir string) HLSOutputs {
	return HLSOutputs{
		SegmentPattern: filepath.Join(outputDir, "segment_%05d.ts"),
		MediaPlaylist:  filepath.Join(outputDir, "stream.m3u8"),
		MasterPlaylist: filepath.Join(outputDir, "master.m3u8"),
	}
}

// defaultBandwidth is used when the job carries no explicit video
// bitrate (e.g. a CRF-only preset), so the master playlist still
// declares a usable BANDWIDTH attribute.
const defaultBandwidth = 1_000_000

func bandwidthFor(videoBitrateKbs int) int {
	if videoBitrateKbs <= 0 {
		return defaultBandwidth
	}
	return videoBitrateKbs * 1000
}
