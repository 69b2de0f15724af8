package packaging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreviewOutputPaths(t *testing.T) {
	out := previewOutputPaths("/jobs/abc/previews")
	require.Equal(t, filepath.Join("/jobs/abc/previews", "sprite.jpg"), out.SpritePath)
	require.Equal(t, filepath.Join("/jobs/abc/previews", "preview.vtt"), out.VTTPath)
	require.Equal(t, filepath.Join("/jobs/abc/previews", "poster.jpg"), out.PosterPath)
}

func TestHLSOutputPaths(t *testing.T) {
	out := hlsOutputPaths("/jobs/abc/hls")
	require.Equal(t, filepath.Join("/jobs/abc/hls", "segment_%05d.ts"), out.SegmentPattern)
	require.Equal(t, filepath.Join("/jobs/abc/hls", "stream.m3u8"), out.MediaPlaylist)
	require.Equal(t, filepath.Join("/jobs/abc/hls", "master.m3u8"), out.MasterPlaylist)
}

func TestBandwidthFor_FallsBackWhenNoBitrate(t *testing.T) {
	require.Equal(t, defaultBandwidth, bandwidthFor(0))
	require.Equal(t, 2500*1000, bandwidthFor(2500))
}
