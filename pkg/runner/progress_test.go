package runner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProgressLine_HumanTime(t *testing.T) {
	sec, ok := parseProgressLine("frame=  307 fps= 29 q=28.0 size=    1024kB time=00:01:02.50 bitrate= 128.0kbits/s speed=1.2x")
	require.True(t, ok)
	require.InDelta(t, 62.5, sec, 0.001)
}

func TestParseProgressLine_OutTimeMs(t *testing.T) {
	sec, ok := parseProgressLine("out_time_ms=5250000")
	require.True(t, ok)
	require.InDelta(t, 5.25, sec, 0.001)
}

func TestParseProgressLine_OutTime(t *testing.T) {
	sec, ok := parseProgressLine("out_time=00:00:05.250000")
	require.True(t, ok)
	require.InDelta(t, 5.25, sec, 0.001)
}

func TestParseProgressLine_NoMatch(t *testing.T) {
	_, ok := parseProgressLine("progress=continue")
	require.False(t, ok)
}

func TestParseProgressLine_PriorityOrder(t *testing.T) {
	// "time=" must win over "out_time_ms=" when both are present on a line.
	sec, ok := parseProgressLine("time=00:00:10.00 out_time_ms=999999999")
	require.True(t, ok)
	require.InDelta(t, 10.0, sec, 0.001)
}

func TestComputeProgress_CapsAtNinetyNine(t *testing.T) {
	pct, _, _ := computeProgress(100, 100, 50)
	require.Equal(t, 99, pct)
}

func TestComputeProgress_UnknownDuration(t *testing.T) {
	pct, speed, eta := computeProgress(30, 0, 15)
	require.Equal(t, -1, pct)
	require.InDelta(t, 2.0, speed, 0.001)
	require.Nil(t, eta)
}

func TestComputeProgress_ETA(t *testing.T) {
	pct, speed, eta := computeProgress(50, 100, 25)
	require.Equal(t, 50, pct)
	require.InDelta(t, 2.0, speed, 0.001)
	require.NotNil(t, eta)
	require.InDelta(t, 25.0, *eta, 0.001)
}

func TestTailBuffer_TruncatesToLimit(t *testing.T) {
	tb := newTailBuffer(10)
	tb.WriteLine("0123456789abcdef")
	require.LessOrEqual(t, len(tb.String()), 10)
}
