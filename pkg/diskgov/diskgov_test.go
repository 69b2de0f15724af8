package diskgov

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		MaxTotalBytes: 100 << 30, ReservedBytes: 5 << 30, Enabled: true,
		ThresholdWarn: 80, ThresholdAggressive: 90, ThresholdEmergency: 95,
		RetentionConvertedMin: 5, RetentionDownloadedH: 24, RetentionTempH: 2,
		RetentionFailedD: 7, RetentionOrphanD: 1, RetentionLogD: 30,
	}
}

func TestConfig_Validate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_RejectsBelowMinimum(t *testing.T) {
	c := validConfig()
	c.ReservedBytes = 1 << 20
	require.Error(t, c.Validate())
}

func TestConfig_Validate_RejectsMaxNotExceedingReserved(t *testing.T) {
	c := validConfig()
	c.MaxTotalBytes = c.ReservedBytes
	require.Error(t, c.Validate())
}

func TestConfig_Validate_RejectsBadThresholdOrder(t *testing.T) {
	c := validConfig()
	c.ThresholdAggressive = 96
	require.Error(t, c.Validate())
}

func TestPercent(t *testing.T) {
	require.InDelta(t, 50.0, percent(50, 100), 0.001)
	require.Equal(t, 0.0, percent(50, 0))
}

func TestCleanupFlags_Wants(t *testing.T) {
	require.True(t, CleanupFlags{All: true}.wants(false))
	require.True(t, CleanupFlags{Temp: true}.wants(true))
	require.False(t, CleanupFlags{}.wants(false))
}

func TestGovernor_CutoffsFor_EmergencyIsImmediate(t *testing.T) {
	g := &Governor{cfg: validConfig()}
	c := g.cutoffsFor(TierEmergency, false)
	require.Equal(t, time.Duration(0), c.temp)
	require.Equal(t, time.Duration(0), c.orphan)
}

func TestGovernor_CutoffsFor_AggressiveUsesFixedWindow(t *testing.T) {
	g := &Governor{cfg: validConfig()}
	c := g.cutoffsFor(TierAggressive, false)
	require.Equal(t, 30*time.Minute, c.temp)
	require.Equal(t, 6*time.Hour, c.downloaded)
}

func TestGovernor_CutoffsFor_IgnoreRetentionIsImmediate(t *testing.T) {
	g := &Governor{cfg: validConfig()}
	c := g.cutoffsFor(TierScheduled, true)
	require.Equal(t, time.Duration(0), c.failed)
}
