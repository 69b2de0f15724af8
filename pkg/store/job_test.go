package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatus_Terminal(t *testing.T) {
	require.False(t, StatusPending.Terminal())
	require.False(t, StatusConverting.Terminal())
	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusFailed.Terminal())
	require.True(t, StatusCancelled.Terminal())
}

func TestStatus_String(t *testing.T) {
	require.Equal(t, "pending", StatusPending.String())
	require.Equal(t, "converting", StatusConverting.String())
	require.Equal(t, "unknown", Status(99).String())
}

func TestUsage_Total(t *testing.T) {
	u := Usage{UploadsBytes: 10, OutputsBytes: 20, TempBytes: 5}
	require.Equal(t, int64(35), u.Total())
}

func TestBatch_Done(t *testing.T) {
	require.False(t, Batch{TotalJobs: 3, CompletedJobs: 2}.Done())
	require.True(t, Batch{TotalJobs: 3, CompletedJobs: 3}.Done())
	require.True(t, Batch{TotalJobs: 3, CompletedJobs: 4}.Done())
}

func TestDownloadRecord_Due(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	notYet := DownloadRecord{ScheduledDeleteAt: now.Add(time.Hour)}
	require.False(t, notYet.Due(now))

	due := DownloadRecord{ScheduledDeleteAt: now.Add(-time.Minute)}
	require.True(t, due.Due(now))

	deletedAt := now.Add(-time.Hour)
	alreadyDeleted := DownloadRecord{ScheduledDeleteAt: now.Add(-time.Minute), DeletedAt: &deletedAt}
	require.False(t, alreadyDeleted.Due(now))
}

func TestError_Unwrap(t *testing.T) {
	base := &Error{Kind: KindIO, Message: "boom"}
	require.Equal(t, "IOError: boom", base.Error())
	require.Nil(t, base.Unwrap())
}
