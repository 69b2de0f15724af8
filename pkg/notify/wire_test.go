package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToWireEvent_EnvelopeShape(t *testing.T) {
	ev := Event{Kind: KindProgressUpdate, Group: "job-1", Payload: ProgressUpdate{JobID: "job-1", Progress: 42}}
	wire := toWireEvent(ev)
	require.Equal(t, "ProgressUpdate", wire.Type)
	require.NotEmpty(t, wire.Timestamp)
	data, ok := wire.Data.(wireProgressUpdate)
	require.True(t, ok)
	require.Equal(t, "job-1", data.TaskID)
	require.Equal(t, 42, data.Progress)
	require.NotEmpty(t, data.Message)
}

func TestToWireEvent_ProgressUpdateRenamesFields(t *testing.T) {
	eta := 12.5
	speed := 1.5
	ev := Event{Kind: KindProgressUpdate, Payload: ProgressUpdate{JobID: "job-2", Progress: 50, Speed: &speed, ETASec: &eta}}
	data := toWireEvent(ev).Data.(wireProgressUpdate)
	require.Equal(t, "job-2", data.TaskID)
	require.NotNil(t, data.RemainingSeconds)
	require.Equal(t, eta, *data.RemainingSeconds)
	require.NotNil(t, data.Speed)
	require.Equal(t, speed, *data.Speed)
}

func TestToWireEvent_StatusUpdateCarriesErrorMessage(t *testing.T) {
	ev := Event{Kind: KindStatusUpdate, Payload: StatusUpdate{JobID: "job-3", Status: "Failed", Error: "ffmpeg exited 1"}}
	data := toWireEvent(ev).Data.(wireStatusUpdate)
	require.Equal(t, "job-3", data.TaskID)
	require.Equal(t, "ffmpeg exited 1", data.ErrorMessage)
}

func TestToWireEvent_BatchSpaceWarningConvertsToGB(t *testing.T) {
	ev := Event{Kind: KindBatchSpaceWarning, Payload: BatchSpaceWarning{
		BatchID: "batch-1", EstimatedBytes: 2 * bytesPerGB, AvailableBytes: 1 * bytesPerGB, UsedPercent: 91.2,
	}}
	data := toWireEvent(ev).Data.(wireBatchSpaceWarning)
	require.Equal(t, "batch-1", data.BatchID)
	require.InDelta(t, 2.0, data.RequiredSpaceGB, 0.001)
	require.InDelta(t, 1.0, data.AvailableSpaceGB, 0.001)
}

func TestToWireEvent_CleanupCompletedNestsDetails(t *testing.T) {
	ev := Event{Kind: KindCleanupCompleted, Payload: CleanupCompleted{
		Tier: "aggressive", BytesFreed: 1024, FilesRemoved: 3,
		OriginalFiles: 1, ConvertedFiles: 1, TempFiles: 1,
	}}
	data := toWireEvent(ev).Data.(wireCleanupCompleted)
	require.Equal(t, "aggressive", data.CleanupType)
	require.Equal(t, int64(1024), data.TotalCleanedSize)
	require.Equal(t, 1, data.Details.OriginalFiles)
	require.Equal(t, 1, data.Details.ConvertedFiles)
	require.Equal(t, 1, data.Details.TempFiles)
}
