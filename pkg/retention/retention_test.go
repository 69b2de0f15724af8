package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"videoconv/pkg/store"
)

func TestRemoveMissingFile_ReportsIsNotExist(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does-not-exist.mp4")
	err := os.Remove(missing)
	require.True(t, os.IsNotExist(err))
}

func TestDownloadRecord_DueAtCreation(t *testing.T) {
	now := time.Now().UTC()
	rec := store.DownloadRecord{ScheduledDeleteAt: now.Add(-time.Second)}
	require.True(t, rec.Due(now))
}
