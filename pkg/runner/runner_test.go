package runner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"videoconv/pkg/store"
)

func TestScratchPath_NoWorkDirUsesOutputPathDirectly(t *testing.T) {
	r := &Runner{}
	job := store.Job{ID: "job-1", OutputPath: "/outputs/job-1.mp4"}
	require.Equal(t, job.OutputPath, r.scratchPath(job))
}

func TestScratchPath_WithWorkDirUsesJobIDAndExtension(t *testing.T) {
	r := &Runner{WorkDir: "/scratch"}
	job := store.Job{ID: "job-2", OutputPath: "/outputs/anything.webm"}
	require.Equal(t, filepath.Join("/scratch", "job-2.webm"), r.scratchPath(job))
}
