// Package runner implements the FFmpeg Runner (C): it turns a claimed job
// into a supervised FFmpeg child process, parses its progress stream, and
// reports the outcome back through the Task Store and Notification Bus.
//
// Grounded on pkg/ffmpeg's Command.Run (stderr scanning goroutine, stdout
// drain goroutine, cmd.Wait()), generalized with a process table, a
// cancellation pathway, and the three-form progress parser the teacher
// never needed (it only waited on a single blocking call).
package runner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"videoconv/pkg/ffmpeg"
	"videoconv/pkg/notify"
	"videoconv/pkg/packaging"
	"videoconv/pkg/preset"
	"videoconv/pkg/store"
	"videoconv/pkg/syncer"
)

const (
	defaultGracePeriod     = 3 * time.Second
	defaultStallTimeout    = 10 * time.Minute
	defaultThrottleMs      = 200 * time.Millisecond
	defaultThrottlePercent = 5
	stderrTailBytes        = 4096
)

type procEntry struct {
	cmd        *exec.Cmd
	cancel     chan struct{}
	cancelOnce sync.Once
}

// Runner supervises FFmpeg child processes, one per job, never more than
// one per job ID at a time.
type Runner struct {
	FFmpegPath  string
	FFprobePath string

	ThrottleInterval time.Duration
	ThrottlePercent  int
	StallTimeout     time.Duration
	GracePeriod      time.Duration

	// WorkDir, when set, is a scratch directory FFmpeg writes into; on
	// success the finished file is synced from there into job.OutputPath
	// via Sync (the local directory-sync helper adapted from the
	// teacher's S3 syncer), so a reader of the durable outputs/ tree
	// never observes a partially-written file.
	WorkDir string
	Sync    syncer.Syncer

	store *store.JobStore
	bus   *notify.Bus

	mu            sync.Mutex
	processes     map[string]*procEntry
	pendingCancel map[string]bool
}

func New(jobStore *store.JobStore, bus *notify.Bus, ffmpegPath, ffprobePath string) *Runner {
	return &Runner{
		FFmpegPath:       ffmpegPath,
		FFprobePath:      ffprobePath,
		ThrottleInterval: defaultThrottleMs,
		ThrottlePercent:  defaultThrottlePercent,
		StallTimeout:     defaultStallTimeout,
		GracePeriod:      defaultGracePeriod,
		Sync:             syncer.New(),
		store:            jobStore,
		bus:              bus,
		processes:        make(map[string]*procEntry),
		pendingCancel:    make(map[string]bool),
	}
}

// Cancel requests termination of jobID. If the job's process is already
// running, its subtree is signaled. If the job has not started yet, the
// request is remembered so Run aborts as soon as it is invoked (spec
// §4.4: "lets the Runner observe the flag at start and abort cleanly").
func (r *Runner) Cancel(jobID string) {
	r.mu.Lock()
	entry, running := r.processes[jobID]
	if !running {
		r.pendingCancel[jobID] = true
	}
	r.mu.Unlock()

	if running {
		entry.cancelOnce.Do(func() { close(entry.cancel) })
	}
}

// Run executes preset.Build's argument vector for job, streams progress,
// and writes the terminal outcome through the store and bus. It never
// returns until the job reaches a terminal status or ctx is done.
func (r *Runner) Run(ctx context.Context, job store.Job, p preset.Preset, ov preset.Overrides) error {
	if r.consumePendingCancel(job.ID) {
		return r.finishCancelled(ctx, job.ID)
	}

	probe, probeErr := ffmpeg.Probe(ctx, r.FFprobePath, job.InputPath)
	durationSec := probe.DurationSec
	if probeErr != nil {
		log.Warn("runner: probe failed, degrading to current-time-only progress", "job_id", job.ID, "err", probeErr)
		durationSec = 0
	}

	scratchPath := r.scratchPath(job)
	argv := preset.Build(p, ov, preset.JobInput{InputPath: job.InputPath, OutputPath: scratchPath})
	cmd := exec.CommandContext(context.Background(), r.ffmpegBin(), argv...)
	setpgid(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return r.fail(ctx, job.ID, fmt.Sprintf("stderr pipe: %v", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return r.fail(ctx, job.ID, fmt.Sprintf("stdout pipe: %v", err))
	}

	if err := cmd.Start(); err != nil {
		return r.fail(ctx, job.ID, fmt.Sprintf("start: %v", err))
	}

	cancelCh := make(chan struct{})
	r.register(job.ID, cmd, cancelCh)
	defer r.unregister(job.ID)

	go drain(stdout)

	tail := newTailBuffer(stderrTailBytes)
	progressDone := make(chan struct{})
	lastActivity := make(chan struct{}, 1)
	go r.scanProgress(ctx, job.ID, durationSec, stderr, tail, progressDone, lastActivity)

	exitErr := make(chan error, 1)
	childDone := make(chan struct{})
	go func() {
		exitErr <- cmd.Wait()
		close(childDone)
	}()

	stallTimer := time.NewTimer(r.StallTimeout)
	defer stallTimer.Stop()

	cancelRequested := false
	stalled := false
	for {
		select {
		case <-childDone:
			<-progressDone
			err := <-exitErr
			if stalled && !cancelRequested {
				return r.fail(ctx, job.ID, "encoder stalled")
			}
			return r.handleExit(ctx, job, p, durationSec, scratchPath, err, cancelRequested, tail.String())

		case <-cancelCh:
			cancelRequested = true
			terminateSubtree(cmd.Process.Pid, childDone, r.GracePeriod)

		case <-stallTimer.C:
			log.Warn("runner: stall timeout, killing subtree", "job_id", job.ID)
			stalled = true
			terminateSubtree(cmd.Process.Pid, childDone, r.GracePeriod)

		case <-lastActivity:
			if !stallTimer.Stop() {
				select {
				case <-stallTimer.C:
				default:
				}
			}
			stallTimer.Reset(r.StallTimeout)
		}
	}
}

// scratchPath returns the path FFmpeg should write to. When WorkDir is
// configured, this is a scratch file inside it (named after the job,
// keeping the final extension) rather than job.OutputPath directly, so
// the publish step below never lets a reader see a half-written file at
// the durable path.
func (r *Runner) scratchPath(job store.Job) string {
	if r.WorkDir == "" {
		return job.OutputPath
	}
	return filepath.Join(r.WorkDir, job.ID+filepath.Ext(job.OutputPath))
}

func (r *Runner) ffmpegBin() string {
	if r.FFmpegPath == "" {
		return "ffmpeg"
	}
	return r.FFmpegPath
}

func (r *Runner) consumePendingCancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pendingCancel[jobID] {
		delete(r.pendingCancel, jobID)
		return true
	}
	return false
}

func (r *Runner) register(jobID string, cmd *exec.Cmd, cancel chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processes[jobID] = &procEntry{cmd: cmd, cancel: cancel}
}

func (r *Runner) unregister(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processes, jobID)
}

func (r *Runner) handleExit(ctx context.Context, job store.Job, p preset.Preset, durationSec float64, scratchPath string, exitErr error, cancelRequested bool, stderrTail string) error {
	if cancelRequested {
		return r.finishCancelled(ctx, job.ID)
	}
	if exitErr == nil {
		info, statErr := os.Stat(scratchPath)
		if statErr != nil || info.Size() <= 0 {
			return r.fail(ctx, job.ID, "ffmpeg exited 0 but produced no output")
		}
		if scratchPath != job.OutputPath {
			if err := r.Sync.CopyFile(ctx, scratchPath, job.OutputPath); err != nil {
				return r.fail(ctx, job.ID, fmt.Sprintf("publish output: %v", err))
			}
			os.Remove(scratchPath)
			info, statErr = os.Stat(job.OutputPath)
			if statErr != nil {
				return r.fail(ctx, job.ID, fmt.Sprintf("stat published output: %v", statErr))
			}
		}
		if err := r.store.UpdateProgress(ctx, job.ID, 100, nil, nil, nil); err != nil {
			log.Warn("runner: final progress update failed", "job_id", job.ID, "err", err)
		}
		r.bus.Publish(job.ID, notify.KindProgressUpdate, notify.ProgressUpdate{JobID: job.ID, Progress: 100})
		if err := r.store.SetTerminal(ctx, job.ID, store.StatusCompleted, "", info.Size()); err != nil {
			return err
		}
		r.bus.Publish(job.ID, notify.KindTaskCompleted, notify.TaskCompleted{
			JobID: job.ID, OutputPath: job.OutputPath, OutputBytes: info.Size(),
		})
		r.bus.Publish(job.ID, notify.KindStatusUpdate, notify.StatusUpdate{JobID: job.ID, Status: store.StatusCompleted.String()})
		r.generateSupplementaryOutputs(ctx, job, p, durationSec)
		return nil
	}
	return r.fail(ctx, job.ID, stderrTail)
}

// generateSupplementaryOutputs runs the optional hls-container packaging
// and scrubber-preview companion paths (spec expansion §5). Failures here
// are logged, not terminal: the job's primary output already completed.
func (r *Runner) generateSupplementaryOutputs(ctx context.Context, job store.Job, p preset.Preset, durationSec float64) {
	outDir := filepath.Dir(job.OutputPath)
	base := strings.TrimSuffix(filepath.Base(job.OutputPath), filepath.Ext(job.OutputPath))

	if p.Container == "hls" {
		hlsDir := filepath.Join(outDir, base+"_hls")
		if err := os.MkdirAll(hlsDir, 0o755); err != nil {
			log.Warn("runner: create hls dir failed", "job_id", job.ID, "err", err)
		} else if _, err := packaging.GenerateHLS(ctx, r.ffmpegBin(), job.OutputPath, hlsDir, p.VideoBitrateKbs, 0, 0); err != nil {
			log.Warn("runner: hls packaging failed", "job_id", job.ID, "err", err)
		}
	}

	if job.Overrides["generate_previews"] == "true" {
		previewDir := filepath.Join(outDir, base+"_previews")
		if err := os.MkdirAll(previewDir, 0o755); err != nil {
			log.Warn("runner: create previews dir failed", "job_id", job.ID, "err", err)
		} else if _, err := packaging.GeneratePreviews(ctx, r.ffmpegBin(), job.OutputPath, previewDir, durationSec); err != nil {
			log.Warn("runner: preview generation failed", "job_id", job.ID, "err", err)
		}
	}
}

func (r *Runner) finishCancelled(ctx context.Context, jobID string) error {
	if err := r.store.SetTerminal(ctx, jobID, store.StatusCancelled, "user cancelled", 0); err != nil {
		return err
	}
	r.bus.Publish(jobID, notify.KindStatusUpdate, notify.StatusUpdate{JobID: jobID, Status: store.StatusCancelled.String()})
	return nil
}

func (r *Runner) fail(ctx context.Context, jobID, message string) error {
	if err := r.store.SetTerminal(ctx, jobID, store.StatusFailed, message, 0); err != nil {
		return err
	}
	r.bus.Publish(jobID, notify.KindStatusUpdate, notify.StatusUpdate{
		JobID: jobID, Status: store.StatusFailed.String(), Error: message,
	})
	return nil
}

func drain(r interface{ Read([]byte) (int, error) }) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
	}
}
