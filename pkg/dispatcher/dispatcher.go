// Package dispatcher implements the Queue Dispatcher (D): it polls the
// Task Store for pending jobs, promotes them through the atomic try_start
// CAS, and hands each off to the FFmpeg Runner on a bounded worker pool
// grounded on github.com/ygrebnov/workers.
package dispatcher

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ygrebnov/workers"

	"videoconv/pkg/preset"
	"videoconv/pkg/runner"
	"videoconv/pkg/store"
)

const (
	defaultPollInterval  = 10 * time.Second
	storeFailureBackoff  = 30 * time.Second
	shutdownDrainTimeout = 5 * time.Second
)

// Dispatcher owns the Runner's lifecycle: which jobs are in flight and the
// bounded pool their work executes on. Cancel requests are passed to the
// Runner, which remembers those for jobs that have not started yet.
type Dispatcher struct {
	jobs    *store.JobStore
	batches *store.BatchStore
	runner  *runner.Runner
	pool    workers.Workers[string]

	pollInterval time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup

	stop chan struct{}
	done chan struct{}
}

// New builds a Dispatcher. maxConcurrent <= 0 defaults to the logical CPU
// count (spec §4.3.7).
func New(jobs *store.JobStore, batches *store.BatchStore, r *runner.Runner, maxConcurrent int, pollInterval time.Duration) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	pool := workers.New[string](context.Background(), &workers.Config{
		MaxWorkers:        uint(maxConcurrent),
		StartImmediately:  true,
		ResultsBufferSize: 256,
		ErrorsBufferSize:  256,
	})
	return &Dispatcher{
		jobs:         jobs,
		batches:      batches,
		runner:       r,
		pool:         pool,
		pollInterval: pollInterval,
		inFlight:     make(map[string]struct{}),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Run is the Dispatcher's single long-lived poll loop. It returns when ctx
// is cancelled or Shutdown is called.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	go d.drainPoolErrors()
	go d.drainPoolResults()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	backedOff := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			if err := d.pollOnce(ctx); err != nil {
				log.Error("dispatcher: poll failed, backing off", "err", err, "backoff", storeFailureBackoff)
				ticker.Reset(storeFailureBackoff)
				backedOff = true
				continue
			}
			if backedOff {
				ticker.Reset(d.pollInterval)
				backedOff = false
			}
		}
	}
}

func (d *Dispatcher) pollOnce(ctx context.Context) error {
	active, err := d.jobs.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, job := range active {
		if job.Status != store.StatusPending {
			continue
		}
		if d.isInFlight(job.ID) {
			continue
		}

		ok, err := d.jobs.TryStart(ctx, job.ID)
		if err != nil {
			log.Warn("dispatcher: try_start failed", "job_id", job.ID, "err", err)
			continue
		}
		if !ok {
			continue
		}

		d.markInFlight(job.ID)
		d.dispatch(ctx, job)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, job store.Job) {
	d.wg.Add(1)
	task := func(taskCtx context.Context) (string, error) {
		defer d.wg.Done()
		defer d.clearInFlight(job.ID)
		defer d.advanceBatch(taskCtx, job)
		defer func() {
			if r := recover(); r != nil {
				log.Error("dispatcher: runner panicked", "job_id", job.ID, "recover", r)
			}
		}()

		p, ok := preset.GetByName(job.PresetName)
		if !ok {
			p = preset.GetDefault()
		}
		if err := d.runner.Run(taskCtx, job, p, overridesFromMap(job.Overrides)); err != nil {
			log.Error("dispatcher: runner returned error", "job_id", job.ID, "err", err)
			return job.ID, err
		}
		return job.ID, nil
	}
	if err := d.pool.AddTask(task); err != nil {
		log.Error("dispatcher: failed to enqueue task", "job_id", job.ID, "err", err)
		d.clearInFlight(job.ID)
		d.wg.Done()
	}
}

func (d *Dispatcher) advanceBatch(ctx context.Context, job store.Job) {
	if job.BatchID == "" {
		return
	}
	updated, err := d.jobs.Get(ctx, job.ID)
	if err != nil || updated == nil || !updated.Status.Terminal() {
		return
	}
	if _, err := d.batches.AdvanceOnJobTerminal(ctx, job.BatchID); err != nil {
		log.Warn("dispatcher: batch advance failed", "batch_id", job.BatchID, "err", err)
	}
}

func (d *Dispatcher) drainPoolErrors() {
	for err := range d.pool.GetErrors() {
		log.Warn("dispatcher: pool task error", "err", err)
	}
}

func (d *Dispatcher) drainPoolResults() {
	for range d.pool.GetResults() {
		// results carry nothing beyond the job ID already logged on error;
		// draining just keeps the pool's results channel from filling up.
	}
}

// Cancel requests cancellation of jobID without touching the Task Store
// directly; the Runner owns terminal writes (spec §4.4).
func (d *Dispatcher) Cancel(jobID string) {
	d.runner.Cancel(jobID)
}

// Shutdown requests cancellation of every in-flight job and waits up to
// the shutdown drain timeout for them to finish.
func (d *Dispatcher) Shutdown() {
	close(d.stop)

	d.mu.Lock()
	ids := make([]string, 0, len(d.inFlight))
	for id := range d.inFlight {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	for _, id := range ids {
		d.runner.Cancel(id)
	}

	waited := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(shutdownDrainTimeout):
		log.Warn("dispatcher: shutdown drain timed out", "pending", len(ids))
	}
}

func (d *Dispatcher) isInFlight(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inFlight[id]
	return ok
}

func (d *Dispatcher) markInFlight(id string) {
	d.mu.Lock()
	d.inFlight[id] = struct{}{}
	d.mu.Unlock()
}

func (d *Dispatcher) clearInFlight(id string) {
	d.mu.Lock()
	delete(d.inFlight, id)
	d.mu.Unlock()
}

// overridesFromMap decodes a job's string-valued override bag (as stored
// in the Task Store's JSON column) into preset.Overrides. Only recognized
// keys are mapped; malformed numeric/bool values are ignored rather than
// failing the whole job, since the HTTP surface already validated them at
// admission time.
func overridesFromMap(m map[string]string) preset.Overrides {
	var ov preset.Overrides
	if v, ok := m["container"]; ok {
		ov.Container = &v
	}
	if v, ok := m["video_codec"]; ok {
		ov.VideoCodec = &v
	}
	if v, ok := m["audio_codec"]; ok {
		ov.AudioCodec = &v
	}
	if v, ok := m["encoder_preset"]; ok {
		ov.EncoderPreset = &v
	}
	if v, ok := m["profile"]; ok {
		ov.Profile = &v
	}
	if v, ok := m["crf"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			ov.CRF = &n
		}
	}
	if v, ok := m["video_bitrate_kbs"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			ov.VideoBitrateKbs = &n
		}
	}
	if v, ok := m["width"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			ov.Width = &n
		}
	}
	if v, ok := m["height"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			ov.Height = &n
		}
	}
	if v, ok := m["frame_rate"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			ov.FrameRate = &n
		}
	}
	if v, ok := m["fast_start"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			ov.FastStart = &b
		}
	}
	if v, ok := m["denoise"]; ok {
		ov.Denoise = &v
	}
	if v, ok := m["deinterlace"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			ov.Deinterlace = &b
		}
	}
	if v, ok := m["audio_bitrate_kbs"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			ov.AudioBitrateKbs = &n
		}
	}
	if v, ok := m["audio_sample_rate"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			ov.AudioSampleRate = &n
		}
	}
	if v, ok := m["audio_channels"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			ov.AudioChannels = &n
		}
	}
	if v, ok := m["start_time_sec"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			ov.StartTimeSec = &f
		}
	}
	if v, ok := m["end_time_sec"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			ov.EndTimeSec = &f
		}
	}
	if v, ok := m["duration_limit_sec"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			ov.DurationLimitSec = &f
		}
	}
	if v, ok := m["hardware_acceleration"]; ok {
		ov.HardwareAcceleration = &v
	}
	if v, ok := m["video_filters"]; ok {
		ov.VideoFilters = &v
	}
	if v, ok := m["audio_filters"]; ok {
		ov.AudioFilters = &v
	}
	if v, ok := m["two_pass"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			ov.TwoPass = &b
		}
	}
	if v, ok := m["copy_timestamps"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			ov.CopyTimestamps = &b
		}
	}
	if v, ok := m["custom_params"]; ok && v != "" {
		ov.CustomParams = strings.Fields(v)
	}
	return ov
}
