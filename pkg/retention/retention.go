// Package retention implements the Download Retention Tracker (G): it
// records each delivered download and schedules the deletion of its
// output file, cooperating with the Disk-Space Governor's own cleanup
// sweep rather than racing it.
package retention

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"videoconv/pkg/notify"
	"videoconv/pkg/store"
)

const sweepInterval = time.Hour

// DefaultRetention is how long a downloaded output file is kept before
// cleanup, absent an explicit override (spec §4.7).
const DefaultRetention = 24 * time.Hour

// Tracker owns the timer-per-record optimization plus the periodic
// sweeper that guards against timers lost across restarts.
type Tracker struct {
	downloads *store.DownloadStore
	bus       *notify.Bus

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(downloads *store.DownloadStore, bus *notify.Bus) *Tracker {
	return &Tracker{downloads: downloads, bus: bus, timers: make(map[string]*time.Timer)}
}

// Track records a download and either deletes the file immediately (if
// already due) or schedules a timer for its future deletion.
func (t *Tracker) Track(ctx context.Context, rec store.DownloadRecord) (store.DownloadRecord, error) {
	if rec.ScheduledDeleteAt.IsZero() {
		rec.ScheduledDeleteAt = time.Now().UTC().Add(DefaultRetention)
	}
	rec, err := t.downloads.Track(ctx, rec)
	if err != nil {
		return store.DownloadRecord{}, err
	}

	t.bus.Publish(rec.JobID, notify.KindDownloadTracked, notify.DownloadTracked{
		JobID: rec.JobID, FileName: rec.FileName, FileBytes: rec.FileBytes,
		DownloadedAt: rec.DownloadedAt.Format(time.RFC3339), ScheduledDeleteAt: rec.ScheduledDeleteAt.Format(time.RFC3339),
		RetentionHours: rec.ScheduledDeleteAt.Sub(rec.DownloadedAt).Hours(),
	})

	now := time.Now().UTC()
	if rec.Due(now) {
		t.delete(context.Background(), rec)
		return rec, nil
	}
	t.scheduleTimer(rec)
	return rec, nil
}

func (t *Tracker) scheduleTimer(rec store.DownloadRecord) {
	delay := time.Until(rec.ScheduledDeleteAt)
	timer := time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.timers, rec.ID)
		t.mu.Unlock()
		t.delete(context.Background(), rec)
	})
	t.mu.Lock()
	t.timers[rec.ID] = timer
	t.mu.Unlock()
}

// Run starts the periodic sweeper (every hour), which re-scans for
// records still pending cleanup — this is what protects against timers
// lost to a process restart.
func (t *Tracker) Run(ctx context.Context) {
	t.Sweep(ctx)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

func (t *Tracker) Sweep(ctx context.Context) {
	pending, err := t.downloads.ListPending(ctx, time.Now().UTC())
	if err != nil {
		log.Error("retention: sweep list failed", "err", err)
		return
	}
	for _, rec := range pending {
		t.delete(ctx, rec)
	}
}

// CleanupOlderThan deletes every not-yet-deleted download record whose
// DownloadedAt is at or before now-cutoff, ignoring the record's own
// ScheduledDeleteAt. This is the tier-aware sweep the Disk-Space Governor's
// cleanup calls with the Aggressive (6h) or Emergency (0, immediate) cutoff
// (spec §4.6.4), distinct from the hourly Sweep which only ever honors each
// record's originally scheduled time.
func (t *Tracker) CleanupOlderThan(ctx context.Context, cutoff time.Duration) (int64, int, error) {
	threshold := time.Now().UTC().Add(-cutoff)
	due, err := t.downloads.ListDownloadedBefore(ctx, threshold)
	if err != nil {
		return 0, 0, err
	}
	var bytesFreed int64
	var removed int
	for _, rec := range due {
		if t.delete(ctx, rec) {
			bytesFreed += rec.FileBytes
			removed++
		}
	}
	return bytesFreed, removed, nil
}

// delete is idempotent (P9): MarkDeleted is a no-op on a record already
// marked, and removing an already-gone file is not an error.
// delete treats FileName as the absolute output path (the record's only
// filesystem handle per the spec's Download Record shape). It reports
// whether the file itself was actually removed, so callers can account
// freed bytes only for space genuinely reclaimed.
func (t *Tracker) delete(ctx context.Context, rec store.DownloadRecord) bool {
	path := rec.FileName
	removed := false
	if err := os.Remove(path); err == nil {
		removed = true
		t.bus.Publish(rec.JobID, notify.KindDownloadedFileCleanedUp, notify.DownloadedFileCleanedUp{
			JobID: rec.JobID, FileName: rec.FileName, FileBytes: rec.FileBytes,
			DownloadedAt: rec.DownloadedAt.Format(time.RFC3339), CleanedAt: time.Now().UTC().Format(time.RFC3339),
			RetentionHours: rec.ScheduledDeleteAt.Sub(rec.DownloadedAt).Hours(),
		})
	} else if !os.IsNotExist(err) {
		log.Warn("retention: remove download file failed", "file", path, "err", err)
	}
	if err := t.downloads.MarkDeleted(ctx, rec.ID); err != nil {
		log.Warn("retention: mark deleted failed", "record_id", rec.ID, "err", err)
	}
	return removed
}
