package runner

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"videoconv/pkg/notify"
)

// tailBuffer keeps the last N bytes written to it, used to surface the
// tail of FFmpeg's stderr in a Failed job's error field (spec §4.3.6:
// "the last ~4 KiB of stderr, truncated").
type tailBuffer struct {
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) WriteLine(line string) {
	t.buf = append(t.buf, []byte(line+"\n")...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
}

func (t *tailBuffer) String() string { return string(t.buf) }

// scanProgress reads stderr line by line, feeding every line into tail and
// parsing progress lines via parseProgressLine. Persisted/published
// updates are throttled to at most one every ThrottleInterval or every
// ThrottlePercent of progress, whichever comes first; the final 100%
// update is sent unconditionally elsewhere, in handleExit.
func (r *Runner) scanProgress(ctx context.Context, jobID string, durationSec float64, stderr io.Reader, tail *tailBuffer, done chan<- struct{}, activity chan<- struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(stderr)
	start := time.Now()
	lastPublish := time.Time{}
	lastPct := -1

	for scanner.Scan() {
		line := scanner.Text()
		tail.WriteLine(line)

		select {
		case activity <- struct{}{}:
		default:
		}

		currentSec, ok := parseProgressLine(line)
		if !ok {
			continue
		}

		elapsed := time.Since(start).Seconds()
		pct, speed, eta := computeProgress(currentSec, durationSec, elapsed)

		due := time.Since(lastPublish) >= r.ThrottleInterval
		if pct >= 0 && abs(pct-lastPct) >= r.ThrottlePercent {
			due = true
		}
		if !due {
			continue
		}
		lastPublish = time.Now()
		if pct >= 0 {
			lastPct = pct
		}

		cs := currentSec
		var speedPtr *float64
		if speed > 0 {
			speedPtr = &speed
		}
		persistPct := pct
		if persistPct < 0 {
			persistPct = 0
		}
		if err := r.store.UpdateProgress(ctx, jobID, persistPct, &cs, speedPtr, eta); err != nil {
			log.Warn("runner: progress persist failed", "job_id", jobID, "err", err)
		}
		r.bus.Publish(jobID, notify.KindProgressUpdate, notify.ProgressUpdate{
			JobID: jobID, Progress: persistPct, CurrentSec: &cs, Speed: speedPtr, ETASec: eta,
		})
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
