package diskgov

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"

	"videoconv/pkg/notify"
	"videoconv/pkg/store"
)

// Tier names the trigger that invoked Cleanup (spec §4.6.4).
type Tier string

const (
	TierScheduled  Tier = "scheduled"
	TierAggressive Tier = "aggressive"
	TierEmergency  Tier = "emergency"
	TierManual     Tier = "manual"
)

// CleanupFlags selects which categories a Manual invocation processes; All
// runs every category (the default for the automatic tiers).
type CleanupFlags struct {
	All             bool
	ConvertedSource bool
	Downloaded      bool
	Temp            bool
	FailedArtifacts bool
	Orphans         bool
	Logs            bool
	IgnoreRetention bool
}

func (f CleanupFlags) wants(flag bool) bool { return f.All || flag }

// CleanupResult sums {cleaned_bytes, cleaned_count} across every category
// processed, plus the per-category file counts the wire contract's
// CleanupCompleted.details breaks out.
type CleanupResult struct {
	Tier         Tier
	BytesFreed   int64
	FilesRemoved int

	ConvertedSourceFiles int
	DownloadedFiles      int
	TempFiles            int
	FailedArtifactFiles  int
	OrphanFiles          int
	LogFiles             int
}

// Cleanup runs the six retention categories from spec §4.6.4 under the
// cutoffs the given tier implies and publishes CleanupCompleted. It
// decrements the temp bucket by the temp bytes freed and the uploads
// bucket for each removed converted source; bytes freed from downloaded
// outputs, failed-job artifacts, orphans and logs are not subtracted from
// any bucket and stay in the usage snapshot until the next Measure.
func (g *Governor) Cleanup(ctx context.Context, tier Tier, flags CleanupFlags) (CleanupResult, error) {
	cutoffs := g.cutoffsFor(tier, flags.IgnoreRetention)
	result := CleanupResult{Tier: tier}
	var merr *multierror.Error

	if flags.wants(flags.ConvertedSource) {
		bytes, count, err := g.cleanConvertedSources(ctx, cutoffs.converted)
		result.BytesFreed += bytes
		result.FilesRemoved += count
		result.ConvertedSourceFiles += count
		merr = multierror.Append(merr, err)
	}
	if flags.wants(flags.Downloaded) {
		bytes, count, err := g.cleanDownloaded(ctx, cutoffs.downloaded)
		result.BytesFreed += bytes
		result.FilesRemoved += count
		result.DownloadedFiles += count
		merr = multierror.Append(merr, err)
	}
	if flags.wants(flags.Temp) {
		bytes, count, err := cleanDirOlderThan(g.cfg.TempPath, cutoffs.temp)
		result.BytesFreed += bytes
		result.FilesRemoved += count
		result.TempFiles += count
		merr = multierror.Append(merr, err)
		if err2 := g.space.AdjustUsage(ctx, "temp", -bytes); err2 != nil {
			merr = multierror.Append(merr, err2)
		}
	}
	if flags.wants(flags.FailedArtifacts) {
		bytes, count, err := g.cleanFailedArtifacts(ctx, cutoffs.failed)
		result.BytesFreed += bytes
		result.FilesRemoved += count
		result.FailedArtifactFiles += count
		merr = multierror.Append(merr, err)
	}
	if flags.wants(flags.Orphans) {
		bytes, count, err := g.cleanOrphans(ctx, cutoffs.orphan)
		result.BytesFreed += bytes
		result.FilesRemoved += count
		result.OrphanFiles += count
		merr = multierror.Append(merr, err)
	}
	if flags.wants(flags.Logs) {
		bytes, count, err := cleanDirOlderThan(g.cfg.LogPath, cutoffs.log)
		result.BytesFreed += bytes
		result.FilesRemoved += count
		result.LogFiles += count
		merr = multierror.Append(merr, err)
	}

	g.bus.Publish(notify.GlobalGroup, notify.KindCleanupCompleted, notify.CleanupCompleted{
		Tier: string(tier), BytesFreed: result.BytesFreed, FilesRemoved: result.FilesRemoved,
		// The wire contract's details object has no slot of its own for
		// failed-job artifacts (category 4); folded into convertedFiles
		// since a failed job's partial output is itself a converted file.
		OriginalFiles:  result.ConvertedSourceFiles,
		ConvertedFiles: result.DownloadedFiles + result.FailedArtifactFiles,
		TempFiles:      result.TempFiles, OrphanFiles: result.OrphanFiles, LogFiles: result.LogFiles,
	})

	return result, merr.ErrorOrNil()
}

type cutoffSet struct {
	converted time.Duration
	downloaded time.Duration
	temp      time.Duration
	failed    time.Duration
	orphan    time.Duration
	log       time.Duration
}

func (g *Governor) cutoffsFor(tier Tier, ignoreRetention bool) cutoffSet {
	if ignoreRetention {
		return cutoffSet{}
	}
	switch tier {
	case TierEmergency:
		return cutoffSet{}
	case TierAggressive:
		return cutoffSet{
			converted:  time.Duration(g.cfg.RetentionConvertedMin) * time.Minute,
			downloaded: 6 * time.Hour,
			temp:       30 * time.Minute,
			failed:     time.Duration(g.cfg.RetentionFailedD) * 24 * time.Hour,
			orphan:     6 * time.Hour,
			log:        7 * 24 * time.Hour,
		}
	default:
		return cutoffSet{
			converted:  time.Duration(g.cfg.RetentionConvertedMin) * time.Minute,
			downloaded: time.Duration(g.cfg.RetentionDownloadedH) * time.Hour,
			temp:       time.Duration(g.cfg.RetentionTempH) * time.Hour,
			failed:     time.Duration(g.cfg.RetentionFailedD) * 24 * time.Hour,
			orphan:     time.Duration(g.cfg.RetentionOrphanD) * 24 * time.Hour,
			log:        time.Duration(g.cfg.RetentionLogD) * 24 * time.Hour,
		}
	}
}

// cleanConvertedSources removes input files for jobs that Completed more
// than cutoff ago, since their source is no longer needed.
func (g *Governor) cleanConvertedSources(ctx context.Context, cutoff time.Duration) (int64, int, error) {
	jobs, err := g.completedOlderThan(ctx, store.StatusCompleted, cutoff)
	if err != nil {
		return 0, 0, err
	}
	var bytes int64
	var count int
	for _, j := range jobs {
		if removeIfExists(j.InputPath, &bytes, &count) {
			if err := g.space.AdjustUsage(ctx, "uploads", -j.InputBytes); err != nil {
				log.Warn("diskgov: adjust uploads usage failed", "job_id", j.ID, "err", err)
			}
		}
	}
	return bytes, count, nil
}

// cleanDownloaded delegates to the Download Retention Tracker, passing the
// tier's own cutoff rather than each record's originally scheduled time, so
// Aggressive (6h) and Emergency (0, immediate) actually shrink the
// downloaded-file window instead of leaving it to the Tracker's independent
// hourly sweep (spec §4.6.4).
func (g *Governor) cleanDownloaded(ctx context.Context, cutoff time.Duration) (int64, int, error) {
	if g.retention == nil {
		return 0, 0, nil
	}
	return g.retention.CleanupOlderThan(ctx, cutoff)
}

func (g *Governor) cleanFailedArtifacts(ctx context.Context, cutoff time.Duration) (int64, int, error) {
	jobs, err := g.completedOlderThan(ctx, store.StatusFailed, cutoff)
	if err != nil {
		return 0, 0, err
	}
	var bytes int64
	var count int
	for _, j := range jobs {
		removeIfExists(j.InputPath, &bytes, &count)
		removeIfExists(j.OutputPath, &bytes, &count)
	}
	return bytes, count, nil
}

// completedOlderThan lists jobs in status whose completed_at is older than
// cutoff, via the store's dedicated terminal-jobs query.
func (g *Governor) completedOlderThan(ctx context.Context, status store.Status, cutoff time.Duration) ([]store.Job, error) {
	return g.jobs.ListTerminalOlderThan(ctx, status, cutoff)
}

func removeIfExists(path string, bytes *int64, count *int) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if err := os.Remove(path); err != nil {
		return false
	}
	*bytes += info.Size()
	*count++
	return true
}

func cleanDirOlderThan(root string, cutoff time.Duration) (int64, int, error) {
	if root == "" {
		return 0, 0, nil
	}
	threshold := time.Now().Add(-cutoff)
	var bytes int64
	var count int
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(threshold) {
			if rmErr := os.Remove(path); rmErr == nil {
				bytes += info.Size()
				count++
			}
		}
		return nil
	})
	return bytes, count, err
}

// cleanOrphans removes files under uploads/outputs whose path is not
// referenced by any job and whose mtime is older than cutoff.
func (g *Governor) cleanOrphans(ctx context.Context, cutoff time.Duration) (int64, int, error) {
	referenced := make(map[string]bool)
	active, err := g.jobs.ListActive(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, j := range active {
		referenced[j.InputPath] = true
		referenced[j.OutputPath] = true
	}

	threshold := time.Now().Add(-cutoff)
	var bytes int64
	var count int
	for _, root := range []string{g.cfg.UploadPath, g.cfg.OutputPath} {
		if root == "" {
			continue
		}
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || referenced[path] {
				return nil
			}
			info, ierr := d.Info()
			if ierr != nil || info.ModTime().After(threshold) {
				return nil
			}
			if rmErr := os.Remove(path); rmErr == nil {
				bytes += info.Size()
				count++
			}
			return nil
		})
	}
	return bytes, count, nil
}
