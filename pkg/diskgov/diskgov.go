// Package diskgov implements the Disk-Space Governor (F): quota
// configuration, three-bucket usage accounting over the local uploads/
// outputs/temp directory trees, a periodic monitoring loop, and the
// Scheduled/Aggressive/Emergency/Manual cleanup tiers.
//
// Grounded on the teacher's main.go checkDiskSpace (a single unix.Statfs
// call gating the poll loop), generalized into a standing accounting
// singleton plus tiered cleanup; the teacher never cleaned anything up, it
// only refused to dispatch when the filesystem was nearly full.
package diskgov

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"

	"videoconv/pkg/notify"
	"videoconv/pkg/retention"
	"videoconv/pkg/store"
)

const (
	monitorStartupDelay = 10 * time.Second
	monitorInterval      = 30 * time.Second
	scheduledInterval    = time.Hour
	minQuotaBytes        = 1 << 30 // 1 GiB
)

// Config is the Governor's validated configuration (spec §4.6.1).
type Config struct {
	MaxTotalBytes  int64
	ReservedBytes  int64
	Enabled        bool

	ThresholdWarn       int
	ThresholdAggressive int
	ThresholdEmergency  int

	RetentionConvertedMin int
	RetentionDownloadedH  int
	RetentionTempH        int
	RetentionFailedD      int
	RetentionOrphanD      int
	RetentionLogD         int

	UploadPath string
	OutputPath string
	TempPath   string
	LogPath    string
}

func (c Config) Validate() error {
	if c.MaxTotalBytes < minQuotaBytes || c.ReservedBytes < minQuotaBytes {
		return fmt.Errorf("quota: max_total_bytes and reserved_bytes must each be >= 1 GiB")
	}
	if c.MaxTotalBytes <= c.ReservedBytes {
		return fmt.Errorf("quota: max_total_bytes must exceed reserved_bytes")
	}
	if !(c.ThresholdEmergency > c.ThresholdAggressive && c.ThresholdAggressive >= c.ThresholdWarn) {
		return fmt.Errorf("quota: thresholds must satisfy emergency > aggressive >= warn")
	}
	return nil
}

// SpaceCheck is check_space's result (spec §4.6.4).
type SpaceCheck struct {
	Sufficient bool
	Required   int64
	Available  int64
	Shortfall  int64
}

// Governor owns usage measurement, the monitoring loop, and cleanup.
type Governor struct {
	cfg       Config
	space     *store.SpaceStore
	jobs      *store.JobStore
	bus       *notify.Bus
	retention *retention.Tracker

	measureMu sync.Mutex
}

func New(cfg Config, space *store.SpaceStore, jobs *store.JobStore, bus *notify.Bus, rt *retention.Tracker) *Governor {
	return &Governor{cfg: cfg, space: space, jobs: jobs, bus: bus, retention: rt}
}

// Run starts the monitoring loop (30 s interval, 10 s startup delay) and
// the scheduled cleanup timer (1 h). It blocks until ctx is done.
func (g *Governor) Run(ctx context.Context) {
	select {
	case <-time.After(monitorStartupDelay):
	case <-ctx.Done():
		return
	}

	monitor := time.NewTicker(monitorInterval)
	defer monitor.Stop()
	scheduled := time.NewTicker(scheduledInterval)
	defer scheduled.Stop()

	g.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-monitor.C:
			g.tick(ctx)
		case <-scheduled.C:
			if _, err := g.Cleanup(ctx, TierScheduled, CleanupFlags{All: true}); err != nil {
				log.Error("diskgov: scheduled cleanup failed", "err", err)
			}
		}
	}
}

func (g *Governor) tick(ctx context.Context) {
	usage, err := g.Measure(ctx)
	if err != nil {
		log.Error("diskgov: usage measurement failed", "err", err)
		return
	}

	total := usage.Total()
	usedPercent := percent(total, g.cfg.MaxTotalBytes)
	available := g.availableBytes(total)

	g.bus.Publish(notify.GlobalGroup, notify.KindDiskSpaceUpdate, notify.DiskSpaceUpdate{
		UploadsBytes: usage.UploadsBytes, OutputsBytes: usage.OutputsBytes,
		TempBytes: usage.TempBytes, TotalBytes: g.cfg.MaxTotalBytes,
		AvailableBytes: available, UsedPercent: usedPercent,
	})

	switch {
	case usedPercent > float64(g.cfg.ThresholdEmergency):
		log.Warn("diskgov: usage above emergency threshold", "used_percent", usedPercent)
		g.bus.Publish(notify.GlobalGroup, notify.KindSpaceWarning, notify.SpaceWarning{
			Tier: "emergency", Message: "disk usage above emergency threshold",
			UsedPercent: usedPercent, AvailableBytes: available,
		})
		if _, err := g.Cleanup(ctx, TierEmergency, CleanupFlags{All: true}); err != nil {
			log.Error("diskgov: emergency cleanup failed", "err", err)
		}
	case usedPercent > float64(g.cfg.ThresholdAggressive):
		log.Warn("diskgov: usage above aggressive threshold", "used_percent", usedPercent)
		g.bus.Publish(notify.GlobalGroup, notify.KindSpaceWarning, notify.SpaceWarning{
			Tier: "aggressive", Message: "disk usage above aggressive threshold",
			UsedPercent: usedPercent, AvailableBytes: available,
		})
		if _, err := g.Cleanup(ctx, TierAggressive, CleanupFlags{All: true}); err != nil {
			log.Error("diskgov: aggressive cleanup failed", "err", err)
		}
	case usedPercent > float64(g.cfg.ThresholdWarn):
		log.Warn("diskgov: usage above warn threshold", "used_percent", usedPercent)
		g.bus.Publish(notify.GlobalGroup, notify.KindSpaceWarning, notify.SpaceWarning{
			Tier: "warn", Message: "disk usage above warn threshold",
			UsedPercent: usedPercent, AvailableBytes: available,
		})
	}
}

// availableBytes mirrors CheckSpace's accounting: quota minus tracked
// usage minus the reserved headroom, floored at zero.
func (g *Governor) availableBytes(usedTotal int64) int64 {
	available := g.cfg.MaxTotalBytes - usedTotal - g.cfg.ReservedBytes
	if available < 0 {
		return 0
	}
	return available
}

// Measure recursively sums the uploads/outputs/temp directory trees,
// serialized by a single mutex so only one full measurement runs at a
// time (spec §4.6.2), and commits the result as the new usage snapshot.
func (g *Governor) Measure(ctx context.Context) (store.Usage, error) {
	g.measureMu.Lock()
	defer g.measureMu.Unlock()

	uploads, err1 := dirSize(g.cfg.UploadPath)
	outputs, err2 := dirSize(g.cfg.OutputPath)
	temp, err3 := dirSize(g.cfg.TempPath)

	var merr *multierror.Error
	merr = multierror.Append(merr, err1, err2, err3)
	if err := merr.ErrorOrNil(); err != nil {
		log.Warn("diskgov: directory walk encountered errors", "err", err)
	}

	usage := store.Usage{UploadsBytes: uploads, OutputsBytes: outputs, TempBytes: temp}
	if err := g.space.SetUsage(ctx, usage); err != nil {
		return store.Usage{}, err
	}

	g.sanityCheckAgainstStatfs(usage)
	return usage, nil
}

// sanityCheckAgainstStatfs cross-checks the directory-tree sum against the
// filesystem's own used-space figure (grounded on the teacher's
// checkDiskSpace unix.Statfs call, generalized from a one-shot admission
// gate into a standing sanity signal). It only logs a warning, and only
// when the tracked total exceeds the filesystem's used bytes by more than
// minQuotaBytes; a tree-sum below the filesystem's usage is not reported.
func (g *Governor) sanityCheckAgainstStatfs(usage store.Usage) {
	root := g.cfg.OutputPath
	if root == "" {
		root = g.cfg.UploadPath
	}
	if root == "" {
		return
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(root, &stat); err != nil {
		log.Warn("diskgov: statfs sanity check failed", "path", root, "err", err)
		return
	}
	fsTotal := int64(stat.Blocks) * int64(stat.Bsize)
	fsAvailable := int64(stat.Bavail) * int64(stat.Bsize)
	fsUsed := fsTotal - fsAvailable
	if fsTotal <= 0 {
		return
	}
	trackedTotal := usage.Total()
	if trackedTotal > fsUsed && trackedTotal-fsUsed > minQuotaBytes {
		log.Warn("diskgov: tracked usage exceeds filesystem-reported usage",
			"tracked_bytes", trackedTotal, "filesystem_used_bytes", fsUsed, "path", root)
	}
}

func dirSize(root string) (int64, error) {
	if root == "" {
		return 0, nil
	}
	var total int64
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
		total += info.Size()
		return nil
	})
	return total, err
}

// CheckSpace implements check_space(required_bytes) (spec §4.6.4).
func (g *Governor) CheckSpace(ctx context.Context, requiredBytes int64) (SpaceCheck, error) {
	if !g.cfg.Enabled {
		return SpaceCheck{Sufficient: true, Required: requiredBytes}, nil
	}
	usage, err := g.space.GetUsage(ctx)
	if err != nil {
		return SpaceCheck{}, err
	}
	available := g.cfg.MaxTotalBytes - usage.Total() - g.cfg.ReservedBytes
	if available < 0 {
		available = 0
	}
	sc := SpaceCheck{Required: requiredBytes, Available: available}
	if available >= requiredBytes {
		sc.Sufficient = true
	} else {
		sc.Shortfall = requiredBytes - available
	}
	return sc, nil
}

// CheckBatchSpace aggregates an estimated requirement against available
// space and publishes BatchSpaceWarning to the batch's group when usage
// exceeds 85% or the requirement exceeds what's available (spec §4.6.4).
func (g *Governor) CheckBatchSpace(ctx context.Context, batchID string, estimatedBytes int64) (SpaceCheck, error) {
	sc, err := g.CheckSpace(ctx, estimatedBytes)
	if err != nil {
		return SpaceCheck{}, err
	}
	usage, err := g.space.GetUsage(ctx)
	if err != nil {
		return SpaceCheck{}, err
	}
	usedPercent := percent(usage.Total(), g.cfg.MaxTotalBytes)
	if usedPercent > 85 || !sc.Sufficient {
		g.bus.Publish(batchID, notify.KindBatchSpaceWarning, notify.BatchSpaceWarning{
			BatchID: batchID, Message: "batch estimate approaches available disk space",
			EstimatedBytes: estimatedBytes, AvailableBytes: sc.Available, UsedPercent: usedPercent,
		})
	}
	return sc, nil
}

func percent(used, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(used) / float64(total) * 100
}
