package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"videoconv/pkg/config"
	"videoconv/pkg/diskgov"
	"videoconv/pkg/dispatcher"
	"videoconv/pkg/httpapi"
	"videoconv/pkg/notify"
	"videoconv/pkg/retention"
	"videoconv/pkg/runner"
	"videoconv/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("signal received, shutting down gracefully... (press Ctrl+C again to force exit)", "signal", sig)
		cancel()

		sig = <-sigCh
		log.Error("second signal received, forcing immediate exit", "signal", sig)
		os.Exit(1)
	}()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open database", "error", err)
	}
	defer db.Close()
	log.Info("database connected", "max_conns", db.Stats().MaxOpenConnections)

	for _, dir := range []string{cfg.UploadPath, cfg.OutputPath, cfg.TempPath, cfg.LogPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal("create data directory", "path", dir, "error", err)
		}
	}

	jobs := store.NewJobStore(db)
	batches := store.NewBatchStore(db)
	downloads := store.NewDownloadStore(db)
	space := store.NewSpaceStore(db)

	bus := notify.NewBus()

	retentionTracker := retention.New(downloads, bus)
	go retentionTracker.Run(ctx)

	governor := diskgov.New(diskgov.Config{
		MaxTotalBytes: cfg.QuotaMaxBytes, ReservedBytes: cfg.QuotaReservedBytes, Enabled: cfg.QuotaEnabled,
		ThresholdWarn: cfg.ThresholdWarn, ThresholdAggressive: cfg.ThresholdAggressive, ThresholdEmergency: cfg.ThresholdEmergency,
		RetentionConvertedMin: cfg.RetentionConvertedMin, RetentionDownloadedH: cfg.RetentionDownloadedH,
		RetentionTempH: cfg.RetentionTempH, RetentionFailedD: cfg.RetentionFailedD,
		RetentionOrphanD: cfg.RetentionOrphanD, RetentionLogD: cfg.RetentionLogD,
		UploadPath: cfg.UploadPath, OutputPath: cfg.OutputPath, TempPath: cfg.TempPath, LogPath: cfg.LogPath,
	}, space, jobs, bus, retentionTracker)
	go governor.Run(ctx)

	r := runner.New(jobs, bus, cfg.FFmpegPath, cfg.FFprobePath)
	r.WorkDir = cfg.TempPath

	dp := dispatcher.New(jobs, batches, r, cfg.MaxConcurrentConversions, time.Duration(cfg.QueueCheckIntervalSeconds)*time.Second)
	go dp.Run(ctx)

	srv := &httpapi.Server{
		Jobs: jobs, Batches: batches, Dispatcher: dp, Governor: governor,
		Bus: bus, Retention: retentionTracker, OutputPath: cfg.OutputPath,
	}
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.NewRouter()}

	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", "error", err)
	}
	dp.Shutdown()
	log.Info("shutdown complete")
}
