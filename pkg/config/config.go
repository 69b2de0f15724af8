package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// Config holds every environment-tunable knob for the transcoding service:
// storage paths, admission limits, the ffmpeg toolchain, space quotas,
// retention windows, and notification throttling (spec §6.4).
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`

	UploadPath        string   `env:"UPLOAD_PATH,default=./data/uploads"`
	OutputPath        string   `env:"OUTPUT_PATH,default=./data/outputs"`
	TempPath          string   `env:"TEMP_PATH,default=./data/temp"`
	LogPath           string   `env:"LOG_PATH,default=./data/logs"`
	MaxFileSize       int64    `env:"MAX_FILE_SIZE,default=10737418240"`
	AllowedExtensions []string `env:"ALLOWED_EXTENSIONS,default=.mp4,.mov,.mkv,.avi,.webm,.flv,.m4v"`

	FFmpegPath  string `env:"FFMPEG_PATH,default=ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH,default=ffprobe"`

	MaxConcurrentConversions  int `env:"MAX_CONCURRENT_CONVERSIONS,default=0"`
	QueueCheckIntervalSeconds int `env:"QUEUE_CHECK_INTERVAL_SECONDS,default=10"`
	CleanupIntervalMinutes    int `env:"CLEANUP_INTERVAL_MINUTES,default=60"`

	QuotaMaxBytes      int64 `env:"QUOTA_MAX_BYTES,default=107374182400"`
	QuotaReservedBytes int64 `env:"QUOTA_RESERVED_BYTES,default=5368709120"`
	QuotaEnabled       bool  `env:"QUOTA_ENABLED,default=true"`

	ThresholdWarn       int `env:"THRESHOLD_WARN,default=80"`
	ThresholdAggressive int `env:"THRESHOLD_AGGRESSIVE,default=90"`
	ThresholdEmergency  int `env:"THRESHOLD_EMERGENCY,default=95"`

	RetentionConvertedMin int `env:"RETENTION_CONVERTED_MIN,default=5"`
	RetentionDownloadedH  int `env:"RETENTION_DOWNLOADED_H,default=24"`
	RetentionTempH        int `env:"RETENTION_TEMP_H,default=2"`
	RetentionFailedD      int `env:"RETENTION_FAILED_D,default=7"`
	RetentionOrphanD      int `env:"RETENTION_ORPHAN_D,default=1"`
	RetentionLogD         int `env:"RETENTION_LOG_D,default=30"`

	ProgressUpdateIntervalMs     int   `env:"PROGRESS_UPDATE_INTERVAL_MS,default=200"`
	ProgressUpdateThresholdBytes int64 `env:"PROGRESS_UPDATE_THRESHOLD_BYTES,default=5242880"`
}

func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
