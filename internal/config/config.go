package config

import (
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultDatabasePath is the default path of the catalogue database
	DefaultDatabasePath = "./epubshelf.db"

	// DefaultCoversDir is where extracted covers are written
	DefaultCoversDir = "covers"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Library
		Covers
		Pipeline
		Log
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Library struct {
		Path         string
		ScanEnabled  bool
		ScanSchedule string // Cron format: "0 * * * *" = hourly
	}
	Covers struct {
		Dir            string
		ThumbnailWidth int // 0 disables thumbnails
	}
	Pipeline struct {
		PoolSize      int
		RenderTimeout time.Duration
	}
	Log struct {
		Level string
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

// LoadEnvFiles loads variables from the given dotenv files. Missing files are
// ignored and variables already set in the environment win.
func LoadEnvFiles(files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8080)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("library_path", "")
	v.SetDefault("library_scan_enabled", false)
	v.SetDefault("library_scan_schedule", "0 * * * *") // Hourly at :00
	v.SetDefault("covers_dir", DefaultCoversDir)
	v.SetDefault("cover_thumbnail_width", 300)
	v.SetDefault("worker_pool_size", runtime.NumCPU())
	v.SetDefault("render_timeout", "60s")
	v.SetDefault("log_level", "info")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Library: Library{
			Path:         v.GetString("LIBRARY_PATH"),
			ScanEnabled:  v.GetBool("LIBRARY_SCAN_ENABLED"),
			ScanSchedule: v.GetString("LIBRARY_SCAN_SCHEDULE"),
		},
		Covers: Covers{
			Dir:            v.GetString("COVERS_DIR"),
			ThumbnailWidth: v.GetInt("COVER_THUMBNAIL_WIDTH"),
		},
		Pipeline: Pipeline{
			PoolSize:      v.GetInt("WORKER_POOL_SIZE"),
			RenderTimeout: v.GetDuration("RENDER_TIMEOUT"),
		},
		Log: Log{
			Level: v.GetString("LOG_LEVEL"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}
}
