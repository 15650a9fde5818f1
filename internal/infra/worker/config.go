// Package worker provides the runtime scaffolding for the enrichment sweep
// worker: configuration, health endpoints and Prometheus metrics.
package worker

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// WorkerConfig holds the scheduling and operational settings of the sweep
// worker. Loading is fail-open: an invalid value logs a warning and falls
// back to the default so a typo in the environment never keeps the worker
// from starting.
type WorkerConfig struct {
	// CronSchedule is the standard 5-field cron expression for the
	// enrichment sweep. Env: CRON_SCHEDULE. Default: every 15 minutes.
	CronSchedule string

	// Timezone is the IANA timezone the schedule is evaluated in.
	// Env: WORKER_TIMEZONE. Default: Asia/Bangkok.
	Timezone string

	// SweepTimeout bounds a single sweep run. Env: SWEEP_TIMEOUT.
	// Default: 10m.
	SweepTimeout time.Duration

	// HealthPort is the port the health check server listens on.
	// Env: WORKER_HEALTH_PORT. Default: 9091.
	HealthPort int
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() *WorkerConfig {
	return &WorkerConfig{
		CronSchedule: "*/15 * * * *",
		Timezone:     "Asia/Bangkok",
		SweepTimeout: 10 * time.Minute,
		HealthPort:   9091,
	}
}

// LoadConfigFromEnv reads the worker configuration from environment
// variables, falling back to defaults for unset or invalid values.
func LoadConfigFromEnv(logger *slog.Logger) *WorkerConfig {
	cfg := DefaultConfig()

	if schedule := os.Getenv("CRON_SCHEDULE"); schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			logger.Warn("invalid cron schedule, using default",
				slog.String("value", schedule),
				slog.String("default", cfg.CronSchedule),
				slog.Any("error", err))
		} else {
			cfg.CronSchedule = schedule
		}
	}

	if tz := os.Getenv("WORKER_TIMEZONE"); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			logger.Warn("invalid timezone, using default",
				slog.String("value", tz),
				slog.String("default", cfg.Timezone),
				slog.Any("error", err))
		} else {
			cfg.Timezone = tz
		}
	}

	if timeout := os.Getenv("SWEEP_TIMEOUT"); timeout != "" {
		if val, err := time.ParseDuration(timeout); err != nil || val <= 0 {
			logger.Warn("invalid sweep timeout, using default",
				slog.String("value", timeout),
				slog.Duration("default", cfg.SweepTimeout))
		} else {
			cfg.SweepTimeout = val
		}
	}

	if port := os.Getenv("WORKER_HEALTH_PORT"); port != "" {
		if val, err := strconv.Atoi(port); err != nil || val < 1024 || val > 65535 {
			logger.Warn("invalid health port, using default",
				slog.String("value", port),
				slog.Int("default", cfg.HealthPort))
		} else {
			cfg.HealthPort = val
		}
	}

	return cfg
}
