package scheduler

import (
	"time"

	"github.com/smallbiznis/roomwatt/internal/config"
)

// Config controls scheduler intervals and which jobs run.
type Config struct {
	RunInterval           time.Duration
	JobTimeout            time.Duration
	EnabledJobs           []string
	IncludePreviousPeriod bool
}

func DefaultConfig() Config {
	return Config{
		RunInterval:           time.Hour,
		JobTimeout:            5 * time.Minute,
		IncludePreviousPeriod: true,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:           cfg.Scheduler.RunInterval,
		JobTimeout:            cfg.Scheduler.JobTimeout,
		EnabledJobs:           cfg.Scheduler.EnabledJobs,
		IncludePreviousPeriod: cfg.Scheduler.IncludePreviousPeriod,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
