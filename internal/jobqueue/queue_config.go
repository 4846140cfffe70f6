/*
Package jobqueue configuration - tunable parameters for the River job queue.

The queue runs a single periodic job, persona_dispatch, which wakes the
persona population on a cron schedule. Tune:

  - Cron for how often personas get a chance to act
  - MaxWorkers for how many dispatch jobs may overlap (1 keeps ticks serial)
  - JobTimeout to bound a whole dispatch, including every model call in it
*/
package jobqueue

import (
	"time"

	"github.com/riverqueue/river"

	"github.com/notsingle/internal/config"
)

// QueueConfig holds all configurable parameters for the job queue
type QueueConfig struct {
	MaxWorkers int           // concurrent dispatch jobs (default: 1)
	JobTimeout time.Duration // maximum time a single dispatch can run (default: 10 minutes)
	Cron       string        // five-field cron expression for the periodic dispatch
	RunOnStart bool          // dispatch once as soon as the worker starts
	MaxRetries int           // attempts per dispatch job; the next tick is the retry
}

// DefaultQueueConfig returns the default configuration
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers: 1,
		JobTimeout: 10 * time.Minute,
		Cron:       "*/15 * * * *",
		RunOnStart: true,
		MaxRetries: 1,
	}
}

// QueueConfigFromAppConfig overlays the [schedule] section on the defaults
func QueueConfigFromAppConfig(cfg *config.Config) *QueueConfig {
	qc := DefaultQueueConfig()
	if cfg == nil {
		return qc
	}
	if cfg.Schedule.Cron != "" {
		qc.Cron = cfg.Schedule.Cron
	}
	if cfg.Schedule.Workers > 0 {
		qc.MaxWorkers = cfg.Schedule.Workers
	}
	if cfg.Schedule.JobTimeout > 0 {
		qc.JobTimeout = cfg.Schedule.JobTimeout
	}
	return qc
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}
