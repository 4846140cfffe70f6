package batch

import (
	"github.com/notsingle/internal/config"
)

// Config holds configuration for batch processing
type Config struct {
	MaxWorkers int // 0 runs one worker per awake persona
}

// DefaultConfig returns a default configuration for batch processing
func DefaultConfig() Config {
	return Config{MaxWorkers: 0}
}

// ConfigFromAppConfig reads the [batch] section of the application config
func ConfigFromAppConfig(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg != nil && cfg.Batch.MaxWorkers > 0 {
		c.MaxWorkers = cfg.Batch.MaxWorkers
	}
	return c
}

// ConfigureTaskQueue configures a TaskQueue based on Config
func ConfigureTaskQueue(cfg Config) *TaskQueue {
	return NewTaskQueue(cfg.MaxWorkers)
}
