package jobq

import "time"

// Config holds configuration shared by the queue manager and its pools.
type Config struct {
	// DefaultConcurrency is used when a handler is registered through a
	// definition that does not set its own concurrency.
	DefaultConcurrency int `json:"default_concurrency" mapstructure:"default_concurrency"`

	// PollInterval is the upper bound of the idle backoff a worker slot
	// applies while its type has no pending jobs.
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval"`

	// MinPollInterval is the first idle wait after an empty claim. The wait
	// doubles on each consecutive empty claim up to PollInterval.
	MinPollInterval time.Duration `json:"min_poll_interval" mapstructure:"min_poll_interval"`

	// ShutdownTimeout is the default grace period used by Shutdown callers
	// that have no deadline of their own.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultConcurrency: 1,
		PollInterval:       1 * time.Second,
		MinPollInterval:    10 * time.Millisecond,
		ShutdownTimeout:    30 * time.Second,
	}
}
