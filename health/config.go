package health

import (
	"errors"
	"fmt"
	"time"
)

// Default scan settings.
const (
	DefaultInterval         = time.Minute
	DefaultWindow           = 10000
	DefaultFailureThreshold = 1000
	DefaultBacklogThreshold = 100
)

// Thresholds are the alert limits for one job type. An alert fires when a
// count is strictly greater than its threshold.
type Thresholds struct {
	Failure int64 `json:"failure" mapstructure:"failure"`
	Backlog int64 `json:"backlog" mapstructure:"backlog"`
}

// Override replaces the monitor-wide thresholds for one job type. A nil
// field keeps the default; an explicit 0 alerts on any matching job.
type Override struct {
	Failure *int64 `json:"failure,omitempty" mapstructure:"failure"`
	Backlog *int64 `json:"backlog,omitempty" mapstructure:"backlog"`
}

// Config configures a Monitor.
type Config struct {
	// Interval between scans. Ignored when Schedule is set.
	Interval time.Duration `json:"interval" mapstructure:"interval"`

	// Schedule is an optional cron expression ("*/5 * * * *",
	// "@every 30s") that replaces Interval.
	Schedule string `json:"schedule" mapstructure:"schedule"`

	// Window caps how many records of one type and status a scan counts.
	Window int `json:"window" mapstructure:"window"`

	// FailureThreshold and BacklogThreshold apply to every type without an
	// override.
	FailureThreshold int64 `json:"failure_threshold" mapstructure:"failure_threshold"`
	BacklogThreshold int64 `json:"backlog_threshold" mapstructure:"backlog_threshold"`

	// Overrides holds per-type thresholds.
	Overrides map[string]Override `json:"overrides" mapstructure:"overrides"`
}

// DefaultConfig returns a Config with sensible defaults: a scan every
// minute over a 10000-record window, alerting above 1000 failed or 100
// pending jobs.
func DefaultConfig() Config {
	return Config{
		Interval:         DefaultInterval,
		Window:           DefaultWindow,
		FailureThreshold: DefaultFailureThreshold,
		BacklogThreshold: DefaultBacklogThreshold,
	}
}

// ThresholdsFor returns the effective thresholds for jobType.
func (c Config) ThresholdsFor(jobType string) Thresholds {
	t := Thresholds{Failure: c.FailureThreshold, Backlog: c.BacklogThreshold}
	if o, ok := c.Overrides[jobType]; ok {
		if o.Failure != nil {
			t.Failure = *o.Failure
		}
		if o.Backlog != nil {
			t.Backlog = *o.Backlog
		}
	}
	return t
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.Schedule == "" && c.Interval <= 0 {
		errs = append(errs, errors.New("health: interval must be positive"))
	}
	if c.Window < 0 {
		errs = append(errs, errors.New("health: window must not be negative"))
	}
	if c.FailureThreshold < 0 || c.BacklogThreshold < 0 {
		errs = append(errs, errors.New("health: thresholds must not be negative"))
	}
	for jobType, o := range c.Overrides {
		if (o.Failure != nil && *o.Failure < 0) || (o.Backlog != nil && *o.Backlog < 0) {
			errs = append(errs, fmt.Errorf("health: negative threshold override for %q", jobType))
		}
	}
	return errors.Join(errs...)
}
