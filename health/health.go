package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/jobq/job"
)

// Source is what the monitor reads: the set of job types and windowed
// per-status counts. queue.Manager satisfies it.
type Source interface {
	Types() []string
	CountByTypeAndStatus(ctx context.Context, jobType string, status job.Status, window int) (int64, error)
}

// TypeHealth is the outcome of one scan for one job type.
type TypeHealth struct {
	Type         string     `json:"type"`
	Failed       int64      `json:"failed"`
	Pending      int64      `json:"pending"`
	Thresholds   Thresholds `json:"thresholds"`
	FailureAlert bool       `json:"failure_alert"`
	BacklogAlert bool       `json:"backlog_alert"`
	Error        string     `json:"error,omitempty"`
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// intervalSchedule fires every d. Unlike cron's Every it keeps sub-second
// precision.
type intervalSchedule struct{ d time.Duration }

func (s intervalSchedule) Next(t time.Time) time.Time { return t.Add(s.d) }

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger for the monitor.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// WithClock overrides the clock used to stamp alerts.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// Monitor periodically scans job counts per type and raises alerts when a
// threshold is exceeded. It only reads; it never changes job state.
type Monitor struct {
	src      Source
	sink     AlertSink
	cfg      Config
	schedule cronlib.Schedule
	logger   *slog.Logger
	now      func() time.Time

	lastMu sync.RWMutex
	last   []TypeHealth
	lastAt time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Monitor. A nil sink logs alerts through the monitor's
// logger.
func New(src Source, sink AlertSink, cfg Config, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Monitor{
		src:    src,
		sink:   sink,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sink == nil {
		m.sink = NewLogSink(m.logger)
	}

	if cfg.Schedule != "" {
		sched, err := cronParser.Parse(cfg.Schedule)
		if err != nil {
			return nil, fmt.Errorf("health: parse schedule %q: %w", cfg.Schedule, err)
		}
		if sched.Next(time.Now()).IsZero() {
			return nil, fmt.Errorf("health: schedule %q never fires", cfg.Schedule)
		}
		m.schedule = sched
	} else {
		m.schedule = intervalSchedule{d: cfg.Interval}
	}
	return m, nil
}

// Scan checks every type once and delivers at most one alert of each
// kind per type. Count errors for one type do not stop the scan; they are
// joined into the returned error.
func (m *Monitor) Scan(ctx context.Context) ([]TypeHealth, error) {
	types := m.src.Types()
	results := make([]TypeHealth, 0, len(types))
	var errs []error

	for _, jobType := range types {
		th, err := m.scanType(ctx, jobType)
		if err != nil {
			th.Error = err.Error()
			errs = append(errs, fmt.Errorf("health: scan %q: %w", jobType, err))
		}
		results = append(results, th)
	}

	m.lastMu.Lock()
	m.last = results
	m.lastAt = m.now()
	m.lastMu.Unlock()

	return results, errors.Join(errs...)
}

func (m *Monitor) scanType(ctx context.Context, jobType string) (TypeHealth, error) {
	limits := m.cfg.ThresholdsFor(jobType)
	th := TypeHealth{Type: jobType, Thresholds: limits}

	failed, err := m.src.CountByTypeAndStatus(ctx, jobType, job.StatusFailed, m.cfg.Window)
	if err != nil {
		return th, err
	}
	th.Failed = failed

	pending, err := m.src.CountByTypeAndStatus(ctx, jobType, job.StatusPending, m.cfg.Window)
	if err != nil {
		return th, err
	}
	th.Pending = pending

	if failed > limits.Failure {
		th.FailureAlert = true
		m.sink.OnFailureAlert(ctx, FailureAlert{
			Type:      jobType,
			Count:     failed,
			Threshold: limits.Failure,
			Window:    m.cfg.Window,
			At:        m.now(),
		})
	}
	if pending > limits.Backlog {
		th.BacklogAlert = true
		m.sink.OnBacklogAlert(ctx, BacklogAlert{
			Type:      jobType,
			Count:     pending,
			Threshold: limits.Backlog,
			Window:    m.cfg.Window,
			At:        m.now(),
		})
	}
	return th, nil
}

// Last returns the results of the most recent scan and when it finished.
// The time is zero before the first scan.
func (m *Monitor) Last() ([]TypeHealth, time.Time) {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()
	return append([]TypeHealth(nil), m.last...), m.lastAt
}

// Start launches the scan loop. It returns immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel

	m.wg.Add(1)
	go m.loop(runCtx)

	m.logger.Info("health monitor started",
		slog.Duration("interval", m.cfg.Interval),
		slog.String("schedule", m.cfg.Schedule),
		slog.Int("window", m.cfg.Window),
	)
	return nil
}

// Stop signals the scan loop to stop and waits for it, or for ctx.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("health monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	for {
		now := time.Now()
		next := m.schedule.Next(now)
		if next.IsZero() {
			m.logger.Error("health schedule has no next run, scan loop exiting",
				slog.String("schedule", m.cfg.Schedule),
			)
			return
		}
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-m.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := m.Scan(ctx); err != nil {
			m.logger.Warn("health scan error", slog.String("error", err.Error()))
		}
	}
}
