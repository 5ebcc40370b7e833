package health

import (
	"context"
	"log/slog"
	"time"
)

// FailureAlert reports a job type whose failed count exceeded its threshold.
type FailureAlert struct {
	Type      string
	Count     int64
	Threshold int64
	Window    int
	At        time.Time
}

// BacklogAlert reports a job type whose pending count exceeded its threshold.
type BacklogAlert struct {
	Type      string
	Count     int64
	Threshold int64
	Window    int
	At        time.Time
}

// AlertSink receives threshold alerts. Implementations must not block for
// long; the monitor calls them synchronously during a scan.
type AlertSink interface {
	OnFailureAlert(ctx context.Context, a FailureAlert)
	OnBacklogAlert(ctx context.Context, a BacklogAlert)
}

// ──────────────────────────────────────────────────
// Sinks
// ──────────────────────────────────────────────────

// LogSink writes alerts to a structured logger at warn level.
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink returns a LogSink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

// OnFailureAlert logs the alert.
func (s *LogSink) OnFailureAlert(_ context.Context, a FailureAlert) {
	s.Logger.Warn("job failure threshold exceeded",
		slog.String("job_type", a.Type),
		slog.Int64("failed", a.Count),
		slog.Int64("threshold", a.Threshold),
		slog.Int("window", a.Window),
	)
}

// OnBacklogAlert logs the alert.
func (s *LogSink) OnBacklogAlert(_ context.Context, a BacklogAlert) {
	s.Logger.Warn("job backlog threshold exceeded",
		slog.String("job_type", a.Type),
		slog.Int64("pending", a.Count),
		slog.Int64("threshold", a.Threshold),
		slog.Int("window", a.Window),
	)
}

// MultiSink fans every alert out to each sink in order.
type MultiSink []AlertSink

// OnFailureAlert forwards a to every sink.
func (m MultiSink) OnFailureAlert(ctx context.Context, a FailureAlert) {
	for _, s := range m {
		s.OnFailureAlert(ctx, a)
	}
}

// OnBacklogAlert forwards a to every sink.
func (m MultiSink) OnBacklogAlert(ctx context.Context, a BacklogAlert) {
	for _, s := range m {
		s.OnBacklogAlert(ctx, a)
	}
}

// FuncSink adapts two functions to AlertSink. Nil functions are skipped.
type FuncSink struct {
	Failure func(ctx context.Context, a FailureAlert)
	Backlog func(ctx context.Context, a BacklogAlert)
}

// OnFailureAlert calls f.Failure when set.
func (f FuncSink) OnFailureAlert(ctx context.Context, a FailureAlert) {
	if f.Failure != nil {
		f.Failure(ctx, a)
	}
}

// OnBacklogAlert calls f.Backlog when set.
func (f FuncSink) OnBacklogAlert(ctx context.Context, a BacklogAlert) {
	if f.Backlog != nil {
		f.Backlog(ctx, a)
	}
}
