package audithook

import (
	"context"
	"log/slog"
	"time"
)

// Severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	Action   string    `json:"action"`
	Resource string    `json:"resource"`
	Category string    `json:"category"`
	At       time.Time `json:"at"`

	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

var severityLevel = map[string]slog.Level{
	SeverityInfo:     slog.LevelInfo,
	SeverityWarning:  slog.LevelWarn,
	SeverityCritical: slog.LevelError,
}

// NewLogRecorder writes each event as an "audit" log record. Severity picks
// the level; metadata keys become attributes.
func NewLogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		attrs := make([]slog.Attr, 0, 5+len(evt.Metadata))
		attrs = append(attrs,
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
		)
		if evt.Reason != "" {
			attrs = append(attrs, slog.String("reason", evt.Reason))
		}
		for k, v := range evt.Metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.LogAttrs(ctx, severityLevel[evt.Severity], "audit", attrs...)
		return nil
	})
}
