package audithook

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/jobq/ext"
	"github.com/xraph/jobq/health"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

var (
	_ ext.Extension    = (*Extension)(nil)
	_ ext.JobEnqueued  = (*Extension)(nil)
	_ ext.JobRequeued  = (*Extension)(nil)
	_ ext.JobStarted   = (*Extension)(nil)
	_ ext.JobCompleted = (*Extension)(nil)
	_ ext.JobFailed    = (*Extension)(nil)
	_ ext.FailureAlert = (*Extension)(nil)
	_ ext.BacklogAlert = (*Extension)(nil)
)

// Extension writes one AuditEvent per job transition or alert.
type Extension struct {
	recorder Recorder
	only     map[string]bool
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Extension.
type Option func(*Extension)

// WithActions limits recording to the listed actions.
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		e.only = make(map[string]bool, len(actions))
		for _, a := range actions {
			e.only[a] = true
		}
	}
}

// WithLogger sets where recorder failures are reported.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// New returns an Extension recording through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

func (e *Extension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	evt := e.jobEvent(ActionJobEnqueued, j)
	evt.Metadata["payload_bytes"] = len(j.Payload)
	return e.emit(ctx, evt)
}

func (e *Extension) OnJobRequeued(ctx context.Context, j *job.Job, from id.JobID) error {
	evt := e.jobEvent(ActionJobRequeued, j)
	evt.Severity = SeverityWarning
	evt.Metadata["requeued_from"] = from.String()
	return e.emit(ctx, evt)
}

func (e *Extension) OnJobStarted(ctx context.Context, j *job.Job) error {
	evt := e.jobEvent(ActionJobStarted, j)
	evt.Metadata["worker_id"] = j.WorkerID.String()
	return e.emit(ctx, evt)
}

func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	evt := e.jobEvent(ActionJobCompleted, j)
	evt.Metadata["elapsed_ms"] = elapsed.Milliseconds()
	return e.emit(ctx, evt)
}

func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	evt := e.jobEvent(ActionJobFailed, j)
	evt.Severity = SeverityCritical
	evt.Outcome = OutcomeFailure
	evt.Reason = jobErr.Error()
	evt.Metadata["worker_id"] = j.WorkerID.String()
	return e.emit(ctx, evt)
}

func (e *Extension) OnFailureAlert(ctx context.Context, a health.FailureAlert) error {
	return e.emit(ctx, e.alertEvent(ActionAlertFailure, SeverityCritical, a.Type, a.Count, a.Threshold, a.Window))
}

func (e *Extension) OnBacklogAlert(ctx context.Context, a health.BacklogAlert) error {
	return e.emit(ctx, e.alertEvent(ActionAlertBacklog, SeverityWarning, a.Type, a.Count, a.Threshold, a.Window))
}

// jobEvent starts a successful info-level event about j.
func (e *Extension) jobEvent(action string, j *job.Job) *AuditEvent {
	return &AuditEvent{
		Action:     action,
		Resource:   ResourceJob,
		Category:   CategoryJob,
		At:         e.now(),
		ResourceID: j.ID.String(),
		Metadata:   map[string]any{"job_type": j.Type},
		Outcome:    OutcomeSuccess,
		Severity:   SeverityInfo,
	}
}

func (e *Extension) alertEvent(action, severity, jobType string, count, threshold int64, window int) *AuditEvent {
	return &AuditEvent{
		Action:     action,
		Resource:   ResourceJobType,
		Category:   CategoryAlert,
		At:         e.now(),
		ResourceID: jobType,
		Metadata: map[string]any{
			"count":     count,
			"threshold": threshold,
			"window":    window,
		},
		Outcome:  OutcomeFailure,
		Severity: severity,
	}
}

// emit hands evt to the recorder unless its action is filtered out. Recorder
// errors are logged; the hook itself always succeeds.
func (e *Extension) emit(ctx context.Context, evt *AuditEvent) error {
	if e.only != nil && !e.only[evt.Action] {
		return nil
	}
	if err := e.recorder.Record(ctx, evt); err != nil {
		e.logger.WarnContext(ctx, "audit_hook: failed to record audit event",
			slog.String("action", evt.Action),
			slog.String("resource_id", evt.ResourceID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
