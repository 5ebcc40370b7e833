package ext

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobq/health"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

type hooked[H any] struct {
	ext  string
	hook H
}

// collect appends e to list when it implements H.
func collect[H any](list []hooked[H], e Extension) []hooked[H] {
	if h, ok := e.(H); ok {
		return append(list, hooked[H]{ext: e.Name(), hook: h})
	}
	return list
}

// Registry fans queue and health events out to extensions. Each hook list is
// resolved once at Register time, so an emit touches only the extensions
// that implement that hook, in registration order.
//
// Register everything before the queue starts. Emits are then safe from
// any goroutine. A hook that errors or panics is logged and skipped.
type Registry struct {
	logger     *slog.Logger
	extensions []Extension

	enqueued  []hooked[JobEnqueued]
	requeued  []hooked[JobRequeued]
	started   []hooked[JobStarted]
	progress  []hooked[JobProgress]
	completed []hooked[JobCompleted]
	failed    []hooked[JobFailed]
	failures  []hooked[FailureAlert]
	backlogs  []hooked[BacklogAlert]
	shutdown  []hooked[Shutdown]
}

// NewRegistry returns an empty registry. A nil logger uses slog.Default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds e.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	r.enqueued = collect(r.enqueued, e)
	r.requeued = collect(r.requeued, e)
	r.started = collect(r.started, e)
	r.progress = collect(r.progress, e)
	r.completed = collect(r.completed, e)
	r.failed = collect(r.failed, e)
	r.failures = collect(r.failures, e)
	r.backlogs = collect(r.backlogs, e)
	r.shutdown = collect(r.shutdown, e)
}

// Extensions returns every registered extension.
func (r *Registry) Extensions() []Extension { return r.extensions }

func dispatch[H any](ctx context.Context, r *Registry, name string, list []hooked[H], call func(H) error) {
	for _, h := range list {
		if err := safeCall(h.hook, call); err != nil {
			r.logger.WarnContext(ctx, "extension hook error",
				slog.String("hook", name),
				slog.String("extension", h.ext),
				slog.String("error", err.Error()),
			)
		}
	}
}

func safeCall[H any](h H, call func(H) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return call(h)
}

// EmitJobEnqueued runs OnJobEnqueued hooks.
func (r *Registry) EmitJobEnqueued(ctx context.Context, j *job.Job) {
	dispatch(ctx, r, "OnJobEnqueued", r.enqueued, func(h JobEnqueued) error {
		return h.OnJobEnqueued(ctx, j)
	})
}

// EmitJobRequeued runs OnJobRequeued hooks.
func (r *Registry) EmitJobRequeued(ctx context.Context, j *job.Job, from id.JobID) {
	dispatch(ctx, r, "OnJobRequeued", r.requeued, func(h JobRequeued) error {
		return h.OnJobRequeued(ctx, j, from)
	})
}

// EmitJobStarted runs OnJobStarted hooks.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	dispatch(ctx, r, "OnJobStarted", r.started, func(h JobStarted) error {
		return h.OnJobStarted(ctx, j)
	})
}

// EmitJobProgress runs OnJobProgress hooks.
func (r *Registry) EmitJobProgress(ctx context.Context, j *job.Job, p job.Progress) {
	dispatch(ctx, r, "OnJobProgress", r.progress, func(h JobProgress) error {
		return h.OnJobProgress(ctx, j, p)
	})
}

// EmitJobCompleted runs OnJobCompleted hooks.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	dispatch(ctx, r, "OnJobCompleted", r.completed, func(h JobCompleted) error {
		return h.OnJobCompleted(ctx, j, elapsed)
	})
}

// EmitJobFailed runs OnJobFailed hooks.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	dispatch(ctx, r, "OnJobFailed", r.failed, func(h JobFailed) error {
		return h.OnJobFailed(ctx, j, jobErr)
	})
}

// EmitFailureAlert runs OnFailureAlert hooks.
func (r *Registry) EmitFailureAlert(ctx context.Context, a health.FailureAlert) {
	dispatch(ctx, r, "OnFailureAlert", r.failures, func(h FailureAlert) error {
		return h.OnFailureAlert(ctx, a)
	})
}

// EmitBacklogAlert runs OnBacklogAlert hooks.
func (r *Registry) EmitBacklogAlert(ctx context.Context, a health.BacklogAlert) {
	dispatch(ctx, r, "OnBacklogAlert", r.backlogs, func(h BacklogAlert) error {
		return h.OnBacklogAlert(ctx, a)
	})
}

// EmitShutdown runs OnShutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", r.shutdown, func(h Shutdown) error {
		return h.OnShutdown(ctx)
	})
}

// AlertSink adapts the registry to health.AlertSink so the monitor can
// deliver alerts to extensions.
func (r *Registry) AlertSink() health.AlertSink { return alertSink{r} }

type alertSink struct{ r *Registry }

func (s alertSink) OnFailureAlert(ctx context.Context, a health.FailureAlert) {
	s.r.EmitFailureAlert(ctx, a)
}

func (s alertSink) OnBacklogAlert(ctx context.Context, a health.BacklogAlert) {
	s.r.EmitBacklogAlert(ctx, a)
}
