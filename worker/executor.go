// Package worker provides the job execution engine: an Executor that
// invokes registered handlers through middleware, and a Pool that runs a
// fixed number of slots claiming jobs of one type.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/jobq/ext"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/middleware"
)

// Executor runs a single claimed job through middleware and its handler,
// then records the terminal outcome in the store and emits lifecycle
// events.
type Executor struct {
	extensions *ext.Registry
	store      job.Store
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor. The given middleware run outermost
// first; Recover is always installed innermost so a panicking handler
// becomes a failed job instead of a dead slot.
func NewExecutor(
	store job.Store,
	extensions *ext.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	chain := make([]middleware.Middleware, 0, len(mws)+1)
	chain = append(chain, mws...)
	chain = append(chain, middleware.Recover(logger))

	return &Executor{
		extensions: extensions,
		store:      store,
		mw:         middleware.Chain(chain...),
		logger:     logger,
	}
}

// Execute runs j with h. j must already be active.
// On success: marks completed, emits JobCompleted.
// On handler error or fault: marks failed with the error text, emits JobFailed.
//
// The returned error is the handler's error, or the store error if the
// outcome could not be recorded.
func (e *Executor) Execute(ctx context.Context, j *job.Job, h job.HandlerFunc) error {
	start := time.Now()
	reporter := &progressReporter{store: e.store, extensions: e.extensions, job: j}

	// The terminal handler that calls the registered job handler.
	terminal := func(ctx context.Context) (string, error) {
		return h(ctx, j.Payload, reporter)
	}

	result, err := e.mw(ctx, j, terminal)
	elapsed := time.Since(start)

	if err != nil {
		return e.handleFailure(ctx, j, err)
	}
	return e.handleSuccess(ctx, j, result, elapsed)
}

// handleSuccess marks the job as completed and emits the lifecycle event.
func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, result string, elapsed time.Duration) error {
	if err := e.store.Complete(ctx, j.ID, result); err != nil {
		e.logger.Error("failed to record job completion",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.String("error", err.Error()),
		)
		return err
	}

	now := time.Now().UTC()
	j.Status = job.StatusCompleted
	j.Result = result
	j.FinishedAt = &now
	j.UpdatedAt = now

	e.extensions.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

// handleFailure marks the job as failed with the handler's reason. Failure
// is terminal; a new attempt needs an explicit requeue.
func (e *Executor) handleFailure(ctx context.Context, j *job.Job, handlerErr error) error {
	reason := handlerErr.Error()
	if err := e.store.Fail(ctx, j.ID, reason); err != nil {
		e.logger.Error("failed to record job failure",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.String("error", err.Error()),
		)
		return err
	}

	now := time.Now().UTC()
	j.Status = job.StatusFailed
	j.Error = reason
	j.FinishedAt = &now
	j.UpdatedAt = now

	e.extensions.EmitJobFailed(ctx, j, handlerErr)
	return handlerErr
}

// progressReporter is the job.Reporter handed to a handler. It is bound to
// one job and writes through the store.
type progressReporter struct {
	store      job.Store
	extensions *ext.Registry
	job        *job.Job
}

func (r *progressReporter) Report(ctx context.Context, completed, total int64, label string) error {
	p := job.Progress{Completed: completed, Total: total, Label: label}
	if err := r.store.UpdateProgress(ctx, r.job.ID, p); err != nil {
		return err
	}
	r.extensions.EmitJobProgress(ctx, r.job, p)
	return nil
}
