// Package ext lets code outside the queue observe it. An extension is any
// value with a Name; it receives an event by implementing the matching hook
// interface below and is otherwise left alone.
//
//	type pager struct{}
//
//	func (pager) Name() string { return "pager" }
//
//	func (pager) OnBacklogAlert(ctx context.Context, a health.BacklogAlert) error {
//		return page(ctx, "%s backlog at %d", a.Type, a.Count)
//	}
//
// Hook errors are logged by the Registry and never reach the queue.
package ext

import (
	"context"
	"time"

	"github.com/xraph/jobq/health"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	Name() string
}

// JobEnqueued fires after a job is stored as pending.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobRequeued fires after Requeue stores j as a copy of the failed job from.
type JobRequeued interface {
	OnJobRequeued(ctx context.Context, j *job.Job, from id.JobID) error
}

// JobStarted fires when a worker slot claims j.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobProgress fires after a progress report is persisted.
type JobProgress interface {
	OnJobProgress(ctx context.Context, j *job.Job, p job.Progress) error
}

// JobCompleted fires after j is stored as completed.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed fires after j is stored as failed.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// FailureAlert fires when a type's failed count crosses its threshold.
type FailureAlert interface {
	OnFailureAlert(ctx context.Context, a health.FailureAlert) error
}

// BacklogAlert fires when a type's pending count crosses its threshold.
type BacklogAlert interface {
	OnBacklogAlert(ctx context.Context, a health.BacklogAlert) error
}

// Shutdown fires once while the queue manager shuts down.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
