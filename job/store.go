package job

import (
	"context"

	"github.com/xraph/jobq/id"
)

// Order selects the creation-time direction of a range scan.
type Order int

const (
	// OrderAsc returns the oldest jobs first.
	OrderAsc Order = iota
	// OrderDesc returns the newest jobs first.
	OrderDesc
)

// RangeOpts controls pagination for RangeByTypeAndStatus.
type RangeOpts struct {
	// Offset is the number of jobs to skip.
	Offset int
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Order is the creation-time ordering. Ties are broken by insertion order.
	Order Order
}

// Normalize clamps a negative Offset to 0 and a negative Limit to 0 (no
// limit). Every backend applies it so they agree on out-of-range input.
func (o RangeOpts) Normalize() RangeOpts {
	o.Offset = max(o.Offset, 0)
	o.Limit = max(o.Limit, 0)
	return o
}

// Store defines the persistence contract for jobs. Every mutation is
// atomic; ClaimNext is the only serialization point between worker slots.
//
// Storage-layer failures are returned as *jobq.StoreError. Unknown IDs
// yield jobq.ErrJobNotFound and disallowed transitions yield an error
// matching jobq.ErrInvalidState.
type Store interface {
	// Insert persists j as pending, assigning its ID when nil and setting
	// CreatedAt. It returns the job ID.
	Insert(ctx context.Context, j *Job) (id.JobID, error)

	// ClaimNext atomically moves the oldest pending job of jobType to
	// active, recording workerID and StartedAt. It returns nil, nil when
	// no pending job exists. At most one concurrent caller wins a job.
	ClaimNext(ctx context.Context, jobType string, workerID id.WorkerID) (*Job, error)

	// UpdateProgress records progress for an active job.
	UpdateProgress(ctx context.Context, jobID id.JobID, p Progress) error

	// Complete moves an active job to completed with an optional result note.
	Complete(ctx context.Context, jobID id.JobID, result string) error

	// Fail moves an active job to failed with the given reason.
	Fail(ctx context.Context, jobID id.JobID, reason string) error

	// Get returns a snapshot of the job.
	Get(ctx context.Context, jobID id.JobID) (*Job, error)

	// RangeByTypeAndStatus is a read-only scan ordered by creation time.
	RangeByTypeAndStatus(ctx context.Context, jobType string, status Status, opts RangeOpts) ([]*Job, error)

	// CountByTypeAndStatus counts matching jobs, capped at window when
	// window is positive.
	CountByTypeAndStatus(ctx context.Context, jobType string, status Status, window int) (int64, error)

	// Ping checks store connectivity.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store.
	Close() error
}
