// Package memory implements store.Store in process memory. It is safe for
// concurrent use and intended for tests, development and single-process
// deployments that do not need durability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/store"
)

// Compile-time interface checks.
var (
	_ job.Store   = (*Store)(nil)
	_ store.Store = (*Store)(nil)
)

// Store is an in-memory store. A single mutex serializes mutations, which
// makes ClaimNext atomic.
type Store struct {
	mu sync.RWMutex

	jobs map[string]*job.Job
	// pending holds pending job IDs per type in insertion order.
	pending map[string][]string
	seq     int64

	now func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		jobs:    make(map[string]*job.Job),
		pending: make(map[string][]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// job.Store
// ──────────────────────────────────────────────────

// Insert persists j as pending.
func (s *Store) Insert(_ context.Context, j *job.Job) (id.JobID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.ID.IsNil() {
		j.ID = id.NewJobID()
	}
	key := j.ID.String()
	if _, exists := s.jobs[key]; exists {
		return id.Nil, jobq.ErrJobAlreadyExists
	}

	s.seq++
	now := s.now()
	j.Status = job.StatusPending
	j.Seq = s.seq
	j.CreatedAt = now
	j.UpdatedAt = now
	j.StartedAt = nil
	j.FinishedAt = nil
	j.WorkerID = id.Nil
	j.Error = ""
	j.Result = ""
	j.Progress = job.Progress{}

	s.jobs[key] = j.Clone()
	s.pending[j.Type] = append(s.pending[j.Type], key)
	return j.ID, nil
}

// ClaimNext pops the oldest pending job of jobType and marks it active.
func (s *Store) ClaimNext(_ context.Context, jobType string, workerID id.WorkerID) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.pending[jobType]
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]

		j, ok := s.jobs[key]
		if !ok || j.Status != job.StatusPending {
			continue
		}

		now := s.now()
		j.Status = job.StatusActive
		j.WorkerID = workerID
		j.StartedAt = &now
		j.UpdatedAt = now

		s.setQueue(jobType, queue)
		return j.Clone(), nil
	}
	s.setQueue(jobType, queue)
	return nil, nil
}

func (s *Store) setQueue(jobType string, queue []string) {
	if len(queue) == 0 {
		delete(s.pending, jobType)
		return
	}
	s.pending[jobType] = queue
}

// UpdateProgress records progress for an active job.
func (s *Store) UpdateProgress(_ context.Context, jobID id.JobID, p job.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.activeJob(jobID, "update progress of")
	if err != nil {
		return err
	}
	j.Progress = p
	j.UpdatedAt = s.now()
	return nil
}

// Complete moves an active job to completed.
func (s *Store) Complete(_ context.Context, jobID id.JobID, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.transition(jobID, job.StatusCompleted, "complete")
	if err != nil {
		return err
	}
	now := s.now()
	j.Status = job.StatusCompleted
	j.Result = result
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

// Fail moves an active job to failed.
func (s *Store) Fail(_ context.Context, jobID id.JobID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.transition(jobID, job.StatusFailed, "fail")
	if err != nil {
		return err
	}
	now := s.now()
	j.Status = job.StatusFailed
	j.Error = reason
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

// activeJob returns the live record for jobID if it is active. Callers
// must hold the write lock.
func (s *Store) activeJob(jobID id.JobID, op string) (*job.Job, error) {
	j, ok := s.jobs[jobID.String()]
	if !ok {
		return nil, jobq.ErrJobNotFound
	}
	if j.Status != job.StatusActive {
		return nil, &jobq.InvalidStateError{JobID: jobID.String(), Status: string(j.Status), Op: op}
	}
	return j, nil
}

// transition returns the live record for jobID if its status may move to
// to. Callers must hold the write lock.
func (s *Store) transition(jobID id.JobID, to job.Status, op string) (*job.Job, error) {
	j, ok := s.jobs[jobID.String()]
	if !ok {
		return nil, jobq.ErrJobNotFound
	}
	if !j.Status.CanTransition(to) {
		return nil, &jobq.InvalidStateError{JobID: jobID.String(), Status: string(j.Status), Op: op}
	}
	return j, nil
}

// Get returns a snapshot of the job.
func (s *Store) Get(_ context.Context, jobID id.JobID) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID.String()]
	if !ok {
		return nil, jobq.ErrJobNotFound
	}
	return j.Clone(), nil
}

// RangeByTypeAndStatus returns matching jobs ordered by creation time.
func (s *Store) RangeByTypeAndStatus(_ context.Context, jobType string, status job.Status, opts job.RangeOpts) ([]*job.Job, error) {
	opts = opts.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*job.Job, 0)
	for _, j := range s.jobs {
		if j.Type != jobType || j.Status != status {
			continue
		}
		result = append(result, j.Clone())
	}

	sort.Slice(result, func(i, k int) bool {
		a, b := result[i], result[k]
		if opts.Order == job.OrderDesc {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return []*job.Job{}, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// CountByTypeAndStatus counts matching jobs, capped at window.
func (s *Store) CountByTypeAndStatus(_ context.Context, jobType string, status job.Status, window int) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status == job.StatusPending {
		n := int64(len(s.pending[jobType]))
		if window > 0 && n > int64(window) {
			n = int64(window)
		}
		return n, nil
	}

	var n int64
	for _, j := range s.jobs {
		if j.Type != jobType || j.Status != status {
			continue
		}
		n++
		if window > 0 && n >= int64(window) {
			break
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Retention
// ──────────────────────────────────────────────────

// Purge removes terminal jobs that finished before cutoff.
func (s *Store) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, j := range s.jobs {
		if !j.Status.Terminal() || j.FinishedAt == nil || !j.FinishedAt.Before(cutoff) {
			continue
		}
		delete(s.jobs, key)
		removed++
	}
	return removed, nil
}
