package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

const jobColumns = `
	id, seq, type, payload, status,
	progress_completed, progress_total, progress_label,
	error, result, requeued_from, worker_id,
	created_at, started_at, finished_at, updated_at`

// Insert persists a new job in pending state.
func (s *Store) Insert(ctx context.Context, j *job.Job) (id.JobID, error) {
	if j.ID.IsNil() {
		j.ID = id.NewJobID()
	}
	now := time.Now().UTC()
	j.Status = job.StatusPending
	j.CreatedAt = now
	j.UpdatedAt = now
	j.StartedAt = nil
	j.FinishedAt = nil
	j.WorkerID = id.Nil
	j.Error = ""
	j.Result = ""
	j.Progress = job.Progress{}

	payload := j.Payload
	if payload == nil {
		payload = []byte{}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO jobq_jobs (id, type, payload, status, requeued_from, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $5)
		RETURNING seq`,
		j.ID.String(), j.Type, payload, j.RequeuedFrom.String(), now,
	).Scan(&j.Seq)
	if err != nil {
		if isDuplicateKey(err) {
			return id.Nil, jobq.ErrJobAlreadyExists
		}
		return id.Nil, wrap("insert", err)
	}
	return j.ID, nil
}

// ClaimNext atomically moves the oldest pending job of jobType to active.
// SKIP LOCKED lets concurrent claimers pass over a row another transaction
// is already taking.
func (s *Store) ClaimNext(ctx context.Context, jobType string, workerID id.WorkerID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE jobq_jobs
		SET status = 'active', worker_id = $2, started_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT id FROM jobq_jobs
			WHERE type = $1 AND status = 'pending'
			ORDER BY created_at ASC, seq ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING`+jobColumns,
		jobType, workerID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrap("claim", err)
	}
	return j, nil
}

// UpdateProgress records progress for an active job.
func (s *Store) UpdateProgress(ctx context.Context, jobID id.JobID, p job.Progress) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobq_jobs
		SET progress_completed = $2, progress_total = $3, progress_label = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'active'`,
		jobID.String(), p.Completed, p.Total, p.Label,
	)
	if err != nil {
		return wrap("update progress", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, jobID, "update progress of")
	}
	return nil
}

// Complete moves an active job to completed.
func (s *Store) Complete(ctx context.Context, jobID id.JobID, result string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobq_jobs
		SET status = 'completed', result = $2, finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'active'`,
		jobID.String(), result,
	)
	if err != nil {
		return wrap("complete", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, jobID, "complete")
	}
	return nil
}

// Fail moves an active job to failed.
func (s *Store) Fail(ctx context.Context, jobID id.JobID, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobq_jobs
		SET status = 'failed', error = $2, finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'active'`,
		jobID.String(), reason,
	)
	if err != nil {
		return wrap("fail", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, jobID, "fail")
	}
	return nil
}

// transitionError explains why a status-guarded update matched no row.
func (s *Store) transitionError(ctx context.Context, jobID id.JobID, op string) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobq_jobs WHERE id = $1`, jobID.String()).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return jobq.ErrJobNotFound
		}
		return wrap(op, err)
	}
	return &jobq.InvalidStateError{JobID: jobID.String(), Status: status, Op: op}
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+jobColumns+` FROM jobq_jobs WHERE id = $1`, jobID.String())

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, jobq.ErrJobNotFound
		}
		return nil, wrap("get", err)
	}
	return j, nil
}

// RangeByTypeAndStatus returns matching jobs ordered by creation time.
func (s *Store) RangeByTypeAndStatus(ctx context.Context, jobType string, status job.Status, opts job.RangeOpts) ([]*job.Job, error) {
	opts = opts.Normalize()
	order := "ASC"
	if opts.Order == job.OrderDesc {
		order = "DESC"
	}

	rows, err := s.pool.Query(ctx, `
		SELECT`+jobColumns+`
		FROM jobq_jobs
		WHERE type = $1 AND status = $2
		ORDER BY created_at `+order+`, seq `+order+`
		OFFSET $3 LIMIT $4`,
		jobType, string(status), opts.Offset, nullLimit(opts.Limit),
	)
	if err != nil {
		return nil, wrap("range", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountByTypeAndStatus counts matching jobs, capped at window.
func (s *Store) CountByTypeAndStatus(ctx context.Context, jobType string, status job.Status, window int) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM jobq_jobs
			WHERE type = $1 AND status = $2
			LIMIT $3
		) windowed`,
		jobType, string(status), nullLimit(window),
	).Scan(&count)
	if err != nil {
		return 0, wrap("count", err)
	}
	return count, nil
}

// Purge deletes terminal jobs that finished before cutoff.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobq_jobs
		WHERE status IN ('completed', 'failed') AND finished_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, wrap("purge", err)
	}
	return tag.RowsAffected(), nil
}

// scanJob scans a single job row in jobColumns order.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j           job.Job
		idStr       string
		statusStr   string
		requeuedStr string
		workerStr   string
	)
	err := row.Scan(
		&idStr, &j.Seq, &j.Type, &j.Payload, &statusStr,
		&j.Progress.Completed, &j.Progress.Total, &j.Progress.Label,
		&j.Error, &j.Result, &requeuedStr, &workerStr,
		&j.CreatedAt, &j.StartedAt, &j.FinishedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = job.Status(statusStr)

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, wrap("parse job id", parseErr)
	}
	j.ID = parsedID

	if requeuedStr != "" {
		if parsed, err := id.ParseJobID(requeuedStr); err == nil {
			j.RequeuedFrom = parsed
		}
	}
	if workerStr != "" {
		if parsed, err := id.ParseWorkerID(workerStr); err == nil {
			j.WorkerID = parsed
		}
	}

	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	jobs := make([]*job.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, wrap("scan job row", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate job rows", err)
	}
	return jobs, nil
}
