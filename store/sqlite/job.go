package sqlite

import (
	"context"
	"time"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

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

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var models []jobModel
	err := s.sdb.NewRaw(`
		INSERT INTO jobq_jobs (id, type, payload, status, requeued_from, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', ?, ?, ?)
		RETURNING *`,
		j.ID.String(), j.Type, payload, j.RequeuedFrom.String(), now.UnixNano(), now.UnixNano(),
	).Scan(ctx, &models)
	if err != nil {
		if isDuplicateKey(err) {
			return id.Nil, jobq.ErrJobAlreadyExists
		}
		return id.Nil, wrap("insert", err)
	}
	if len(models) > 0 {
		j.Seq = models[0].Seq
	}
	return j.ID, nil
}

// ClaimNext moves the oldest pending job of jobType to active in a single
// statement.
func (s *Store) ClaimNext(ctx context.Context, jobType string, workerID id.WorkerID) (*job.Job, error) {
	now := time.Now().UTC().UnixNano()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var models []jobModel
	err := s.sdb.NewRaw(`
		UPDATE jobq_jobs
		SET status = 'active', worker_id = ?, started_at = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobq_jobs
			WHERE type = ? AND status = 'pending'
			ORDER BY created_at ASC, seq ASC
			LIMIT 1
		) AND status = 'pending'
		RETURNING *`,
		workerID.String(), now, now, jobType,
	).Scan(ctx, &models)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrap("claim", err)
	}
	if len(models) == 0 {
		return nil, nil
	}

	j, err := fromJobModel(&models[0])
	if err != nil {
		return nil, wrap("claim convert", err)
	}
	return j, nil
}

// UpdateProgress records progress for an active job.
func (s *Store) UpdateProgress(ctx context.Context, jobID id.JobID, p job.Progress) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.sdb.NewUpdate((*jobModel)(nil)).
		Set("progress_completed = ?", p.Completed).
		Set("progress_total = ?", p.Total).
		Set("progress_label = ?", p.Label).
		Set("updated_at = ?", time.Now().UTC().UnixNano()).
		Where("id = ?", jobID.String()).
		Where("status = ?", string(job.StatusActive)).
		Exec(ctx)
	if err != nil {
		return wrap("update progress of", err)
	}
	return s.checkGuarded(ctx, jobID, res, "update progress of")
}

// Complete moves an active job to completed.
func (s *Store) Complete(ctx context.Context, jobID id.JobID, result string) error {
	return s.finish(ctx, jobID, job.StatusCompleted, "result", result, "complete")
}

// Fail moves an active job to failed.
func (s *Store) Fail(ctx context.Context, jobID id.JobID, reason string) error {
	return s.finish(ctx, jobID, job.StatusFailed, "error", reason, "fail")
}

func (s *Store) finish(ctx context.Context, jobID id.JobID, to job.Status, column, value, op string) error {
	now := time.Now().UTC().UnixNano()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.sdb.NewUpdate((*jobModel)(nil)).
		Set("status = ?", string(to)).
		Set(column+" = ?", value).
		Set("finished_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", jobID.String()).
		Where("status = ?", string(job.StatusActive)).
		Exec(ctx)
	if err != nil {
		return wrap(op, err)
	}
	return s.checkGuarded(ctx, jobID, res, op)
}

// rowsAffected is the part of a statement result checkGuarded reads.
type rowsAffected interface {
	RowsAffected() (int64, error)
}

// checkGuarded turns the outcome of a status-guarded update into the store
// contract's error.
func (s *Store) checkGuarded(ctx context.Context, jobID id.JobID, res rowsAffected, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n > 0 {
		return nil
	}

	current, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	return &jobq.InvalidStateError{JobID: jobID.String(), Status: string(current.Status), Op: op}
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", jobID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobq.ErrJobNotFound
		}
		return nil, wrap("get", err)
	}

	j, err := fromJobModel(m)
	if err != nil {
		return nil, wrap("get convert", err)
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
	// SQLite only accepts OFFSET after a LIMIT; -1 means no limit.
	limit := -1
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	var models []jobModel
	err := s.sdb.NewRaw(`
		SELECT * FROM jobq_jobs
		WHERE type = ? AND status = ?
		ORDER BY created_at `+order+`, seq `+order+`
		LIMIT ? OFFSET ?`,
		jobType, string(status), limit, opts.Offset,
	).Scan(ctx, &models)
	if err != nil && !isNoRows(err) {
		return nil, wrap("range", err)
	}

	jobs, err := fromJobModels(models)
	if err != nil {
		return nil, wrap("range convert", err)
	}
	return jobs, nil
}

// CountByTypeAndStatus counts matching jobs, capped at window.
func (s *Store) CountByTypeAndStatus(ctx context.Context, jobType string, status job.Status, window int) (int64, error) {
	count, err := s.sdb.NewSelect((*jobModel)(nil)).
		Where("type = ?", jobType).
		Where("status = ?", string(status)).
		Count(ctx)
	if err != nil {
		return 0, wrap("count", err)
	}
	if window > 0 && count > int64(window) {
		count = int64(window)
	}
	return count, nil
}

// Purge deletes terminal jobs that finished before cutoff.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.sdb.NewDelete((*jobModel)(nil)).
		Where("status IN (?, ?)", string(job.StatusCompleted), string(job.StatusFailed)).
		Where("finished_at < ?", cutoff.UTC().UnixNano()).
		Exec(ctx)
	if err != nil {
		return 0, wrap("purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("purge", err)
	}
	return n, nil
}
