package redis

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

// Insert stores the job as a Hash and appends it to the type's pending index.
func (s *Store) Insert(ctx context.Context, j *job.Job) (id.JobID, error) {
	if j.ID.IsNil() {
		j.ID = id.NewJobID()
	}
	now := s.now()
	j.Status = job.StatusPending
	j.CreatedAt = now
	j.UpdatedAt = now
	j.StartedAt = nil
	j.FinishedAt = nil
	j.WorkerID = id.Nil
	j.Error = ""
	j.Result = ""
	j.Progress = job.Progress{}

	jID := j.ID.String()
	args := append([]any{jID}, jobToArgs(j)...)
	keys := []string{s.jobKey(jID), s.seqKey(), s.indexKey(j.Type, string(job.StatusPending))}

	seq, err := insertScript.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return id.Nil, wrap("insert", err)
	}
	if seq < 0 {
		return id.Nil, jobq.ErrJobAlreadyExists
	}
	j.Seq = seq
	return j.ID, nil
}

// ClaimNext pops the lowest-sequence pending job of jobType.
func (s *Store) ClaimNext(ctx context.Context, jobType string, workerID id.WorkerID) (*job.Job, error) {
	keys := []string{
		s.indexKey(jobType, string(job.StatusPending)),
		s.indexKey(jobType, string(job.StatusActive)),
	}
	now := s.now().Format(time.RFC3339Nano)

	jID, err := claimScript.Run(ctx, s.client, keys, s.prefix, workerID.String(), now).Text()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("claim", err)
	}
	return s.getJobByKey(ctx, s.jobKey(jID))
}

// UpdateProgress records progress for an active job.
func (s *Store) UpdateProgress(ctx context.Context, jobID id.JobID, p job.Progress) error {
	status, err := progressScript.Run(ctx, s.client, []string{s.jobKey(jobID.String())},
		strconv.FormatInt(p.Completed, 10),
		strconv.FormatInt(p.Total, 10),
		p.Label,
		s.now().Format(time.RFC3339Nano),
	).Text()
	if err != nil {
		return wrap("update progress", err)
	}
	return checkActive(jobID, status, "update progress of")
}

// Complete moves an active job to completed.
func (s *Store) Complete(ctx context.Context, jobID id.JobID, result string) error {
	return s.finish(ctx, jobID, job.StatusCompleted, "result", result, "complete")
}

// Fail moves an active job to failed.
func (s *Store) Fail(ctx context.Context, jobID id.JobID, reason string) error {
	return s.finish(ctx, jobID, job.StatusFailed, "error", reason, "fail")
}

func (s *Store) finish(ctx context.Context, jobID id.JobID, to job.Status, field, value, op string) error {
	jobKey := s.jobKey(jobID.String())

	// The type never changes after insert, so reading it outside the
	// script cannot race with the transition.
	jobType, err := s.client.HGet(ctx, jobKey, "type").Result()
	if errors.Is(err, goredis.Nil) {
		return jobq.ErrJobNotFound
	}
	if err != nil {
		return wrap(op, err)
	}

	now := s.now()
	keys := []string{
		jobKey,
		s.indexKey(jobType, string(job.StatusActive)),
		s.indexKey(jobType, string(to)),
		s.finishedKey(),
	}
	status, err := finishScript.Run(ctx, s.client, keys,
		string(to),
		field,
		value,
		now.Format(time.RFC3339Nano),
		now.UnixMilli(),
	).Text()
	if err != nil {
		return wrap(op, err)
	}
	return checkActive(jobID, status, op)
}

// checkActive maps the status a script observed to the store contract.
func checkActive(jobID id.JobID, status, op string) error {
	switch status {
	case "":
		return jobq.ErrJobNotFound
	case string(job.StatusActive):
		return nil
	default:
		return &jobq.InvalidStateError{JobID: jobID.String(), Status: status, Op: op}
	}
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, s.jobKey(jobID.String()))
}

// RangeByTypeAndStatus reads a window of the (type, status) index and
// loads the matching hashes in one pipeline.
func (s *Store) RangeByTypeAndStatus(ctx context.Context, jobType string, status job.Status, opts job.RangeOpts) ([]*job.Job, error) {
	opts = opts.Normalize()
	start := int64(opts.Offset)
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = start + int64(opts.Limit) - 1
	}

	idx := s.indexKey(jobType, string(status))
	var (
		ids []string
		err error
	)
	if opts.Order == job.OrderDesc {
		ids, err = s.client.ZRevRange(ctx, idx, start, stop).Result()
	} else {
		ids, err = s.client.ZRange(ctx, idx, start, stop).Result()
	}
	if err != nil {
		return nil, wrap("range", err)
	}
	if len(ids) == 0 {
		return []*job.Job{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, jID := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.jobKey(jID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, wrap("range load", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue // purged between the index read and the load
		}
		j, err := mapToJob(vals)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// CountByTypeAndStatus returns the cardinality of the (type, status) index,
// capped at window.
func (s *Store) CountByTypeAndStatus(ctx context.Context, jobType string, status job.Status, window int) (int64, error) {
	n, err := s.client.ZCard(ctx, s.indexKey(jobType, string(status))).Result()
	if err != nil {
		return 0, wrap("count", err)
	}
	if window > 0 && n > int64(window) {
		n = int64(window)
	}
	return n, nil
}

// Purge deletes terminal jobs that finished before cutoff.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.finishedKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, wrap("purge scan", err)
	}

	var removed int64
	for _, jID := range ids {
		key := s.jobKey(jID)
		vals, err := s.client.HMGet(ctx, key, "type", "status").Result()
		if err != nil {
			return removed, wrap("purge load", err)
		}
		// Both values are nil when the hash is already gone.
		jobType, _ := vals[0].(string)
		status, _ := vals[1].(string)

		pipe := s.client.TxPipeline()
		pipe.Del(ctx, key)
		if jobType != "" && status != "" {
			pipe.ZRem(ctx, s.indexKey(jobType, status), jID)
		}
		pipe.ZRem(ctx, s.finishedKey(), jID)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, wrap("purge", err)
		}
		removed++
	}
	if removed > 0 {
		s.logger.Debug("jobq/redis: purged finished jobs", slog.Int64("count", removed))
	}
	return removed, nil
}

// ── helpers ──

func jobToArgs(j *job.Job) []any {
	return []any{
		"id", j.ID.String(),
		"type", j.Type,
		"payload", string(j.Payload),
		"status", string(j.Status),
		"requeued_from", j.RequeuedFrom.String(),
		"created_at", j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at", j.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrap("get", err)
	}
	if len(vals) == 0 {
		return nil, jobq.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, wrap("parse job id", err)
	}

	seq, _ := strconv.ParseInt(m["seq"], 10, 64)                      //nolint:errcheck // best-effort parse from trusted Redis data
	completed, _ := strconv.ParseInt(m["progress_completed"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data
	total, _ := strconv.ParseInt(m["progress_total"], 10, 64)         //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])     //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])     //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		ID:      jID,
		Type:    m["type"],
		Payload: []byte(m["payload"]),
		Status:  job.Status(m["status"]),
		Progress: job.Progress{
			Completed: completed,
			Total:     total,
			Label:     m["progress_label"],
		},
		Error:     m["error"],
		Result:    m["result"],
		Seq:       seq,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}

	if v := m["requeued_from"]; v != "" {
		j.RequeuedFrom, _ = id.ParseJobID(v) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["worker_id"]; v != "" {
		j.WorkerID, _ = id.ParseWorkerID(v) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.StartedAt = &t
	}
	if v := m["finished_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.FinishedAt = &t
	}
	return j, nil
}
