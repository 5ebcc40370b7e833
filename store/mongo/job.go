package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

// Insert persists a new job in pending state.
func (s *Store) Insert(ctx context.Context, j *job.Job) (id.JobID, error) {
	if j.ID.IsNil() {
		j.ID = id.NewJobID()
	}

	seq, err := s.nextSeq(ctx)
	if err != nil {
		return id.Nil, wrap("insert sequence", err)
	}

	t := now()
	j.Seq = seq
	j.Status = job.StatusPending
	j.CreatedAt = t
	j.UpdatedAt = t
	j.StartedAt = nil
	j.FinishedAt = nil
	j.WorkerID = id.Nil
	j.Error = ""
	j.Result = ""
	j.Progress = job.Progress{}

	if _, err := s.jobs().InsertOne(ctx, toJobModel(j)); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return id.Nil, jobq.ErrJobAlreadyExists
		}
		return id.Nil, wrap("insert", err)
	}
	return j.ID, nil
}

// ClaimNext atomically claims the oldest pending job of jobType.
func (s *Store) ClaimNext(ctx context.Context, jobType string, workerID id.WorkerID) (*job.Job, error) {
	t := now()
	filter := bson.M{
		"type":   jobType,
		"status": string(job.StatusPending),
	}
	update := bson.M{
		"$set": bson.M{
			"status":     string(job.StatusActive),
			"worker_id":  workerID.String(),
			"started_at": t,
			"updated_at": t,
		},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{
			{Key: "created_at", Value: 1},
			{Key: "seq", Value: 1},
		})

	var m jobModel
	err := s.jobs().FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, wrap("claim", err)
	}
	return fromJobModel(&m)
}

// UpdateProgress records progress for an active job.
func (s *Store) UpdateProgress(ctx context.Context, jobID id.JobID, p job.Progress) error {
	return s.guardedUpdate(ctx, jobID, bson.M{
		"progress_completed": p.Completed,
		"progress_total":     p.Total,
		"progress_label":     p.Label,
		"updated_at":         now(),
	}, "update progress of")
}

// Complete moves an active job to completed.
func (s *Store) Complete(ctx context.Context, jobID id.JobID, result string) error {
	t := now()
	return s.guardedUpdate(ctx, jobID, bson.M{
		"status":      string(job.StatusCompleted),
		"result":      result,
		"finished_at": t,
		"updated_at":  t,
	}, "complete")
}

// Fail moves an active job to failed.
func (s *Store) Fail(ctx context.Context, jobID id.JobID, reason string) error {
	t := now()
	return s.guardedUpdate(ctx, jobID, bson.M{
		"status":      string(job.StatusFailed),
		"error":       reason,
		"finished_at": t,
		"updated_at":  t,
	}, "fail")
}

// guardedUpdate applies set to jobID only while the job is active.
func (s *Store) guardedUpdate(ctx context.Context, jobID id.JobID, set bson.M, op string) error {
	res, err := s.jobs().UpdateOne(ctx,
		bson.M{"_id": jobID.String(), "status": string(job.StatusActive)},
		bson.M{"$set": set},
	)
	if err != nil {
		return wrap(op, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	var m jobModel
	err = s.jobs().FindOne(ctx, bson.M{"_id": jobID.String()},
		options.FindOne().SetProjection(bson.M{"status": 1}),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return jobq.ErrJobNotFound
		}
		return wrap(op, err)
	}
	return &jobq.InvalidStateError{JobID: jobID.String(), Status: m.Status, Op: op}
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var m jobModel
	err := s.jobs().FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, jobq.ErrJobNotFound
		}
		return nil, wrap("get", err)
	}
	return fromJobModel(&m)
}

// RangeByTypeAndStatus returns matching jobs ordered by creation time.
func (s *Store) RangeByTypeAndStatus(ctx context.Context, jobType string, status job.Status, opts job.RangeOpts) ([]*job.Job, error) {
	opts = opts.Normalize()
	dir := 1
	if opts.Order == job.OrderDesc {
		dir = -1
	}
	findOpts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: dir},
		{Key: "seq", Value: dir},
	})
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.jobs().Find(ctx, bson.M{"type": jobType, "status": string(status)}, findOpts)
	if err != nil {
		return nil, wrap("range", err)
	}
	defer cursor.Close(ctx)

	var models []jobModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, wrap("range decode", err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// CountByTypeAndStatus counts matching jobs, capped at window.
func (s *Store) CountByTypeAndStatus(ctx context.Context, jobType string, status job.Status, window int) (int64, error) {
	countOpts := options.Count()
	if window > 0 {
		countOpts.SetLimit(int64(window))
	}
	n, err := s.jobs().CountDocuments(ctx, bson.M{"type": jobType, "status": string(status)}, countOpts)
	if err != nil {
		return 0, wrap("count", err)
	}
	return n, nil
}

// Purge deletes terminal jobs that finished before cutoff.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.jobs().DeleteMany(ctx, bson.M{
		"status":      bson.M{"$in": []string{string(job.StatusCompleted), string(job.StatusFailed)}},
		"finished_at": bson.M{"$lt": cutoff.UTC()},
	})
	if err != nil {
		return 0, wrap("purge", err)
	}
	return res.DeletedCount, nil
}
