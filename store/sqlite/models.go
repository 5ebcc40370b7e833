package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

// jobModel is the jobq_jobs row. Timestamps are unix nanoseconds so that
// ordering by created_at is exact.
type jobModel struct {
	grove.BaseModel `grove:"table:jobq_jobs"`

	Seq               int64  `grove:"seq,pk"`
	ID                string `grove:"id,notnull"`
	Type              string `grove:"type,notnull"`
	Payload           []byte `grove:"payload,notnull"`
	Status            string `grove:"status,notnull,default:'pending'"`
	ProgressCompleted int64  `grove:"progress_completed,notnull,default:0"`
	ProgressTotal     int64  `grove:"progress_total,notnull,default:0"`
	ProgressLabel     string `grove:"progress_label,notnull,default:''"`
	Error             string `grove:"error,notnull,default:''"`
	Result            string `grove:"result,notnull,default:''"`
	RequeuedFrom      string `grove:"requeued_from,notnull,default:''"`
	WorkerID          string `grove:"worker_id,notnull,default:''"`
	CreatedAt         int64  `grove:"created_at,notnull"`
	StartedAt         *int64 `grove:"started_at"`
	FinishedAt        *int64 `grove:"finished_at"`
	UpdatedAt         int64  `grove:"updated_at,notnull"`
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	jobID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, err
	}
	j := &job.Job{
		ID:      jobID,
		Seq:     m.Seq,
		Type:    m.Type,
		Payload: m.Payload,
		Status:  job.Status(m.Status),
		Progress: job.Progress{
			Completed: m.ProgressCompleted,
			Total:     m.ProgressTotal,
			Label:     m.ProgressLabel,
		},
		Error:      m.Error,
		Result:     m.Result,
		CreatedAt:  time.Unix(0, m.CreatedAt).UTC(),
		StartedAt:  fromNanos(m.StartedAt),
		FinishedAt: fromNanos(m.FinishedAt),
		UpdatedAt:  time.Unix(0, m.UpdatedAt).UTC(),
	}
	if m.RequeuedFrom != "" {
		if parsed, err := id.ParseJobID(m.RequeuedFrom); err == nil {
			j.RequeuedFrom = parsed
		}
	}
	if m.WorkerID != "" {
		if parsed, err := id.ParseWorkerID(m.WorkerID); err == nil {
			j.WorkerID = parsed
		}
	}
	return j, nil
}

func fromJobModels(models []jobModel) ([]*job.Job, error) {
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

func fromNanos(n *int64) *time.Time {
	if n == nil {
		return nil
	}
	t := time.Unix(0, *n).UTC()
	return &t
}
