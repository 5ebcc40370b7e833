package mongo

import (
	"time"

	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

type jobModel struct {
	ID                string     `bson:"_id"`
	Seq               int64      `bson:"seq"`
	Type              string     `bson:"type"`
	Payload           []byte     `bson:"payload"`
	Status            string     `bson:"status"`
	ProgressCompleted int64      `bson:"progress_completed"`
	ProgressTotal     int64      `bson:"progress_total"`
	ProgressLabel     string     `bson:"progress_label"`
	Error             string     `bson:"error"`
	Result            string     `bson:"result"`
	RequeuedFrom      string     `bson:"requeued_from"`
	WorkerID          string     `bson:"worker_id"`
	CreatedAt         time.Time  `bson:"created_at"`
	StartedAt         *time.Time `bson:"started_at,omitempty"`
	FinishedAt        *time.Time `bson:"finished_at,omitempty"`
	UpdatedAt         time.Time  `bson:"updated_at"`
}

type counterModel struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

func toJobModel(j *job.Job) *jobModel {
	payload := j.Payload
	if payload == nil {
		payload = []byte{}
	}
	return &jobModel{
		ID:                j.ID.String(),
		Seq:               j.Seq,
		Type:              j.Type,
		Payload:           payload,
		Status:            string(j.Status),
		ProgressCompleted: j.Progress.Completed,
		ProgressTotal:     j.Progress.Total,
		ProgressLabel:     j.Progress.Label,
		Error:             j.Error,
		Result:            j.Result,
		RequeuedFrom:      j.RequeuedFrom.String(),
		WorkerID:          j.WorkerID.String(),
		CreatedAt:         j.CreatedAt,
		StartedAt:         j.StartedAt,
		FinishedAt:        j.FinishedAt,
		UpdatedAt:         j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, wrap("parse job id", err)
	}

	j := &job.Job{
		ID:      parsedID,
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
		CreatedAt:  m.CreatedAt.UTC(),
		StartedAt:  utcPtr(m.StartedAt),
		FinishedAt: utcPtr(m.FinishedAt),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}

	if m.RequeuedFrom != "" {
		if parsed, pErr := id.ParseJobID(m.RequeuedFrom); pErr == nil {
			j.RequeuedFrom = parsed
		}
	}
	if m.WorkerID != "" {
		if parsed, pErr := id.ParseWorkerID(m.WorkerID); pErr == nil {
			j.WorkerID = parsed
		}
	}
	return j, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
