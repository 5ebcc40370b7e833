package job

import (
	"fmt"
	"time"

	"github.com/xraph/jobq/id"
)

// Status represents the lifecycle status of a job.
type Status string

const (
	// StatusPending means the job is waiting for a free worker slot.
	StatusPending Status = "pending"
	// StatusActive means exactly one worker slot is executing the job.
	StatusActive Status = "active"
	// StatusCompleted means the handler reported success.
	StatusCompleted Status = "completed"
	// StatusFailed means the handler reported failure or faulted.
	StatusFailed Status = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusActive, StatusCompleted, StatusFailed}

// ParseStatus converts s into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("job: unknown status %q", s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether the state machine allows s → to.
//
//	pending → active → completed
//	pending → active → failed
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusActive
	case StatusActive:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// Progress is the handler-reported advancement of an active job.
type Progress struct {
	Completed int64  `json:"completed"`
	Total     int64  `json:"total"`
	Label     string `json:"label,omitempty"`
}

// Job is a unit of work. The store owns the record; values handed out by
// the store are snapshots.
type Job struct {
	ID           id.JobID    `json:"id"`
	Type         string      `json:"type"`
	Payload      []byte      `json:"payload"`
	Status       Status      `json:"status"`
	Progress     Progress    `json:"progress"`
	Error        string      `json:"error,omitempty"`
	Result       string      `json:"result,omitempty"`
	RequeuedFrom id.JobID    `json:"requeued_from,omitempty"`
	WorkerID     id.WorkerID `json:"worker_id,omitempty"`
	Seq          int64       `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Payload != nil {
		cp.Payload = append([]byte(nil), j.Payload...)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
