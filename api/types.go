package api

import (
	"encoding/json"
	"time"

	"github.com/xraph/jobq/health"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/queue"
)

// ListJobsRequest holds the query parameters for GET /v1/jobs.
type ListJobsRequest struct {
	Type   string `form:"type" binding:"required"`
	Status string `form:"status"`
	Offset int    `form:"offset" binding:"min=0"`
	Limit  int    `form:"limit" binding:"min=0"`
}

// EnqueueRequest is the body of POST /v1/jobs. Payload is stored as the
// raw JSON bytes.
type EnqueueRequest struct {
	Type    string          `json:"type" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

// EnqueueResponse is returned by the enqueue and requeue endpoints.
type EnqueueResponse struct {
	ID string `json:"id"`
}

// JobResponse is a job snapshot. JSON payloads are inlined; other payloads
// are base64-encoded in PayloadBase64.
type JobResponse struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Status        job.Status      `json:"status"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	PayloadBase64 []byte          `json:"payload_base64,omitempty"`
	Progress      job.Progress    `json:"progress"`
	Error         string          `json:"error,omitempty"`
	Result        string          `json:"result,omitempty"`
	RequeuedFrom  string          `json:"requeued_from,omitempty"`
	WorkerID      string          `json:"worker_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
}

func newJobResponse(j *job.Job) JobResponse {
	r := JobResponse{
		ID:           j.ID.String(),
		Type:         j.Type,
		Status:       j.Status,
		Progress:     j.Progress,
		Error:        j.Error,
		Result:       j.Result,
		RequeuedFrom: j.RequeuedFrom.String(),
		WorkerID:     j.WorkerID.String(),
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
	}
	if len(j.Payload) > 0 {
		if json.Valid(j.Payload) {
			r.Payload = j.Payload
		} else {
			r.PayloadBase64 = j.Payload
		}
	}
	return r
}

// StatsResponse is returned by GET /v1/stats.
type StatsResponse struct {
	Types []queue.TypeStats `json:"types"`
}

// HealthResponse is returned by GET /v1/health.
type HealthResponse struct {
	ScannedAt *time.Time          `json:"scanned_at,omitempty"`
	Types     []health.TypeHealth `json:"types"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
