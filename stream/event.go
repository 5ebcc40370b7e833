// Package stream is a real-time event broker for jobq lifecycle events and
// health alerts. It receives events as an ext.Extension and fans them out to
// subscribers through topic-based pub/sub.
package stream

import (
	"encoding/json"
	"time"

	"github.com/xraph/jobq/job"
)

// EventType identifies the kind of event.
type EventType string

const (
	// Job events.
	EventJobEnqueued  EventType = "job.enqueued"
	EventJobRequeued  EventType = "job.requeued"
	EventJobStarted   EventType = "job.started"
	EventJobProgress  EventType = "job.progress"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"

	// Alert events.
	EventAlertFailure EventType = "alert.failure"
	EventAlertBacklog EventType = "alert.backlog"
)

// Event is the envelope sent to subscribers.
type Event struct {
	// Type identifies the event.
	Type EventType `json:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts"`

	// JobType is the job type the event concerns.
	JobType string `json:"job_type"`

	// Topic is the entity topic the event was published on, if any.
	Topic string `json:"topic,omitempty"`

	// Data is the event-specific payload.
	Data json.RawMessage `json:"data"`
}

// JobEventData is the payload for job lifecycle events.
type JobEventData struct {
	JobID        string        `json:"job_id"`
	WorkerID     string        `json:"worker_id,omitempty"`
	RequeuedFrom string        `json:"requeued_from,omitempty"`
	Progress     *job.Progress `json:"progress,omitempty"`
	ElapsedMs    int64         `json:"elapsed_ms,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// AlertEventData is the payload for health alerts.
type AlertEventData struct {
	Count     int64 `json:"count"`
	Threshold int64 `json:"threshold"`
	Window    int   `json:"window"`
}
