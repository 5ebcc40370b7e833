package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/jobq/ext"
	"github.com/xraph/jobq/health"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

var (
	_ ext.Extension    = (*Broker)(nil)
	_ ext.JobEnqueued  = (*Broker)(nil)
	_ ext.JobRequeued  = (*Broker)(nil)
	_ ext.JobStarted   = (*Broker)(nil)
	_ ext.JobProgress  = (*Broker)(nil)
	_ ext.JobCompleted = (*Broker)(nil)
	_ ext.JobFailed    = (*Broker)(nil)
	_ ext.FailureAlert = (*Broker)(nil)
	_ ext.BacklogAlert = (*Broker)(nil)
	_ ext.Shutdown     = (*Broker)(nil)
)

const (
	// DefaultBufferSize is the per-subscriber channel capacity.
	DefaultBufferSize = 256
	// DefaultCredits is the balance a new subscriber starts with.
	DefaultCredits int64 = 1000
)

// Broker turns queue hooks and health alerts into events and hands each one
// to every subscriber following at least one of its topics. A subscriber
// that is slow or out of credits misses events; publishing never blocks.
// Register the Broker with the queue as an extension.
type Broker struct {
	logger *slog.Logger
	now    func() time.Time

	buffer  int
	credits int64

	mu   sync.RWMutex
	subs map[string]*Subscriber

	published atomic.Int64
	dropped   atomic.Int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber channel capacity.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.buffer = size }
}

// WithDefaultCredits sets the starting credit balance of new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.credits = credits }
}

// NewBroker returns a Broker with no subscribers.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		buffer:  DefaultBufferSize,
		credits: DefaultCredits,
		subs:    make(map[string]*Subscriber),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Subscribe registers subscriberID on topics. An existing subscriber with
// the same ID is closed and replaced.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := newSubscriber(subscriberID, b.buffer, b.credits)
	sub.follow(topics, true)

	b.mu.Lock()
	prev := b.subs[subscriberID]
	b.subs[subscriberID] = sub
	b.mu.Unlock()

	if prev != nil {
		prev.close()
	}
	return sub
}

// Unsubscribe drops topics from a subscriber without closing it.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	if sub, ok := b.GetSubscriber(subscriberID); ok {
		sub.follow(topics, false)
	}
}

// RemoveSubscriber closes and forgets a subscriber.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.mu.Lock()
	sub := b.subs[subscriberID]
	delete(b.subs, subscriberID)
	b.mu.Unlock()

	if sub != nil {
		sub.close()
	}
}

// GetSubscriber looks a subscriber up by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sub, ok := b.subs[subscriberID]
	return sub, ok
}

// BrokerStats is a point-in-time view of the broker.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// Stats counts subscribers, distinct followed topics and deliveries.
func (b *Broker) Stats() BrokerStats {
	b.mu.RLock()
	topics := make(map[string]struct{})
	for _, sub := range b.subs {
		for _, t := range sub.Topics() {
			topics[t] = struct{}{}
		}
	}
	n := len(b.subs)
	b.mu.RUnlock()

	return BrokerStats{
		TopicCount:      len(topics),
		SubscriberCount: n,
		TotalPublished:  b.published.Load(),
		TotalDropped:    b.dropped.Load(),
	}
}

func (b *Broker) publish(evtType EventType, jobType, topic string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		b.logger.Error("stream: marshal event", slog.String("type", string(evtType)), slog.String("error", err.Error()))
		return
	}
	evt := &Event{
		Type:      evtType,
		Timestamp: b.now(),
		JobType:   jobType,
		Topic:     topic,
		Data:      raw,
	}
	topics := topicsFor(evt)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.wants(topics) {
			continue
		}
		if sub.deliver(evt) {
			b.published.Add(1)
		} else {
			b.dropped.Add(1)
		}
	}
}

func (b *Broker) publishJob(evtType EventType, j *job.Job, data JobEventData) {
	data.JobID = j.ID.String()
	if !j.WorkerID.IsNil() {
		data.WorkerID = j.WorkerID.String()
	}
	b.publish(evtType, j.Type, JobTopic(data.JobID), data)
}

func (b *Broker) OnJobEnqueued(_ context.Context, j *job.Job) error {
	b.publishJob(EventJobEnqueued, j, JobEventData{})
	return nil
}

func (b *Broker) OnJobRequeued(_ context.Context, j *job.Job, from id.JobID) error {
	b.publishJob(EventJobRequeued, j, JobEventData{RequeuedFrom: from.String()})
	return nil
}

func (b *Broker) OnJobStarted(_ context.Context, j *job.Job) error {
	b.publishJob(EventJobStarted, j, JobEventData{})
	return nil
}

func (b *Broker) OnJobProgress(_ context.Context, j *job.Job, p job.Progress) error {
	b.publishJob(EventJobProgress, j, JobEventData{Progress: &p})
	return nil
}

func (b *Broker) OnJobCompleted(_ context.Context, j *job.Job, elapsed time.Duration) error {
	b.publishJob(EventJobCompleted, j, JobEventData{ElapsedMs: elapsed.Milliseconds()})
	return nil
}

func (b *Broker) OnJobFailed(_ context.Context, j *job.Job, jobErr error) error {
	b.publishJob(EventJobFailed, j, JobEventData{Error: jobErr.Error()})
	return nil
}

func (b *Broker) OnFailureAlert(_ context.Context, a health.FailureAlert) error {
	b.publish(EventAlertFailure, a.Type, "", AlertEventData{Count: a.Count, Threshold: a.Threshold, Window: a.Window})
	return nil
}

func (b *Broker) OnBacklogAlert(_ context.Context, a health.BacklogAlert) error {
	b.publish(EventAlertBacklog, a.Type, "", AlertEventData{Count: a.Count, Threshold: a.Threshold, Window: a.Window})
	return nil
}

// OnShutdown closes every subscriber.
func (b *Broker) OnShutdown(_ context.Context) error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*Subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	b.logger.Info("stream broker shut down")
	return nil
}
