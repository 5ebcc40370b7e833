package stream

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Subscriber is one consumer of the broker. It has a buffered channel and a
// credit balance; each delivery spends a credit and a subscriber at zero
// credits misses events until the consumer calls AddCredits.
type Subscriber struct {
	id      string
	ch      chan *Event
	credits atomic.Int64
	filter  atomic.Pointer[func(*Event) bool]

	mu     sync.Mutex
	topics map[string]bool
	closed bool
}

func newSubscriber(id string, buffer int, credits int64) *Subscriber {
	s := &Subscriber{
		id:     id,
		ch:     make(chan *Event, buffer),
		topics: make(map[string]bool),
	}
	s.credits.Store(credits)
	return s
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C is closed when the subscriber is removed or the broker shuts down.
func (s *Subscriber) C() <-chan *Event { return s.ch }

// AddCredits tops up the credit balance.
func (s *Subscriber) AddCredits(n int64) { s.credits.Add(n) }

// Credits returns the current balance.
func (s *Subscriber) Credits() int64 { return s.credits.Load() }

// SetFilter installs a predicate events must pass. Nil clears it.
func (s *Subscriber) SetFilter(fn func(*Event) bool) {
	if fn == nil {
		s.filter.Store(nil)
		return
	}
	s.filter.Store(&fn)
}

// Topics returns the subscribed topics, sorted.
func (s *Subscriber) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (s *Subscriber) follow(topics []string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range topics {
		if on {
			s.topics[t] = true
		} else {
			delete(s.topics, t)
		}
	}
}

func (s *Subscriber) wants(topics []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range topics {
		if s.topics[t] {
			return true
		}
	}
	return false
}

// deliver hands evt over without blocking. It reports false when the event
// was filtered, the subscriber is out of credits or its buffer is full.
func (s *Subscriber) deliver(evt *Event) bool {
	if fn := s.filter.Load(); fn != nil && !(*fn)(evt) {
		return false
	}
	if s.credits.Add(-1) < 0 {
		s.credits.Add(1)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		select {
		case s.ch <- evt:
			return true
		default:
		}
	}
	s.credits.Add(1)
	return false
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
