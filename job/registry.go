package job

import (
	"context"
	"sync"

	"github.com/xraph/jobq"
)

// Reporter lets a running handler publish progress for its own job.
type Reporter interface {
	Report(ctx context.Context, completed, total int64, label string) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, completed, total int64, label string) error

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, completed, total int64, label string) error {
	return f(ctx, completed, total, label)
}

// NopReporter discards progress reports.
var NopReporter Reporter = ReporterFunc(func(context.Context, int64, int64, string) error { return nil })

// HandlerFunc processes one job payload. A nil error completes the job with
// the returned result note; a non-nil error fails it with err.Error() as
// the reason.
type HandlerFunc func(ctx context.Context, payload []byte, progress Reporter) (string, error)

// Registration binds a job type to its handler and pool size.
type Registration struct {
	Type        string
	Handler     HandlerFunc
	Concurrency int
}

// Registry maps job types to registrations. It is safe for concurrent use
// and becomes read-only once frozen.
type Registry struct {
	mu     sync.RWMutex
	regs   map[string]Registration
	order  []string
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{regs: make(map[string]Registration)}
}

// Register adds a handler for jobType.
func (r *Registry) Register(jobType string, h HandlerFunc, concurrency int) error {
	if concurrency < 1 {
		return jobq.ErrInvalidConcurrency
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return jobq.ErrRegistryFrozen
	}
	if _, exists := r.regs[jobType]; exists {
		return &jobq.DuplicateTypeError{Type: jobType}
	}
	r.regs[jobType] = Registration{Type: jobType, Handler: h, Concurrency: concurrency}
	r.order = append(r.order, jobType)
	return nil
}

// Get returns the registration for jobType.
func (r *Registry) Get(jobType string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[jobType]
	return reg, ok
}

// Types returns registered job types in registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Registrations returns all registrations in registration order.
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.regs[t])
	}
	return out
}

// Freeze rejects any further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
