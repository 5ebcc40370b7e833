package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/backoff"
	"github.com/xraph/jobq/ext"
	"github.com/xraph/jobq/health"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
	mw "github.com/xraph/jobq/middleware"
	"github.com/xraph/jobq/observability"
	"github.com/xraph/jobq/worker"
)

// instrumentationName is the OTel scope used for middleware instruments.
const instrumentationName = "github.com/xraph/jobq"

// Compile-time interface checks.
var _ health.Source = (*Manager)(nil)

type state int

const (
	stateNew state = iota
	stateRunning
	stateStopped
)

// Manager coordinates handler registration, admission and the per-type
// worker pools. It holds no job state of its own; every read and write
// goes through the store.
type Manager struct {
	store      job.Store
	registry   *job.Registry
	extensions *ext.Registry
	config     jobq.Config
	limits     map[string]Limit
	idle       backoff.Strategy
	mws        []mw.Middleware
	bare       bool
	logger     *slog.Logger

	pendingExts []ext.Extension

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu    sync.Mutex
	state state
	pools map[string]*worker.Pool
}

// New creates a Manager over store.
func New(store job.Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		registry: job.NewRegistry(),
		config:   jobq.DefaultConfig(),
		limits:   make(map[string]Limit),
		logger:   slog.Default(),
		pools:    make(map[string]*worker.Pool),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.extensions = ext.NewRegistry(m.logger)
	if !m.bare {
		var obsExt *observability.MetricsExtension
		if m.meterProvider != nil {
			obsExt = observability.NewMetricsExtensionWithMeter(m.meterProvider.Meter(instrumentationName + "/observability"))
		} else {
			obsExt = observability.NewMetricsExtension()
		}
		m.extensions.Register(obsExt)
	}
	for _, e := range m.pendingExts {
		m.extensions.Register(e)
	}
	m.pendingExts = nil

	if m.idle == nil {
		m.idle = backoff.DefaultStrategy(m.config.MinPollInterval, m.config.PollInterval)
	}
	return m
}

// ──────────────────────────────────────────────────
// Registration
// ──────────────────────────────────────────────────

// RegisterHandler binds jobType to h with the given number of worker
// slots. It fails with *jobq.DuplicateTypeError if jobType is already
// registered, jobq.ErrInvalidConcurrency if concurrency < 1, and
// jobq.ErrRegistryFrozen once the manager has started.
func (m *Manager) RegisterHandler(jobType string, h job.HandlerFunc, concurrency int) error {
	if err := m.registry.Register(jobType, h, concurrency); err != nil {
		return err
	}
	m.logger.Info("job handler registered",
		slog.String("job_type", jobType),
		slog.Int("concurrency", concurrency),
	)
	return nil
}

// Register registers a typed job definition. A definition without an
// explicit concurrency uses Config.DefaultConcurrency.
func Register[T any](m *Manager, def *job.Definition[T]) error {
	concurrency := def.Opts.Concurrency
	if concurrency == 0 {
		concurrency = m.config.DefaultConcurrency
	}
	return m.RegisterHandler(def.Type, def.HandlerFunc(), concurrency)
}

// Types returns the registered job types in registration order.
func (m *Manager) Types() []string { return m.registry.Types() }

// ──────────────────────────────────────────────────
// Admission
// ──────────────────────────────────────────────────

// Enqueue stores a new pending job and returns its ID without waiting for
// execution. It fails with *jobq.UnknownTypeError, before touching the
// store, when jobType has no handler.
func (m *Manager) Enqueue(ctx context.Context, jobType string, payload []byte) (id.JobID, error) {
	if _, ok := m.registry.Get(jobType); !ok {
		return id.Nil, &jobq.UnknownTypeError{Type: jobType}
	}

	j := &job.Job{Type: jobType, Payload: payload}
	jobID, err := m.store.Insert(ctx, j)
	if err != nil {
		return id.Nil, err
	}

	m.extensions.EmitJobEnqueued(ctx, j)
	return jobID, nil
}

// EnqueueJSON JSON-encodes payload and enqueues it.
func EnqueueJSON[T any](ctx context.Context, m *Manager, jobType string, payload T) (id.JobID, error) {
	data, err := job.Encode(payload)
	if err != nil {
		return id.Nil, err
	}
	return m.Enqueue(ctx, jobType, data)
}

// Requeue enqueues a copy of a failed job as a new pending job whose
// RequeuedFrom names the original. The original stays failed. Requeue is
// never called by the queue itself.
func (m *Manager) Requeue(ctx context.Context, failedID id.JobID) (id.JobID, error) {
	orig, err := m.store.Get(ctx, failedID)
	if err != nil {
		return id.Nil, err
	}
	if orig.Status != job.StatusFailed {
		return id.Nil, &jobq.InvalidStateError{JobID: failedID.String(), Status: string(orig.Status), Op: "requeue"}
	}
	if _, ok := m.registry.Get(orig.Type); !ok {
		return id.Nil, &jobq.UnknownTypeError{Type: orig.Type}
	}

	j := &job.Job{
		Type:         orig.Type,
		Payload:      orig.Payload,
		RequeuedFrom: orig.ID,
	}
	jobID, err := m.store.Insert(ctx, j)
	if err != nil {
		return id.Nil, err
	}

	m.logger.Info("job requeued",
		slog.String("job_type", j.Type),
		slog.String("job_id", jobID.String()),
		slog.String("requeued_from", failedID.String()),
	)
	m.extensions.EmitJobRequeued(ctx, j, failedID)
	return jobID, nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start freezes the handler registry and starts one worker pool per
// registered type. Handlers run with a context derived from ctx that is
// not cancelled by Shutdown.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateNew {
		return jobq.ErrAlreadyStarted
	}
	m.registry.Freeze()

	executor := worker.NewExecutor(m.store, m.extensions, m.logger, m.middleware()...)

	regs := m.registry.Registrations()
	for _, reg := range regs {
		opts := []worker.PoolOption{worker.WithIdleBackoff(m.idle)}
		if l, ok := m.limits[reg.Type]; ok {
			if opt := l.poolOption(); opt != nil {
				opts = append(opts, opt)
			}
		}
		pool := worker.NewPool(m.store, executor, m.extensions, m.logger, reg, opts...)
		if err := pool.Start(ctx); err != nil {
			return err
		}
		m.pools[reg.Type] = pool
	}

	m.state = stateRunning
	m.logger.Info("job queue started", slog.Int("types", len(regs)))
	return nil
}

// middleware builds the default stack: tracing → metrics → logging →
// user middleware. The executor adds recover innermost.
func (m *Manager) middleware() []mw.Middleware {
	if m.bare {
		return m.mws
	}

	var tracingMw mw.Middleware
	if m.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(m.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	var metricsMw mw.Middleware
	if m.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(m.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	all := make([]mw.Middleware, 0, 3+len(m.mws))
	all = append(all, tracingMw, metricsMw, mw.Logging(m.logger))
	return append(all, m.mws...)
}

// Shutdown stops every pool from claiming new jobs and waits up to
// timeout for in-flight jobs to finish. Jobs still running at the
// deadline are left active and Shutdown returns jobq.ErrShutdownTimeout.
// A non-positive timeout uses Config.ShutdownTimeout.
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.mu.Lock()
	if m.state != stateRunning {
		m.mu.Unlock()
		return jobq.ErrNotStarted
	}
	m.state = stateStopped
	pools := make([]*worker.Pool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.Unlock()

	if timeout <= 0 {
		timeout = m.config.ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range pools {
		g.Go(func() error { return p.Stop(gctx) })
	}
	err := g.Wait()

	m.extensions.EmitShutdown(context.WithoutCancel(ctx))

	if err != nil {
		if errors.Is(err, jobq.ErrShutdownTimeout) {
			m.logger.Warn("job queue shutdown timed out", slog.Duration("timeout", timeout))
		}
		return err
	}
	m.logger.Info("job queue stopped")
	return nil
}

// ──────────────────────────────────────────────────
// Status queries
// ──────────────────────────────────────────────────

// GetJob returns a snapshot of a job.
func (m *Manager) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return m.store.Get(ctx, jobID)
}

// ListByTypeAndStatus returns jobs of jobType in status, oldest first.
// A zero limit returns every match after offset. A negative offset or
// limit fails with jobq.ErrInvalidRange.
func (m *Manager) ListByTypeAndStatus(ctx context.Context, jobType string, status job.Status, offset, limit int) ([]*job.Job, error) {
	if offset < 0 || limit < 0 {
		return nil, jobq.ErrInvalidRange
	}
	return m.store.RangeByTypeAndStatus(ctx, jobType, status, job.RangeOpts{
		Offset: offset,
		Limit:  limit,
		Order:  job.OrderAsc,
	})
}

// CountByTypeAndStatus counts jobs of jobType in status, capped at window.
func (m *Manager) CountByTypeAndStatus(ctx context.Context, jobType string, status job.Status, window int) (int64, error) {
	return m.store.CountByTypeAndStatus(ctx, jobType, status, window)
}

// TypeStats summarizes one job type.
type TypeStats struct {
	Type        string        `json:"type"`
	Concurrency int           `json:"concurrency"`
	Workers     []id.WorkerID `json:"workers,omitempty"`
	Running     int           `json:"running"`
	Pending     int64         `json:"pending"`
	Active      int64         `json:"active"`
	Completed   int64         `json:"completed"`
	Failed      int64         `json:"failed"`
}

// Stats returns per-type counts for every registered type. window caps
// each count; zero counts everything. Workers lists the slot IDs once the
// manager has started.
func (m *Manager) Stats(ctx context.Context, window int) ([]TypeStats, error) {
	regs := m.registry.Registrations()
	out := make([]TypeStats, 0, len(regs))

	for _, reg := range regs {
		st := TypeStats{Type: reg.Type, Concurrency: reg.Concurrency}
		if p := m.pool(reg.Type); p != nil {
			st.Workers = p.WorkerIDs()
			st.Running = p.Active()
		}
		for _, c := range []struct {
			status job.Status
			dst    *int64
		}{
			{job.StatusPending, &st.Pending},
			{job.StatusActive, &st.Active},
			{job.StatusCompleted, &st.Completed},
			{job.StatusFailed, &st.Failed},
		} {
			n, err := m.store.CountByTypeAndStatus(ctx, reg.Type, c.status, window)
			if err != nil {
				return nil, err
			}
			*c.dst = n
		}
		out = append(out, st)
	}
	return out, nil
}

func (m *Manager) pool(jobType string) *worker.Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pools[jobType]
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Extensions returns the extension registry.
func (m *Manager) Extensions() *ext.Registry { return m.extensions }

// Registry returns the handler registry.
func (m *Manager) Registry() *job.Registry { return m.registry }

// Store returns the job store.
func (m *Manager) Store() job.Store { return m.store }

// Config returns the manager's configuration.
func (m *Manager) Config() jobq.Config { return m.config }
