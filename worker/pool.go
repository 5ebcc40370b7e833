package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/backoff"
	"github.com/xraph/jobq/ext"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

// Default idle backoff bounds for a slot whose type has no pending jobs.
const (
	DefaultMinIdle = 10 * time.Millisecond
	DefaultMaxIdle = time.Second
)

// Pool runs a fixed number of slots for a single job type. Each slot
// claims the oldest pending job of the type, executes it, and repeats, so
// in-flight jobs for the type never exceed the slot count.
type Pool struct {
	store      job.Store
	executor   *Executor
	extensions *ext.Registry
	reg        job.Registration
	strategy   backoff.Strategy
	limiter    *rate.Limiter
	slots      []id.WorkerID
	logger     *slog.Logger

	active atomic.Int64

	stopCh   chan struct{}
	stopWait context.CancelFunc
	waitCtx  context.Context
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopped  bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithIdleBackoff sets the strategy a slot uses to wait between empty
// claims.
func WithIdleBackoff(s backoff.Strategy) PoolOption {
	return func(p *Pool) { p.strategy = s }
}

// WithRateLimit caps how often the pool's slots may claim jobs, shared
// across all slots. A non-positive limit disables rate limiting.
func WithRateLimit(limit rate.Limit, burst int) PoolOption {
	return func(p *Pool) {
		if limit <= 0 {
			p.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewPool creates a pool for reg with reg.Concurrency slots.
func NewPool(
	store job.Store,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	reg job.Registration,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		store:      store,
		executor:   executor,
		extensions: extensions,
		reg:        reg,
		strategy:   backoff.DefaultStrategy(DefaultMinIdle, DefaultMaxIdle),
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	n := max(reg.Concurrency, 1)
	p.slots = make([]id.WorkerID, n)
	for i := range p.slots {
		p.slots[i] = id.NewWorkerID()
	}
	return p
}

// Type returns the job type the pool serves.
func (p *Pool) Type() string { return p.reg.Type }

// Concurrency returns the number of slots.
func (p *Pool) Concurrency() int { return len(p.slots) }

// WorkerIDs returns the identifiers of the pool's slots.
func (p *Pool) WorkerIDs() []id.WorkerID {
	return append([]id.WorkerID(nil), p.slots...)
}

// Active returns the number of jobs currently executing in the pool.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Start launches the slot goroutines. It returns immediately. Handlers run
// with a context derived from ctx that is never cancelled by Stop.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if p.stopped {
		return jobq.ErrAlreadyStarted
	}
	p.running = true
	p.waitCtx, p.stopWait = context.WithCancel(context.Background())

	p.logger.Info("worker pool starting",
		slog.String("job_type", p.reg.Type),
		slog.Int("concurrency", len(p.slots)),
	)

	runCtx := context.WithoutCancel(ctx)
	for _, workerID := range p.slots {
		p.wg.Add(1)
		go p.slotLoop(runCtx, workerID)
	}
	return nil
}

// Stop signals all slots to stop claiming and waits for in-flight jobs.
// If ctx ends first, Stop returns jobq.ErrShutdownTimeout; jobs still
// running stay active in the store and their handlers are not cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.stopped = true
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("job_type", p.reg.Type))

	close(p.stopCh)
	p.stopWait()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully", slog.String("job_type", p.reg.Type))
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, leaving jobs active",
			slog.String("job_type", p.reg.Type),
			slog.Int("active", p.Active()),
		)
		return jobq.ErrShutdownTimeout
	}
}

// slotLoop is run by each slot goroutine.
func (p *Pool) slotLoop(ctx context.Context, workerID id.WorkerID) {
	defer p.wg.Done()

	idle := backoff.NewTracker(p.strategy)
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(p.waitCtx); err != nil {
				return
			}
		}

		j, err := p.store.ClaimNext(ctx, p.reg.Type, workerID)
		if err != nil {
			p.logger.Error("claim error",
				slog.String("job_type", p.reg.Type),
				slog.String("worker_id", workerID.String()),
				slog.String("error", err.Error()),
			)
			p.sleep(idle.Miss())
			continue
		}
		if j == nil {
			p.sleep(idle.Miss())
			continue
		}

		idle.Reset()
		p.run(ctx, j)
	}
}

func (p *Pool) run(ctx context.Context, j *job.Job) {
	p.active.Add(1)
	defer p.active.Add(-1)

	p.extensions.EmitJobStarted(ctx, j)

	if err := p.executor.Execute(ctx, j, p.reg.Handler); err != nil {
		p.logger.Debug("job execution failed",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pool) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stopCh:
	}
}
