package queue

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/backoff"
	"github.com/xraph/jobq/ext"
	mw "github.com/xraph/jobq/middleware"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for the manager and everything it builds.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithConfig replaces the manager's configuration.
func WithConfig(cfg jobq.Config) Option {
	return func(m *Manager) { m.config = cfg }
}

// WithExtension registers an extension with the manager.
func WithExtension(e ext.Extension) Option {
	return func(m *Manager) { m.pendingExts = append(m.pendingExts, e) }
}

// WithMiddleware adds middleware to the execution chain, inside the
// default tracing, metrics and logging middleware.
func WithMiddleware(mws ...mw.Middleware) Option {
	return func(m *Manager) { m.mws = append(m.mws, mws...) }
}

// WithLimits sets per-type claim rate limits. Types not listed have no
// limit beyond their slot count.
func WithLimits(limits ...Limit) Option {
	return func(m *Manager) {
		for _, l := range limits {
			m.limits[l.Type] = l
		}
	}
}

// WithIdleBackoff overrides the idle backoff used by every pool. The
// default is exponential between Config.MinPollInterval and
// Config.PollInterval with jitter.
func WithIdleBackoff(s backoff.Strategy) Option {
	return func(m *Manager) { m.idle = s }
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) { m.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider. When set, both the
// metrics middleware and the observability extension use it instead of
// the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(m *Manager) { m.meterProvider = mp }
}

// WithoutDefaultMiddleware disables the default tracing, metrics and
// logging middleware and the observability extension. Panic recovery is
// always installed.
func WithoutDefaultMiddleware() Option {
	return func(m *Manager) { m.bare = true }
}
