// Package api provides gin HTTP handlers for the jobq status query and
// enqueue APIs.
package api

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/xraph/jobq/health"
	"github.com/xraph/jobq/queue"
	"github.com/xraph/jobq/stream"
)

// API wires the HTTP handlers to a queue manager.
type API struct {
	manager *queue.Manager
	monitor *health.Monitor
	broker  *stream.Broker
	logger  *slog.Logger

	subSeq atomic.Int64
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger for request errors.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithMonitor exposes the health monitor's last scan at GET /v1/health.
func WithMonitor(m *health.Monitor) Option {
	return func(a *API) { a.monitor = m }
}

// WithBroker streams lifecycle events at GET /v1/events. The broker must
// also be registered with the manager as an extension.
func WithBroker(b *stream.Broker) Option {
	return func(a *API) { a.broker = b }
}

// New creates an API over m.
func New(m *queue.Manager, opts ...Option) *API {
	a := &API{manager: m, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns a gin engine with all routes registered.
func (a *API) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all jobq routes on router.
//
//	GET  /v1/jobs/:jobId   job snapshot
//	GET  /v1/jobs          jobs by type and status
//	POST /v1/jobs          enqueue
//	POST /v1/jobs/:jobId/requeue
//	GET  /v1/stats         per-type counts
//	GET  /v1/health        last health scan
//	GET  /v1/events        server-sent lifecycle events
func (a *API) RegisterRoutes(router gin.IRouter) {
	g := router.Group("/v1")

	g.GET("/jobs", a.listJobs)
	g.GET("/jobs/:jobId", a.getJob)
	g.POST("/jobs", a.enqueueJob)
	g.POST("/jobs/:jobId/requeue", a.requeueJob)

	g.GET("/stats", a.stats)
	g.GET("/health", a.health)
	g.GET("/events", a.events)
}
