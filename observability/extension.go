// Package observability records queue-wide OpenTelemetry metrics from
// lifecycle hooks: enqueue, requeue and outcome counters, a gauge of running
// jobs, pending wait and run time histograms, and alert counters. Every
// instrument carries a job_type attribute.
//
// Per-execution spans and handler outcome metrics live in the middleware
// package.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobq/ext"
	"github.com/xraph/jobq/health"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

var (
	_ ext.Extension    = (*MetricsExtension)(nil)
	_ ext.JobEnqueued  = (*MetricsExtension)(nil)
	_ ext.JobRequeued  = (*MetricsExtension)(nil)
	_ ext.JobStarted   = (*MetricsExtension)(nil)
	_ ext.JobCompleted = (*MetricsExtension)(nil)
	_ ext.JobFailed    = (*MetricsExtension)(nil)
	_ ext.FailureAlert = (*MetricsExtension)(nil)
	_ ext.BacklogAlert = (*MetricsExtension)(nil)
)

// MetricsExtension is an ext.Extension that only records metrics.
type MetricsExtension struct {
	enqueued, requeued metric.Int64Counter
	completed, failed  metric.Int64Counter
	failureAlerts      metric.Int64Counter
	backlogAlerts      metric.Int64Counter
	active             metric.Int64UpDownCounter
	waitTime, runTime  metric.Float64Histogram
}

// NewMetricsExtension uses the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter("github.com/xraph/jobq/observability"))
}

// NewMetricsExtensionWithMeter uses meter. Instruments that fail to build
// are noops.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	count := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc)) //nolint:errcheck // noop fallback
		return c
	}
	seconds := func(name, desc string) metric.Float64Histogram {
		h, _ := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s")) //nolint:errcheck // noop fallback
		return h
	}
	active, _ := meter.Int64UpDownCounter("jobq.job.active", //nolint:errcheck // noop fallback
		metric.WithDescription("Jobs currently executing"),
	)

	return &MetricsExtension{
		enqueued:      count("jobq.job.enqueued", "Jobs accepted into the queue"),
		requeued:      count("jobq.job.requeued", "Failed jobs explicitly re-enqueued"),
		completed:     count("jobq.job.completed", "Jobs completed successfully"),
		failed:        count("jobq.job.failed", "Jobs that ended in failure"),
		failureAlerts: count("jobq.alert.failure", "Failure threshold alerts raised"),
		backlogAlerts: count("jobq.alert.backlog", "Backlog threshold alerts raised"),
		active:        active,
		waitTime:      seconds("jobq.job.wait", "Time a job spent pending before a slot claimed it"),
		runTime:       seconds("jobq.job.run", "Time from claim to successful completion"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func byType(jobType string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("job_type", jobType))
}

func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	m.enqueued.Add(ctx, 1, byType(j.Type))
	return nil
}

func (m *MetricsExtension) OnJobRequeued(ctx context.Context, j *job.Job, _ id.JobID) error {
	m.requeued.Add(ctx, 1, byType(j.Type))
	return nil
}

func (m *MetricsExtension) OnJobStarted(ctx context.Context, j *job.Job) error {
	m.active.Add(ctx, 1, byType(j.Type))
	if j.StartedAt != nil && !j.CreatedAt.IsZero() {
		m.waitTime.Record(ctx, j.StartedAt.Sub(j.CreatedAt).Seconds(), byType(j.Type))
	}
	return nil
}

func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	m.active.Add(ctx, -1, byType(j.Type))
	m.completed.Add(ctx, 1, byType(j.Type))
	m.runTime.Record(ctx, elapsed.Seconds(), byType(j.Type))
	return nil
}

func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.active.Add(ctx, -1, byType(j.Type))
	m.failed.Add(ctx, 1, byType(j.Type))
	return nil
}

func (m *MetricsExtension) OnFailureAlert(ctx context.Context, a health.FailureAlert) error {
	m.failureAlerts.Add(ctx, 1, byType(a.Type))
	return nil
}

func (m *MetricsExtension) OnBacklogAlert(ctx context.Context, a health.BacklogAlert) error {
	m.backlogAlerts.Add(ctx, 1, byType(a.Type))
	return nil
}
