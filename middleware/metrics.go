package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/job"
)

// Metrics records executions on the global MeterProvider.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(instrumentationName))
}

// MetricsWithMeter records two instruments per execution, labelled with
// job_type and status:
//
//	jobq.job.duration    histogram, seconds
//	jobq.job.executions  counter
//
// status is "ok", "error" or "fault" (a recovered panic). The number of
// running jobs is tracked by observability.MetricsExtension instead.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instrument constructors fall back to noop on error.
	duration, _ := meter.Float64Histogram("jobq.job.duration", //nolint:errcheck // noop fallback
		metric.WithDescription("Job handler execution time"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter("jobq.job.executions", //nolint:errcheck // noop fallback
		metric.WithDescription("Job handler executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) (string, error) {
		start := time.Now()
		result, err := next(ctx)

		outcome := metric.WithAttributes(
			attribute.String("job_type", j.Type),
			attribute.String("status", status(err)),
		)
		duration.Record(ctx, time.Since(start).Seconds(), outcome)
		executions.Add(ctx, 1, outcome)
		return result, err
	}
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, jobq.ErrHandlerFault) {
		return "fault"
	}
	return "error"
}
