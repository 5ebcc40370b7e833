package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobq/job"
)

const instrumentationName = "github.com/xraph/jobq"

// Tracing opens a consumer span per execution on the global provider.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(instrumentationName))
}

// TracingWithTracer opens a span named "<type> process" for each execution.
// The span carries jobq.job.id, jobq.job.type, jobq.job.seq, jobq.worker.id
// and, for requeued jobs, jobq.job.requeued_from. A handler error marks the
// span failed; a non-empty result note is added as attribute jobq.job.result.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (string, error) {
		ctx, span := tracer.Start(ctx, j.Type+" process",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(jobAttributes(j)...),
		)
		defer span.End()

		result, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return result, err
		}
		if result != "" {
			span.SetAttributes(attribute.String("jobq.job.result", result))
		}
		span.SetStatus(codes.Ok, "")
		return result, nil
	}
}

func jobAttributes(j *job.Job) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("jobq.job.id", j.ID.String()),
		attribute.String("jobq.job.type", j.Type),
		attribute.Int64("jobq.job.seq", j.Seq),
		attribute.String("jobq.worker.id", j.WorkerID.String()),
	}
	if !j.RequeuedFrom.IsNil() {
		attrs = append(attrs, attribute.String("jobq.job.requeued_from", j.RequeuedFrom.String()))
	}
	return attrs
}
