package middleware_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
	mw "github.com/xraph/jobq/middleware"
)

func recordSpan(t *testing.T, j *job.Job, h mw.Handler) (sdktrace.ReadOnlySpan, error) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	_, err := mw.TracingWithTracer(tp.Tracer("test"))(context.Background(), j, h)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	return spans[0], err
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func newTestJob() *job.Job {
	return &job.Job{
		ID:       id.NewJobID(),
		Seq:      7,
		Type:     "email",
		Status:   job.StatusActive,
		WorkerID: id.NewWorkerID(),
	}
}

func TestTracing_Success(t *testing.T) {
	j := newTestJob()
	span, err := recordSpan(t, j, func(context.Context) (string, error) { return "msg-1", nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if span.Name() != "email process" {
		t.Errorf("Name = %q", span.Name())
	}
	if span.SpanKind() != trace.SpanKindConsumer {
		t.Errorf("SpanKind = %v", span.SpanKind())
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("Status = %v", span.Status())
	}

	attrs := spanAttrs(span)
	want := map[attribute.Key]attribute.Value{
		"jobq.job.id":     attribute.StringValue(j.ID.String()),
		"jobq.job.type":   attribute.StringValue("email"),
		"jobq.job.seq":    attribute.Int64Value(7),
		"jobq.worker.id":  attribute.StringValue(j.WorkerID.String()),
		"jobq.job.result": attribute.StringValue("msg-1"),
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("%s = %v, want %v", k, attrs[k].Emit(), v.Emit())
		}
	}
	if _, ok := attrs["jobq.job.requeued_from"]; ok {
		t.Error("fresh job carries jobq.job.requeued_from")
	}
}

func TestTracing_RequeuedJob(t *testing.T) {
	j := newTestJob()
	j.RequeuedFrom = id.NewJobID()

	span, _ := recordSpan(t, j, func(context.Context) (string, error) { return "", nil })

	attrs := spanAttrs(span)
	if got := attrs["jobq.job.requeued_from"].AsString(); got != j.RequeuedFrom.String() {
		t.Errorf("requeued_from = %q", got)
	}
	if _, ok := attrs["jobq.job.result"]; ok {
		t.Error("empty result note recorded")
	}
}

func TestTracing_Failure(t *testing.T) {
	handlerErr := errors.New("smtp timeout")
	span, err := recordSpan(t, newTestJob(), func(context.Context) (string, error) { return "", handlerErr })
	if !errors.Is(err, handlerErr) {
		t.Fatalf("err = %v", err)
	}

	if span.Status().Code != codes.Error || span.Status().Description != "smtp timeout" {
		t.Errorf("Status = %+v", span.Status())
	}
	var recorded bool
	for _, ev := range span.Events() {
		recorded = recorded || ev.Name == "exception"
	}
	if !recorded {
		t.Error("error not recorded as exception event")
	}
}

func TestTracing_HandlerSeesSpan(t *testing.T) {
	var inner trace.SpanContext
	span, _ := recordSpan(t, newTestJob(), func(ctx context.Context) (string, error) {
		inner = trace.SpanFromContext(ctx).SpanContext()
		return "", nil
	})
	if !inner.IsValid() || inner.SpanID() != span.SpanContext().SpanID() {
		t.Errorf("handler span = %v, want %v", inner.SpanID(), span.SpanContext().SpanID())
	}
}

func TestTracing_GlobalNoop(t *testing.T) {
	called := false
	_, err := mw.Tracing()(context.Background(), newTestJob(), func(context.Context) (string, error) {
		called = true
		return "", nil
	})
	if err != nil || !called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
}
