package middleware_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	mw "github.com/xraph/jobq/middleware"
)

// runMetered executes one job through the metrics middleware and returns
// the collected instruments by name.
func runMetered(t *testing.T, h mw.Handler) map[string]metricdata.Aggregation {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	_, _ = mw.MetricsWithMeter(mp.Meter("test"))(context.Background(), newTestJob(), h)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func attrString(set attribute.Set, key attribute.Key) string {
	v, _ := set.Value(key)
	return v.AsString()
}

func TestMetrics_Outcomes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ok", nil, "ok"},
		{"error", errors.New("smtp timeout"), "error"},
		{"fault", &mw.PanicError{Value: "boom"}, "fault"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runMetered(t, func(context.Context) (string, error) { return "", tt.err })

			sum, ok := got["jobq.job.executions"].(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) != 1 {
				t.Fatalf("executions = %#v", got["jobq.job.executions"])
			}
			dp := sum.DataPoints[0]
			if dp.Value != 1 {
				t.Errorf("executions = %d, want 1", dp.Value)
			}
			if s := attrString(dp.Attributes, "status"); s != tt.want {
				t.Errorf("status = %q, want %q", s, tt.want)
			}
			if s := attrString(dp.Attributes, "job_type"); s != "email" {
				t.Errorf("job_type = %q", s)
			}

			hist, ok := got["jobq.job.duration"].(metricdata.Histogram[float64])
			if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
				t.Fatalf("duration = %#v", got["jobq.job.duration"])
			}
		})
	}
}

func TestMetrics_GlobalNoop(t *testing.T) {
	called := false
	_, err := mw.Metrics()(context.Background(), newTestJob(), func(context.Context) (string, error) {
		called = true
		return "", nil
	})
	if err != nil || !called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
}
