package health_test

import (
	"context"
	"testing"

	"github.com/xraph/jobq/health"
)

func TestMultiSink_FansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	var funcCalls int
	sink := health.MultiSink{a, b, health.FuncSink{
		Backlog: func(context.Context, health.BacklogAlert) { funcCalls++ },
	}}

	ctx := context.Background()
	sink.OnBacklogAlert(ctx, health.BacklogAlert{Type: "email", Count: 101})
	sink.OnFailureAlert(ctx, health.FailureAlert{Type: "email", Count: 1001})

	for _, r := range []*recordingSink{a, b} {
		failures, backlogs := r.snapshot()
		if len(failures) != 1 || len(backlogs) != 1 {
			t.Fatalf("sink got %d failures and %d backlogs, want 1 each", len(failures), len(backlogs))
		}
	}
	if funcCalls != 1 {
		t.Fatalf("FuncSink backlog calls = %d, want 1", funcCalls)
	}
}
