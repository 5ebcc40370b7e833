package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/ext"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/middleware"
	"github.com/xraph/jobq/store/memory"
	"github.com/xraph/jobq/worker"
)

func claimOne(t *testing.T, s *memory.Store, jobType string) *job.Job {
	t.Helper()
	ctx := context.Background()
	if _, err := s.Insert(ctx, &job.Job{Type: jobType}); err != nil {
		t.Fatalf("insert error: %v", err)
	}
	j, err := s.ClaimNext(ctx, jobType, id.NewWorkerID())
	if err != nil || j == nil {
		t.Fatalf("claim = %v, %v", j, err)
	}
	return j
}

func TestExecutor_RecoverIsInnermost(t *testing.T) {
	logger := slog.Default()
	s := memory.New()

	var seen error
	outer := func(ctx context.Context, j *job.Job, next middleware.Handler) (string, error) {
		res, err := next(ctx)
		seen = err
		return res, err
	}

	exec := worker.NewExecutor(s, ext.NewRegistry(logger), logger, outer)
	j := claimOne(t, s, "panicky")

	err := exec.Execute(context.Background(), j, func(context.Context, []byte, job.Reporter) (string, error) {
		panic("boom")
	})
	if !errors.Is(err, jobq.ErrHandlerFault) {
		t.Fatalf("Execute error = %v, want ErrHandlerFault", err)
	}
	if !errors.Is(seen, jobq.ErrHandlerFault) {
		t.Fatalf("outer middleware saw %v, want ErrHandlerFault", seen)
	}

	got, err := s.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.Status != job.StatusFailed || got.Error != "handler fault: boom" {
		t.Fatalf("got status=%s error=%q", got.Status, got.Error)
	}
}

func TestExecutor_CompleteStoresResult(t *testing.T) {
	logger := slog.Default()
	s := memory.New()
	exec := worker.NewExecutor(s, ext.NewRegistry(logger), logger)
	j := claimOne(t, s, "email")

	err := exec.Execute(context.Background(), j, func(context.Context, []byte, job.Reporter) (string, error) {
		return "queued as 250 OK", nil
	})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if j.Status != job.StatusCompleted || j.FinishedAt == nil {
		t.Fatalf("snapshot not updated: status=%s finished=%v", j.Status, j.FinishedAt)
	}

	got, err := s.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.Result != "queued as 250 OK" {
		t.Fatalf("result = %q", got.Result)
	}
}

func TestExecutor_ProgressAfterTerminalRejected(t *testing.T) {
	logger := slog.Default()
	s := memory.New()
	exec := worker.NewExecutor(s, ext.NewRegistry(logger), logger)
	j := claimOne(t, s, "leaky")

	var leaked job.Reporter
	if err := exec.Execute(context.Background(), j, func(_ context.Context, _ []byte, p job.Reporter) (string, error) {
		leaked = p
		return "", nil
	}); err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	err := leaked.Report(context.Background(), 1, 1, "late")
	if !errors.Is(err, jobq.ErrInvalidState) {
		t.Fatalf("late report error = %v, want ErrInvalidState", err)
	}
}
