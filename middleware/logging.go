package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/job"
)

// Logging logs each execution twice: once when it starts and once with its
// outcome. Handler faults log at error level, ordinary failures at warn.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (string, error) {
		l := logger.With(
			slog.String("job_type", j.Type),
			slog.String("job_id", j.ID.String()),
			slog.String("worker_id", j.WorkerID.String()),
		)
		if !j.RequeuedFrom.IsNil() {
			l = l.With(slog.String("requeued_from", j.RequeuedFrom.String()))
		}

		l.DebugContext(ctx, "job started")
		start := time.Now()
		result, err := next(ctx)
		elapsed := slog.Duration("elapsed", time.Since(start))

		switch {
		case err == nil:
			l.InfoContext(ctx, "job completed", elapsed, slog.String("result", result))
		case errors.Is(err, jobq.ErrHandlerFault):
			l.ErrorContext(ctx, "job failed", elapsed, slog.String("error", err.Error()))
		default:
			l.WarnContext(ctx, "job failed", elapsed, slog.String("error", err.Error()))
		}
		return result, err
	}
}
