package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/job"
)

// PanicError is the failure recorded for a handler that panicked.
// It matches jobq.ErrHandlerFault under errors.Is.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: %v", jobq.ErrHandlerFault, e.Value)
}

func (e *PanicError) Unwrap() error { return jobq.ErrHandlerFault }

// Recover turns a panic below it into a *PanicError.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (result string, err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			pe := &PanicError{Value: r, Stack: debug.Stack()}
			logger.ErrorContext(ctx, "job handler panicked",
				slog.String("job_type", j.Type),
				slog.String("job_id", j.ID.String()),
				slog.Any("panic", r),
				slog.String("stack", string(pe.Stack)),
			)
			result, err = "", pe
		}()
		return next(ctx)
	}
}
