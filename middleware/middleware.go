// Package middleware wraps job handlers with cross-cutting behaviour.
//
// A Middleware sees the claimed job and decides when, or whether, to call
// next. Chain nests them so the first argument runs outermost:
//
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//	// Logging( Recover( handler ) )
//
// The worker always installs Recover innermost, so a panicking handler
// fails its job instead of killing the slot.
package middleware

import (
	"context"

	"github.com/xraph/jobq/job"
)

// Handler runs the job body and returns its result note.
type Handler func(ctx context.Context) (string, error)

// Middleware wraps next. Returning without calling next short-circuits the
// job with whatever result and error the middleware returns.
type Middleware func(ctx context.Context, j *job.Job, next Handler) (string, error)

// Chain folds mws into one Middleware, first element outermost.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (string, error) {
		return bind(mws, j, next)(ctx)
	}
}

func bind(mws []Middleware, j *job.Job, terminal Handler) Handler {
	if len(mws) == 0 {
		return terminal
	}
	inner := bind(mws[1:], j, terminal)
	outer := mws[0]
	return func(ctx context.Context) (string, error) {
		return outer(ctx, j, inner)
	}
}
