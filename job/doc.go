// Package job defines the job entity, its state machine, typed
// definitions, the handler registry and the store interface.
//
// # Job Entity
//
// A [Job] is one unit of work: a type tag selecting the handler, an opaque
// payload, and runtime state. Jobs move through:
//
//	pending → active → completed
//	pending → active → failed
//
// Terminal states are immutable. Progress is written only while active.
//
// # Defining a Job
//
// Use [Definition] with a typed handler. The payload is JSON-decoded
// before the handler runs:
//
//	var SendEmail = job.NewDefinition("email",
//	    func(ctx context.Context, in EmailInput, p job.Reporter) (string, error) {
//	        return mailer.Send(ctx, in)
//	    },
//	    job.WithConcurrency(4),
//	)
//
// # Registry
//
// [Registry] maps job types to a [HandlerFunc] and a concurrency limit.
// One handler per type; the registry is frozen once the queue starts.
package job
