// Package queue provides the Manager: the entry point that registers
// handlers, admits jobs and runs one worker pool per job type.
//
//	m := queue.New(store, queue.WithLogger(logger))
//	_ = m.RegisterHandler("email", sendEmail, 4)
//	_ = m.Start(ctx)
//	jobID, err := m.Enqueue(ctx, "email", payload)
//	...
//	_ = m.Shutdown(30 * time.Second)
//
// Enqueue returns as soon as the job is stored; it fails only when the
// type is unregistered (*jobq.UnknownTypeError) or the store fails
// (*jobq.StoreError). Job outcomes are observed later through GetJob,
// ListByTypeAndStatus, Stats or lifecycle extensions.
//
// # Per-Type Limits
//
// Concurrency is fixed at registration. Use [Limit] to additionally
// throttle claims with a token bucket (golang.org/x/time/rate):
//
//	queue.New(store, queue.WithLimits(
//	    queue.Limit{Type: "email", RateLimit: 10, RateBurst: 20},
//	))
//
// # Requeue
//
// Failed jobs stay failed. [Manager.Requeue] enqueues a copy of a failed
// job as a new job linked through RequeuedFrom; nothing calls it
// automatically.
package queue
