// Package jobq provides a typed, in-process asynchronous job queue with
// per-type bounded worker pools, progress tracking, pluggable persistence,
// and a health monitor that watches for backlog growth and failure spikes.
//
// jobq is designed as a library. Construct a queue.Manager over a store,
// register one handler per job type with its concurrency limit, start it,
// and enqueue opaque payloads.
//
// # Quick Start
//
//	m := queue.New(memory.New(), queue.WithLogger(logger))
//	_ = m.RegisterHandler("email", sendEmail, 4)
//	_ = m.Start(ctx)
//	jobID, err := m.Enqueue(ctx, "email", payload)
//
// # Architecture
//
// The job store is the single shared mutable resource. Every state change
// (claim, progress, completion, failure) goes through one of its atomic
// operations, so any reader observes a consistent job record. Each job type
// owns an independent worker pool whose slot count bounds the number of
// in-flight jobs of that type.
//
// Jobs move through pending → active → completed|failed and never move
// backwards. There is no automatic retry: a failed job stays failed and
// callers may re-enqueue it explicitly.
//
// All job IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based.
package jobq
