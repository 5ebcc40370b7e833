package job

import (
	"context"
	"encoding/json"
	"fmt"
)

// Definition is a typed job definition. T is the payload type and must be
// JSON-serializable; the queue core still only sees bytes.
type Definition[T any] struct {
	// Type is the job type tag.
	Type string

	// Handler processes the decoded payload.
	Handler func(ctx context.Context, payload T, progress Reporter) (string, error)

	// Opts configures the pool for this type.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](jobType string, handler func(ctx context.Context, payload T, progress Reporter) (string, error), opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Type:    jobType,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}

// HandlerFunc returns the type-erased handler. The payload is decoded into
// T before the typed handler runs; an empty payload yields T's zero value.
func (d *Definition[T]) HandlerFunc() HandlerFunc {
	return func(ctx context.Context, payload []byte, progress Reporter) (string, error) {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return "", fmt.Errorf("unmarshal payload for job type %q: %w", d.Type, err)
			}
		}
		return d.Handler(ctx, t, progress)
	}
}

// RegisterDefinition registers a typed definition. It is a package-level
// function because Go does not allow generic methods. A definition with no
// explicit concurrency gets DefaultConcurrency slots.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) error {
	concurrency := def.Opts.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	return r.Register(def.Type, def.HandlerFunc(), concurrency)
}

// Encode JSON-encodes a typed payload for enqueueing.
func Encode[T any](payload T) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	return data, nil
}
