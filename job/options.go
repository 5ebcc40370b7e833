package job

// Options configures per-type pool behavior.
type Options struct {
	// Concurrency is the number of worker slots for the type. Zero means
	// inherit: queue.Register substitutes the manager's default and
	// RegisterDefinition uses DefaultConcurrency.
	Concurrency int
}

// DefaultConcurrency is the slot count a bare definition gets outside a
// manager.
const DefaultConcurrency = 1

// DefaultOptions returns Options that inherit concurrency from whoever
// registers the definition.
func DefaultOptions() Options {
	return Options{}
}

// Option is a functional option for a job definition.
type Option func(*Options)

// WithConcurrency sets the number of worker slots for the type.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}
