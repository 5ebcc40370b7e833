package queue

import (
	"golang.org/x/time/rate"

	"github.com/xraph/jobq/worker"
)

// Limit defines claim rate limiting for one job type. Concurrency is set
// at registration; a Limit additionally throttles how fast the type's
// slots may take new work.
type Limit struct {
	// Type is the job type the limit applies to.
	Type string `json:"type" mapstructure:"type"`

	// RateLimit is the maximum sustained claims per second across the
	// type's pool. Zero disables rate limiting.
	RateLimit float64 `json:"rate_limit" mapstructure:"rate_limit"`

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int `json:"rate_burst" mapstructure:"rate_burst"`
}

// poolOption converts the limit into a worker pool option. It returns nil
// when the limit is disabled.
func (l Limit) poolOption() worker.PoolOption {
	if l.RateLimit <= 0 {
		return nil
	}
	burst := l.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return worker.WithRateLimit(rate.Limit(l.RateLimit), burst)
}
