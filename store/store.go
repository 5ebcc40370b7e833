package store

import (
	"context"
	"time"

	"github.com/xraph/jobq/job"
)

// Store is the full backend interface.
type Store interface {
	job.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Purge deletes terminal jobs that finished before cutoff and reports
	// how many were removed.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}
