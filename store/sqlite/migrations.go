package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the jobq sqlite store.
var Migrations = migrate.NewGroup("jobq")

func init() {
	Migrations.MustRegister(
		// 001: jobs table with the claim and purge indexes.
		&migrate.Migration{
			Name:    "create_jobs_table",
			Version: "20260101000000",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS jobq_jobs (
						seq                INTEGER PRIMARY KEY AUTOINCREMENT,
						id                 TEXT NOT NULL UNIQUE,
						type               TEXT NOT NULL,
						payload            BLOB NOT NULL DEFAULT x'',
						status             TEXT NOT NULL DEFAULT 'pending'
							CHECK (status IN ('pending', 'active', 'completed', 'failed')),
						progress_completed INTEGER NOT NULL DEFAULT 0,
						progress_total     INTEGER NOT NULL DEFAULT 0,
						progress_label     TEXT NOT NULL DEFAULT '',
						error              TEXT NOT NULL DEFAULT '',
						result             TEXT NOT NULL DEFAULT '',
						requeued_from      TEXT NOT NULL DEFAULT '',
						worker_id          TEXT NOT NULL DEFAULT '',
						created_at         INTEGER NOT NULL,
						started_at         INTEGER,
						finished_at        INTEGER,
						updated_at         INTEGER NOT NULL
					)`)
				if err != nil {
					return err
				}

				_, err = exec.Exec(ctx, `
					CREATE INDEX IF NOT EXISTS idx_jobq_jobs_claim
						ON jobq_jobs (type, status, created_at, seq)`)
				if err != nil {
					return err
				}

				_, err = exec.Exec(ctx, `
					CREATE INDEX IF NOT EXISTS idx_jobq_jobs_finished
						ON jobq_jobs (finished_at)`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS jobq_jobs`)
				return err
			},
		},
	)
}
