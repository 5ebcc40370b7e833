// Package postgres implements store.Store using pgx/v5 with raw SQL.
// Features: SKIP LOCKED claiming, status-guarded transitions, embedded SQL
// migrations.
package postgres
