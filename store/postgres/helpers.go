package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/jobq"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// wrap reports a PostgreSQL failure as a *jobq.StoreError.
func wrap(op string, err error) error {
	return jobq.NewStoreError("postgres."+op, err)
}

// nullLimit maps a non-positive limit to SQL NULL, which means no limit.
func nullLimit(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}
