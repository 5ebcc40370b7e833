package store

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
)

// Migration is one embedded SQL file.
type Migration struct {
	Name string
	SQL  string
}

// Ledger records which migrations a database has already applied.
// SQL backends implement it over a jobq_migrations table.
type Ledger interface {
	// EnsureLedger creates the bookkeeping table if it is missing.
	EnsureLedger(ctx context.Context) error
	// Applied reports whether name has been recorded.
	Applied(ctx context.Context, name string) (bool, error)
	// Apply executes m and records it. Backends should do both atomically.
	Apply(ctx context.Context, m Migration) error
}

// LoadMigrations reads every *.sql file in dir, sorted by name.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Name: e.Name(), SQL: string(data)})
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// RunMigrations applies every migration in fsys/dir that l has not seen yet
// and returns the names it applied.
func RunMigrations(ctx context.Context, l Ledger, fsys fs.FS, dir string, logger *slog.Logger) ([]string, error) {
	migrations, err := LoadMigrations(fsys, dir)
	if err != nil {
		return nil, err
	}
	if err := l.EnsureLedger(ctx); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	var applied []string
	for _, m := range migrations {
		done, err := l.Applied(ctx, m.Name)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", m.Name, err)
		}
		if done {
			continue
		}
		if err := l.Apply(ctx, m); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		applied = append(applied, m.Name)
		if logger != nil {
			logger.Info("applied migration", slog.String("file", m.Name))
		}
	}
	return applied, nil
}
