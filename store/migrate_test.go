package store_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/xraph/jobq/store"
)

type fakeLedger struct {
	applied map[string]bool
	order   []string
	failOn  string
	ensured bool
}

func (f *fakeLedger) EnsureLedger(context.Context) error {
	f.ensured = true
	return nil
}

func (f *fakeLedger) Applied(_ context.Context, name string) (bool, error) {
	return f.applied[name], nil
}

func (f *fakeLedger) Apply(_ context.Context, m store.Migration) error {
	if m.Name == f.failOn {
		return errors.New("syntax error")
	}
	f.applied[m.Name] = true
	f.order = append(f.order, m.Name)
	return nil
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/002_index.sql": {Data: []byte("CREATE INDEX x;")},
		"migrations/001_jobs.sql":  {Data: []byte("CREATE TABLE jobs;")},
		"migrations/README.md":     {Data: []byte("ignored")},
	}
}

func TestLoadMigrationsSorted(t *testing.T) {
	ms, err := store.LoadMigrations(testFS(), "migrations")
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("got %d migrations, want 2", len(ms))
	}
	if ms[0].Name != "001_jobs.sql" || ms[0].SQL != "CREATE TABLE jobs;" {
		t.Fatalf("first migration = %+v", ms[0])
	}
}

func TestRunMigrationsSkipsApplied(t *testing.T) {
	l := &fakeLedger{applied: map[string]bool{"001_jobs.sql": true}}

	got, err := store.RunMigrations(context.Background(), l, testFS(), "migrations", nil)
	if err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if !l.ensured {
		t.Fatal("ledger table not ensured")
	}
	if len(got) != 1 || got[0] != "002_index.sql" {
		t.Fatalf("applied = %v", got)
	}

	again, err := store.RunMigrations(context.Background(), l, testFS(), "migrations", nil)
	if err != nil || len(again) != 0 {
		t.Fatalf("second run applied %v, err %v", again, err)
	}
}

func TestRunMigrationsStopsOnFailure(t *testing.T) {
	l := &fakeLedger{applied: map[string]bool{}, failOn: "002_index.sql"}

	got, err := store.RunMigrations(context.Background(), l, testFS(), "migrations", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(got) != 1 || got[0] != "001_jobs.sql" {
		t.Fatalf("applied before failure = %v", got)
	}
}

func TestRunMigrationsMissingDir(t *testing.T) {
	l := &fakeLedger{applied: map[string]bool{}}
	if _, err := store.RunMigrations(context.Background(), l, fstest.MapFS{}, "migrations", nil); err == nil {
		t.Fatal("expected error for missing dir")
	}
	if l.ensured {
		t.Fatal("ledger touched before migrations were loaded")
	}
}
