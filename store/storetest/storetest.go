// Package storetest provides a conformance suite run against every
// store.Store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/store"
)

// Factory returns a fresh, migrated, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the full suite against the stores returned by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Lifecycle", testLifecycle},
		{"InsertAndGet", testInsertAndGet},
		{"InsertDuplicateID", testInsertDuplicateID},
		{"GetNotFound", testGetNotFound},
		{"ClaimEmpty", testClaimEmpty},
		{"ClaimFIFO", testClaimFIFO},
		{"ClaimIsolatesTypes", testClaimIsolatesTypes},
		{"ClaimSingleWinner", testClaimSingleWinner},
		{"ClaimBurstExactlyOnce", testClaimBurstExactlyOnce},
		{"Complete", testComplete},
		{"Fail", testFail},
		{"TerminalIsImmutable", testTerminalIsImmutable},
		{"PendingCannotFinish", testPendingCannotFinish},
		{"UnknownJobTransitions", testUnknownJobTransitions},
		{"Progress", testProgress},
		{"RangeByTypeAndStatus", testRange},
		{"CountByTypeAndStatus", testCount},
		{"Purge", testPurge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			tt.fn(t, s)
		})
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func insert(t *testing.T, s store.Store, jobType, payload string) id.JobID {
	t.Helper()
	jobID, err := s.Insert(context.Background(), &job.Job{Type: jobType, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("Insert(%s): %v", jobType, err)
	}
	return jobID
}

func claim(t *testing.T, s store.Store, jobType string) *job.Job {
	t.Helper()
	j, err := s.ClaimNext(context.Background(), jobType, id.NewWorkerID())
	if err != nil {
		t.Fatalf("ClaimNext(%s): %v", jobType, err)
	}
	return j
}

func get(t *testing.T, s store.Store, jobID id.JobID) *job.Job {
	t.Helper()
	j, err := s.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Get(%s): %v", jobID, err)
	}
	return j
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func testLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate (idempotent): %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func testInsertAndGet(t *testing.T, s store.Store) {
	before := time.Now().Add(-time.Second)
	jobID := insert(t, s, "email", `{"to":"a@example.com"}`)
	if jobID.IsNil() {
		t.Fatal("Insert returned nil ID")
	}
	if jobID.Prefix() != id.PrefixJob {
		t.Errorf("ID prefix = %q, want %q", jobID.Prefix(), id.PrefixJob)
	}

	j := get(t, s, jobID)
	if j.ID.String() != jobID.String() {
		t.Errorf("ID = %s, want %s", j.ID, jobID)
	}
	if j.Type != "email" {
		t.Errorf("Type = %q, want email", j.Type)
	}
	if string(j.Payload) != `{"to":"a@example.com"}` {
		t.Errorf("Payload = %s", j.Payload)
	}
	if j.Status != job.StatusPending {
		t.Errorf("Status = %q, want pending", j.Status)
	}
	if j.CreatedAt.Before(before) {
		t.Errorf("CreatedAt = %v, want after %v", j.CreatedAt, before)
	}
	if j.StartedAt != nil || j.FinishedAt != nil {
		t.Error("pending job should have no StartedAt/FinishedAt")
	}
}

func testInsertDuplicateID(t *testing.T, s store.Store) {
	ctx := context.Background()
	jobID := id.NewJobID()
	if _, err := s.Insert(ctx, &job.Job{ID: jobID, Type: "email"}); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	_, err := s.Insert(ctx, &job.Job{ID: jobID, Type: "email"})
	if !errors.Is(err, jobq.ErrJobAlreadyExists) {
		t.Fatalf("second Insert err = %v, want ErrJobAlreadyExists", err)
	}
}

func testGetNotFound(t *testing.T, s store.Store) {
	_, err := s.Get(context.Background(), id.NewJobID())
	if !errors.Is(err, jobq.ErrJobNotFound) {
		t.Fatalf("Get err = %v, want ErrJobNotFound", err)
	}
}

func testClaimEmpty(t *testing.T, s store.Store) {
	if j := claim(t, s, "email"); j != nil {
		t.Fatalf("ClaimNext on empty store = %v, want nil", j.ID)
	}
}

func testClaimFIFO(t *testing.T, s store.Store) {
	var ids []id.JobID
	for i := range 5 {
		ids = append(ids, insert(t, s, "email", fmt.Sprintf(`{"n":%d}`, i)))
	}

	workerID := id.NewWorkerID()
	for i, want := range ids {
		j, err := s.ClaimNext(context.Background(), "email", workerID)
		if err != nil {
			t.Fatalf("ClaimNext #%d: %v", i, err)
		}
		if j == nil {
			t.Fatalf("ClaimNext #%d returned nil", i)
		}
		if j.ID.String() != want.String() {
			t.Fatalf("ClaimNext #%d = %s, want %s", i, j.ID, want)
		}
		if j.Status != job.StatusActive {
			t.Errorf("claimed Status = %q, want active", j.Status)
		}
		if j.StartedAt == nil {
			t.Error("claimed job has no StartedAt")
		}
		if j.WorkerID.String() != workerID.String() {
			t.Errorf("WorkerID = %s, want %s", j.WorkerID, workerID)
		}
	}
	if j := claim(t, s, "email"); j != nil {
		t.Fatalf("extra claim = %s, want nil", j.ID)
	}
}

func testClaimIsolatesTypes(t *testing.T, s store.Store) {
	insert(t, s, "sms", `{}`)
	if j := claim(t, s, "email"); j != nil {
		t.Fatalf("claimed %s job from email queue", j.Type)
	}
	j := claim(t, s, "sms")
	if j == nil || j.Type != "sms" {
		t.Fatalf("ClaimNext(sms) = %v, want sms job", j)
	}
}

func testClaimSingleWinner(t *testing.T, s store.Store) {
	jobID := insert(t, s, "email", `{}`)

	const claimers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []id.JobID
		errs    []error
	)
	start := make(chan struct{})
	for range claimers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			j, err := s.ClaimNext(context.Background(), "email", id.NewWorkerID())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if j != nil {
				winners = append(winners, j.ID)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("ClaimNext errors: %v", errs)
	}
	if len(winners) != 1 {
		t.Fatalf("winners = %d, want exactly 1", len(winners))
	}
	if winners[0].String() != jobID.String() {
		t.Errorf("winner = %s, want %s", winners[0], jobID)
	}
}

func testClaimBurstExactlyOnce(t *testing.T, s store.Store) {
	const total = 40
	for i := range total {
		insert(t, s, "email", fmt.Sprintf(`{"n":%d}`, i))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]int)
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerID := id.NewWorkerID()
			for {
				j, err := s.ClaimNext(context.Background(), "email", workerID)
				if err != nil {
					t.Errorf("ClaimNext: %v", err)
					return
				}
				if j == nil {
					return
				}
				mu.Lock()
				seen[j.ID.String()]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("claimed %d distinct jobs, want %d", len(seen), total)
	}
	for jobID, n := range seen {
		if n != 1 {
			t.Errorf("job %s claimed %d times", jobID, n)
		}
	}
}

func testComplete(t *testing.T, s store.Store) {
	jobID := insert(t, s, "email", `{}`)
	claim(t, s, "email")

	if err := s.Complete(context.Background(), jobID, "sent"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	j := get(t, s, jobID)
	if j.Status != job.StatusCompleted {
		t.Errorf("Status = %q, want completed", j.Status)
	}
	if j.Result != "sent" {
		t.Errorf("Result = %q, want sent", j.Result)
	}
	if j.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	if j.Error != "" {
		t.Errorf("Error = %q, want empty", j.Error)
	}
}

func testFail(t *testing.T, s store.Store) {
	jobID := insert(t, s, "email", `{}`)
	claim(t, s, "email")

	if err := s.Fail(context.Background(), jobID, "smtp timeout"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	j := get(t, s, jobID)
	if j.Status != job.StatusFailed {
		t.Errorf("Status = %q, want failed", j.Status)
	}
	if j.Error != "smtp timeout" {
		t.Errorf("Error = %q, want smtp timeout", j.Error)
	}
	if j.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
}

func testTerminalIsImmutable(t *testing.T, s store.Store) {
	ctx := context.Background()
	completed := insert(t, s, "email", `{}`)
	claim(t, s, "email")
	if err := s.Complete(ctx, completed, ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	failed := insert(t, s, "email", `{}`)
	claim(t, s, "email")
	if err := s.Fail(ctx, failed, "boom"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	tests := []struct {
		name string
		fn   func() error
	}{
		{"complete completed", func() error { return s.Complete(ctx, completed, "again") }},
		{"fail completed", func() error { return s.Fail(ctx, completed, "late") }},
		{"progress completed", func() error { return s.UpdateProgress(ctx, completed, job.Progress{Completed: 1}) }},
		{"complete failed", func() error { return s.Complete(ctx, failed, "") }},
		{"fail failed", func() error { return s.Fail(ctx, failed, "again") }},
		{"progress failed", func() error { return s.UpdateProgress(ctx, failed, job.Progress{Completed: 1}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, jobq.ErrInvalidState) {
				t.Fatalf("err = %v, want ErrInvalidState", err)
			}
		})
	}

	if j := get(t, s, completed); j.Status != job.StatusCompleted || j.Result != "" {
		t.Errorf("completed job changed: status=%q result=%q", j.Status, j.Result)
	}
	if j := get(t, s, failed); j.Status != job.StatusFailed || j.Error != "boom" {
		t.Errorf("failed job changed: status=%q error=%q", j.Status, j.Error)
	}
}

func testPendingCannotFinish(t *testing.T, s store.Store) {
	ctx := context.Background()
	jobID := insert(t, s, "email", `{}`)

	if err := s.Complete(ctx, jobID, ""); !errors.Is(err, jobq.ErrInvalidState) {
		t.Errorf("Complete(pending) err = %v, want ErrInvalidState", err)
	}
	if err := s.Fail(ctx, jobID, "x"); !errors.Is(err, jobq.ErrInvalidState) {
		t.Errorf("Fail(pending) err = %v, want ErrInvalidState", err)
	}
	if err := s.UpdateProgress(ctx, jobID, job.Progress{Completed: 1}); !errors.Is(err, jobq.ErrInvalidState) {
		t.Errorf("UpdateProgress(pending) err = %v, want ErrInvalidState", err)
	}
	if j := get(t, s, jobID); j.Status != job.StatusPending {
		t.Errorf("Status = %q, want pending", j.Status)
	}
}

func testUnknownJobTransitions(t *testing.T, s store.Store) {
	ctx := context.Background()
	unknown := id.NewJobID()

	if err := s.Complete(ctx, unknown, ""); !errors.Is(err, jobq.ErrJobNotFound) {
		t.Errorf("Complete err = %v, want ErrJobNotFound", err)
	}
	if err := s.Fail(ctx, unknown, ""); !errors.Is(err, jobq.ErrJobNotFound) {
		t.Errorf("Fail err = %v, want ErrJobNotFound", err)
	}
	if err := s.UpdateProgress(ctx, unknown, job.Progress{}); !errors.Is(err, jobq.ErrJobNotFound) {
		t.Errorf("UpdateProgress err = %v, want ErrJobNotFound", err)
	}
}

func testProgress(t *testing.T, s store.Store) {
	ctx := context.Background()
	jobID := insert(t, s, "report", `{}`)
	claim(t, s, "report")

	for i := int64(1); i <= 3; i++ {
		p := job.Progress{Completed: i, Total: 3, Label: fmt.Sprintf("step %d", i)}
		if err := s.UpdateProgress(ctx, jobID, p); err != nil {
			t.Fatalf("UpdateProgress(%d): %v", i, err)
		}
	}
	j := get(t, s, jobID)
	want := job.Progress{Completed: 3, Total: 3, Label: "step 3"}
	if j.Progress != want {
		t.Errorf("Progress = %+v, want %+v", j.Progress, want)
	}
	if j.Status != job.StatusActive {
		t.Errorf("Status = %q, want active", j.Status)
	}
}

func testRange(t *testing.T, s store.Store) {
	ctx := context.Background()
	var ids []string
	for i := range 5 {
		ids = append(ids, insert(t, s, "email", fmt.Sprintf(`{"n":%d}`, i)).String())
	}
	insert(t, s, "sms", `{}`)

	// Move the first job out of pending.
	claim(t, s, "email")

	tests := []struct {
		name string
		opts job.RangeOpts
		want []string
	}{
		{"all ascending", job.RangeOpts{}, ids[1:]},
		{"descending", job.RangeOpts{Order: job.OrderDesc}, []string{ids[4], ids[3], ids[2], ids[1]}},
		{"limit", job.RangeOpts{Limit: 2}, ids[1:3]},
		{"offset", job.RangeOpts{Offset: 2}, ids[3:]},
		{"offset and limit", job.RangeOpts{Offset: 1, Limit: 2}, ids[2:4]},
		{"offset past end", job.RangeOpts{Offset: 10}, nil},
		{"negative offset starts at zero", job.RangeOpts{Offset: -1, Limit: 2}, ids[1:3]},
		{"negative limit means no limit", job.RangeOpts{Limit: -3}, ids[1:]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := s.RangeByTypeAndStatus(ctx, "email", job.StatusPending, tt.opts)
			if err != nil {
				t.Fatalf("RangeByTypeAndStatus: %v", err)
			}
			if len(jobs) != len(tt.want) {
				t.Fatalf("got %d jobs, want %d", len(jobs), len(tt.want))
			}
			for i, j := range jobs {
				if j.ID.String() != tt.want[i] {
					t.Errorf("jobs[%d] = %s, want %s", i, j.ID, tt.want[i])
				}
				if j.Status != job.StatusPending || j.Type != "email" {
					t.Errorf("jobs[%d] = %s/%s, want email/pending", i, j.Type, j.Status)
				}
			}
		})
	}

	active, err := s.RangeByTypeAndStatus(ctx, "email", job.StatusActive, job.RangeOpts{})
	if err != nil {
		t.Fatalf("RangeByTypeAndStatus(active): %v", err)
	}
	if len(active) != 1 || active[0].ID.String() != ids[0] {
		t.Errorf("active = %v, want [%s]", active, ids[0])
	}
}

func testCount(t *testing.T, s store.Store) {
	ctx := context.Background()
	for range 7 {
		insert(t, s, "email", `{}`)
	}
	for range 2 {
		j := claim(t, s, "email")
		if err := s.Fail(ctx, j.ID, "boom"); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}

	tests := []struct {
		status job.Status
		window int
		want   int64
	}{
		{job.StatusPending, 0, 5},
		{job.StatusPending, 3, 3},
		{job.StatusPending, 100, 5},
		{job.StatusFailed, 0, 2},
		{job.StatusFailed, 1, 1},
		{job.StatusCompleted, 0, 0},
		{job.StatusActive, 0, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/window=%d", tt.status, tt.window), func(t *testing.T) {
			n, err := s.CountByTypeAndStatus(ctx, "email", tt.status, tt.window)
			if err != nil {
				t.Fatalf("CountByTypeAndStatus: %v", err)
			}
			if n != tt.want {
				t.Errorf("count = %d, want %d", n, tt.want)
			}
		})
	}

	n, err := s.CountByTypeAndStatus(ctx, "sms", job.StatusPending, 0)
	if err != nil {
		t.Fatalf("CountByTypeAndStatus(sms): %v", err)
	}
	if n != 0 {
		t.Errorf("sms pending = %d, want 0", n)
	}
}

func testPurge(t *testing.T, s store.Store) {
	ctx := context.Background()
	done := insert(t, s, "email", `{}`)
	claim(t, s, "email")
	if err := s.Complete(ctx, done, ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	pending := insert(t, s, "email", `{}`)

	n, err := s.Purge(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Purge(past): %v", err)
	}
	if n != 0 {
		t.Errorf("Purge(past) removed %d, want 0", n)
	}

	n, err = s.Purge(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Purge(future): %v", err)
	}
	if n != 1 {
		t.Errorf("Purge(future) removed %d, want 1", n)
	}
	if _, err := s.Get(ctx, done); !errors.Is(err, jobq.ErrJobNotFound) {
		t.Errorf("Get(purged) err = %v, want ErrJobNotFound", err)
	}
	if j := get(t, s, pending); j.Status != job.StatusPending {
		t.Errorf("pending job Status = %q after purge", j.Status)
	}
}
