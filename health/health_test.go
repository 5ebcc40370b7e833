package health_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/jobq/health"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/store/memory"
)

// ──────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────

// fakeSource serves fixed counts, capped at the requested window.
type fakeSource struct {
	types  []string
	counts map[string]map[job.Status]int64
	errFor string
}

func (f *fakeSource) Types() []string { return f.types }

func (f *fakeSource) CountByTypeAndStatus(_ context.Context, jobType string, status job.Status, window int) (int64, error) {
	if jobType == f.errFor {
		return 0, errors.New("store down")
	}
	n := f.counts[jobType][status]
	if window > 0 && n > int64(window) {
		n = int64(window)
	}
	return n, nil
}

// recordingSink collects alerts.
type recordingSink struct {
	mu       sync.Mutex
	failures []health.FailureAlert
	backlogs []health.BacklogAlert
}

func (r *recordingSink) OnFailureAlert(_ context.Context, a health.FailureAlert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, a)
}

func (r *recordingSink) OnBacklogAlert(_ context.Context, a health.BacklogAlert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backlogs = append(r.backlogs, a)
}

func (r *recordingSink) snapshot() ([]health.FailureAlert, []health.BacklogAlert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]health.FailureAlert(nil), r.failures...), append([]health.BacklogAlert(nil), r.backlogs...)
}

func newMonitor(t *testing.T, src health.Source, sink health.AlertSink, cfg health.Config) *health.Monitor {
	t.Helper()
	m, err := health.New(src, sink, cfg, health.WithLogger(slog.Default()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func single(jobType string, failed, pending int64) *fakeSource {
	return &fakeSource{
		types: []string{jobType},
		counts: map[string]map[job.Status]int64{
			jobType: {job.StatusFailed: failed, job.StatusPending: pending},
		},
	}
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestScan_BacklogThreshold(t *testing.T) {
	tests := []struct {
		name    string
		pending int64
		alerts  int
	}{
		{"below", 99, 0},
		{"at threshold", 100, 0},
		{"above threshold", 101, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			m := newMonitor(t, single("email", 0, tt.pending), sink, health.DefaultConfig())

			if _, err := m.Scan(context.Background()); err != nil {
				t.Fatalf("Scan: %v", err)
			}

			_, backlogs := sink.snapshot()
			if len(backlogs) != tt.alerts {
				t.Fatalf("backlog alerts = %d, want %d", len(backlogs), tt.alerts)
			}
			if tt.alerts == 1 {
				a := backlogs[0]
				if a.Type != "email" || a.Count != tt.pending || a.Threshold != 100 {
					t.Fatalf("alert = %+v", a)
				}
			}
		})
	}
}

func TestScan_FailureThreshold(t *testing.T) {
	sink := &recordingSink{}
	m := newMonitor(t, single("email", 1001, 0), sink, health.DefaultConfig())

	if _, err := m.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	failures, backlogs := sink.snapshot()
	if len(failures) != 1 || failures[0].Count != 1001 || failures[0].Threshold != 1000 {
		t.Fatalf("failures = %+v", failures)
	}
	if len(backlogs) != 0 {
		t.Fatalf("unexpected backlog alerts: %+v", backlogs)
	}

	sink2 := &recordingSink{}
	m2 := newMonitor(t, single("email", 1000, 0), sink2, health.DefaultConfig())
	if _, err := m2.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if failures, _ := sink2.snapshot(); len(failures) != 0 {
		t.Fatalf("failures at threshold = %+v, want none", failures)
	}
}

func TestScan_OneAlertPerScan(t *testing.T) {
	sink := &recordingSink{}
	m := newMonitor(t, single("email", 0, 500), sink, health.DefaultConfig())

	for range 3 {
		if _, err := m.Scan(context.Background()); err != nil {
			t.Fatalf("Scan: %v", err)
		}
	}
	if _, backlogs := sink.snapshot(); len(backlogs) != 3 {
		t.Fatalf("backlog alerts after 3 scans = %d, want 3", len(backlogs))
	}
}

func TestScan_WindowCapsCount(t *testing.T) {
	sink := &recordingSink{}
	cfg := health.DefaultConfig()
	m := newMonitor(t, single("email", 25000, 0), sink, cfg)

	results, err := m.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if results[0].Failed != int64(cfg.Window) {
		t.Fatalf("failed = %d, want window %d", results[0].Failed, cfg.Window)
	}
}

func TestScan_PerTypeOverrides(t *testing.T) {
	src := &fakeSource{
		types: []string{"email", "sms"},
		counts: map[string]map[job.Status]int64{
			"email": {job.StatusPending: 6},
			"sms":   {job.StatusPending: 6},
		},
	}
	cfg := health.DefaultConfig()
	cfg.Overrides = map[string]health.Override{"email": {Backlog: ptr[int64](5)}}

	sink := &recordingSink{}
	m := newMonitor(t, src, sink, cfg)
	if _, err := m.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	_, backlogs := sink.snapshot()
	if len(backlogs) != 1 || backlogs[0].Type != "email" {
		t.Fatalf("backlogs = %+v, want one email alert", backlogs)
	}
	if got := cfg.ThresholdsFor("email"); got.Failure != health.DefaultFailureThreshold {
		t.Fatalf("override without failure kept %d, want default", got.Failure)
	}
}

func TestScan_ZeroOverrideAlertsOnAnyFailure(t *testing.T) {
	src := &fakeSource{
		types: []string{"billing", "email"},
		counts: map[string]map[job.Status]int64{
			"billing": {job.StatusFailed: 1},
			"email":   {job.StatusFailed: 1},
		},
	}
	cfg := health.DefaultConfig()
	cfg.Overrides = map[string]health.Override{"billing": {Failure: ptr[int64](0)}}

	if got := cfg.ThresholdsFor("billing"); got.Failure != 0 || got.Backlog != health.DefaultBacklogThreshold {
		t.Fatalf("ThresholdsFor(billing) = %+v", got)
	}

	sink := &recordingSink{}
	m := newMonitor(t, src, sink, cfg)
	if _, err := m.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	failures, _ := sink.snapshot()
	if len(failures) != 1 || failures[0].Type != "billing" || failures[0].Threshold != 0 {
		t.Fatalf("failures = %+v, want one billing alert at threshold 0", failures)
	}
}

func ptr[T any](v T) *T { return &v }

func TestScan_ErrorDoesNotStopOtherTypes(t *testing.T) {
	src := &fakeSource{
		types: []string{"broken", "email"},
		counts: map[string]map[job.Status]int64{
			"email": {job.StatusPending: 101},
		},
		errFor: "broken",
	}
	sink := &recordingSink{}
	m := newMonitor(t, src, sink, health.DefaultConfig())

	results, err := m.Scan(context.Background())
	if err == nil {
		t.Fatal("expected scan error")
	}
	if len(results) != 2 || results[0].Error == "" {
		t.Fatalf("results = %+v", results)
	}
	if _, backlogs := sink.snapshot(); len(backlogs) != 1 {
		t.Fatalf("backlog alerts = %d, want 1", len(backlogs))
	}

	last, at := m.Last()
	if len(last) != 2 || at.IsZero() {
		t.Fatalf("Last() = %+v, %v", last, at)
	}
}

func TestScan_AgainstMemoryStore(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	for range 101 {
		if _, err := s.Insert(ctx, &job.Job{Type: "email"}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	sink := &recordingSink{}
	m := newMonitor(t, storeSource{s, []string{"email"}}, sink, health.DefaultConfig())
	if _, err := m.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	_, backlogs := sink.snapshot()
	if len(backlogs) != 1 || backlogs[0].Count != 101 {
		t.Fatalf("backlogs = %+v, want one alert with count 101", backlogs)
	}
}

type storeSource struct {
	*memory.Store
	types []string
}

func (s storeSource) Types() []string { return s.types }

func TestMonitor_StartStop(t *testing.T) {
	sink := &recordingSink{}
	cfg := health.DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	m := newMonitor(t, single("email", 0, 101), sink, cfg)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		if _, backlogs := sink.snapshot(); len(backlogs) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a scheduled scan")
		case <-time.After(5 * time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	cfg := health.DefaultConfig()
	cfg.Schedule = "not a cron"
	if _, err := health.New(single("email", 0, 0), nil, cfg); err == nil {
		t.Fatal("expected error for bad schedule")
	}

	cfg = health.DefaultConfig()
	cfg.Schedule = "@every 30s"
	if _, err := health.New(single("email", 0, 0), nil, cfg); err != nil {
		t.Fatalf("descriptor schedule: %v", err)
	}

	cfg = health.DefaultConfig()
	cfg.Interval = 0
	if _, err := health.New(single("email", 0, 0), nil, cfg); err == nil {
		t.Fatal("expected error for zero interval")
	}

	cfg = health.DefaultConfig()
	cfg.Overrides = map[string]health.Override{"email": {Backlog: ptr[int64](-1)}}
	if _, err := health.New(single("email", 0, 0), nil, cfg); err == nil {
		t.Fatal("expected error for negative override")
	}
}

func TestNew_ScheduleMustFire(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"february 30th", "0 0 30 2 *", true},
		{"november 31st", "0 0 31 11 *", true},
		{"every minute", "* * * * *", false},
		{"leap day", "0 0 29 2 *", false},
		{"descriptor", "@hourly", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := health.DefaultConfig()
			cfg.Schedule = tt.schedule
			_, err := health.New(single("email", 0, 0), nil, cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.schedule, err, tt.wantErr)
			}
		})
	}
}

func TestMonitor_StartWithCronSchedule(t *testing.T) {
	sink := &recordingSink{}
	cfg := health.DefaultConfig()
	cfg.Schedule = "@every 1s"
	m := newMonitor(t, single("email", 0, 101), sink, cfg)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for {
		if _, backlogs := sink.snapshot(); len(backlogs) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a cron-scheduled scan")
		case <-time.After(20 * time.Millisecond):
		}
	}
	// One scan per second; a spinning loop would have fired far more.
	time.Sleep(200 * time.Millisecond)
	if _, backlogs := sink.snapshot(); len(backlogs) > 2 {
		t.Fatalf("backlog alerts = %d, want at most 2 within ~1s", len(backlogs))
	}
}
