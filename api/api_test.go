package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/api"
	"github.com/xraph/jobq/health"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/queue"
	"github.com/xraph/jobq/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestAPI returns an API over a manager that is registered but not
// started, so enqueued jobs stay pending.
func newTestAPI(t *testing.T, opts ...api.Option) (http.Handler, *queue.Manager) {
	t.Helper()
	m := queue.New(memory.New(), queue.WithoutDefaultMiddleware())
	if err := m.RegisterHandler("email", func(context.Context, []byte, job.Reporter) (string, error) {
		return "", nil
	}, 2); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}
	return api.New(m, append([]api.Option{api.WithLogger(slog.Default())}, opts...)...).Handler(), m
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestEnqueueAndGet(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/v1/jobs", map[string]any{
		"type":    "email",
		"payload": map[string]string{"to": "ada@example.com"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body)
	}
	created := decode[api.EnqueueResponse](t, rec)

	rec = do(t, h, http.MethodGet, "/v1/jobs/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[api.JobResponse](t, rec)
	if got.ID != created.ID || got.Type != "email" || got.Status != job.StatusPending {
		t.Fatalf("job = %+v", got)
	}
	var payload map[string]string
	if err := json.Unmarshal(got.Payload, &payload); err != nil || payload["to"] != "ada@example.com" {
		t.Fatalf("payload = %s (%v)", got.Payload, err)
	}
}

func TestEnqueueUnknownType(t *testing.T) {
	h, m := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/v1/jobs", map[string]any{"type": "sms"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", rec.Code, rec.Body)
	}
	if n, _ := m.CountByTypeAndStatus(context.Background(), "sms", job.StatusPending, 0); n != 0 {
		t.Fatalf("sms pending = %d, want 0", n)
	}
}

func TestEnqueueMissingType(t *testing.T) {
	h, _ := newTestAPI(t)
	rec := do(t, h, http.MethodPost, "/v1/jobs", map[string]any{"payload": 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetJobErrors(t *testing.T) {
	h, _ := newTestAPI(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"malformed id", "/v1/jobs/not-an-id", http.StatusBadRequest},
		{"unknown id", "/v1/jobs/" + id.NewJobID().String(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodGet, tt.path, nil); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestListJobs(t *testing.T) {
	h, m := newTestAPI(t)
	ctx := context.Background()
	for range 3 {
		if _, err := m.Enqueue(ctx, "email", []byte(`{}`)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	rec := do(t, h, http.MethodGet, "/v1/jobs?type=email&status=pending&offset=1&limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if jobs := decode[[]api.JobResponse](t, rec); len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}

	rec = do(t, h, http.MethodGet, "/v1/jobs?type=email&status=completed", nil)
	if jobs := decode[[]api.JobResponse](t, rec); len(jobs) != 0 {
		t.Fatalf("completed jobs = %d, want 0", len(jobs))
	}

	if rec := do(t, h, http.MethodGet, "/v1/jobs?type=email&status=bogus", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus status code = %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/v1/jobs?status=pending", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing type code = %d, want 400", rec.Code)
	}
}

func TestRequeuePendingConflicts(t *testing.T) {
	h, m := newTestAPI(t)
	jobID, err := m.Enqueue(context.Background(), "email", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	rec := do(t, h, http.MethodPost, "/v1/jobs/"+jobID.String()+"/requeue", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", rec.Code, rec.Body)
	}
}

func TestStats(t *testing.T) {
	h, m := newTestAPI(t)
	for range 4 {
		if _, err := m.Enqueue(context.Background(), "email", nil); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	rec := do(t, h, http.MethodGet, "/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	stats := decode[api.StatsResponse](t, rec)
	if len(stats.Types) != 1 || stats.Types[0].Pending != 4 || stats.Types[0].Concurrency != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	if rec := do(t, h, http.MethodGet, "/v1/stats?window=-1", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative window code = %d, want 400", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestAPI(t)
	if rec := do(t, h, http.MethodGet, "/v1/health", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("without monitor code = %d, want 404", rec.Code)
	}

	m := queue.New(memory.New(), queue.WithoutDefaultMiddleware())
	if err := m.RegisterHandler("email", func(context.Context, []byte, job.Reporter) (string, error) {
		return "", nil
	}, 1); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}
	for range 101 {
		if _, err := m.Enqueue(context.Background(), "email", nil); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	mon, err := health.New(m, health.FuncSink{}, health.DefaultConfig())
	if err != nil {
		t.Fatalf("health.New: %v", err)
	}
	if _, err := mon.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	h = api.New(m, api.WithMonitor(mon)).Handler()
	rec := do(t, h, http.MethodGet, "/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[api.HealthResponse](t, rec)
	if resp.ScannedAt == nil || len(resp.Types) != 1 || !resp.Types[0].BacklogAlert {
		t.Fatalf("health = %+v", resp)
	}
}

// brokenStore fails every read.
type brokenStore struct {
	*memory.Store
}

func (brokenStore) Get(context.Context, id.JobID) (*job.Job, error) {
	return nil, jobq.NewStoreError("broken.get", errors.New("connection refused"))
}

func TestStoreErrorIsUnavailable(t *testing.T) {
	m := queue.New(brokenStore{memory.New()}, queue.WithoutDefaultMiddleware())
	h := api.New(m).Handler()

	rec := do(t, h, http.MethodGet, "/v1/jobs/"+id.NewJobID().String(), nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
