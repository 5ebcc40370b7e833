package api_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/jobq/api"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/queue"
	"github.com/xraph/jobq/store/memory"
	"github.com/xraph/jobq/stream"
)

func TestEventsStream(t *testing.T) {
	broker := stream.NewBroker(nil)
	m := queue.New(memory.New(), queue.WithoutDefaultMiddleware(), queue.WithExtension(broker))
	if err := m.RegisterHandler("email", func(context.Context, []byte, job.Reporter) (string, error) {
		return "", nil
	}, 1); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	srv := httptest.NewServer(api.New(m, api.WithBroker(broker)).Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events?topic=type:email", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /v1/events: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q", ct)
	}

	jobID, err := m.Enqueue(context.Background(), "email", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	scanner := bufio.NewScanner(resp.Body)
	var eventLine, dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventLine = line
		case strings.HasPrefix(line, "data:"):
			dataLine = line
		}
		if dataLine != "" {
			break
		}
	}
	if !strings.Contains(eventLine, "job.enqueued") {
		t.Fatalf("event line = %q", eventLine)
	}
	if !strings.Contains(dataLine, jobID.String()) {
		t.Fatalf("data line = %q, want job id %s", dataLine, jobID)
	}
}

func TestEventsErrors(t *testing.T) {
	h, _ := newTestAPI(t)
	if rec := do(t, h, http.MethodGet, "/v1/events", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("without broker code = %d, want 404", rec.Code)
	}

	m := queue.New(memory.New())
	h = api.New(m, api.WithBroker(stream.NewBroker(nil))).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events?topic=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad topic code = %d, want 400", rec.Code)
	}
}
