package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollectorRecordsHTTPMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	handlerInvoked := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerInvoked = true
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	instrumented := collector.InstrumentHandler(handler)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()

	instrumented.ServeHTTP(rr, req)

	if !handlerInvoked {
		t.Fatal("expected handler to be invoked")
	}

	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `codetribute_http_requests_total{method="GET",path="/status",status="202"} 1`) {
		t.Fatalf("requests_total metric not recorded, body=%q", body)
	}

	if !strings.Contains(body, `codetribute_http_request_duration_seconds_count{method="GET",path="/status",status="202"} 1`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
}

func TestCollectorRecordsPipelineMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	collector.EventIngested("created")
	collector.EventIngested("modified")
	collector.EventIngested("modified")
	collector.SummaryProduced("error")
	collector.PublishFinished("created")
	collector.CycleFinished("completed", 2*time.Second)
	collector.CycleFinished("skipped", 0)

	body := scrape(t, collector)

	expected := []string{
		`codetribute_ingest_events_total{action="created"} 1`,
		`codetribute_ingest_events_total{action="modified"} 2`,
		`codetribute_ingest_buffered_records 3`,
		`codetribute_summarizer_summaries_total{result="error"} 1`,
		`codetribute_publisher_publishes_total{result="created"} 1`,
		`codetribute_scheduler_cycles_total{outcome="completed"} 1`,
		`codetribute_scheduler_cycles_total{outcome="skipped"} 1`,
		`codetribute_scheduler_cycle_duration_seconds_count 1`,
	}
	for _, line := range expected {
		if !strings.Contains(body, line) {
			t.Errorf("missing %q in metrics output", line)
		}
	}

	collector.SetBuffered(0)
	if body := scrape(t, collector); !strings.Contains(body, "codetribute_ingest_buffered_records 0") {
		t.Errorf("expected buffered gauge reset after drain")
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *Collector
	collector.EventIngested("created")
	collector.SetBuffered(0)
	collector.CycleFinished("skipped", 0)
	collector.SummaryProduced("generated")
	collector.PublishFinished("failed")
}

func scrape(t *testing.T, collector *Collector) string {
	t.Helper()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}
	return rr.Body.String()
}
