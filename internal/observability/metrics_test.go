package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func gatherNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := map[string]bool{}
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	return names
}

func TestMetricsRecordThroughHelpers(t *testing.T) {
	CountIngested("accepted", 3)
	CountIngested("dropped", 0) // no-op
	CountCheckFinding("ERROR")
	ObserveHTTPRequest("POST", "/v1/projects/:slug/events", "202", 12*time.Millisecond)
	ObserveJobRun("rollup.day", "succeeded", 40*time.Millisecond)
	ObserveReportRun("flag_health", true, time.Millisecond)
	SetQueueDepth("queued", 7)
	HTTPInflightAdd(1)
	HTTPInflightAdd(-1)

	names := gatherNames(t)
	for _, want := range []string{
		"statline_ingest_events_total",
		"statline_checks_findings_total",
		"statline_http_requests_total",
		"statline_http_request_duration_seconds",
		"statline_jobs_runs_total",
		"statline_jobs_queue_depth",
		"statline_reports_run_duration_seconds",
	} {
		if !names[want] {
			t.Fatalf("metric %s not gathered; have %v", want, names)
		}
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	CountIngested("accepted", 1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "statline_ingest_events_total") {
		t.Fatalf("metrics body missing ingest counter")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("metrics body missing go collector output")
	}
}
