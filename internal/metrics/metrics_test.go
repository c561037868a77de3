package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPromRecordsAndExposes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewProm("briefly")
	m.Register(reg)
	m.Register(reg) // second call must be a no-op

	m.IncGeneration("summarize", "ok")
	m.IncGeneration("summarize", "ok")
	m.IncGeneration("chat", "error")
	m.ObserveGenerationDuration("summarize", 0.25)
	m.IncExportJob("done")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`briefly_generation_requests_total{operation="summarize",status="ok"} 2`,
		`briefly_generation_requests_total{operation="chat",status="error"} 1`,
		`briefly_export_jobs_total{status="done"} 1`,
		"briefly_generation_duration_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in scrape output:\n%s", want, body)
		}
	}
}

func TestNoopIsSafe(t *testing.T) {
	var m Metrics = Noop{}
	m.IncGeneration("summarize", "ok")
	m.ObserveGenerationDuration("summarize", 1)
	m.IncExportJob("failed")
}
