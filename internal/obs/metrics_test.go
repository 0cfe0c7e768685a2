package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Instrument)
	r.Get("/v1/records/{type}/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/records/{type}/{id}", "418"))
	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/records/tag/"+id, nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("unexpected status %d", rec.Code)
		}
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/records/{type}/{id}", "418"))
	if after-before != 3 {
		t.Fatalf("expected 3 requests under one pattern, got %v", after-before)
	}
	if got := testutil.ToFloat64(httpInFlight); got != 0 {
		t.Fatalf("in-flight gauge not released: %v", got)
	}
}

func TestRoutePatternUnmatched(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := RoutePattern(req); got != "unmatched" {
		t.Fatalf("RoutePattern=%q", got)
	}
}

func TestAuditCounters(t *testing.T) {
	before := testutil.ToFloat64(auditWriteFailures)
	ObserveAuditFailure()
	if testutil.ToFloat64(auditWriteFailures)-before != 1 {
		t.Fatal("audit failure counter not incremented")
	}
	createdBefore := testutil.ToFloat64(auditEntriesTotal.WithLabelValues("Create"))
	ObserveAuditEntry("Create")
	if testutil.ToFloat64(auditEntriesTotal.WithLabelValues("Create"))-createdBefore != 1 {
		t.Fatal("audit entry counter not incremented")
	}
}

func TestLogRequestWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := SetLogger(NewLogger(&buf, "debug"))
	defer SetLogger(prev)

	LogRequest("req-1", http.MethodPost, "/auth/login", 401, 1.5, "10.0.0.1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if line["msg"] != "request_complete" || line["request_id"] != "req-1" {
		t.Fatalf("unexpected log line: %v", line)
	}
	if line["status"] != float64(401) {
		t.Fatalf("unexpected status: %v", line["status"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "": "INFO", "bogus": "INFO"}
	for in, want := range cases {
		if got := ParseLevel(in).String(); got != want {
			t.Fatalf("ParseLevel(%q)=%s, want %s", in, got, want)
		}
	}
}

func TestInitBuildInfoKeepsExplicitCommit(t *testing.T) {
	InitBuildInfo("1.2.3", "abc123")
	InitBuildInfo("1.2.3", "abc123")
	if got := testutil.ToFloat64(buildInfo.WithLabelValues("1.2.3", "abc123", runtime.Version())); got != 1 {
		t.Fatalf("build_info=%v", got)
	}
}
