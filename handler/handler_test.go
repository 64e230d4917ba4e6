package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stevemurr/flash-survey/catalog"
	"github.com/stevemurr/flash-survey/export"
	"github.com/stevemurr/flash-survey/handler"
	"github.com/stevemurr/flash-survey/store"
)

func setup(t *testing.T, backend store.Backend, cfg handler.Config) *httptest.Server {
	t.Helper()
	s := store.NewBlobStore(backend)
	ts := httptest.NewServer(handler.New(s, cfg))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func decodeJSONArray(t *testing.T, r io.Reader) []any {
	t.Helper()
	var v []any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, b)
	}
}

func TestRootAndHealth(t *testing.T) {
	ts := setup(t, store.NewMemoryBackend(), handler.Config{})

	resp := do(t, http.MethodGet, ts.URL+"/", nil)
	expectStatus(t, resp, http.StatusOK)
	if body := decodeJSON(t, resp.Body); body["status"] != "ok" {
		t.Fatalf("expected status=ok, got %v", body["status"])
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}

	resp = do(t, http.MethodGet, ts.URL+"/health", nil)
	expectStatus(t, resp, http.StatusOK)
}

func TestSubmissionLifecycle(t *testing.T) {
	ts := setup(t, store.NewMemoryBackend(), handler.Config{})

	resp := do(t, http.MethodGet, ts.URL+"/api/submissions", nil)
	expectStatus(t, resp, http.StatusOK)
	if items := decodeJSONArray(t, resp.Body); len(items) != 0 {
		t.Fatalf("expected empty list, got %d", len(items))
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/submissions",
		[]byte(`{"data": {"q1": "Ada", "q6": ["BTC", "ETH"]}}`))
	expectStatus(t, resp, http.StatusCreated)
	first := decodeJSON(t, resp.Body)
	if first["id"] == "" || first["submittedAt"] == "" {
		t.Fatalf("expected id and submittedAt, got %v", first)
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/submissions", []byte(`{"data": {"q1": "Grace"}}`))
	expectStatus(t, resp, http.StatusCreated)

	resp = do(t, http.MethodGet, ts.URL+"/api/submissions", nil)
	items := decodeJSONArray(t, resp.Body)
	if len(items) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(items))
	}
	if items[0].(map[string]any)["id"] != first["id"] {
		t.Fatal("expected oldest submission first")
	}

	resp = do(t, http.MethodGet, ts.URL+"/api/submissions?q=GRACE", nil)
	if items := decodeJSONArray(t, resp.Body); len(items) != 1 {
		t.Fatalf("expected 1 filtered submission, got %d", len(items))
	}

	resp = do(t, http.MethodDelete, ts.URL+"/api/submissions", nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = do(t, http.MethodDelete, ts.URL+"/api/submissions?confirm=true", nil)
	expectStatus(t, resp, http.StatusOK)

	resp = do(t, http.MethodGet, ts.URL+"/api/submissions", nil)
	if items := decodeJSONArray(t, resp.Body); len(items) != 0 {
		t.Fatalf("expected empty list after clear, got %d", len(items))
	}
}

func TestCreateRejectsBadBodies(t *testing.T) {
	ts := setup(t, store.NewMemoryBackend(), handler.Config{})

	for _, body := range []string{`not json`, `{"data": {"q1": 42}}`, `{"data": {"q6": [1, 2]}}`} {
		resp := do(t, http.MethodPost, ts.URL+"/api/submissions", []byte(body))
		expectStatus(t, resp, http.StatusBadRequest)
	}
}

func TestDashboard(t *testing.T) {
	ts := setup(t, store.NewMemoryBackend(), handler.Config{ProgressTarget: 4})

	do(t, http.MethodPost, ts.URL+"/api/submissions", []byte(`{"data": {"q1": "Ada", "q4": "London"}}`))
	do(t, http.MethodPost, ts.URL+"/api/submissions", []byte(`{"data": {"q5": "Expert"}}`))

	resp := do(t, http.MethodGet, ts.URL+"/api/dashboard?q=london", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeJSON(t, resp.Body)

	stats := body["stats"].(map[string]any)
	if stats["total"] != float64(2) || stats["progressPercent"] != float64(50) || stats["target"] != float64(4) {
		t.Fatalf("unexpected stats: %v", stats)
	}
	if stats["lastSubmittedAt"] == nil {
		t.Fatal("expected lastSubmittedAt")
	}

	rows := body["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0].(map[string]any)
	if row["name"] != "Ada" || row["location"] != "London" || row["phone"] != "-" {
		t.Fatalf("unexpected row: %v", row)
	}
}

func TestExport(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	exp := export.New(catalog.Default(), export.WithClock(func() time.Time { return now }))
	ts := setup(t, store.NewMemoryBackend(), handler.Config{Exporter: exp})

	do(t, http.MethodPost, ts.URL+"/api/submissions", []byte(`{"data": {"q1": "He said \"hi\"", "q6": ["BTC", "ETH"]}}`))

	resp := do(t, http.MethodGet, ts.URL+"/api/export", nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != export.MIMEType {
		t.Fatalf("expected %s, got %s", export.MIMEType, ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "flash_survey_export_2026-10-17.csv") {
		t.Fatalf("unexpected Content-Disposition: %s", cd)
	}

	b, _ := io.ReadAll(resp.Body)
	lines := strings.Split(string(b), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Submission ID,Date,Full name,") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"He said ""hi"""`) || !strings.Contains(lines[1], `"BTC, ETH"`) {
		t.Fatalf("unexpected row: %s", lines[1])
	}
}

func TestCorruptStorageSuggestsClear(t *testing.T) {
	backend := store.NewMemoryBackend()
	if err := backend.Swap(context.Background(), store.DefaultKey, nil, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	ts := setup(t, backend, handler.Config{})

	for _, path := range []string{"/api/submissions", "/api/dashboard", "/api/export"} {
		resp := do(t, http.MethodGet, ts.URL+path, nil)
		expectStatus(t, resp, http.StatusInternalServerError)
		if body := decodeJSON(t, resp.Body); body["recovery"] != "clear" {
			t.Fatalf("%s: expected recovery hint, got %v", path, body)
		}
	}

	resp := do(t, http.MethodPost, ts.URL+"/api/submissions", []byte(`{"data": {}}`))
	expectStatus(t, resp, http.StatusInternalServerError)

	resp = do(t, http.MethodDelete, ts.URL+"/api/submissions?confirm=true", nil)
	expectStatus(t, resp, http.StatusOK)

	resp = do(t, http.MethodGet, ts.URL+"/api/submissions", nil)
	expectStatus(t, resp, http.StatusOK)
}

func TestUnavailableStorage(t *testing.T) {
	ts := setup(t, store.UnavailableBackend{}, handler.Config{})

	resp := do(t, http.MethodGet, ts.URL+"/api/submissions", nil)
	expectStatus(t, resp, http.StatusOK)
	if items := decodeJSONArray(t, resp.Body); len(items) != 0 {
		t.Fatalf("expected empty list, got %d", len(items))
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/submissions", []byte(`{"data": {}}`))
	expectStatus(t, resp, http.StatusServiceUnavailable)
}

func TestLogout(t *testing.T) {
	var called atomic.Bool
	ts := setup(t, store.NewMemoryBackend(), handler.Config{
		OnLogout: func(context.Context) error {
			called.Store(true)
			return nil
		},
	})

	resp := do(t, http.MethodPost, ts.URL+"/api/logout", nil)
	expectStatus(t, resp, http.StatusNoContent)
	if !called.Load() {
		t.Fatal("expected logout callback to run")
	}

	failing := setup(t, store.NewMemoryBackend(), handler.Config{
		OnLogout: func(context.Context) error { return errors.New("session store down") },
	})
	resp = do(t, http.MethodPost, failing.URL+"/api/logout", nil)
	expectStatus(t, resp, http.StatusInternalServerError)
}

func TestCORS(t *testing.T) {
	ts := setup(t, store.NewMemoryBackend(), handler.Config{AllowedOrigins: []string{"https://admin.example.com"}})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/submissions", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNoContent)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Fatalf("unexpected allow-origin: %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if got := resp2.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin, got %q", got)
	}
}
