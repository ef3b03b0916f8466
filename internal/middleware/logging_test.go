package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"objectvision/internal/config"
	"objectvision/internal/logger"
)

func newTestLogger(t *testing.T) (*logger.Logger, string) {
	t.Helper()
	cfg := config.Load()
	cfg.LogDirectory = t.TempDir()
	return logger.NewLogger(cfg), cfg.LogDirectory
}

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggingMiddleware(t *testing.T) {
	log, dir := newTestLogger(t)

	handler := LoggingMiddleware(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte("hello"))
		case "/bad":
			http.Error(w, "bad", http.StatusBadRequest)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))

	for _, path := range []string{"/ok", "/bad", "/fail"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	info := readLines(t, filepath.Join(dir, logger.InfoFile))
	if len(info) != 1 || info[0]["path"] != "/ok" || info[0]["status"] != float64(200) || info[0]["bytes"] != float64(5) {
		t.Errorf("unexpected info entries: %v", info)
	}

	warnings := readLines(t, filepath.Join(dir, logger.WarningFile))
	if len(warnings) != 1 || warnings[0]["status"] != float64(400) {
		t.Errorf("unexpected warning entries: %v", warnings)
	}

	errs := readLines(t, filepath.Join(dir, logger.ErrorFile))
	if len(errs) != 1 || errs[0]["path"] != "/fail" {
		t.Errorf("unexpected error entries: %v", errs)
	}
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/detect", nil))
	if called {
		t.Error("preflight request should not reach the handler")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/detect", nil))
	if !called {
		t.Error("POST should reach the handler")
	}
}
