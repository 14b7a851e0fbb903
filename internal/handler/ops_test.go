package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/sniper/internal/metrics"
)

// mockHealthChecker はHealthCheckerのテスト用モック。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

func newTestRouter(checker HealthChecker) (http.Handler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.RecordRun("published", 0)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	return NewOpsRouter(OpsDeps{HealthChecker: checker, Gatherer: reg, Logger: logger}), reg
}

func TestHealth_OK(t *testing.T) {
	router, _ := newTestRouter(&mockHealthChecker{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスがJSONではない: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	router, _ := newTestRouter(&mockHealthChecker{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "connection refused") {
		t.Errorf("レスポンスに原因が含まれるべき: %s", w.Body.String())
	}
}

func TestMetrics_ServesCollectorOutput(t *testing.T) {
	router, _ := newTestRouter(&mockHealthChecker{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body, _ := io.ReadAll(w.Result().Body)
	if !strings.Contains(string(body), "sniper_runs_total") {
		t.Error("response should contain sniper_runs_total metric")
	}
}

func TestUnknownRoute_NotFound(t *testing.T) {
	router, _ := newTestRouter(&mockHealthChecker{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/feeds", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
