package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから名前とラベルが一致するメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range m.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
	var _ MetricsCollector = NopCollector{}
}

func TestRecordRun_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRun("published", time.Second)
	c.RecordRun("published", 2*time.Second)
	c.RecordRun("fetch_error", time.Second)

	m := findMetric(t, reg, "sniper_runs_total", map[string]string{"outcome": "published"})
	if m == nil {
		t.Fatal("sniper_runs_total{outcome=published} not found")
	}
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("runs_total{published} = %v, want 2", got)
	}

	hist := findMetric(t, reg, "sniper_run_duration_seconds", map[string]string{})
	if hist == nil || hist.GetHistogram().GetSampleCount() != 3 {
		t.Error("run_duration_seconds は3回観測されるべき")
	}
}

func TestRecordRun_SetsLastSuccessOnlyOnSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRun("partial_failure", time.Second)
	m := findMetric(t, reg, "sniper_last_success_timestamp_seconds", map[string]string{})
	if m == nil {
		t.Fatal("sniper_last_success_timestamp_seconds not found")
	}
	if m.GetGauge().GetValue() != 0 {
		t.Error("失敗した実行では最終成功時刻を更新しないべき")
	}

	c.RecordRun("no_new_listings", time.Second)
	m = findMetric(t, reg, "sniper_last_success_timestamp_seconds", map[string]string{})
	if m.GetGauge().GetValue() == 0 {
		t.Error("正常終了した実行では最終成功時刻を更新するべき")
	}
}

func TestRecordStageError_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStageError("validate")

	m := findMetric(t, reg, "sniper_errors_total", map[string]string{"stage": "validate"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("sniper_errors_total{stage=validate} = 1 であるべき")
	}
}

func TestRecordListings_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordListings("fetched", 10)
	c.RecordListings("fetched", 5)

	m := findMetric(t, reg, "sniper_listings_total", map[string]string{"stage": "fetched"})
	if m == nil || m.GetCounter().GetValue() != 15 {
		t.Error("sniper_listings_total{stage=fetched} = 15 であるべき")
	}
}

func TestRecordHTTPStatus_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(403)

	if findMetric(t, reg, "sniper_http_status_total", map[string]string{"status_code": "403"}) == nil {
		t.Error("sniper_http_status_total{status_code=403} not found")
	}
}

func TestRecordFetchLatency_Observes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchLatency(150 * time.Millisecond)

	m := findMetric(t, reg, "sniper_fetch_latency_seconds", map[string]string{})
	if m == nil || m.GetHistogram().GetSampleCount() != 1 {
		t.Error("fetch_latency_seconds は1回観測されるべき")
	}
}
