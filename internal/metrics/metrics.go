// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// パイプラインの実行から利用する。
type MetricsCollector interface {
	RecordRun(outcome string, duration time.Duration)
	RecordStageError(stage string)
	RecordListings(stage string, count int)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	stageErrors  *prometheus.CounterVec
	listings     *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
	fetchLatency prometheus.Histogram
	lastSuccess  prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_runs_total",
			Help: "結果区分別の実行回数",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sniper_run_duration_seconds",
			Help:    "1回の実行にかかった時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_errors_total",
			Help: "処理段階別のエラー数",
		}, []string{"stage"}),
		listings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_listings_total",
			Help: "処理段階別の出品数",
		}, []string{"stage"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_http_status_total",
			Help: "掲載サイトが返したエラー応答のHTTPステータスコード別件数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sniper_fetch_latency_seconds",
			Help:    "掲載サイト取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_last_success_timestamp_seconds",
			Help: "最後に正常終了した実行のUNIX時刻",
		}),
	}

	reg.MustRegister(
		c.runs,
		c.runDuration,
		c.stageErrors,
		c.listings,
		c.httpStatus,
		c.fetchLatency,
		c.lastSuccess,
	)

	return c
}

// RecordRun は実行結果を記録する。
// partial_failure 以外の配信結果で終わった実行は正常終了として時刻を更新する。
func (c *Collector) RecordRun(outcome string, duration time.Duration) {
	c.runs.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(duration.Seconds())
	if outcome == "published" || outcome == "no_new_listings" {
		c.lastSuccess.SetToCurrentTime()
	}
}

// RecordStageError は処理段階別のエラーを記録する。
func (c *Collector) RecordStageError(stage string) {
	c.stageErrors.WithLabelValues(stage).Inc()
}

// RecordListings は処理段階別の出品数を加算する。
func (c *Collector) RecordListings(stage string, count int) {
	c.listings.WithLabelValues(stage).Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency は取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector。
// 単発実行やpreviewコマンドで使用する。
type NopCollector struct{}

func (NopCollector) RecordRun(string, time.Duration)  {}
func (NopCollector) RecordStageError(string)          {}
func (NopCollector) RecordListings(string, int)       {}
func (NopCollector) RecordHTTPStatus(int)             {}
func (NopCollector) RecordFetchLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
