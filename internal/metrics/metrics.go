// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// プローブ結果のラベル値
const (
	ResultAlive     = "alive"
	ResultBadStatus = "bad_status"
	ResultShortBody = "short_body"
	ResultNetwork   = "network_error"
	ResultBlocked   = "blocked"
	ResultPanic     = "panic"
)

// MetricsCollector はメトリクス収集のインターフェース。
// プローバー、バッチ検証、ライフサイクル追跡から利用する。
type MetricsCollector interface {
	RecordProbe(result string, duration time.Duration)
	RecordBatch(total, alive int)
	RecordSubscriptionStates(healthy, failing, prunable int)
	RecordPruned(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	probeTotal    *prometheus.CounterVec
	probeLatency  prometheus.Histogram
	batchLinks    *prometheus.CounterVec
	subscriptions *prometheus.GaugeVec
	pruned        prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		probeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sublink_probe_total",
			Help: "結果別のプローブ実行数",
		}, []string{"result"}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sublink_probe_latency_seconds",
			Help:    "プローブのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		batchLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sublink_batch_links_total",
			Help: "バッチ検証で判定されたリンク数",
		}, []string{"outcome"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sublink_subscriptions",
			Help: "状態別の追跡中購読数",
		}, []string{"state"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sublink_pruned_total",
			Help: "プルーニングで削除された購読の合計数",
		}),
	}

	reg.MustRegister(
		c.probeTotal,
		c.probeLatency,
		c.batchLinks,
		c.subscriptions,
		c.pruned,
	)

	return c
}

// RecordProbe はプローブ結果とレイテンシを記録する。
func (c *Collector) RecordProbe(result string, duration time.Duration) {
	c.probeTotal.WithLabelValues(result).Inc()
	c.probeLatency.Observe(duration.Seconds())
}

// RecordBatch はバッチ検証の生存/死亡リンク数を記録する。
func (c *Collector) RecordBatch(total, alive int) {
	c.batchLinks.WithLabelValues("alive").Add(float64(alive))
	c.batchLinks.WithLabelValues("dead").Add(float64(total - alive))
}

// RecordSubscriptionStates は購読の状態別件数を記録する。
func (c *Collector) RecordSubscriptionStates(healthy, failing, prunable int) {
	c.subscriptions.WithLabelValues("healthy").Set(float64(healthy))
	c.subscriptions.WithLabelValues("failing").Set(float64(failing))
	c.subscriptions.WithLabelValues("prunable").Set(float64(prunable))
}

// RecordPruned は削除された購読数を記録する。
func (c *Collector) RecordPruned(count int) {
	c.pruned.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。メトリクス不要なテストやコマンドで使う。
type Nop struct{}

func (Nop) RecordProbe(string, time.Duration)      {}
func (Nop) RecordBatch(int, int)                   {}
func (Nop) RecordSubscriptionStates(int, int, int) {}
func (Nop) RecordPruned(int)                       {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカーモードでのスクレイプ用。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
