// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// パスの結果ラベル。
const (
	PassSucceeded       = "success"
	PassDirectoryFailed = "directory_failed"
	PassStoreFailed     = "store_failed"
	PassCancelled       = "cancelled"
)

// 変更操作の結果ラベル。
const (
	MutationApplied = "applied"
	MutationFailed  = "failed"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 照合ジョブから利用する。
type MetricsCollector interface {
	RecordCandidates(action string, count int)
	RecordPass(result string, duration time.Duration)
	RecordAnomaly(reason string)
	RecordDirectoryPrincipals(count int)
	RecordMutation(action, result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	candidates          *prometheus.GaugeVec
	passes              *prometheus.CounterVec
	passDuration        prometheus.Histogram
	anomalies           *prometheus.CounterVec
	directoryPrincipals prometheus.Gauge
	mutations           *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		candidates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cleanupusers_candidates",
			Help: "直近の照合パスで算出された候補数（アクション別）",
		}, []string{"action"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleanupusers_passes_total",
			Help: "照合パスの実行回数（結果別）",
		}, []string{"result"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cleanupusers_pass_duration_seconds",
			Help:    "照合パスの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleanupusers_anomalies_total",
			Help: "異常としてスキップされた候補数（理由別）",
		}, []string{"reason"}),
		directoryPrincipals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cleanupusers_directory_principals",
			Help: "直近のディレクトリ検索で取得したプリンシパル数",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleanupusers_mutations_total",
			Help: "適用した変更操作の数（アクション・結果別）",
		}, []string{"action", "result"}),
	}

	reg.MustRegister(
		c.candidates,
		c.passes,
		c.passDuration,
		c.anomalies,
		c.directoryPrincipals,
		c.mutations,
	)

	return c
}

// RecordCandidates はアクション別の候補数を記録する。
func (c *Collector) RecordCandidates(action string, count int) {
	c.candidates.WithLabelValues(action).Set(float64(count))
}

// RecordPass は照合パスの結果と所要時間を記録する。
func (c *Collector) RecordPass(result string, duration time.Duration) {
	c.passes.WithLabelValues(result).Inc()
	c.passDuration.Observe(duration.Seconds())
}

// RecordAnomaly は異常によるスキップを記録する。
func (c *Collector) RecordAnomaly(reason string) {
	c.anomalies.WithLabelValues(reason).Inc()
}

// RecordDirectoryPrincipals はディレクトリから取得したプリンシパル数を記録する。
func (c *Collector) RecordDirectoryPrincipals(count int) {
	c.directoryPrincipals.Set(float64(count))
}

// RecordMutation は変更操作の結果を記録する。
func (c *Collector) RecordMutation(action, result string) {
	c.mutations.WithLabelValues(action, result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ MetricsCollector = (*Collector)(nil)
