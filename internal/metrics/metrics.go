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
// サービス層やミドルウェアから利用する。
type MetricsCollector interface {
	RecordBindOutcome(outcome string)
	RecordBindLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordPrescriptionIssued()
	RecordPrescriptionDispensed()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	bindOutcome           *prometheus.CounterVec
	bindLatency           prometheus.Histogram
	httpStatus            *prometheus.CounterVec
	prescriptionIssued    prometheus.Counter
	prescriptionDispensed prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bindOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medverify_bind_outcome_total",
			Help: "役割バインディング結果別の合計数",
		}, []string{"outcome"}),
		bindLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medverify_bind_latency_seconds",
			Help:    "役割バインディングのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medverify_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		prescriptionIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medverify_prescription_issued_total",
			Help: "発行された処方箋の合計数",
		}),
		prescriptionDispensed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medverify_prescription_dispensed_total",
			Help: "調剤された処方箋の合計数",
		}),
	}

	reg.MustRegister(
		c.bindOutcome,
		c.bindLatency,
		c.httpStatus,
		c.prescriptionIssued,
		c.prescriptionDispensed,
	)

	return c
}

// RecordBindOutcome は役割バインディングの結果を記録する。
// outcomeは"bound", "conflict", "store_unavailable"のいずれか。
func (c *Collector) RecordBindOutcome(outcome string) {
	c.bindOutcome.WithLabelValues(outcome).Inc()
}

// RecordBindLatency は役割バインディングのレイテンシを記録する。
func (c *Collector) RecordBindLatency(duration time.Duration) {
	c.bindLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPrescriptionIssued は処方箋の発行を記録する。
func (c *Collector) RecordPrescriptionIssued() {
	c.prescriptionIssued.Inc()
}

// RecordPrescriptionDispensed は処方箋の調剤を記録する。
func (c *Collector) RecordPrescriptionDispensed() {
	c.prescriptionDispensed.Inc()
}

var _ MetricsCollector = (*Collector)(nil)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
