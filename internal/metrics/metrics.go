// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやハンドラー層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordAuthFailure()
	RecordUpload(kind string, bytes int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus  *prometheus.CounterVec
	authFail    prometheus.Counter
	uploads     *prometheus.CounterVec
	uploadBytes *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskvault_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		authFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskvault_auth_failures_total",
			Help: "認証ゲートで拒否されたリクエストの合計数",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskvault_uploads_total",
			Help: "種別ごとのアップロード成功数",
		}, []string{"kind"}),
		uploadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskvault_upload_bytes_total",
			Help: "種別ごとのアップロードバイト数の合計",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.authFail,
		c.uploads,
		c.uploadBytes,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAuthFailure は認証ゲートでの拒否を記録する。
func (c *Collector) RecordAuthFailure() {
	c.authFail.Inc()
}

// RecordUpload はアップロード成功を記録する。kindは "task_pdf" または "profile_pic"。
func (c *Collector) RecordUpload(kind string, bytes int64) {
	c.uploads.WithLabelValues(kind).Inc()
	c.uploadBytes.WithLabelValues(kind).Add(float64(bytes))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
