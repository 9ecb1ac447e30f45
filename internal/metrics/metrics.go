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
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordUpload(kind string)
	RecordUploadFailure(stage string)
	RecordArticleWrite(op string)
	RecordOrphansSwept(count int)
	RecordOrphanDeleteFailure()
}

// アップロード失敗の発生段階
const (
	UploadStageHost  = "host"
	UploadStageStore = "store"
)

// 記事書き込みの操作種別
const (
	ArticleOpCreate = "create"
	ArticleOpUpdate = "update"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus          *prometheus.CounterVec
	requestLatency      prometheus.Histogram
	uploads             *prometheus.CounterVec
	uploadFailures      *prometheus.CounterVec
	articleWrites       *prometheus.CounterVec
	orphansSwept        prometheus.Counter
	orphanDeleteFailure prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holograma_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "holograma_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holograma_media_uploads_total",
			Help: "種別ごとのメディアアップロード成功数",
		}, []string{"kind"}),
		uploadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holograma_media_upload_failures_total",
			Help: "発生段階ごとのメディアアップロード失敗数",
		}, []string{"stage"}),
		articleWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holograma_article_writes_total",
			Help: "操作種別ごとの記事書き込み数",
		}, []string{"op"}),
		orphansSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holograma_orphan_media_swept_total",
			Help: "削除した孤立メディアの合計数",
		}),
		orphanDeleteFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holograma_orphan_media_host_delete_failures_total",
			Help: "孤立メディアのホストオブジェクト削除失敗数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.uploads,
		c.uploadFailures,
		c.articleWrites,
		c.orphansSwept,
		c.orphanDeleteFailure,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordUpload はアップロード成功をメディア種別ごとに記録する。
func (c *Collector) RecordUpload(kind string) {
	c.uploads.WithLabelValues(kind).Inc()
}

// RecordUploadFailure はアップロード失敗を発生段階ごとに記録する。
func (c *Collector) RecordUploadFailure(stage string) {
	c.uploadFailures.WithLabelValues(stage).Inc()
}

// RecordArticleWrite は記事の作成・更新を記録する。
func (c *Collector) RecordArticleWrite(op string) {
	c.articleWrites.WithLabelValues(op).Inc()
}

// RecordOrphansSwept は削除した孤立メディア数を記録する。
func (c *Collector) RecordOrphansSwept(count int) {
	c.orphansSwept.Add(float64(count))
}

// RecordOrphanDeleteFailure はホストオブジェクトの削除失敗を記録する。
func (c *Collector) RecordOrphanDeleteFailure() {
	c.orphanDeleteFailure.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクスを使わない構成やテストで利用する。
type Nop struct{}

func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestLatency(time.Duration) {}
func (Nop) RecordUpload(string) {}
func (Nop) RecordUploadFailure(string) {}
func (Nop) RecordArticleWrite(string) {}
func (Nop) RecordOrphansSwept(int) {}
func (Nop) RecordOrphanDeleteFailure() {}
