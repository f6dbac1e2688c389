// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// キャッシュ層・タスクランナー・取り込みパイプラインの各レコーダーインターフェースを満たす。
type Collector struct {
	articlesIngested  prometheus.Counter
	duplicatesSkipped prometheus.Counter
	cacheHit          *prometheus.CounterVec
	cacheMiss         *prometheus.CounterVec
	cacheError        *prometheus.CounterVec
	taskSucceeded     *prometheus.CounterVec
	taskFailed        *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		articlesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdesk_articles_ingested_total",
			Help: "新規保存された記事の合計数",
		}),
		duplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdesk_duplicates_skipped_total",
			Help: "URL重複でスキップされたレコードの合計数",
		}),
		cacheHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_cache_hit_total",
			Help: "ビュー別のキャッシュヒット数",
		}, []string{"view"}),
		cacheMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_cache_miss_total",
			Help: "ビュー別のキャッシュミス数",
		}, []string{"view"}),
		cacheError: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_cache_error_total",
			Help: "ビュー別のキャッシュストアエラー数",
		}, []string{"view"}),
		taskSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_task_succeeded_total",
			Help: "種別ごとの成功タスク数",
		}, []string{"kind"}),
		taskFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_task_failed_total",
			Help: "種別ごとの失敗タスク数",
		}, []string{"kind"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsdesk_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status_code"}),
	}

	reg.MustRegister(
		c.articlesIngested,
		c.duplicatesSkipped,
		c.cacheHit,
		c.cacheMiss,
		c.cacheError,
		c.taskSucceeded,
		c.taskFailed,
		c.httpDuration,
	)

	return c
}

// RecordArticleIngested は記事の新規保存を記録する。
func (c *Collector) RecordArticleIngested() {
	c.articlesIngested.Inc()
}

// RecordDuplicateSkipped はURL重複によるスキップを記録する。
func (c *Collector) RecordDuplicateSkipped() {
	c.duplicatesSkipped.Inc()
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(view string) {
	c.cacheHit.WithLabelValues(view).Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(view string) {
	c.cacheMiss.WithLabelValues(view).Inc()
}

// RecordCacheError はキャッシュストアのエラーを記録する。
func (c *Collector) RecordCacheError(view string) {
	c.cacheError.WithLabelValues(view).Inc()
}

// RecordTaskSucceeded はタスクの成功を記録する。
func (c *Collector) RecordTaskSucceeded(kind string) {
	c.taskSucceeded.WithLabelValues(kind).Inc()
}

// RecordTaskFailed はタスクの失敗を記録する。
func (c *Collector) RecordTaskFailed(kind string) {
	c.taskFailed.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest はHTTPリクエストの処理時間をメソッド・ステータス別に記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpDuration.WithLabelValues(method, strconv.Itoa(statusCode)).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
