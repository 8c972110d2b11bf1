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
// サービス層・ミドルウェア・外部APIクライアントから利用する。
type Collector struct {
	momentsCreated   prometheus.Counter
	momentsViewed    prometheus.Counter
	rateLimited      *prometheus.CounterVec
	cacheEvents      *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	upstreamFailures *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		momentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "songdash_moments_created_total",
			Help: "作成されたモーメントの合計数",
		}),
		momentsViewed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "songdash_moments_viewed_total",
			Help: "ID指定で読み取られたモーメントの合計数",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "songdash_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数（リミッター種別別）",
		}, []string{"limiter"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "songdash_cache_events_total",
			Help: "キャッシュのヒット・ミス数（キャッシュ別）",
		}, []string{"cache", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "songdash_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "songdash_upstream_latency_seconds",
			Help:    "外部APIのレイテンシ（秒、サービス別）",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "songdash_upstream_failures_total",
			Help: "外部API呼び出しの失敗数（サービス別）",
		}, []string{"service"}),
	}

	reg.MustRegister(
		c.momentsCreated,
		c.momentsViewed,
		c.rateLimited,
		c.cacheEvents,
		c.httpStatus,
		c.upstreamLatency,
		c.upstreamFailures,
	)

	return c
}

// RecordMomentCreated はモーメント作成を記録する。
func (c *Collector) RecordMomentCreated() {
	c.momentsCreated.Inc()
}

// RecordMomentViewed はモーメント読み取りを記録する。
func (c *Collector) RecordMomentViewed() {
	c.momentsViewed.Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(limiter string) {
	c.rateLimited.WithLabelValues(limiter).Inc()
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(cache string) {
	c.cacheEvents.WithLabelValues(cache, "hit").Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(cache string) {
	c.cacheEvents.WithLabelValues(cache, "miss").Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は外部APIのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(service string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordUpstreamFailure は外部API呼び出しの失敗を記録する。
func (c *Collector) RecordUpstreamFailure(service string) {
	c.upstreamFailures.WithLabelValues(service).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
