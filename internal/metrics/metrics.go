// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// プロバイダクライアントやキャッシュ層から利用する。
type Recorder interface {
	RecordProviderFetch(endpoint string, success bool)
	RecordProviderLatency(duration time.Duration)
	RecordTokenRefresh(success bool)
	RecordSearchSubqueries(count int)
	RecordCacheAccess(cacheName string, hit bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	providerFetch    *prometheus.CounterVec
	providerLatency  prometheus.Histogram
	tokenRefresh     *prometheus.CounterVec
	searchSubqueries prometheus.Counter
	cacheAccess      *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		providerFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamedex_provider_fetch_total",
			Help: "カタログプロバイダへのリクエスト数（エンドポイント・結果別）",
		}, []string{"endpoint", "outcome"}),
		providerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gamedex_provider_latency_seconds",
			Help:    "カタログプロバイダのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamedex_token_refresh_total",
			Help: "プロバイダクレデンシャルのリフレッシュ数（結果別）",
		}, []string{"outcome"}),
		searchSubqueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamedex_search_subqueries_total",
			Help: "検索クエリ展開で発行されたサブクエリの合計数",
		}),
		cacheAccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamedex_cache_access_total",
			Help: "キャッシュアクセス数（キャッシュ名・ヒット有無別）",
		}, []string{"cache", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamedex_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.providerFetch,
		c.providerLatency,
		c.tokenRefresh,
		c.searchSubqueries,
		c.cacheAccess,
		c.httpStatus,
	)

	return c
}

// RecordProviderFetch はプロバイダリクエストの結果を記録する。
func (c *Collector) RecordProviderFetch(endpoint string, success bool) {
	c.providerFetch.WithLabelValues(endpoint, outcomeLabel(success)).Inc()
}

// RecordProviderLatency はプロバイダリクエストのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(duration time.Duration) {
	c.providerLatency.Observe(duration.Seconds())
}

// RecordTokenRefresh はクレデンシャルリフレッシュの結果を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	c.tokenRefresh.WithLabelValues(outcomeLabel(success)).Inc()
}

// RecordSearchSubqueries は検索1回で発行されたサブクエリ数を記録する。
func (c *Collector) RecordSearchSubqueries(count int) {
	c.searchSubqueries.Add(float64(count))
}

// RecordCacheAccess はキャッシュのヒット・ミスを記録する。
func (c *Collector) RecordCacheAccess(cacheName string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheAccess.WithLabelValues(cacheName, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Noop は何も記録しないRecorder。テストで使用する。
type Noop struct{}

func (Noop) RecordProviderFetch(endpoint string, success bool) {}
func (Noop) RecordProviderLatency(duration time.Duration)      {}
func (Noop) RecordTokenRefresh(success bool)                   {}
func (Noop) RecordSearchSubqueries(count int)                  {}
func (Noop) RecordCacheAccess(cacheName string, hit bool)      {}
func (Noop) RecordHTTPStatus(statusCode int)                   {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
