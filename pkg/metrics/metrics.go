// Package metrics はプロキシのPrometheusメトリクスを提供する。
//
// Collectorはプロセス内で専用のレジストリを持ち、/metrics エンドポイントから公開する。
// nilのCollectorに対するメソッド呼び出しは何もしないため、メトリクスを無効にした
// 構成でも呼び出し側で分岐する必要はない。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatproxy"

// Collector はプロキシのメトリクスを保持する。
type Collector struct {
	registry *prometheus.Registry

	// requests はルートとステータスコードごとのリクエスト数。
	requests *prometheus.CounterVec
	// errors はエラーエンベロープのtypeごとの件数。
	errors *prometheus.CounterVec
	// upstreamDuration は上流APIの呼び出し時間。
	upstreamDuration *prometheus.HistogramVec
	// rateLimited はローカルのレート制限で拒否したリクエスト数。
	rateLimited prometheus.Counter
}

// New は新しいCollectorを生成する。registryがnilの場合は専用のレジストリを作成する。
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total error responses by error type.",
		}, []string{"type"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of upstream chat completion calls.",
			// LLMの応答時間に合わせたバケット（100ms - 60s）
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the local rate limiter.",
		}),
	}

	registry.MustRegister(c.requests, c.errors, c.upstreamDuration, c.rateLimited)
	return c
}

// ObserveRequest は完了したリクエストを記録する。
func (c *Collector) ObserveRequest(route string, status int) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// ObserveError はクライアントに返したエラーのtypeを記録する。
func (c *Collector) ObserveError(errType string) {
	if c == nil {
		return
	}
	c.errors.WithLabelValues(errType).Inc()
}

// ObserveUpstream は上流APIの呼び出し結果と所要時間を記録する。
// outcomeは "success"、"api_error"、"transport_error" のいずれか。
func (c *Collector) ObserveUpstream(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.upstreamDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveRateLimited はレート制限による拒否を記録する。
func (c *Collector) ObserveRateLimited() {
	if c == nil {
		return
	}
	c.rateLimited.Inc()
}

// Registry は内部のレジストリを返す。
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler はメトリクスを公開するHTTPハンドラを返す。
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
