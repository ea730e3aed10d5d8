package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photodrop_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code",
	}, []string{"method", "route", "code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "photodrop_http_request_duration_seconds",
		Help: "Time spent serving HTTP requests",
		// 上传可能持续数十秒
		Buckets: []float64{0.005, 0.025, 0.1, 0.25, 1, 2.5, 10, 30, 60},
	}, []string{"method", "route"})

	httpRequestBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "photodrop_http_request_bytes",
		Help:    "Declared request body sizes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 9),
	}, []string{"method", "route"})

	httpResponseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "photodrop_http_response_bytes",
		Help:    "Response body sizes",
		Buckets: prometheus.ExponentialBuckets(64, 4, 6),
	}, []string{"method", "route"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "photodrop_http_in_flight_requests",
		Help: "Requests currently being served",
	})
)

// Metrics 按路由模式记录请求数、耗时和收发字节数。
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			route := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			httpResponseBytes.WithLabelValues(r.Method, route).Observe(float64(rw.bytes))
			if r.ContentLength > 0 {
				httpRequestBytes.WithLabelValues(r.Method, route).Observe(float64(r.ContentLength))
			}
		})
	}
}

// routePattern 取 chi 的路由模式作为标签，未匹配的请求统一记为 unmatched。
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
