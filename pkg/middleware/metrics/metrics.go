// middleware/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "http response time.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60},
		},
	)

	totalHttpRequestsToUri = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_to_uri", Help: "http requests to uri"},
		[]string{"code", "uri", "method"},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests", Help: "http requests by code, and method"},
		[]string{"code", "method"},
	)

	moduleReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "module_reloads_total", Help: "module reloads by outcome"},
		[]string{"outcome"},
	)

	liveEndpoints = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "live_endpoints", Help: "currently registered endpoints"},
	)
)

// Collect counts every request by status code, path and method.
func Collect() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimd.NewWrapResponseWriter(w, r.ProtoMajor)
			startTime := time.Now()

			defer func() {
				endTime := time.Since(startTime)
				if r.URL.Path != "/metrics" {
					code := strconv.Itoa(ww.Status())
					uri := r.URL.Path // path only; avoid cardinality explosion
					method := r.Method

					totalHttpRequestsToUri.WithLabelValues(code, uri, method).Inc()
					totalHttpRequests.WithLabelValues(code, method).Inc()
					responseTime.Observe(endTime.Seconds())
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// ObserveReload records one per-module reload outcome.
func ObserveReload(outcome string) { moduleReloads.WithLabelValues(outcome).Inc() }

// SetLiveEndpoints tracks the registry's endpoint count after a publish.
func SetLiveEndpoints(n int) { liveEndpoints.Set(float64(n)) }

func NewPromHttpHandler() http.Handler { return promhttp.Handler() }
func ProvideMetrics() http.Handler     { return NewPromHttpHandler() }

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsToUri,
		totalHttpRequests,
		moduleReloads,
		liveEndpoints,
	)
}

var Module = fx.Options(
	fx.Provide(ProvideMetrics),
)
