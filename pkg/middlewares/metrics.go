package middlewares

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsMw records request counts and latencies by route
type MetricsMw struct {
	next http.Handler
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contxt",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by route, method and status code",
	}, []string{"route", "method", "code"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "contxt",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, by route and method",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration)
}

func NewMetricsMw() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewMetrics(next)
	}
}

func NewMetrics(next http.Handler) *MetricsMw {
	return &MetricsMw{next: next}
}

func (mw *MetricsMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	labels := prometheus.Labels{"route": routeName(r)}

	h := promhttp.InstrumentHandlerDuration(
		httpRequestDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(httpRequestsTotal.MustCurryWith(labels), mw.next),
	)
	h.ServeHTTP(rw, r)
}
