package statusapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	probeCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ctxprobe",
			Subsystem: "search",
			Name:      "probe_calls_total",
			Help:      "Total fit-predicate round trips",
		},
		[]string{"outcome"},
	)

	probeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ctxprobe",
			Subsystem: "search",
			Name:      "probe_duration_seconds",
			Help:      "Duration of individual fit-predicate calls",
			// Model loads run seconds to tens of minutes.
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	modelsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ctxprobe",
			Subsystem: "sweep",
			Name:      "models_total",
			Help:      "Models finished per outcome state",
		},
		[]string{"state"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ctxprobe",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ctxprobe",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)

func init() {
	prometheus.MustRegister(probeCallsTotal, probeDuration, modelsTotal, httpRequestsTotal, httpRequestDuration)
}

// Collector is a probe.Observer feeding the Prometheus registry.
type Collector struct{}

func (Collector) ModelStarted(string) {}

func (Collector) ProbeStarted(string, int) {}

func (Collector) ProbeFinished(model string, contextSize int, fits bool, dur time.Duration) {
	outcome := "no_fit"
	if fits {
		outcome = "fit"
	}
	probeCallsTotal.WithLabelValues(outcome).Inc()
	probeDuration.Observe(dur.Seconds())
}

func (Collector) ModelFinished(model string, state string, maxContext int) {
	modelsTotal.WithLabelValues(state).Inc()
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		status := itoa(sr.status)
		httpRequestsTotal.WithLabelValues(path, r.Method, status).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// fast integer to ascii for the small set of status codes
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
