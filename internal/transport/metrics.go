package transport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the Prometheus-backed Recorder. One instance registers its
// collectors once and may be shared by every stage of a chain.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	retries     *prometheus.CounterVec
	rateWaits   prometheus.Counter
	bucketLevel *prometheus.GaugeVec
	cacheEvents *prometheus.CounterVec
}

// NewMetrics registers the client metrics on reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canvas",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Physical request attempts by method and status.",
		}, []string{"method", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "canvas",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Duration of physical request attempts.",
		}, []string{"method"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canvas",
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Retries scheduled, by reason.",
		}, []string{"reason"}),
		rateWaits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "canvas",
			Subsystem: "client",
			Name:      "rate_limit_waits_total",
			Help:      "Dispatches paused by the local rate-limit bucket.",
		}),
		bucketLevel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "canvas",
			Subsystem: "client",
			Name:      "rate_limit_remaining",
			Help:      "Remaining request units per bucket, as last accounted.",
		}, []string{"bucket"}),
		cacheEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canvas",
			Subsystem: "client",
			Name:      "cache_events_total",
			Help:      "Response cache activity by event.",
		}, []string{"event"}),
	}
}

// RequestDone implements Recorder.
func (m *Metrics) RequestDone(method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, statusLabel(status)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RetryScheduled implements Recorder.
func (m *Metrics) RetryScheduled(reason string) {
	m.retries.WithLabelValues(reason).Inc()
}

// RateLimitWait implements Recorder.
func (m *Metrics) RateLimitWait(string, time.Duration) {
	m.rateWaits.Inc()
}

// BucketLevel implements Recorder.
func (m *Metrics) BucketLevel(bucket string, remaining float64) {
	m.bucketLevel.WithLabelValues(bucket).Set(remaining)
}

// CacheEvent implements Recorder.
func (m *Metrics) CacheEvent(event string) {
	m.cacheEvents.WithLabelValues(event).Inc()
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}

var _ Recorder = (*Metrics)(nil)

// MetricsMiddleware times physical attempts. It belongs innermost in the
// chain so retried attempts each count, and cache hits do not.
type MetricsMiddleware struct {
	rec Recorder
}

// NewMetricsMiddleware creates the attempt-timing middleware.
func NewMetricsMiddleware(rec Recorder) *MetricsMiddleware {
	if rec == nil {
		rec = NopRecorder{}
	}
	return &MetricsMiddleware{rec: rec}
}

// Name implements Middleware.
func (m *MetricsMiddleware) Name() string { return "metrics" }

// Configure implements Middleware. The stage has no settings; anything
// supplied is ignored.
func (m *MetricsMiddleware) Configure(map[string]any) error { return nil }

// Wrap implements Middleware.
func (m *MetricsMiddleware) Wrap(next Handler) Handler {
	return func(ctx context.Context, req *http.Request, opts *Options) (*http.Response, error) {
		start := time.Now()
		resp, err := next(ctx, req, opts)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		m.rec.RequestDone(req.Method, status, time.Since(start))
		return resp, err
	}
}

var _ Middleware = (*MetricsMiddleware)(nil)
