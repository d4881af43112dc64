package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the service registry. A nil *Collector is valid and records
// nothing, so components can run without metrics in tests.
type Collector struct {
	registry *prometheus.Registry

	tokensIssued *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	failures     *prometheus.CounterVec
	rateLimit    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c := &Collector{registry: reg}

	c.tokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drm_tokens_issued_total",
		Help: "Playback tokens signed, by DRM system, protocol and HDCP level",
	}, []string{"drm_type", "streaming_type", "hdcp_level"})
	reg.MustRegister(c.tokensIssued)

	c.fallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drm_token_fallbacks_total",
		Help: "Requests served with a default capability or HDCP level",
	}, []string{"kind"})
	reg.MustRegister(c.fallbacks)

	c.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drm_token_failures_total",
		Help: "Token generation failures by stage",
	}, []string{"stage"})
	reg.MustRegister(c.failures)

	c.rateLimit = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drm_ratelimit_decisions_total",
		Help: "Rate limiter outcomes (allowed, limited, error)",
	}, []string{"result"})
	reg.MustRegister(c.rateLimit)

	c.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drm_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "method", "code"})
	reg.MustRegister(c.httpRequests)

	c.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "drm_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	reg.MustRegister(c.httpDuration)

	return c
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) TokenIssued(drmType, streamingType string, level int) {
	if c == nil {
		return
	}
	c.tokensIssued.WithLabelValues(drmType, streamingType, strconv.Itoa(level)).Inc()
}

// Fallback kinds.
const (
	FallbackCapability = "capability"
	FallbackHDCPLevel  = "hdcp_level"
)

func (c *Collector) Fallback(kind string) {
	if c == nil {
		return
	}
	c.fallbacks.WithLabelValues(kind).Inc()
}

func (c *Collector) Failure(stage string) {
	if c == nil {
		return
	}
	c.failures.WithLabelValues(stage).Inc()
}

func (c *Collector) RateLimit(result string) {
	if c == nil {
		return
	}
	c.rateLimit.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveHTTP(route, method string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
