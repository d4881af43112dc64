package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/technosupport/ts-drm/internal/metrics"
	"github.com/technosupport/ts-drm/internal/ratelimit"
)

type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	config  ratelimit.LimitConfig
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewRateLimitMiddleware(l *ratelimit.Limiter, c ratelimit.LimitConfig, m *metrics.Collector, log *zap.Logger) *RateLimitMiddleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimitMiddleware{limiter: l, config: c, metrics: m, log: log}
}

// PerIP limits requests per client address. Redis trouble never blocks
// token issuance: the request goes through and the error is logged.
func (m *RateLimitMiddleware) PerIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.limiter == nil || !m.config.Enabled() || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		key := "rl:ip:" + m.limiter.HashIP(clientIP(r))
		decision, err := m.limiter.Allow(r.Context(), key, m.config)
		if err != nil {
			m.metrics.RateLimit("error")
			if errors.Is(err, ratelimit.ErrRedisUnavailable) {
				m.log.Warn("rate limit store unavailable, failing open", zap.String("req_id", RequestID(r.Context())))
			} else {
				m.log.Error("rate limit check failed", zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}

		writeRateLimitHeaders(w, decision)
		if !decision.Allowed {
			m.metrics.RateLimit("limited")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		m.metrics.RateLimit("allowed")
		next.ServeHTTP(w, r)
	})
}

// clientIP is RemoteAddr without port. Forwarded headers are client-controlled;
// behind a proxy chi's RealIP rewrites RemoteAddr before this runs.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeRateLimitHeaders(w http.ResponseWriter, d *ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	}
}
