package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/technosupport/ts-drm/internal/api"
	"github.com/technosupport/ts-drm/internal/config"
	"github.com/technosupport/ts-drm/internal/logger"
	"github.com/technosupport/ts-drm/internal/metrics"
	"github.com/technosupport/ts-drm/internal/middleware"
	"github.com/technosupport/ts-drm/internal/playback"
	"github.com/technosupport/ts-drm/internal/ratelimit"
)

func main() {
	// 1. Configuration & Secrets
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	// 2. Components
	collector := metrics.NewCollector()

	svc, enc, _, err := playback.FromConfig(cfg, collector, log)
	if err != nil {
		log.Fatal("failed to build playback service", zap.Error(err))
	}
	log.Info("payload encryptor ready",
		zap.String("site_id", enc.SiteID()),
		zap.String("iv_mode", string(cfg.IVMode)))

	var (
		rlMiddleware *middleware.RateLimitMiddleware
		redisPing    api.Pinger
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		limiter := ratelimit.NewLimiter(rdb, "")
		rlMiddleware = middleware.NewRateLimitMiddleware(limiter, cfg.RateLimit, collector, log)
		redisPing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info("rate limiting enabled",
			zap.String("redis_addr", cfg.RedisAddr),
			zap.Int("rate", cfg.RateLimit.Rate),
			zap.Duration("window", cfg.RateLimit.Window))
	}

	// 3. Routing
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(middleware.HTTPMetrics(collector))
	r.Use(middleware.CORS)

	api.NewHealthHandler(redisPing).Register(r)
	r.Handle("/metrics", collector.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rlMiddleware.PerIP)
		api.NewPlaybackHandler(svc, playback.DefaultIdentity(cfg), log).Register(r)
	})

	// 4. Start Server
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("drmtokend listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// 5. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}
