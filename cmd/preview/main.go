// Command preview serves the generated artifacts read-only over HTTP until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/airquality-mockdata/internal/cache"
	"github.com/kjstillabower/airquality-mockdata/internal/config"
	httphandler "github.com/kjstillabower/airquality-mockdata/internal/http"
	"github.com/kjstillabower/airquality-mockdata/internal/observability"
)

const inFlightCheckInterval = 50 * time.Millisecond

func main() {
	logger, err := observability.NewLogger("preview")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	stations := make([]string, 0, len(cfg.Sensor.Stations))
	for _, s := range cfg.Sensor.Stations {
		stations = append(stations, s.Name)
	}
	observability.SetTrackedLocations(stations)

	var limiter *rate.Limiter
	if cfg.Preview.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Preview.RateLimitRPS), cfg.Preview.RateLimitBurst)
	}
	handler := httphandler.NewHandler(cfg.Paths, logger, cfg.Preview.LocationMaxLength)
	handler.SetHealth(httphandler.HealthConfig{
		Window:            cfg.Preview.HealthWindow,
		OverloadDenialPct: cfg.Preview.OverloadDenialPct,
		DegradedErrorPct:  cfg.Preview.DegradedErrorPct,
	})

	var memcacheCloser *cache.MemcachedCache
	switch cfg.Preview.CacheBackend {
	case "memcached":
		mc := cache.NewMemcachedCache(cfg.Preview.MemcachedAddrs, cfg.Preview.MemcachedTimeout, cfg.Preview.MemcachedMaxIdleConns)
		memcacheCloser = mc
		guarded := cache.NewBreakerCache("memcached", mc, cache.BreakerConfig{
			FailureThreshold: uint32(cfg.Preview.BreakerFailures),
			Timeout:          cfg.Preview.BreakerTimeout,
			OnStateChange: func(from, to string) {
				observability.RecordCacheBreakerTransition(from, to)
				logger.Warn("cache circuit breaker transition", zap.String("from", from), zap.String("to", to))
			},
		})
		handler.SetCache(guarded, cfg.Preview.CacheTTL)
		handler.CachePing = mc.Ping
		logger.Info("cache backend: memcached",
			zap.String("addrs", cfg.Preview.MemcachedAddrs),
			zap.Int("breaker_failures", cfg.Preview.BreakerFailures),
			zap.Duration("breaker_timeout", cfg.Preview.BreakerTimeout))
	case "in_memory":
		handler.SetCache(cache.NewInMemoryCache(), cfg.Preview.CacheTTL)
		logger.Info("cache backend: in_memory")
	default:
		logger.Info("cache backend: none")
	}
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		RequestTimeout: cfg.Preview.RequestTimeout,
		Limiter:        limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Preview.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.Strings("artifacts", handler.ArtifactNames()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	handler.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Preview.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger, cfg.MetricsTextfile); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
