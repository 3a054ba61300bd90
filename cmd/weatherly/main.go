package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/weatherly/internal/acquisition"
	"github.com/neexbeast/weatherly/internal/api"
	"github.com/neexbeast/weatherly/internal/cache"
	"github.com/neexbeast/weatherly/internal/config"
	"github.com/neexbeast/weatherly/internal/geolocation"
	"github.com/neexbeast/weatherly/internal/weather"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional; without it the position cache lives in memory.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
	}

	geo := weather.NewGeocodingClientWithURL(cfg.GeocodingURL, cfg.Language).WithTimeout(cfg.HTTPTimeout)
	forecast := weather.NewForecastClientWithURL(cfg.ForecastURL).WithTimeout(cfg.HTTPTimeout)
	locator := buildLocator(cfg, redisClient, log)

	orch := acquisition.NewOrchestrator(geo, forecast, locator, log)
	defer orch.Close()

	if cfg.DefaultCity != "" {
		go func() {
			if err := orch.SearchByName(ctx, cfg.DefaultCity); err != nil {
				log.Warn("default city search failed", "city", cfg.DefaultCity, "err", err)
			}
		}()
	}

	handlers := api.NewHandlers(orch, log)
	var router http.Handler
	if redisClient != nil {
		router = api.NewRouter(handlers, cfg.BearerToken, cache.Pinger{Client: redisClient}, log)
	} else {
		router = api.NewRouter(handlers, cfg.BearerToken, nil, log)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port, "geolocation", cfg.Geolocation)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	// Ends open state streams and the startup search.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

// buildLocator returns nil when geolocation is off, which the orchestrator
// reports as unsupported.
func buildLocator(cfg *config.Config, redisClient *redis.Client, log *slog.Logger) geolocation.Locator {
	var base geolocation.Locator
	switch cfg.Geolocation {
	case config.GeoIP:
		base = geolocation.NewIPLocatorWithURL(cfg.GeoIPURL)
	case config.GeoStatic:
		base = geolocation.NewStaticLocator(*cfg.Latitude, *cfg.Longitude)
	default:
		return nil
	}

	var positions geolocation.PositionCache = geolocation.NewMemoryCache()
	if redisClient != nil {
		host, err := os.Hostname()
		if err != nil {
			log.Warn("hostname unavailable, using shared position key", "err", err)
		}
		positions = cache.NewPositionCache(redisClient, host, geolocation.DefaultMaximumAge)
	}
	return geolocation.NewCachedLocator(base, positions, log)
}
