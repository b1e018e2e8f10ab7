package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/self-labs/hass-stack/common/heartbeat"
	"github.com/self-labs/hass-stack/common/logging"
	natsclient "github.com/self-labs/hass-stack/common/messaging/nats"
	"github.com/self-labs/hass-stack/marketdata/internal/auth"
	"github.com/self-labs/hass-stack/marketdata/internal/config"
	"github.com/self-labs/hass-stack/marketdata/internal/handlers"
	"github.com/self-labs/hass-stack/marketdata/internal/history"
	"github.com/self-labs/hass-stack/marketdata/internal/ratelimit"
	"github.com/self-labs/hass-stack/marketdata/internal/server"
	"github.com/self-labs/hass-stack/marketdata/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("marketdata"))
	logging.SetDefault(logger)

	slog.Info("Starting market data agent",
		slog.Int("port", cfg.Server.Port),
		slog.String("nats_url", cfg.NATS.URL),
		slog.String("bar_interval", cfg.Analysis.BarInterval.String()),
	)

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret must be set (MARKETDATA_AUTH_JWT_SECRET)")
	}

	// Connect to the bus
	busCfg := natsclient.DefaultConfig()
	busCfg.URL = cfg.NATS.URL
	busCfg.Name = "hass-marketdata"
	bus, err := natsclient.NewClient(busCfg)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer bus.Drain()

	// Initialize rate limiter
	var rateLimiter ratelimit.RateLimiter
	if cfg.Redis.Enabled && cfg.Ingestion.RateLimitEnabled {
		limiter, err := ratelimit.NewRedisRateLimiter(
			cfg.Redis.URL,
			cfg.Ingestion.RateLimitRequests,
			cfg.Ingestion.RateLimitWindow,
			false,
		)
		if err != nil {
			log.Printf("WARNING: Failed to initialize Redis rate limiter: %v", err)
			log.Println("Continuing without rate limiting")
			rateLimiter = &ratelimit.NoOpRateLimiter{}
		} else {
			rateLimiter = limiter
			log.Printf("Rate limiting enabled: %d requests per %s", cfg.Ingestion.RateLimitRequests, cfg.Ingestion.RateLimitWindow)
		}
	} else {
		rateLimiter = &ratelimit.NoOpRateLimiter{}
	}
	defer rateLimiter.Close()

	store := history.NewStore(cfg.Analysis.HistoryBars)
	svc := service.New(store, bus, cfg.Analysis.BarInterval, logger)

	beaconCtx, stopBeacon := context.WithCancel(context.Background())
	defer stopBeacon()
	go heartbeat.NewBeacon(bus, "market_data", 1, heartbeat.DefaultInterval, logger).Run(beaconCtx)

	// Periodic flush closes bars for symbols with no incoming ticks.
	flushCtx, stopFlush := context.WithCancel(context.Background())
	defer stopFlush()
	go func() {
		ticker := time.NewTicker(cfg.Analysis.BarInterval)
		defer ticker.Stop()
		for {
			select {
			case <-flushCtx.Done():
				return
			case <-ticker.C:
				if err := svc.Flush(flushCtx); err != nil {
					slog.Warn("Periodic flush failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	tokens := auth.NewTokenGenerator(cfg.Auth.JWTSecret)
	handler := handlers.NewHandler(svc, tokens, cfg.Auth.FeedTokenHashes, rateLimiter)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Market data agent listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	stopFlush()
	if err := svc.Flush(shutdownCtx); err != nil {
		log.Printf("WARNING: final flush failed: %v", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
