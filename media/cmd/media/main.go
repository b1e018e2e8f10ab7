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

	"github.com/self-labs/hass-stack/common/heartbeat"
	"github.com/self-labs/hass-stack/common/logging"
	natsclient "github.com/self-labs/hass-stack/common/messaging/nats"
	"github.com/self-labs/hass-stack/media/internal/config"
	"github.com/self-labs/hass-stack/media/internal/credibility"
	"github.com/self-labs/hass-stack/media/internal/handlers"
	"github.com/self-labs/hass-stack/media/internal/server"
	"github.com/self-labs/hass-stack/media/internal/service"
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
	).With(logging.Service("media"))
	logging.SetDefault(logger)

	slog.Info("Starting media analysis agent",
		slog.Int("port", cfg.Server.Port),
		slog.String("nats_url", cfg.NATS.URL),
		slog.String("redis_url", cfg.Redis.URL),
	)

	busCfg := natsclient.DefaultConfig()
	busCfg.URL = cfg.NATS.URL
	busCfg.Name = "hass-media"
	bus, err := natsclient.NewClient(busCfg)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer bus.Drain()

	var cred credibility.Tracker
	if store, err := credibility.NewStore(cfg.Redis.URL); err != nil {
		slog.Warn("Redis unavailable, keeping credibility in memory",
			slog.String("error", err.Error()))
		cred = credibility.NewMemory()
	} else {
		cred = store
	}
	defer cred.Close()

	svc := service.New(cred, bus, logger)

	beaconCtx, stopBeacon := context.WithCancel(context.Background())
	defer stopBeacon()
	go heartbeat.NewBeacon(bus, "media_analysis", 2, heartbeat.DefaultInterval, logger).Run(beaconCtx)

	handler := handlers.NewHandler(svc, cred)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Media analysis agent listening on %s", srv.Addr)
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

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
