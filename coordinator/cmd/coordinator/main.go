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

	"github.com/self-labs/hass-stack/common/logging"
	natsclient "github.com/self-labs/hass-stack/common/messaging/nats"
	"github.com/self-labs/hass-stack/coordinator/internal/config"
	"github.com/self-labs/hass-stack/coordinator/internal/dispatcher"
	"github.com/self-labs/hass-stack/coordinator/internal/handlers"
	"github.com/self-labs/hass-stack/coordinator/internal/recovery"
	"github.com/self-labs/hass-stack/coordinator/internal/regime"
	"github.com/self-labs/hass-stack/coordinator/internal/registry"
	"github.com/self-labs/hass-stack/coordinator/internal/server"
	"github.com/self-labs/hass-stack/coordinator/internal/service"
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
	).With(logging.Service("coordinator"))
	logging.SetDefault(logger)

	slog.Info("Starting coordinator",
		slog.Int("port", cfg.Server.Port),
		slog.String("nats_url", cfg.NATS.URL),
		slog.String("redis_url", cfg.Redis.URL),
	)

	reg, err := registry.New(cfg.Redis.URL, cfg.Coordinator.HeartbeatInterval, cfg.Coordinator.ErrorWindow)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer reg.Close()

	busCfg := natsclient.DefaultConfig()
	busCfg.URL = cfg.NATS.URL
	busCfg.Name = "hass-coordinator"
	bus, err := natsclient.NewClient(busCfg)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer bus.Drain()

	dispCfg := dispatcher.DefaultConfig()
	dispCfg.LaneDepth = cfg.Coordinator.LaneDepth
	disp := dispatcher.New(dispCfg)
	defer disp.Stop()

	rec := recovery.New(reg, bus, logger, cfg.Coordinator.ErrorBudget)
	det := regime.New(regime.DefaultThresholds())

	svc := service.New(reg, disp, rec, det, bus, logger)
	if err := svc.Start(); err != nil {
		log.Fatalf("Failed to start coordinator service: %v", err)
	}
	defer svc.Stop()

	regimeCtx, regimeCancel := context.WithCancel(context.Background())
	defer regimeCancel()
	go svc.RegimeLoop(regimeCtx, cfg.Coordinator.RegimeInterval)

	handler := handlers.NewHandler(svc)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Coordinator listening on %s", srv.Addr)
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
