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

	"github.com/self-labs/hass-stack/common/logging"
	natsclient "github.com/self-labs/hass-stack/common/messaging/nats"
	"github.com/self-labs/hass-stack/monitor/internal/alerts"
	"github.com/self-labs/hass-stack/monitor/internal/checker"
	"github.com/self-labs/hass-stack/monitor/internal/config"
	"github.com/self-labs/hass-stack/monitor/internal/coordclient"
	"github.com/self-labs/hass-stack/monitor/internal/handlers"
	"github.com/self-labs/hass-stack/monitor/internal/notification"
	"github.com/self-labs/hass-stack/monitor/internal/server"
	"github.com/self-labs/hass-stack/monitor/internal/service"
	"github.com/self-labs/hass-stack/monitor/internal/stats"
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
	).With(logging.Service("monitor"))
	logging.SetDefault(logger)

	slog.Info("Starting monitor",
		slog.Int("port", cfg.Server.Port),
		slog.String("nats_url", cfg.NATS.URL),
		slog.String("coordinator_url", cfg.Monitor.CoordinatorURL),
	)

	busCfg := natsclient.DefaultConfig()
	busCfg.URL = cfg.NATS.URL
	busCfg.Name = "hass-monitor"
	bus, err := natsclient.NewClient(busCfg)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer bus.Drain()

	channels := []notification.Channel{notification.NewLogChannel(log.Printf)}
	if cfg.Notifications.WebhookURL != "" {
		channels = append(channels, notification.NewWebhookChannel(cfg.Notifications.WebhookURL, 10*time.Second))
	}
	if cfg.Notifications.SlackURL != "" {
		channels = append(channels, notification.NewSlackChannel(cfg.Notifications.SlackURL, 10*time.Second))
	}
	channel := notification.NewMultiChannel(channels...)

	thresholds := checker.Thresholds{
		MaxQueueDepth:     cfg.Monitor.MaxQueueDepth,
		HeartbeatInterval: cfg.Monitor.HeartbeatInterval,
		MaxErrorRate:      cfg.Monitor.MaxErrorRate,
		MaxLatencyMS:      cfg.Monitor.MaxLatencyMS,
	}

	tracker := stats.New(cfg.Monitor.StatsWindow)
	coord := coordclient.New(cfg.Monitor.CoordinatorURL, 5*time.Second)

	svc := service.New(tracker, thresholds, alerts.NewManager(), channel, coord, bus, logger)
	if err := svc.Start(); err != nil {
		log.Fatalf("Failed to start monitor service: %v", err)
	}
	defer svc.Stop()

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go svc.SweepLoop(sweepCtx, cfg.Monitor.SweepInterval)

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
		log.Printf("Monitor listening on %s", srv.Addr)
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
