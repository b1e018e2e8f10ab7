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
	"github.com/self-labs/hass-stack/execution/internal/archive"
	"github.com/self-labs/hass-stack/execution/internal/broker"
	"github.com/self-labs/hass-stack/execution/internal/config"
	"github.com/self-labs/hass-stack/execution/internal/dlq"
	"github.com/self-labs/hass-stack/execution/internal/handlers"
	"github.com/self-labs/hass-stack/execution/internal/server"
	"github.com/self-labs/hass-stack/execution/internal/service"
	"github.com/self-labs/hass-stack/execution/internal/tracker"
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
	).With(logging.Service("execution"))
	logging.SetDefault(logger)

	slog.Info("Starting execution agent",
		slog.Int("port", cfg.Server.Port),
		slog.String("nats_url", cfg.NATS.URL),
	)

	busCfg := natsclient.DefaultConfig()
	busCfg.URL = cfg.NATS.URL
	busCfg.Name = "hass-execution"
	bus, err := natsclient.NewClient(busCfg)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer bus.Drain()

	js, err := natsclient.NewJetStreamClient(busCfg)
	if err != nil {
		log.Fatalf("Failed to create JetStream client: %v", err)
	}

	deadLetters, err := dlq.NewQueue(context.Background(), js)
	if err != nil {
		log.Fatalf("Failed to create orders DLQ: %v", err)
	}

	var fillArchive archive.Archiver = archive.Noop{}
	if cfg.OpenSearch.Enabled {
		fillArchive, err = archive.NewOpenSearch(archive.Config{
			URL:      cfg.OpenSearch.URL,
			Username: cfg.OpenSearch.Username,
			Password: cfg.OpenSearch.Password,
			Insecure: cfg.OpenSearch.Insecure,
		})
		if err != nil {
			log.Fatalf("Failed to connect to OpenSearch: %v", err)
		}
	}

	paperCfg := broker.DefaultPaperConfig()
	paperCfg.SlippageBps = cfg.Execution.SlippageBps
	paperCfg.PartialFillRate = cfg.Execution.PartialFillRate
	paper := broker.NewPaper(paperCfg)

	svc := service.New(paper, tracker.New(cfg.Execution.StaleAfter), fillArchive, deadLetters, bus, logger)
	if err := svc.Start(); err != nil {
		log.Fatalf("Failed to start execution service: %v", err)
	}
	defer svc.Stop()

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go svc.StaleSweepLoop(sweepCtx, cfg.Execution.SweepInterval)
	go heartbeat.NewBeacon(bus, "execution", 0, heartbeat.DefaultInterval, logger).Run(sweepCtx)

	handler := handlers.NewHandler(svc, deadLetters)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Execution agent listening on %s", srv.Addr)
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
