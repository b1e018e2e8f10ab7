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

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/self-labs/hass-stack/common/heartbeat"
	"github.com/self-labs/hass-stack/common/logging"
	natsclient "github.com/self-labs/hass-stack/common/messaging/nats"
	"github.com/self-labs/hass-stack/risk/internal/config"
	"github.com/self-labs/hass-stack/risk/internal/engine"
	"github.com/self-labs/hass-stack/risk/internal/handlers"
	"github.com/self-labs/hass-stack/risk/internal/repository"
	"github.com/self-labs/hass-stack/risk/internal/server"
	"github.com/self-labs/hass-stack/risk/internal/service"
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
	).With(logging.Service("risk"))
	logging.SetDefault(logger)

	slog.Info("Starting risk management agent",
		slog.Int("port", cfg.Server.Port),
		slog.String("nats_url", cfg.NATS.URL),
	)

	connString := cfg.Database.ConnString()

	// Run database migrations
	log.Println("Running database migrations...")
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	repo, err := repository.NewPostgresRepository(context.Background(), connString)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer repo.Close()

	busCfg := natsclient.DefaultConfig()
	busCfg.URL = cfg.NATS.URL
	busCfg.Name = "hass-risk"
	bus, err := natsclient.NewClient(busCfg)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer bus.Drain()

	limits := engine.DefaultLimits()
	if cfg.Risk.MaxPositionSize > 0 {
		limits.MaxPositionSize = cfg.Risk.MaxPositionSize
	}
	if cfg.Risk.MaxPortfolioRisk > 0 {
		limits.MaxPortfolioRisk = cfg.Risk.MaxPortfolioRisk
	}
	if cfg.Risk.MaxSectorExposure > 0 {
		limits.MaxSectorExposure = cfg.Risk.MaxSectorExposure
	}
	if cfg.Risk.MaxLeverage > 0 {
		limits.MaxLeverage = cfg.Risk.MaxLeverage
	}

	eng := engine.New(limits)
	svc := service.New(eng, repo, bus, logger)

	if err := svc.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start risk service: %v", err)
	}
	defer svc.Stop()

	monitorCtx, monitorCancel := context.WithCancel(context.Background())
	defer monitorCancel()
	go svc.MonitorLoop(monitorCtx, cfg.Risk.MonitorInterval, limits)
	go heartbeat.NewBeacon(bus, "risk_management", 0, heartbeat.DefaultInterval, logger).Run(monitorCtx)

	handler := handlers.NewHandler(svc, repo)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Risk management agent listening on %s", srv.Addr)
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
