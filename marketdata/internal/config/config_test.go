package config

import (
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want 8081", cfg.Server.Port)
	}

	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}

	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("NATS.URL = %q, want %q", cfg.NATS.URL, "nats://localhost:4222")
	}

	if !cfg.Redis.Enabled {
		t.Error("Redis.Enabled should be true by default")
	}

	if !cfg.Ingestion.RateLimitEnabled {
		t.Error("Ingestion.RateLimitEnabled should be true by default")
	}

	if cfg.Ingestion.RateLimitWindow != time.Minute {
		t.Errorf("Ingestion.RateLimitWindow = %v, want 1m", cfg.Ingestion.RateLimitWindow)
	}

	if cfg.Analysis.BarInterval != time.Minute {
		t.Errorf("Analysis.BarInterval = %v, want 1m", cfg.Analysis.BarInterval)
	}

	if cfg.Analysis.HistoryBars != 500 {
		t.Errorf("Analysis.HistoryBars = %d, want 500", cfg.Analysis.HistoryBars)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}

	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() with non-existent file path should return error")
	}
}
