package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8085 {
		t.Errorf("Expected port 8085, got %d", cfg.Server.Port)
	}
	if cfg.OpenSearch.Enabled {
		t.Error("OpenSearch should be disabled by default")
	}
	if cfg.Execution.SlippageBps != 5.0 {
		t.Errorf("Expected slippage 5bp, got %f", cfg.Execution.SlippageBps)
	}
	if cfg.Execution.StaleAfter != 30*time.Second {
		t.Errorf("Expected 30s stale threshold, got %v", cfg.Execution.StaleAfter)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() with non-existent file path should return error")
	}
}
