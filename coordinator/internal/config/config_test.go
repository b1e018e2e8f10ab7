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

	if cfg.Server.Port != 8086 {
		t.Errorf("Expected port 8086, got %d", cfg.Server.Port)
	}
	if cfg.Coordinator.HeartbeatInterval != 10*time.Second {
		t.Errorf("Expected 10s heartbeat interval, got %v", cfg.Coordinator.HeartbeatInterval)
	}
	if cfg.Coordinator.ErrorBudget != 20 {
		t.Errorf("Expected error budget 20, got %d", cfg.Coordinator.ErrorBudget)
	}
	if cfg.Coordinator.LaneDepth != 1024 {
		t.Errorf("Expected lane depth 1024, got %d", cfg.Coordinator.LaneDepth)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() with non-existent file path should return error")
	}
}
