package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	NATS          NATSConfig         `mapstructure:"nats"`
	Monitor       MonitorConfig      `mapstructure:"monitor"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type MonitorConfig struct {
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	StatsWindow       time.Duration `mapstructure:"stats_window"`
	CoordinatorURL    string        `mapstructure:"coordinator_url"`
	MaxQueueDepth     int           `mapstructure:"max_queue_depth"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	MaxErrorRate      float64       `mapstructure:"max_error_rate"`
	MaxLatencyMS      float64       `mapstructure:"max_latency_ms"`
}

type NotificationConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	SlackURL   string `mapstructure:"slack_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8087)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("monitor.sweep_interval", "30s")
	v.SetDefault("monitor.stats_window", "1m")
	v.SetDefault("monitor.coordinator_url", "http://localhost:8086")
	v.SetDefault("monitor.max_queue_depth", 1000)
	v.SetDefault("monitor.heartbeat_interval", "10s")
	v.SetDefault("monitor.max_error_rate", 0.05)
	v.SetDefault("monitor.max_latency_ms", 100)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hass/monitor")
	}

	// Environment variables override
	v.SetEnvPrefix("MONITOR")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
