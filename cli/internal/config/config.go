// Package config persists CLI profiles under ~/.hass/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	CurrentProfile string              `yaml:"current_profile"`
	Profiles       map[string]*Profile `yaml:"profiles"`
	path           string
}

// Profile holds the service endpoints and the ingest signing secret
// for one environment.
type Profile struct {
	CoordinatorURL string `yaml:"coordinator_url"`
	MarketDataURL  string `yaml:"marketdata_url"`
	MediaURL       string `yaml:"media_url"`
	ExecutionURL   string `yaml:"execution_url"`
	MonitorURL     string `yaml:"monitor_url"`
	IngestSecret   string `yaml:"ingest_secret"`
}

// DefaultProfile points at a local stack.
func DefaultProfile() *Profile {
	return &Profile{
		CoordinatorURL: "http://localhost:8086",
		MarketDataURL:  "http://localhost:8081",
		MediaURL:       "http://localhost:8082",
		ExecutionURL:   "http://localhost:8085",
		MonitorURL:     "http://localhost:8087",
	}
}

func Default() *Config {
	return &Config{
		CurrentProfile: "default",
		Profiles:       map[string]*Profile{"default": DefaultProfile()},
	}
}

func Load(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfgFile = filepath.Join(home, ".hass", "config.yaml")
	}

	cfg := Default()
	cfg.path = cfgFile

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Save() error {
	if c.path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		c.path = filepath.Join(home, ".hass", "config.yaml")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.path, data, 0600)
}

func (c *Config) GetProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}

	profile, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}

	return profile, nil
}

// SaveProfile adds or replaces a profile and makes it current.
func (c *Config) SaveProfile(name string, profile *Profile) error {
	if c.Profiles == nil {
		c.Profiles = make(map[string]*Profile)
	}
	c.Profiles[name] = profile
	c.CurrentProfile = name
	return c.Save()
}
