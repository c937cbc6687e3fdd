package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        int      `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`

	Backend struct {
		BaseURL        string `yaml:"baseURL"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
	} `yaml:"backend"`

	AI struct {
		// Interval between commentary probes, in milliseconds.
		PollIntervalMS int `yaml:"pollIntervalMS"`
		// Probe attempts per record before giving up; 0 retries forever.
		MaxProbes int `yaml:"maxProbes"`
	} `yaml:"ai"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Load reads a config.yaml and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend.baseURL is required")
	}
	return &cfg, nil
}

// Default returns a config with defaults applied and the given backend URL.
func Default(backendURL string) *Config {
	cfg := &Config{}
	cfg.Backend.BaseURL = backendURL
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 120
	}
	if c.AI.PollIntervalMS == 0 {
		c.AI.PollIntervalMS = 2000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// BackendTimeout helper
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// PollInterval helper
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.AI.PollIntervalMS) * time.Millisecond
}
