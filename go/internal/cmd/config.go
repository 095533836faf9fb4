package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/oralboard/go/internal/timers"
	"gopkg.in/yaml.v3"
)

const (
	storeDriverMemory   = "memory"
	storeDriverPostgres = "postgres"
)

// Config is the optional YAML configuration file. Environment variables
// override it where both exist.
type Config struct {
	Timers timers.Config `yaml:"timers"`
	Gateway struct {
		PushIntervalMs int `yaml:"push_interval_ms"`
	} `yaml:"gateway"`
	Events struct {
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"events"`

	Port        string `yaml:"-"`
	StoreDriver string `yaml:"-"`
	NATSURL     string `yaml:"-"`
	LogLevel    string `yaml:"-"`
}

// PushInterval returns the gateway snapshot interval
func (c *Config) PushInterval() time.Duration {
	return time.Duration(c.Gateway.PushIntervalMs) * time.Millisecond
}

func defaultConfig() *Config {
	cfg := &Config{
		Timers:      timers.DefaultConfig(),
		Port:        "8080",
		StoreDriver: storeDriverMemory,
		LogLevel:    "info",
	}
	cfg.Gateway.PushIntervalMs = 1000
	cfg.Events.StreamName = "TIMER_EVENTS"
	cfg.Events.SubjectPrefix = "timer.events"
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads the YAML file at path, when it exists, then applies env overrides.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	config.Port = getEnv("PORT", config.Port)
	config.StoreDriver = getEnv("STORE_DRIVER", config.StoreDriver)
	config.NATSURL = getEnv("NATS_URL", config.NATSURL)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.Timers.DefaultDurationSeconds = getEnvAsInt("TIMER_DEFAULT_DURATION_SEC", config.Timers.DefaultDurationSeconds)
	config.Timers.MaxDurationSeconds = getEnvAsInt("TIMER_MAX_DURATION_SEC", config.Timers.MaxDurationSeconds)

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case storeDriverMemory, storeDriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.Timers.MaxDurationSeconds < 1 {
		return fmt.Errorf("max duration must be positive, got %d", c.Timers.MaxDurationSeconds)
	}
	if c.Timers.DefaultDurationSeconds < 1 || c.Timers.DefaultDurationSeconds > c.Timers.MaxDurationSeconds {
		return fmt.Errorf("default duration %d outside 1..%d", c.Timers.DefaultDurationSeconds, c.Timers.MaxDurationSeconds)
	}
	if c.Gateway.PushIntervalMs < 1 {
		return fmt.Errorf("push interval must be positive, got %d", c.Gateway.PushIntervalMs)
	}
	return nil
}
