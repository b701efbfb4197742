// Package config loads the daemon configuration from YAML. Every field has a
// default, so an empty or missing file yields a working configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"logbot-service/internal/actions"
	"logbot-service/internal/core"
	"logbot-service/internal/hardware"
	"logbot-service/internal/logger"
)

type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type Config struct {
	Listen      string        `yaml:"listen"`
	LogLevel    string        `yaml:"log_level"`
	GracePeriod time.Duration `yaml:"grace_period"`

	// Simulate runs without motors, sensors or lift
	Simulate bool `yaml:"simulate"`

	Redis    RedisConfig     `yaml:"redis"`
	Hardware hardware.Config `yaml:"hardware"`
	Actions  actions.Config  `yaml:"actions"`
}

func Default() Config {
	return Config{
		Listen:      ":9999",
		LogLevel:    "info",
		GracePeriod: core.DefaultGracePeriod,
		Redis: RedisConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    6379,
		},
		Hardware: hardware.DefaultConfig(),
		Actions:  actions.DefaultConfig(),
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.GracePeriod <= 0 {
		errs = append(errs, fmt.Errorf("grace period must be positive, got %s", c.GracePeriod))
	}
	if c.Redis.Enabled && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("invalid redis port %d", c.Redis.Port))
	}
	if c.Actions.Speed <= 0 || c.Actions.Speed > 1 {
		errs = append(errs, fmt.Errorf("speed must be in (0, 1], got %g", c.Actions.Speed))
	}
	if c.Actions.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.Actions.PollInterval))
	}
	return errors.Join(errs...)
}
