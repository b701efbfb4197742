package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logbot-service/internal/actions"
	"logbot-service/internal/hardware"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":8080"
log_level: debug
grace_period: 500ms
simulate: true
redis:
  enabled: false
hardware:
  i2c_bus: /dev/i2c-3
  lift:
    power: 5
actions:
  speed: 0.25
  edge_sweep: 3s
  default_calibration:
    line: 180
    floor: 30
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.GracePeriod)
	assert.True(t, cfg.Simulate)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost", cfg.Redis.Host, "unset fields keep defaults")

	assert.Equal(t, "/dev/i2c-3", cfg.Hardware.I2CBus)
	assert.Equal(t, 5, cfg.Hardware.Lift.Power)
	assert.Equal(t, hardware.DefaultConfig().Lift.Direction, cfg.Hardware.Lift.Direction)

	assert.Equal(t, 0.25, cfg.Actions.Speed)
	assert.Equal(t, 3*time.Second, cfg.Actions.EdgeSweep)
	assert.Equal(t, actions.Calibration{Line: 180, Floor: 30}, cfg.Actions.DefaultCalibration)
	assert.Equal(t, actions.DefaultConfig().PollInterval, cfg.Actions.PollInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "listen: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"zero grace", func(c *Config) { c.GracePeriod = 0 }},
		{"bad redis port", func(c *Config) { c.Redis.Port = 70000 }},
		{"speed above one", func(c *Config) { c.Actions.Speed = 1.5 }},
		{"zero poll interval", func(c *Config) { c.Actions.PollInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRedisPortIgnoredWhenDisabled(t *testing.T) {
	cfg := Default()
	cfg.Redis.Enabled = false
	cfg.Redis.Port = 0
	assert.NoError(t, cfg.Validate())
}
