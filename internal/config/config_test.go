package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/nvidiamon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "nvidiamon.toml")
	err := os.WriteFile(configPath, []byte(content), 0o600)
	require.NoError(t, err)

	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
interval = 5
sample_interval = 250
device = 1
fan_profile = "silent"
power_profile = "efficiency"
hysteresis = 3
warning = 80
critical = 88
simulate = true
metrics = true
database = "/path/to/metrics.db"
mqtt_broker = "broker.example:1883"
mqtt_topic = "lab/gpu"
log_level = "debug"
`)
	t.Setenv("NVIDIAMON_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Interval, "Expected Interval 5")
	assert.Equal(t, 250, cfg.SampleInterval, "Expected SampleInterval 250")
	assert.Equal(t, 1, cfg.Device, "Expected Device 1")
	assert.Equal(t, "silent", cfg.FanProfile, "Expected FanProfile silent")
	assert.Equal(t, "efficiency", cfg.PowerProfile, "Expected PowerProfile efficiency")
	assert.Equal(t, 3, cfg.Hysteresis, "Expected Hysteresis 3")
	assert.Equal(t, 80, cfg.Warning, "Expected Warning 80")
	assert.Equal(t, 88, cfg.Critical, "Expected Critical 88")
	assert.True(t, cfg.Simulate, "Expected Simulate true")
	assert.True(t, cfg.Metrics, "Expected Metrics true")
	assert.Equal(t, "/path/to/metrics.db", cfg.Database, "Expected Database /path/to/metrics.db")
	assert.Equal(t, "broker.example:1883", cfg.MQTTBroker, "Expected MQTTBroker broker.example:1883")
	assert.Equal(t, "lab/gpu", cfg.MQTTTopic, "Expected MQTTTopic lab/gpu")
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
}

func TestLoadDefaults(t *testing.T) {
	// Ensure no config file is used
	t.Setenv("NVIDIAMON_CONFIG", "")

	cfg, err := config.Load(config.WithConfigFile(writeConfig(t, "")))
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, 1, cfg.Interval, "Expected default Interval 1")
	assert.Equal(t, 500, cfg.SampleInterval, "Expected default SampleInterval 500")
	assert.Equal(t, 0, cfg.Device, "Expected default Device 0")
	assert.Equal(t, "standard", cfg.FanProfile, "Expected default FanProfile standard")
	assert.Equal(t, "standard", cfg.PowerProfile, "Expected default PowerProfile standard")
	assert.Equal(t, 4, cfg.Hysteresis, "Expected default Hysteresis 4")
	assert.Equal(t, 85, cfg.Warning, "Expected default Warning 85")
	assert.Equal(t, 90, cfg.Critical, "Expected default Critical 90")
	assert.Equal(t, 5, cfg.TrendWindow, "Expected default TrendWindow 5")
	assert.Equal(t, 10, cfg.TrendMinSamples, "Expected default TrendMinSamples 10")
	assert.InDelta(t, 0.05, cfg.TrendThreshold, 1e-9, "Expected default TrendThreshold 0.05")
	assert.False(t, cfg.Simulate, "Expected default Simulate false")
	assert.False(t, cfg.Metrics, "Expected default Metrics false")
	assert.Empty(t, cfg.MQTTBroker, "Expected default MQTTBroker empty")
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel info")
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv("NVIDIAMON_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	configPath := writeConfig(t, `
log_level = "invalid"
`)
	t.Setenv("NVIDIAMON_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_log_level")
}

func TestInvalidThresholds(t *testing.T) {
	configPath := writeConfig(t, `
warning = 90
critical = 85
`)
	t.Setenv("NVIDIAMON_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warning threshold")
}

func TestLogLevelFlag(t *testing.T) {
	t.Setenv("NVIDIAMON_CONFIG", "")

	// Save original args and restore after test
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd", "--log-level", "debug", "--device", "2"}

	cfg, err := config.Load(config.WithConfigFile(writeConfig(t, "")))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
	assert.Equal(t, 2, cfg.Device, "Expected Device to be set by flag")
}

func TestFlagOverridesFile(t *testing.T) {
	configPath := writeConfig(t, `
fan_profile = "silent"
device = 1
`)
	t.Setenv("NVIDIAMON_CONFIG", configPath)

	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd", "--fan-profile", "aggressive"}

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "aggressive", cfg.FanProfile, "Expected flag to override file value")
	assert.Equal(t, 1, cfg.Device, "Expected file value to survive for unset flags")
}

func TestEffectiveLogLevel(t *testing.T) {
	cfg := &config.Config{LogLevel: "warning"}
	assert.Equal(t, "warning", cfg.EffectiveLogLevel())

	cfg.Verbose = true
	assert.Equal(t, "info", cfg.EffectiveLogLevel())

	cfg.Debug = true
	assert.Equal(t, "debug", cfg.EffectiveLogLevel())
}
