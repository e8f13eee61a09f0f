package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "goja", cfg.Bench.Browser)
	assert.Equal(t, 0, cfg.Bench.TimeoutMS)
	assert.Equal(t, 1, cfg.Bench.Workers)
	assert.False(t, cfg.Bench.FailFast)
	assert.Equal(t, 60000, cfg.Bench.WatchdogStallMS)

	assert.Equal(t, "vectors", cfg.Vectors.Dir)
	assert.Equal(t, ".xssbench", cfg.Report.WorkDir)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "goja", cfg.Bench.Browser)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"XSSBENCH_BROWSER":           "headless",
		"XSSBENCH_TIMEOUT_MS":        "250",
		"XSSBENCH_WORKERS":           "8",
		"XSSBENCH_FAIL_FAST":         "true",
		"XSSBENCH_WATCHDOG_STALL_MS": "5000",
		"XSSBENCH_VECTORS":           "corpus",
		"XSSBENCH_JSON_OUT":          "out.json",
		"XSSBENCH_LOG_LEVEL":         "debug",
		"XSSBENCH_LOG_DEV":           "true",
	}
	for key, value := range envVars {
		require.NoError(t, os.Setenv(key, value))
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "headless", cfg.Bench.Browser)
	assert.Equal(t, 250, cfg.Bench.TimeoutMS)
	assert.Equal(t, 8, cfg.Bench.Workers)
	assert.True(t, cfg.Bench.FailFast)
	assert.Equal(t, 5000, cfg.Bench.WatchdogStallMS)
	assert.Equal(t, "corpus", cfg.Vectors.Dir)
	assert.Equal(t, "out.json", cfg.Report.JSONOut)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}
