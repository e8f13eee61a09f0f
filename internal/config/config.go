package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all benchmark configuration.
type Config struct {
	Bench   BenchConfig
	Vectors VectorConfig
	Report  ReportConfig
	Logging LogConfig
}

// BenchConfig holds matrix execution settings.
type BenchConfig struct {
	Browser         string `envconfig:"XSSBENCH_BROWSER" default:"goja"`
	TimeoutMS       int    `envconfig:"XSSBENCH_TIMEOUT_MS" default:"0"`
	Workers         int    `envconfig:"XSSBENCH_WORKERS" default:"1"`
	FailFast        bool   `envconfig:"XSSBENCH_FAIL_FAST" default:"false"`
	WatchdogStallMS int    `envconfig:"XSSBENCH_WATCHDOG_STALL_MS" default:"60000"`
	ProgressEvery   int    `envconfig:"XSSBENCH_PROGRESS_EVERY" default:"25"`
}

// VectorConfig holds vector corpus settings.
type VectorConfig struct {
	Dir string `envconfig:"XSSBENCH_VECTORS" default:"vectors"`
}

// ReportConfig holds artifact output settings.
type ReportConfig struct {
	JSONOut string `envconfig:"XSSBENCH_JSON_OUT" default:""`
	WorkDir string `envconfig:"XSSBENCH_WORK_DIR" default:".xssbench"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"XSSBENCH_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"XSSBENCH_LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Bench: BenchConfig{
			Browser:         "goja",
			TimeoutMS:       0,
			Workers:         1,
			FailFast:        false,
			WatchdogStallMS: 60000,
			ProgressEvery:   25,
		},
		Vectors: VectorConfig{
			Dir: "vectors",
		},
		Report: ReportConfig{
			JSONOut: "",
			WorkDir: ".xssbench",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
