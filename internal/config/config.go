// Package config loads the wind analyzer configuration from defaults, a YAML
// file and WINDANALYZER_* environment variables through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/user/wind_analyzer_go/internal/cache"
	"github.com/user/wind_analyzer_go/internal/polar"
	"github.com/user/wind_analyzer_go/internal/task"
	"github.com/user/wind_analyzer_go/internal/windrose"
)

// AppName names the config directory and the env prefix.
const AppName = "wind_analyzer"

// EnvPrefix is prepended to environment overrides, e.g.
// WINDANALYZER_BACKEND_BASE_URL for backend.base_url.
const EnvPrefix = "WINDANALYZER"

// Config is the complete application configuration.
type Config struct {
	Backend  BackendConfig   `mapstructure:"backend"`
	Polling  PollingConfig   `mapstructure:"polling"`
	WindRose windrose.Config `mapstructure:"windrose"`
	Geometry GeometryConfig  `mapstructure:"geometry"`
	Cache    CacheConfig     `mapstructure:"cache"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Report   ReportConfig    `mapstructure:"report"`
}

// BackendConfig locates the analysis API.
type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PollingConfig controls AEP status polling.
type PollingConfig struct {
	IntervalMs         int `mapstructure:"interval_ms"`
	MaxAttempts        int `mapstructure:"max_attempts"`
	MaxDurationSeconds int `mapstructure:"max_duration_seconds"`
}

// GeometryConfig sizes the full and compact wind roses.
type GeometryConfig struct {
	Size        float64        `mapstructure:"size"`
	InnerRadius float64        `mapstructure:"inner_radius"`
	OuterRadius float64        `mapstructure:"outer_radius"`
	Compact     polar.Geometry `mapstructure:"compact"`
}

// CacheConfig selects the analysis result cache.
type CacheConfig struct {
	Backend    string `mapstructure:"backend"`
	RedisAddr  string `mapstructure:"redis_addr"`
	RedisDB    int    `mapstructure:"redis_db"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

// LoggingConfig controls the structured logger. An empty Dir logs to
// stderr.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// ReportConfig controls generated reports.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	full := polar.DefaultGeometry()
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Polling: PollingConfig{
			IntervalMs: int(task.DefaultInterval / time.Millisecond),
		},
		WindRose: windrose.DefaultConfig(),
		Geometry: GeometryConfig{
			Size:        full.Size,
			InnerRadius: full.InnerRadius,
			OuterRadius: full.OuterRadius,
			Compact:     polar.CompactGeometry(),
		},
		Cache: CacheConfig{
			Backend:    cache.BackendMemory,
			RedisAddr:  "localhost:6379",
			TTLMinutes: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Report: ReportConfig{
			OutputDir: ".",
		},
	}
}

// SetDefaults registers Default() with viper.
func SetDefaults() {
	d := Default()

	viper.SetDefault("backend.base_url", d.Backend.BaseURL)
	viper.SetDefault("backend.timeout_seconds", d.Backend.TimeoutSeconds)

	viper.SetDefault("polling.interval_ms", d.Polling.IntervalMs)
	viper.SetDefault("polling.max_attempts", d.Polling.MaxAttempts)
	viper.SetDefault("polling.max_duration_seconds", d.Polling.MaxDurationSeconds)

	viper.SetDefault("windrose.direction_bins", d.WindRose.DirectionBins)
	viper.SetDefault("windrose.speed_edges", d.WindRose.SpeedEdges)

	viper.SetDefault("geometry.size", d.Geometry.Size)
	viper.SetDefault("geometry.inner_radius", d.Geometry.InnerRadius)
	viper.SetDefault("geometry.outer_radius", d.Geometry.OuterRadius)
	viper.SetDefault("geometry.compact.size", d.Geometry.Compact.Size)
	viper.SetDefault("geometry.compact.inner_radius", d.Geometry.Compact.InnerRadius)
	viper.SetDefault("geometry.compact.outer_radius", d.Geometry.Compact.OuterRadius)

	viper.SetDefault("cache.backend", d.Cache.Backend)
	viper.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	viper.SetDefault("cache.redis_db", d.Cache.RedisDB)
	viper.SetDefault("cache.ttl_minutes", d.Cache.TTLMinutes)

	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.dir", d.Logging.Dir)

	viper.SetDefault("report.output_dir", d.Report.OutputDir)
}

// Init wires viper: defaults, the config file (cfgFile, or config.yaml in
// ConfigDir() or the working directory) and environment overrides. A missing
// config file is not an error.
func Init(cfgFile string) error {
	SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load unmarshals the current viper state and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Watch reloads the configuration whenever the config file changes. Invalid
// edits are passed to onChange as an error and the previous configuration
// stays in effect for the caller.
func Watch(onChange func(cfg *Config, err error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(Load())
	})
	viper.WatchConfig()
}

// ConfigDir returns $XDG_CONFIG_HOME/wind_analyzer or
// ~/.config/wind_analyzer.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Timeout is the HTTP timeout for backend calls.
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TaskOptions converts the polling section into controller options.
func (c PollingConfig) TaskOptions() task.Options {
	return task.Options{
		Interval:    time.Duration(c.IntervalMs) * time.Millisecond,
		MaxAttempts: c.MaxAttempts,
		MaxDuration: time.Duration(c.MaxDurationSeconds) * time.Second,
	}
}

// Full is the dashboard rose geometry.
func (c GeometryConfig) Full() polar.Geometry {
	return polar.Geometry{Size: c.Size, InnerRadius: c.InnerRadius, OuterRadius: c.OuterRadius}
}

// CacheOptions converts the cache section for cache.New.
func (c CacheConfig) CacheOptions() cache.Config {
	return cache.Config{
		Backend:   c.Backend,
		RedisAddr: c.RedisAddr,
		RedisDB:   c.RedisDB,
		TTL:       time.Duration(c.TTLMinutes) * time.Minute,
	}
}
