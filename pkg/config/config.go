package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration for Lumos-DB.
type Config struct {
	Profile       string              `mapstructure:"profile"`
	RowEngine     RowEngineConfig     `mapstructure:"row_engine"`
	ColumnEngine  ColumnEngineConfig  `mapstructure:"column_engine"`
	Sync          SyncConfig          `mapstructure:"sync"`
	Vector        VectorConfig        `mapstructure:"vector"`
	RestAPI       RestAPIConfig       `mapstructure:"rest_api"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// RowEngineConfig holds the OLTP (row) engine's configuration.
type RowEngineConfig struct {
	Path string `mapstructure:"path"`
}

// ColumnEngineConfig holds the OLAP (column) engine's configuration.
type ColumnEngineConfig struct {
	Path string `mapstructure:"path"`
}

// SyncConfig holds default replication behavior (spec.md §6: "All defaults
// are listed").
type SyncConfig struct {
	IntervalSeconds     int      `mapstructure:"interval_seconds"`
	BatchSize           int      `mapstructure:"batch_size"`
	FullSyncOnStart     bool     `mapstructure:"full_sync_on_start"`
	TimestampCandidates []string `mapstructure:"timestamp_candidates"`
	DefaultStrategy     string   `mapstructure:"default_strategy"`
	Include             []string `mapstructure:"include_tables"`
	Exclude             []string `mapstructure:"exclude_tables"`
}

// VectorConfig holds default vector-collection behavior.
type VectorConfig struct {
	DefaultMetric string `mapstructure:"default_metric"`
}

// RestAPIConfig holds REST API server configuration (out-of-scope
// collaborator surface, configured the way the teacher configures its own).
type RestAPIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	CORS    bool   `mapstructure:"cors"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

// DefaultConfig returns configuration with the spec-mandated default values.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".lumosdb")

	return &Config{
		Profile: "default",
		RowEngine: RowEngineConfig{
			Path: filepath.Join(dataDir, "row.db"),
		},
		ColumnEngine: ColumnEngineConfig{
			Path: filepath.Join(dataDir, "column.db"),
		},
		Sync: SyncConfig{
			IntervalSeconds:     60,
			BatchSize:           10000,
			FullSyncOnStart:     true,
			TimestampCandidates: []string{"updated_at", "created_at"},
			DefaultStrategy:     "incremental",
		},
		Vector: VectorConfig{
			DefaultMetric: "cosine",
		},
		RestAPI: RestAPIConfig{
			Enabled: true,
			Port:    3002,
			Host:    "localhost",
			CORS:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file with fallback to defaults,
// searching the same locations the teacher searches (current directory,
// then the user's config directory, then the system-wide directory).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(homeDir, ".lumosdb"))
	v.AddConfigPath("/etc/lumosdb")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".lumosdb")

	v.SetDefault("profile", "default")
	v.SetDefault("row_engine.path", filepath.Join(dataDir, "row.db"))
	v.SetDefault("column_engine.path", filepath.Join(dataDir, "column.db"))

	v.SetDefault("sync.interval_seconds", 60)
	v.SetDefault("sync.batch_size", 10000)
	v.SetDefault("sync.full_sync_on_start", true)
	v.SetDefault("sync.timestamp_candidates", []string{"updated_at", "created_at"})
	v.SetDefault("sync.default_strategy", "incremental")

	v.SetDefault("vector.default_metric", "cosine")

	v.SetDefault("rest_api.enabled", true)
	v.SetDefault("rest_api.port", 3002)
	v.SetDefault("rest_api.host", "localhost")
	v.SetDefault("rest_api.cors", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.RowEngine.Path == "" {
		return fmt.Errorf("row_engine.path is required")
	}
	if c.ColumnEngine.Path == "" {
		return fmt.Errorf("column_engine.path is required")
	}
	if c.Sync.IntervalSeconds <= 0 {
		return fmt.Errorf("sync.interval_seconds must be > 0")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be > 0")
	}

	validStrategies := map[string]bool{
		"full": true, "incremental": true, "snapshot": true, "mirror": true, "manual": true,
	}
	if !validStrategies[c.Sync.DefaultStrategy] {
		return fmt.Errorf("sync.default_strategy must be one of: full, incremental, snapshot, mirror, manual")
	}

	if c.RestAPI.Enabled {
		if c.RestAPI.Port < 1 || c.RestAPI.Port > 65535 {
			return fmt.Errorf("rest_api.port must be between 1 and 65535")
		}
		if c.RestAPI.Host == "" {
			return fmt.Errorf("rest_api.host is required when REST API is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	return nil
}

// EnsureDataDir creates the row/column engine data directories if absent.
func (c *Config) EnsureDataDir() error {
	for _, p := range []string{c.RowEngine.Path, c.ColumnEngine.Path} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return nil
}

// ConfigPath returns the path to the configuration directory.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".lumosdb")
}

// DefaultSyncInterval is the default cooperative-scheduling tick used by
// cmd/lumosdb when the host does not drive IncrementalSync itself.
const DefaultSyncInterval = 60 * time.Second
