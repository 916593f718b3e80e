package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the library
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Resolution configuration
	Resolution ResolutionConfig `mapstructure:"resolution"`

	// Extraction configuration
	Extraction ExtractionConfig `mapstructure:"extraction"`

	// Cache configuration
	Cache CacheConfig `mapstructure:"cache"`

	// Enrichment configuration
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Export configuration
	Export ExportConfig `mapstructure:"export"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ResolutionConfig holds entity-resolution configuration
type ResolutionConfig struct {
	// SimilarityThreshold is the edit-distance similarity above which two
	// same-typed entities are considered duplicates.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// ExtractionConfig holds relationship-extraction configuration
type ExtractionConfig struct {
	// MaxDistance is the widest character distance between two mention
	// midpoints that still counts as a co-occurrence.
	MaxDistance int `mapstructure:"max_distance"`

	// MinConfidence drops co-occurrence relationships scored below it.
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// CacheConfig holds enrichment-cache configuration
type CacheConfig struct {
	// TTLSeconds is the default entry lifetime. Zero keeps the built-in
	// default.
	TTLSeconds int `mapstructure:"ttl_seconds"`

	// BackingPath enables the persistent badger tier when non-empty.
	BackingPath string `mapstructure:"backing_path"`
}

// EnrichmentConfig holds enrichment fan-out configuration
type EnrichmentConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// ExportConfig holds graph-export configuration
type ExportConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from viper defaults and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Resolution defaults
	viper.SetDefault("resolution.similarity_threshold", 0.85)

	// Extraction defaults
	viper.SetDefault("extraction.max_distance", 500)
	viper.SetDefault("extraction.min_confidence", 0.3)

	// Cache defaults
	viper.SetDefault("cache.ttl_seconds", 1800)
	viper.SetDefault("cache.backing_path", "")

	// Enrichment defaults
	viper.SetDefault("enrichment.concurrency", 8)

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		defaultPath := fmt.Sprintf("%s/.chunkgraph/telemetry", home)
		viper.SetDefault("telemetry.parquet_path", defaultPath)
	}

	// Export defaults
	viper.SetDefault("export.path", "./chunkgraph_export")
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if level := os.Getenv("CHUNKGRAPH_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	if format := os.Getenv("CHUNKGRAPH_LOG_FORMAT"); format != "" {
		config.Log.Format = format
	}

	if raw := os.Getenv("CHUNKGRAPH_SIMILARITY_THRESHOLD"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			config.Resolution.SimilarityThreshold = v
		}
	}
	if raw := os.Getenv("CHUNKGRAPH_MAX_DISTANCE"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			config.Extraction.MaxDistance = v
		}
	}
	if raw := os.Getenv("CHUNKGRAPH_MIN_CONFIDENCE"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			config.Extraction.MinConfidence = v
		}
	}

	if raw := os.Getenv("CHUNKGRAPH_CACHE_TTL_SECONDS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			config.Cache.TTLSeconds = v
		}
	}
	if path := os.Getenv("CHUNKGRAPH_CACHE_PATH"); path != "" {
		config.Cache.BackingPath = path
	}

	if raw := os.Getenv("CHUNKGRAPH_CONCURRENCY"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			config.Enrichment.Concurrency = v
		}
	}

	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
	if path := os.Getenv("CHUNKGRAPH_EXPORT_PATH"); path != "" {
		config.Export.Path = path
	}
}
