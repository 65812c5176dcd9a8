// Package config handles NornicQ configuration via YAML files and environment variables.
//
// Configuration Precedence (highest to lowest):
//  1. Command-line flags (--data-dir, --engine, etc.)
//  2. Environment variables (NORNICQ_*)
//  3. Config file (nornicq.yaml)
//  4. Built-in defaults
//
// Example Usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	fmt.Println(cfg)
//
// Environment Variables (all use NORNICQ_ prefix):
//
// Storage:
//   - NORNICQ_STORAGE_ENGINE="memory" or "badger"
//   - NORNICQ_DATA_DIR="./data"
//   - NORNICQ_SYNC_WRITES=true
//   - NORNICQ_ENCODING="msgpack" or "gob"
//
// Query:
//   - NORNICQ_QUERY_TIMEOUT="30s"
//   - NORNICQ_PARSE_CACHE_SIZE=256
//   - NORNICQ_MAX_ROWS=0
//
// Algorithms:
//   - NORNICQ_DISABLED_ALGORITHMS="BFS,WSHORTEST"
//   - NORNICQ_WEIGHT_ATTRIBUTE="weight"
//
// Logging:
//   - NORNICQ_LOG_LEVEL="INFO"
//   - NORNICQ_LOG_FORMAT="json"
//   - NORNICQ_LOG_OUTPUT="stderr"
//   - NORNICQ_QUERY_LOG_ENABLED=true
//   - NORNICQ_SLOW_QUERY_THRESHOLD="100ms"
//
// Metrics:
//   - NORNICQ_METRICS_ENABLED=true
//   - NORNICQ_METRICS_NAMESPACE="nornicq"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all NornicQ configuration.
//
// Configuration is organized into logical sections:
//   - Storage: which graph engine backs queries and where it keeps data
//   - Query: execution limits and the parse cache
//   - Algorithms: inline path algorithm registration
//   - Logging: slog handler settings and query logging
//   - Metrics: Prometheus instrumentation
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Query      QueryConfig      `yaml:"query"`
	Algorithms AlgorithmsConfig `yaml:"algorithms"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// StorageConfig selects and tunes the graph engine.
type StorageConfig struct {
	// Engine is "memory" or "badger".
	Engine string `yaml:"engine"`
	// DataDir is the badger directory.
	DataDir string `yaml:"data_dir"`
	// InMemory runs badger without touching disk.
	InMemory bool `yaml:"in_memory"`
	// SyncWrites fsyncs every badger write.
	SyncWrites bool `yaml:"sync_writes"`
	// Encoding is the record serializer: "msgpack" or "gob".
	Encoding string `yaml:"encoding"`
}

// QueryConfig bounds query execution.
type QueryConfig struct {
	// Timeout bounds one query. Zero disables.
	Timeout time.Duration `yaml:"timeout"`
	// ParseCacheSize is the number of parsed queries kept. Zero disables the cache.
	ParseCacheSize int `yaml:"parse_cache_size"`
	// MaxRows fails queries returning more rows. Zero means unlimited.
	MaxRows int `yaml:"max_rows"`
}

// AlgorithmsConfig controls the inline algorithm registry.
type AlgorithmsConfig struct {
	// Disabled lists algorithm names that are not registered.
	Disabled []string `yaml:"disabled"`
	// WeightAttribute is the edge property WSHORTEST reads.
	WeightAttribute string `yaml:"weight_attribute"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (DEBUG, INFO, WARN, ERROR)
	Level string `yaml:"level"`
	// Format (json, text)
	Format string `yaml:"format"`
	// Output path (stdout, stderr, or file path)
	Output string `yaml:"output"`
	// QueryLogEnabled for query logging
	QueryLogEnabled bool `yaml:"query_log_enabled"`
	// SlowQueryThreshold for logging slow queries
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Storage engines.
const (
	EngineMemory = "memory"
	EngineBadger = "badger"
)

// LoadDefaults returns a Config populated with built-in defaults.
func LoadDefaults() *Config {
	config := &Config{}

	config.Storage.Engine = EngineMemory
	config.Storage.DataDir = "./data"
	config.Storage.InMemory = false
	config.Storage.SyncWrites = false
	config.Storage.Encoding = "msgpack"

	config.Query.Timeout = 30 * time.Second
	config.Query.ParseCacheSize = 256
	config.Query.MaxRows = 0

	config.Algorithms.Disabled = nil
	config.Algorithms.WeightAttribute = "weight"

	config.Logging.Level = "INFO"
	config.Logging.Format = "text"
	config.Logging.Output = "stderr"
	config.Logging.QueryLogEnabled = true
	config.Logging.SlowQueryThreshold = 100 * time.Millisecond

	config.Metrics.Enabled = false
	config.Metrics.Namespace = "nornicq"

	return config
}

// LoadFromEnv returns defaults overridden by NORNICQ_* environment variables.
func LoadFromEnv() *Config {
	config := LoadDefaults()
	applyEnvVars(config)
	return config
}

// LoadFromFile loads configuration with proper precedence:
//  1. Built-in defaults (lowest priority)
//  2. YAML config file
//  3. Environment variables
//
// A missing file is not an error; defaults and env vars still apply.
// An empty path skips the file entirely.
//
// Example YAML:
//
//	storage:
//	  engine: badger
//	  data_dir: /var/lib/nornicq
//	query:
//	  timeout: 10s
//	  max_rows: 10000
//	algorithms:
//	  disabled: [WSHORTEST]
//	logging:
//	  level: debug
//	  slow_query_threshold: 250ms
func LoadFromFile(configPath string) (*Config, error) {
	config := LoadDefaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			// yaml.v3 only overwrites keys present in the document.
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnvVars(config)
	return config, nil
}

// ApplyEnvVars applies environment variable overrides to an existing config.
func ApplyEnvVars(config *Config) {
	applyEnvVars(config)
}

func applyEnvVars(config *Config) {
	config.Storage.Engine = strings.ToLower(getEnv("NORNICQ_STORAGE_ENGINE", config.Storage.Engine))
	config.Storage.DataDir = getEnv("NORNICQ_DATA_DIR", config.Storage.DataDir)
	config.Storage.InMemory = getEnvBool("NORNICQ_IN_MEMORY", config.Storage.InMemory)
	config.Storage.SyncWrites = getEnvBool("NORNICQ_SYNC_WRITES", config.Storage.SyncWrites)
	config.Storage.Encoding = strings.ToLower(getEnv("NORNICQ_ENCODING", config.Storage.Encoding))

	config.Query.Timeout = getEnvDuration("NORNICQ_QUERY_TIMEOUT", config.Query.Timeout)
	config.Query.ParseCacheSize = getEnvInt("NORNICQ_PARSE_CACHE_SIZE", config.Query.ParseCacheSize)
	config.Query.MaxRows = getEnvInt("NORNICQ_MAX_ROWS", config.Query.MaxRows)

	config.Algorithms.Disabled = getEnvStringSlice("NORNICQ_DISABLED_ALGORITHMS", config.Algorithms.Disabled)
	config.Algorithms.WeightAttribute = getEnv("NORNICQ_WEIGHT_ATTRIBUTE", config.Algorithms.WeightAttribute)

	config.Logging.Level = getEnv("NORNICQ_LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = getEnv("NORNICQ_LOG_FORMAT", config.Logging.Format)
	config.Logging.Output = getEnv("NORNICQ_LOG_OUTPUT", config.Logging.Output)
	config.Logging.QueryLogEnabled = getEnvBool("NORNICQ_QUERY_LOG_ENABLED", config.Logging.QueryLogEnabled)
	config.Logging.SlowQueryThreshold = getEnvDuration("NORNICQ_SLOW_QUERY_THRESHOLD", config.Logging.SlowQueryThreshold)

	config.Metrics.Enabled = getEnvBool("NORNICQ_METRICS_ENABLED", config.Metrics.Enabled)
	config.Metrics.Namespace = getEnv("NORNICQ_METRICS_NAMESPACE", config.Metrics.Namespace)
}

// Validate checks the configuration for invalid values.
//
// Returns nil if configuration is valid, or an error describing the problem.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case EngineMemory:
	case EngineBadger:
		if c.Storage.DataDir == "" && !c.Storage.InMemory {
			return fmt.Errorf("badger engine requires a data directory")
		}
	default:
		return fmt.Errorf("invalid storage engine: %q", c.Storage.Engine)
	}

	if !slices.Contains([]string{"msgpack", "gob"}, c.Storage.Encoding) {
		return fmt.Errorf("invalid encoding: %q", c.Storage.Encoding)
	}

	if c.Query.Timeout < 0 {
		return fmt.Errorf("invalid query timeout: %v", c.Query.Timeout)
	}
	if c.Query.ParseCacheSize < 0 {
		return fmt.Errorf("invalid parse cache size: %d", c.Query.ParseCacheSize)
	}
	if c.Query.MaxRows < 0 {
		return fmt.Errorf("invalid max rows: %d", c.Query.MaxRows)
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	if c.Logging.SlowQueryThreshold < 0 {
		return fmt.Errorf("invalid slow query threshold: %v", c.Logging.SlowQueryThreshold)
	}

	return nil
}

// AlgorithmEnabled reports whether name is absent from Algorithms.Disabled,
// compared case-insensitively.
func (c *Config) AlgorithmEnabled(name string) bool {
	for _, d := range c.Algorithms.Disabled {
		if strings.EqualFold(strings.TrimSpace(d), name) {
			return false
		}
	}
	return true
}

// String returns a compact representation suitable for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Engine: %s, DataDir: %s, Timeout: %v, ParseCache: %d, MaxRows: %d, Log: %s/%s, Metrics: %v}",
		c.Storage.Engine, c.Storage.DataDir,
		c.Query.Timeout, c.Query.ParseCacheSize, c.Query.MaxRows,
		c.Logging.Level, c.Logging.Format,
		c.Metrics.Enabled,
	)
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first config file found, or empty string if none found.
// Search order:
//  1. Current working directory (nornicq.yaml, config.yaml)
//  2. ~/.nornicq/config.yaml
//  3. ~/.config/nornicq/config.yaml (XDG)
func FindConfigFile() string {
	candidates := []string{
		"nornicq.yaml",
		"config.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".nornicq", "config.yaml"),
			filepath.Join(home, ".config", "nornicq", "config.yaml"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Try parsing as seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultVal
}
