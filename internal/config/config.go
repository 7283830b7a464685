package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete engine configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	Scheduler SchedulerConfig `json:"scheduler" mapstructure:"scheduler"`
	Parser    ParserConfig    `json:"parser" mapstructure:"parser"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// CacheConfig contains cache store configuration
type CacheConfig struct {
	// DBPath is the durable backend database path, relative to the
	// .codeplan directory unless absolute.
	DBPath string `json:"dbPath" mapstructure:"dbPath"`
	// AnalysisTtlSeconds is the TTL for FileAnalysis entries.
	AnalysisTtlSeconds int `json:"analysisTtlSeconds" mapstructure:"analysisTtlSeconds"`
	// MemoryMaxEntries caps the in-process fallback backend.
	MemoryMaxEntries int `json:"memoryMaxEntries" mapstructure:"memoryMaxEntries"`
	// OpTimeoutMs bounds any single backend operation. A timed-out get
	// is a miss, never an error.
	OpTimeoutMs int `json:"opTimeoutMs" mapstructure:"opTimeoutMs"`
}

// SchedulerConfig contains parallel analysis configuration
type SchedulerConfig struct {
	// ParallelThreshold is the file count below which analysis runs
	// sequentially.
	ParallelThreshold int `json:"parallelThreshold" mapstructure:"parallelThreshold"`
	// Workers overrides the worker pool size when > 0.
	Workers int `json:"workers" mapstructure:"workers"`
	// BatchTimeoutMs bounds a whole analyze batch. 0 disables the deadline.
	BatchTimeoutMs int `json:"batchTimeoutMs" mapstructure:"batchTimeoutMs"`
}

// ParserConfig contains parser registry configuration
type ParserConfig struct {
	// MaxFileSizeBytes skips files larger than this.
	MaxFileSizeBytes int `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		Cache: CacheConfig{
			DBPath:             "cache.db",
			AnalysisTtlSeconds: 3600,
			MemoryMaxEntries:   2048,
			OpTimeoutMs:        2000,
		},
		Scheduler: SchedulerConfig{
			ParallelThreshold: 10,
			Workers:           0,
			BatchTimeoutMs:    120000,
		},
		Parser: ParserConfig{
			MaxFileSizeBytes: 1000000,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Dir returns the .codeplan directory under the repo root.
func Dir(repoRoot string) string {
	return filepath.Join(repoRoot, ".codeplan")
}

// LoadConfig loads configuration from .codeplan/config.json, returning
// defaults when no config file exists.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)
	v.SetDefault("repoRoot", ".")

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(Dir(repoRoot))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := DefaultConfig()
			cfg.RepoRoot = repoRoot
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.RepoRoot == "." || cfg.RepoRoot == "" {
		cfg.RepoRoot = repoRoot
	}

	return cfg, nil
}

// Save writes the configuration to .codeplan/config.json
func (c *Config) Save(repoRoot string) error {
	dir := Dir(repoRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Cache.AnalysisTtlSeconds <= 0 {
		return &ConfigError{Field: "cache.analysisTtlSeconds", Message: "must be positive"}
	}
	if c.Cache.MemoryMaxEntries <= 0 {
		return &ConfigError{Field: "cache.memoryMaxEntries", Message: "must be positive"}
	}
	if c.Scheduler.ParallelThreshold < 1 {
		return &ConfigError{Field: "scheduler.parallelThreshold", Message: "must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
