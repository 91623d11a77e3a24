// Package config provides configuration management for stt using Viper for
// loading from files, environment variables, and command-line flags.
//
// Values come from .stt.yml (or the file named by --config or
// STT_CONFIG_FILE), STT_-prefixed environment variables, and flags bound by
// the commands. Load applies defaults for anything left unset and validates
// the result.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/conneroisu/stt/internal/logging"
	"github.com/conneroisu/stt/internal/validation"
	"github.com/spf13/viper"
)

// Default values applied by Load.
const (
	DefaultBaseDir   = "."
	DefaultGoBinary  = "go"
	DefaultTimeout   = 2 * time.Minute
	DefaultCacheDir  = ".stt/cache"
	DefaultCacheSize = 512 << 20
	DefaultSnapshot  = ".stt/registry.msgpack"
	DefaultDebounce  = 300 * time.Millisecond
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// DefaultExtensions are the file extensions treated as templates.
var DefaultExtensions = []string{".stt", ".tt"}

type Config struct {
	Templates   TemplatesConfig `mapstructure:"templates" yaml:"templates"`
	Backend     BackendConfig   `mapstructure:"backend" yaml:"backend"`
	Registry    RegistryConfig  `mapstructure:"registry" yaml:"registry"`
	Watch       WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Log         LogConfig       `mapstructure:"log" yaml:"log"`
	TargetFiles []string        `mapstructure:"-" yaml:"-"` // CLI arguments, not from config file
}

type TemplatesConfig struct {
	BaseDir    string   `mapstructure:"base_dir" yaml:"base_dir"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	Trim       bool     `mapstructure:"trim" yaml:"trim"`
	Provenance bool     `mapstructure:"provenance" yaml:"provenance"`
	StagingDir string   `mapstructure:"staging_dir" yaml:"staging_dir"`
}

type BackendConfig struct {
	GoBinary  string        `mapstructure:"go_binary" yaml:"go_binary"`
	GoVersion string        `mapstructure:"go_version" yaml:"go_version"`
	Vet       bool          `mapstructure:"vet" yaml:"vet"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CacheDir  string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	CacheSize int64         `mapstructure:"cache_size" yaml:"cache_size"`
	NoCache   bool          `mapstructure:"no_cache" yaml:"no_cache"`
	Modules   []string      `mapstructure:"modules" yaml:"modules"`
	Jobs      int           `mapstructure:"jobs" yaml:"jobs"`
}

type RegistryConfig struct {
	Snapshot string `mapstructure:"snapshot" yaml:"snapshot"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Paths    []string      `mapstructure:"paths" yaml:"paths"`
	Ignore   []string      `mapstructure:"ignore" yaml:"ignore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Slices set through env or flags arrive as a single string
	if v.IsSet("templates.extensions") && len(config.Templates.Extensions) == 0 {
		config.Templates.Extensions = v.GetStringSlice("templates.extensions")
	}
	if v.IsSet("watch.paths") && len(config.Watch.Paths) == 0 {
		config.Watch.Paths = v.GetStringSlice("watch.paths")
	}

	applyDefaults(v, &config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(v *viper.Viper, config *Config) {
	if !v.IsSet("templates.base_dir") {
		config.Templates.BaseDir = DefaultBaseDir
	}
	if len(config.Templates.Extensions) == 0 {
		config.Templates.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if !v.IsSet("templates.provenance") {
		config.Templates.Provenance = true
	}

	if config.Backend.GoBinary == "" {
		config.Backend.GoBinary = DefaultGoBinary
	}
	if !v.IsSet("backend.timeout") {
		config.Backend.Timeout = DefaultTimeout
	}
	if config.Backend.CacheDir == "" {
		config.Backend.CacheDir = DefaultCacheDir
	}
	if config.Backend.CacheSize == 0 {
		config.Backend.CacheSize = DefaultCacheSize
	}
	if config.Backend.Jobs == 0 {
		config.Backend.Jobs = runtime.NumCPU()
	}

	if config.Registry.Snapshot == "" {
		config.Registry.Snapshot = DefaultSnapshot
	}

	if !v.IsSet("watch.debounce") {
		config.Watch.Debounce = DefaultDebounce
	}
	if len(config.Watch.Paths) == 0 {
		config.Watch.Paths = []string{config.Templates.BaseDir}
	}
	if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = []string{".git", ".stt"}
	}

	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = DefaultLogFormat
	}
}

// LoggerConfig converts the log section for logging.NewLogger.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.Log.Format
	return cfg
}

// IsTemplate reports whether path has one of the configured extensions.
func (c *Config) IsTemplate(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Templates.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateTemplatesConfig(&config.Templates); err != nil {
		return fmt.Errorf("templates config: %w", err)
	}

	if err := validateBackendConfig(&config.Backend); err != nil {
		return fmt.Errorf("backend config: %w", err)
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: debounce must not be negative")
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log config: unknown format %q", config.Log.Format)
	}

	return nil
}

func validateTemplatesConfig(config *TemplatesConfig) error {
	if strings.TrimSpace(config.BaseDir) == "" {
		return fmt.Errorf("base_dir must not be empty")
	}

	for _, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}

	return nil
}

func validateBackendConfig(config *BackendConfig) error {
	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	if config.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", config.Jobs)
	}
	if config.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative")
	}

	if config.CacheDir != "" {
		if err := validatePath(config.CacheDir); err != nil {
			return fmt.Errorf("invalid cache_dir '%s': %w", config.CacheDir, err)
		}
	}

	if config.GoBinary != "" {
		if err := validation.ValidateGoBinary(config.GoBinary); err != nil {
			return err
		}
	}

	for _, m := range config.Modules {
		if err := validation.ValidateRequirement(m); err != nil {
			return err
		}
	}

	return nil
}

// validatePath validates a file path
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	// Reject path traversal attempts
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	if strings.ContainsAny(cleanPath, "\x00\n\r") {
		return fmt.Errorf("path contains control characters")
	}

	return nil
}
