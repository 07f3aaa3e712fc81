package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MODECTL_SERVER_ADDR.
const EnvPrefix = "MODECTL"

// Config holds all configuration for modectl.
// It is loaded from ~/.modectl/config.yaml and can be overridden by environment variables.
type Config struct {
	Catalog   CatalogConfig   `mapstructure:"catalog" yaml:"catalog"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle" yaml:"lifecycle"`
	Registry  RegistryConfig  `mapstructure:"registry" yaml:"registry"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Archive   ArchiveConfig   `mapstructure:"archive" yaml:"archive"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// CatalogConfig controls where profile definitions come from.
type CatalogConfig struct {
	// Paths are files or doublestar globs (e.g. ~/.modectl/modes/**/*.yaml)
	Paths []string `mapstructure:"paths" yaml:"paths"`
	// Builtin registers the embedded sample catalog before Paths
	Builtin bool `mapstructure:"builtin" yaml:"builtin"`
	// Watch hot-registers profiles from new or modified files while serving
	Watch bool `mapstructure:"watch" yaml:"watch"`
	// APIConstraint is the semver constraint catalog files' api_version must satisfy
	APIConstraint string `mapstructure:"api_constraint" yaml:"api_constraint"`
}

// LifecycleConfig tunes profile activation.
type LifecycleConfig struct {
	// HookTimeout bounds every lifecycle hook
	HookTimeout time.Duration `mapstructure:"hook_timeout" yaml:"hook_timeout"`
}

// RegistryConfig tunes the registry's aggregate views.
type RegistryConfig struct {
	// TopN is the length of the most-used and recently-added rankings
	TopN int `mapstructure:"top_n" yaml:"top_n"`
}

// ServerConfig contains configuration for the HTTP control plane.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// ReplayHistory sends recent bus events to new websocket clients
	ReplayHistory bool `mapstructure:"replay_history" yaml:"replay_history"`
	HistoryCount  int  `mapstructure:"history_count" yaml:"history_count"`
}

// ArchiveConfig locates the optional snapshot archive.
type ArchiveConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo)
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error")
	Level string `mapstructure:"level" yaml:"level"`
	// File is the path to the log file; empty disables file logging
	File string `mapstructure:"file" yaml:"file"`
	// JSON switches console output to JSON lines
	JSON bool `mapstructure:"json" yaml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	dataDir := DataDir()

	return &Config{
		Catalog: CatalogConfig{
			Paths:         []string{filepath.Join(dataDir, "modes", "**", "*.yaml")},
			Builtin:       true,
			Watch:         false,
			APIConstraint: "^1.0",
		},
		Lifecycle: LifecycleConfig{
			HookTimeout: 30 * time.Second,
		},
		Registry: RegistryConfig{
			TopN: 5,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:7890",
			ShutdownTimeout: 5 * time.Second,
			ReplayHistory:   true,
			HistoryCount:    100,
		},
		Archive: ArchiveConfig{
			Driver: "sqlite",
			Path:   filepath.Join(dataDir, "archive.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// DataDir returns the modectl data directory (~/.modectl).
func DataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".modectl")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// Load reads configuration from the default location and merges environment
// overrides. If no config file exists, one is created with default values.
func Load() (*Config, error) {
	return LoadFromPath(DefaultPath())
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v, Default())

	// Example: MODECTL_LIFECYCLE_HOOK_TIMEOUT=5s
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i, p := range cfg.Catalog.Paths {
		cfg.Catalog.Paths[i] = expandPath(p)
	}
	cfg.Archive.Path = expandPath(cfg.Archive.Path)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	return &cfg, nil
}

// setDefaults registers every default key so partial files and env-only
// overrides still resolve.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("catalog.paths", d.Catalog.Paths)
	v.SetDefault("catalog.builtin", d.Catalog.Builtin)
	v.SetDefault("catalog.watch", d.Catalog.Watch)
	v.SetDefault("catalog.api_constraint", d.Catalog.APIConstraint)
	v.SetDefault("lifecycle.hook_timeout", d.Lifecycle.HookTimeout)
	v.SetDefault("registry.top_n", d.Registry.TopN)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.replay_history", d.Server.ReplayHistory)
	v.SetDefault("server.history_count", d.Server.HistoryCount)
	v.SetDefault("archive.driver", d.Archive.Driver)
	v.SetDefault("archive.path", d.Archive.Path)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.json", d.Logging.JSON)
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// EnsureDirectories creates the directories the archive and log file live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Archive.Path)}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	if _, err := semver.NewConstraint(c.Catalog.APIConstraint); err != nil {
		return fmt.Errorf("invalid catalog.api_constraint '%s': %w", c.Catalog.APIConstraint, err)
	}

	if c.Lifecycle.HookTimeout <= 0 {
		return fmt.Errorf("lifecycle.hook_timeout must be positive")
	}

	if c.Registry.TopN <= 0 {
		return fmt.Errorf("registry.top_n must be positive")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}

	if c.Archive.Driver != "sqlite" && c.Archive.Driver != "sqlite3" {
		return fmt.Errorf("invalid archive.driver '%s', must be 'sqlite' or 'sqlite3'", c.Archive.Driver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// YAML renders the configuration the way it is stored on disk.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// writeConfigFile writes a Config struct to a YAML file.
func writeConfigFile(path string, cfg *Config) error {
	data, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
