package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Docker   DockerConfig  `mapstructure:"docker"`
	Compose  ComposeConfig `mapstructure:"compose"`
	Log      LogConfig     `mapstructure:"log"`
	DryRun   bool          `mapstructure:"dry_run"`
	EnvFiles []string      `mapstructure:"env_files"`
}

// DockerConfig holds container engine configuration.
type DockerConfig struct {
	// Binary is the engine CLI, e.g. "docker" or "podman".
	Binary string `mapstructure:"binary"`

	// Host is the Engine API endpoint for the api inspector.
	// Empty uses DOCKER_HOST or the default socket.
	Host string `mapstructure:"host"`

	// Inspector selects how digests and container state are read:
	// "cli" runs the engine binary, "api" talks to the Engine API.
	Inspector string `mapstructure:"inspector"`
}

// ComposeConfig holds compose defaults.
type ComposeConfig struct {
	Project            string   `mapstructure:"project"`
	ResolveEnvironment bool     `mapstructure:"resolve_environment"`
	ExcludeEnv         []string `mapstructure:"exclude_env"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	InspectorCLI = "cli"
	InspectorAPI = "api"
)

// Validate checks values viper cannot check by type.
func (c *Config) Validate() error {
	switch c.Docker.Inspector {
	case InspectorCLI, InspectorAPI:
	default:
		return fmt.Errorf("docker.inspector must be %q or %q, got %q", InspectorCLI, InspectorAPI, c.Docker.Inspector)
	}
	if c.Docker.Binary == "" {
		return fmt.Errorf("docker.binary must not be empty")
	}
	return nil
}

// =============================================================================
// Config Loading
// =============================================================================

// configFlags maps persistent flags onto config keys.
var configFlags = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"dry-run":    "dry_run",
	"project":    "compose.project",
	"env-file":   "env_files",
}

// LoadConfig loads configuration from file, environment and flags, in
// increasing order of precedence. flags may be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("docker.binary", "docker")
	v.SetDefault("docker.host", "")
	v.SetDefault("docker.inspector", InspectorCLI)
	v.SetDefault("compose.project", "")
	v.SetDefault("compose.resolve_environment", false)
	v.SetDefault("compose.exclude_env", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("dry_run", false)
	v.SetDefault("env_files", []string{})

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// An explicitly named file must exist.
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("DOCKBUILD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flags set on the command line win over everything else
	if flags != nil {
		for name, key := range configFlags {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Logs go
// to w so they never mix with command output on stdout.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
