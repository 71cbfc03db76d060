package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "docker", cfg.Docker.Binary)
	assert.Equal(t, "", cfg.Docker.Host)
	assert.Equal(t, InspectorCLI, cfg.Docker.Inspector)
	assert.Equal(t, "", cfg.Compose.Project)
	assert.False(t, cfg.Compose.ResolveEnvironment)
	assert.Empty(t, cfg.Compose.ExcludeEnv)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.DryRun)
	assert.Empty(t, cfg.EnvFiles)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
docker:
  binary: podman
  host: "tcp://127.0.0.1:2375"
  inspector: api

compose:
  project: shop
  resolve_environment: true
  exclude_env:
    - SECRET_TOKEN
    - DB_PASSWORD

log:
  level: "debug"
  format: "json"

dry_run: true
env_files:
  - .env
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile, nil)
	require.NoError(t, err)

	assert.Equal(t, "podman", cfg.Docker.Binary)
	assert.Equal(t, "tcp://127.0.0.1:2375", cfg.Docker.Host)
	assert.Equal(t, InspectorAPI, cfg.Docker.Inspector)
	assert.Equal(t, "shop", cfg.Compose.Project)
	assert.True(t, cfg.Compose.ResolveEnvironment)
	assert.Equal(t, []string{"SECRET_TOKEN", "DB_PASSWORD"}, cfg.Compose.ExcludeEnv)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, []string{".env"}, cfg.EnvFiles)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("DOCKBUILD_DOCKER_BINARY", "nerdctl")
	t.Setenv("DOCKBUILD_COMPOSE_PROJECT", "ci")
	t.Setenv("DOCKBUILD_LOG_LEVEL", "warn")
	t.Setenv("DOCKBUILD_DRY_RUN", "true")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "nerdctl", cfg.Docker.Binary)
	assert.Equal(t, "ci", cfg.Compose.Project)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.DryRun)
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCKBUILD_COMPOSE_PROJECT", "from-env")
	t.Setenv("DOCKBUILD_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("project", "", "")
	flags.String("log-level", "info", "")
	flags.Bool("dry-run", false, "")
	require.NoError(t, flags.Parse([]string{"--project", "from-flag", "--dry-run"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Compose.Project)
	assert.True(t, cfg.DryRun)
	// unchanged flags do not shadow the environment
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_ExplicitFileNotFound(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig("/nonexistent/path/config.yaml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/path/config.yaml")
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := LoadConfig(tmpFile, nil)
	assert.Error(t, err)
}

func TestLoadConfig_InvalidInspector(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCKBUILD_DOCKER_INSPECTOR", "ssh")

	_, err := LoadConfig("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docker.inspector")
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Log: LogConfig{Level: "info", Format: "json"}}

	SetupLogger(cfg, &buf).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestSetupLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Log: LogConfig{Level: "info", Format: "text"}}

	SetupLogger(cfg, &buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestSetupLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"error", false, false},
		{"invalid", false, true}, // falls back to info
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := SetupLogger(&Config{Log: LogConfig{Level: tt.level}}, &buf)

			logger.Debug("debug-line")
			logger.Info("info-line")
			assert.Equal(t, tt.debugSeen, bytes.Contains(buf.Bytes(), []byte("debug-line")))
			assert.Equal(t, tt.infoSeen, bytes.Contains(buf.Bytes(), []byte("info-line")))
		})
	}
}

// =============================================================================
// Test Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"DOCKBUILD_DOCKER_BINARY",
		"DOCKBUILD_DOCKER_HOST",
		"DOCKBUILD_DOCKER_INSPECTOR",
		"DOCKBUILD_COMPOSE_PROJECT",
		"DOCKBUILD_COMPOSE_RESOLVE_ENVIRONMENT",
		"DOCKBUILD_COMPOSE_EXCLUDE_ENV",
		"DOCKBUILD_LOG_LEVEL",
		"DOCKBUILD_LOG_FORMAT",
		"DOCKBUILD_DRY_RUN",
		"DOCKBUILD_ENV_FILES",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}
