package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docproc/gini-go/internal/config"
)

// Global flag reset pattern: newRootCmd() binds flags via StringVar/BoolVar,
// which reset the global flag variables to their zero values. Tests must either:
//   - Set globals AFTER newRootCmd() returns (direct function tests), or
//   - Use cmd.SetArgs() + cmd.Execute() to let Cobra parse flags.

// withConfig swaps in a resolved config for the duration of the test.
func withConfig(t *testing.T, cfg *config.Config) {
	t.Helper()

	old := resolvedCfg

	t.Cleanup(func() { resolvedCfg = old })

	resolvedCfg = cfg
}

// --- buildLogger tests ---

func TestBuildLogger_Default(t *testing.T) {
	withConfig(t, config.DefaultConfig())

	logger := buildLogger()

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_ConfigDebug(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.LogLevel = "debug"
	withConfig(t, cfg)

	logger := buildLogger()

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_ConfigError(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.LogLevel = "error"
	withConfig(t, cfg)

	logger := buildLogger()

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
}

func TestBuildLogger_NilConfig(t *testing.T) {
	withConfig(t, nil)

	logger := buildLogger()

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

// --- Cobra structure tests ---

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	expected := []string{
		"login", "logout", "upload", "get", "rm", "ls", "search",
		"extractions", "feedback", "layout", "processed", "report-error",
	}
	for _, name := range expected {
		found := false

		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true

				break
			}
		}

		assert.True(t, found, "expected subcommand %q not found", name)
	}
}

func TestNewRootCmd_PersistentFlags(t *testing.T) {
	cmd := newRootCmd()

	expectedFlags := []string{"config", "json", "verbose", "quiet"}
	for _, name := range expectedFlags {
		flag := cmd.PersistentFlags().Lookup(name)
		assert.NotNil(t, flag, "expected persistent flag %q not found", name)
	}
}

// --- loadConfig tests ---

func TestLoadConfig_ValidTOML(t *testing.T) {
	withConfig(t, nil)

	oldConfigPath := flagConfigPath
	t.Cleanup(func() { flagConfigPath = oldConfigPath })

	cfgFile := filepath.Join(t.TempDir(), "config.toml")
	tomlContent := `
[api]
client_id = "cli-test-id"
client_secret = "cli-test-secret"
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(tomlContent), 0o600))

	flagConfigPath = cfgFile

	require.NoError(t, loadConfig())
	require.NotNil(t, resolvedCfg)
	assert.Equal(t, "cli-test-id", resolvedCfg.API.ClientID)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	withConfig(t, nil)

	oldConfigPath := flagConfigPath
	t.Cleanup(func() { flagConfigPath = oldConfigPath })

	flagConfigPath = filepath.Join(t.TempDir(), "nonexistent.toml")

	require.NoError(t, loadConfig())
	require.NotNil(t, resolvedCfg)
	assert.Equal(t, "https://api.gini.net", resolvedCfg.API.APIBase)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	withConfig(t, nil)

	oldConfigPath := flagConfigPath
	t.Cleanup(func() { flagConfigPath = oldConfigPath })

	cfgFile := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`[api]
clientid = "typo"
`), 0o600))

	flagConfigPath = cfgFile

	err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

// --- session bootstrap tests ---

func TestNewClient_MissingCredentials(t *testing.T) {
	withConfig(t, config.DefaultConfig())

	_, err := newClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials missing")
}

func TestNewSession_NotLoggedIn(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.ClientID = "id"
	cfg.API.ClientSecret = "secret"
	cfg.TokenPath = filepath.Join(t.TempDir(), "token.json")
	withConfig(t, cfg)

	_, err := newSession(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}
