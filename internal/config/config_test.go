package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/rigpilot/internal/application"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(viper.New(), "")

	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, application.DefaultOptions(), cfg.Session)
	assert.Equal(t, filepath.Join(home, ".rigpilot", "snapshot.toml"), cfg.CachePath)
	assert.Equal(t, filepath.Join(home, ".rigpilot", "rigpilot.log"), cfg.Log.File)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Catalog)
}

func TestLoadReadsConfigFileFromHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".rigpilot")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[api]
base_url = "https://rigs.example.test/"
token = "secret"

[agent]
action_cooldown = "45s"
recharge_threshold = 35.5
claim_interval = "2h"

[catalog]
path = "~/tiers.yaml"

[log]
format = "json"
level = "debug"
`), 0o600))

	cfg, err := Load(viper.New(), "")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), cfg.File)
	assert.Equal(t, "https://rigs.example.test", cfg.API.BaseURL)
	assert.Equal(t, "secret", cfg.API.Token)
	assert.Equal(t, 45*time.Second, cfg.Session.ActionCooldown)
	assert.InDelta(t, 35.5, cfg.Session.RechargeThreshold, 1e-9)
	assert.Equal(t, 2*time.Hour, cfg.Session.ClaimInterval)
	assert.Equal(t, application.DefaultPollInterval, cfg.Session.PollInterval)
	assert.Equal(t, filepath.Join(home, "tiers.yaml"), cfg.Catalog)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("RIGPILOT_SYNC_POLL_INTERVAL", "7s")
	t.Setenv("RIGPILOT_API_TOKEN", "from-env")

	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\ntoken = \"from-file\"\n"), 0o600))

	cfg, err := Load(viper.New(), path)

	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "from-env", cfg.API.Token)
	assert.Equal(t, 7*time.Second, cfg.Session.PollInterval)
}

func TestLoadFailsOnMissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.toml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RIGPILOT_AGENT_RECHARGE_THRESHOLD", "140")
	t.Setenv("RIGPILOT_AGENT_TICK_INTERVAL", "0s")
	t.Setenv("RIGPILOT_LOG_FORMAT", "xml")

	_, err := Load(viper.New(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.recharge_threshold must be within 0..100")
	assert.Contains(t, err.Error(), "agent.tick_interval must be positive")
	assert.Contains(t, err.Error(), "log.format must be text or json")
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer

	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "rig", "rig-01")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"rig":"rig-01"`)

	buf.Reset()
	logger, err = LogConfig{Level: "info", Format: "text"}.NewLogger(&buf)
	require.NoError(t, err)
	logger.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")

	_, err = LogConfig{Level: "loud", Format: "text"}.NewLogger(&buf)
	assert.Error(t, err)
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rigpilot.log")

	f, err := LogConfig{File: path}.OpenFile()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
