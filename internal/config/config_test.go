package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresBotToken(t *testing.T) {
	cfg, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
	assert.Nil(t, cfg)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("SOC_RELAY_TELEGRAM__BOT_TOKEN", "123456:ABC-DEF")
	t.Setenv("SOC_RELAY_INGEST__API_KEY", "s3cret")
	t.Setenv("SOC_RELAY_SERVER__PORT", "8099")
	t.Setenv("SOC_RELAY_DISPATCH__ATTEMPT_TIMEOUT", "3s")
	t.Setenv("SOC_RELAY_BOT__SUPER_ADMIN_IDS", "900, 901")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "123456:ABC-DEF", cfg.Telegram.BotToken)
	assert.Equal(t, "s3cret", cfg.Ingest.APIKey)
	assert.Equal(t, "8099", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Dispatch.AttemptTimeout)
	assert.Equal(t, []int64{900, 901}, cfg.Bot.SuperAdminIDs)

	// Defaults survive where nothing was set.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "data/recipients.json", cfg.Storage.Path)
	assert.Equal(t, 30*time.Second, cfg.Bot.PollTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  bot_token: from-file
  rate_limit: 5
log:
  level: debug
  format: text
storage:
  path: /var/lib/soc-relay/recipients.json
`), 0o600))

	t.Setenv("SOC_RELAY_TELEGRAM__BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Environment wins over the file.
	assert.Equal(t, "from-env", cfg.Telegram.BotToken)
	assert.Equal(t, 5.0, cfg.Telegram.RateLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "/var/lib/soc-relay/recipients.json", cfg.Storage.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("SOC_RELAY_TELEGRAM__BOT_TOKEN", "tok")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_RejectsBadLogLevel(t *testing.T) {
	t.Setenv("SOC_RELAY_TELEGRAM__BOT_TOKEN", "tok")
	t.Setenv("SOC_RELAY_LOG__LEVEL", "verbose")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
