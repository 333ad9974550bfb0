package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TRADING_API_URL", "http://trading.test")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://trading.test", cfg.TradingAPI.URL)
	assert.Equal(t, "http://localhost:8050", cfg.AuthAPI.URL)
	assert.Equal(t, 3, cfg.TradingAPI.MaxRetries)
	assert.Equal(t, time.Second, cfg.TradingAPI.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.TradingAPI.RetryMaxDelay)
	assert.Equal(t, 5*time.Second, cfg.AuthAPI.HealthTimeout)
	assert.Equal(t, 10*time.Second, cfg.Refresh.Holdings)
	assert.Equal(t, 5*time.Minute, cfg.Identity.CacheTTL)
	assert.Equal(t, 1.0, cfg.Flash.Threshold)
	assert.Equal(t, 6*time.Second, cfg.Flash.Duration)
	assert.Equal(t, 5*time.Second, cfg.Errors.DedupWindow)
	assert.Equal(t, "demo-trade-ui", cfg.AuthClient.Source)
}

func TestLoadConfig_LegacyEnvNames(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_TRADING_API_URL", "http://legacy-trading.test")
	t.Setenv("NEXT_PUBLIC_AUTH_API_URL", "http://legacy-auth.test")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://legacy-trading.test", cfg.TradingAPI.URL)
	assert.Equal(t, "http://legacy-auth.test", cfg.AuthAPI.URL)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	content := `
trading_api:
  url: http://file-trading.test
  max_retries: 1
refresh:
  holdings: 2s
flash:
  threshold: 2.5
logger:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "http://file-trading.test", cfg.TradingAPI.URL)
	assert.Equal(t, 1, cfg.TradingAPI.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Refresh.Holdings)
	assert.Equal(t, 2.5, cfg.Flash.Threshold)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoadConfig_MissingTradingURL(t *testing.T) {
	t.Setenv("TRADING_API_URL", "")

	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "trading_api.url")
}
