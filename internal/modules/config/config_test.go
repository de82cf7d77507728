package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir replaces t.Chdir, which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })
}

func TestDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 120*time.Second, cfg.RecvWindow)
	assert.Equal(t, 60*time.Second, cfg.SyncInterval)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}, cfg.Symbols)
	assert.Equal(t, "5m", cfg.Timeframe)
	assert.Equal(t, 250, cfg.KlineLimit)
	assert.False(t, cfg.TradingEnabled)
	assert.Equal(t, 15.0, cfg.MaxPositionQuote)
	assert.Equal(t, 14, cfg.RSIPeriod)
	assert.Equal(t, 12, cfg.MACDFast)
	assert.Equal(t, 26, cfg.MACDSlow)
	assert.Equal(t, 200, cfg.EMALong)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RECV_WINDOW", "30s")
	t.Setenv("TIME_SYNC_INTERVAL", "2m")
	t.Setenv("SYMBOLS", " btcusdt , ethusdt ,,")
	t.Setenv("TRADING_ENABLED", "true")
	t.Setenv("USE_TESTNET", "true")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.RecvWindow)
	assert.Equal(t, 2*time.Minute, cfg.SyncInterval)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.True(t, cfg.TradingEnabled)
	assert.True(t, cfg.UseTestnet)
}

func TestMACDOrderValidated(t *testing.T) {
	t.Setenv("MACD_FAST", "26")
	t.Setenv("MACD_SLOW", "12")

	_, err := NewConfig()
	require.Error(t, err)
}

func TestRecvWindowRangeValidated(t *testing.T) {
	t.Setenv("RECV_WINDOW", "10m")
	_, err := NewConfig()
	require.Error(t, err)

	t.Setenv("RECV_WINDOW", "0s")
	_, err = NewConfig()
	require.Error(t, err)
}

func TestSyncIntervalValidated(t *testing.T) {
	t.Setenv("TIME_SYNC_INTERVAL", "-5s")
	_, err := NewConfig()
	require.Error(t, err)
}

func TestKlineLimitCoversLongEMA(t *testing.T) {
	t.Setenv("KLINE_LIMIT", "100")

	_, err := NewConfig()
	require.Error(t, err) // дефолтная EMA_LONG 200 не влезает в 100 свечей
}

func TestConfigFileOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	yaml := "timeframe: 1h\nkline_limit: 300\nuse_testnet: true\nrecv_window: 90s\nsymbols:\n  - btcusdt\n  - ethusdt\n"
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "configs", "values_test.yaml"), []byte(yaml), 0o644))

	chdir(t, dir)
	t.Setenv("CONFIG_FILE", "values_test.yaml")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "1h", cfg.Timeframe)
	assert.Equal(t, 300, cfg.KlineLimit)
	assert.True(t, cfg.UseTestnet)
	assert.Equal(t, 90*time.Second, cfg.RecvWindow)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	// не затронутые файлом поля остаются из env/дефолтов
	assert.Equal(t, 60*time.Second, cfg.SyncInterval)
}

func TestConfigFileBadDuration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "configs", "values_local.yaml"),
		[]byte("recv_window: ninety\n"), 0o644))

	chdir(t, dir)
	_, err := NewConfig()
	require.Error(t, err)
}

func TestMissingConfigFileTolerated(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "5m", cfg.Timeframe)
}

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT"}, splitSymbols("btcusdt"))
	assert.Equal(t, []string{"A", "B"}, splitSymbols("a, b"))
	assert.Empty(t, splitSymbols(" , ,"))
}
