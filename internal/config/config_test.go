package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  env: prod\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, ":9980", cfg.App.HTTPAddr)
	assert.Equal(t, "BTC/USDT", cfg.Market.Symbol)
	assert.Equal(t, "1m", cfg.Market.Interval)
	assert.Equal(t, 500, cfg.Kline.MaxCached)
	assert.Equal(t, 0.012, cfg.AutoTrade.ProfitTarget)
	assert.Equal(t, 0.005, cfg.AutoTrade.StopLoss)
	assert.Equal(t, "medium", cfg.AutoTrade.MinConfidence)
	assert.Equal(t, 10.0, cfg.Chart.MaxZoom)
	assert.Equal(t, "data/state.db", cfg.Store.StatePath)
	assert.Equal(t, "data/exports", cfg.Store.ExportDir)
}

func TestLoadExplicitValuesKept(t *testing.T) {
	path := writeConfig(t, `
market:
  symbol: ETH/USDT
  interval: 5m
autotrade:
  profit_target: 0.02
  min_confidence: high
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", cfg.Market.Symbol)
	assert.Equal(t, "5m", cfg.Market.Interval)
	assert.Equal(t, 0.02, cfg.AutoTrade.ProfitTarget)
	assert.Equal(t, "high", cfg.AutoTrade.MinConfidence)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad symbol", "market:\n  symbol: nonsense\n"},
		{"bad interval", "market:\n  interval: 3x\n"},
		{"bad confidence", "autotrade:\n  min_confidence: huge\n"},
		{"custom without id", "autotrade:\n  strategy_mode: custom\n"},
		{"profit target too large", "autotrade:\n  profit_target: 1.5\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "BTC/USDT", cfg.Market.Symbol)
	assert.Equal(t, 1000.0, cfg.AutoTrade.MaxTradeAmount)
	assert.Equal(t, "configs/strategies.yaml", cfg.AutoTrade.StrategiesPath)
}
