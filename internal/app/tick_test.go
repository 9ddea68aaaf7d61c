package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeview/internal/autotrader"
	"tradeview/internal/config"
	"tradeview/internal/indicator"
	"tradeview/internal/ledger"
	"tradeview/internal/market"
	"tradeview/internal/predictor"
	"tradeview/internal/strategy"
)

func seedStore(t *testing.T, n int) *market.MemoryKlineStore {
	t.Helper()
	store := market.NewMemoryKlineStore()
	candles := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)*0.1
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1)*60_000 - 1,
			Open:      base,
			High:      base + 1,
			Low:       base - 1,
			Close:     base + 0.5,
			Volume:    5,
		}
	}
	require.NoError(t, store.Set(context.Background(), "BTC/USDT", "1m", candles))
	return store
}

func newDriver(t *testing.T, predictURL string) (*tickDriver, *ledger.Ledger, *autotrader.AutoTrader) {
	t.Helper()
	reg, err := strategy.NewRegistry(filepath.Join(t.TempDir(), "strategies.yaml"))
	require.NoError(t, err)

	led := ledger.New()
	trader := autotrader.New("BTC/USDT", led, reg)
	d := &tickDriver{
		symbol:   "BTC/USDT",
		interval: "1m",
		store:    seedStore(t, 40),
		trader:   trader,
		client:   predictor.NewClient(predictor.Config{BaseURL: predictURL}),
		settings: indicator.DefaultSettings(),
	}
	return d, led, trader
}

func TestTickDriverDisabledTraderIsNoop(t *testing.T) {
	d, led, _ := newDriver(t, "")

	d.onCandle(market.CandleEvent{Candle: market.Candle{Close: 104}})
	assert.Equal(t, ledger.InitialCash, led.Cash())
}

func TestRefreshPredictionCachesAndTicks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"prediction": 1, "probability": 0.8, "confidence": "high",
			"recommendation": "BUY", "current_price": 104, "data_points": 40,
			"timestamp": 1700000000
		}`))
	}))
	defer srv.Close()

	d, led, trader := newDriver(t, srv.URL)
	set := trader.Settings()
	set.Enabled = true
	require.NoError(t, trader.UpdateSettings(set))

	d.refreshPrediction(context.Background())

	p := d.latestPrediction()
	require.NotNil(t, p)
	assert.Equal(t, predictor.RecommendBuy, p.Recommendation)
	// BUY + high 信心触发建仓。
	_, holding := trader.Position()
	assert.True(t, holding)
	assert.Less(t, led.Cash(), ledger.InitialCash)
}

func TestRefreshPredictionFallbackStaysFlat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d, led, trader := newDriver(t, srv.URL)
	set := trader.Settings()
	set.Enabled = true
	require.NoError(t, trader.UpdateSettings(set))

	d.refreshPrediction(context.Background())

	p := d.latestPrediction()
	require.NotNil(t, p)
	assert.Equal(t, predictor.RecommendWait, p.Recommendation)
	_, holding := trader.Position()
	assert.False(t, holding)
	assert.Equal(t, ledger.InitialCash, led.Cash())
}

func TestFileExporterWritesArtifactOnDisable(t *testing.T) {
	dir := t.TempDir()
	reg, err := strategy.NewRegistry(filepath.Join(t.TempDir(), "strategies.yaml"))
	require.NoError(t, err)
	trader := autotrader.New("BTC/USDT", ledger.New(), reg,
		autotrader.WithExporter(fileExporter(dir)))

	trader.SetEnabled(true)
	trader.SetEnabled(false)

	name, _ := trader.ExportedLog()
	require.NotEmpty(t, name)
	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Auto-trading disabled")
}

func TestSettingsFromConfig(t *testing.T) {
	s := settingsFromConfig(config.AutoTradeConfig{
		MaxTradeAmount: 2500,
		ProfitTarget:   0.02,
		StopLoss:       0.01,
		MinConfidence:  "high",
		StrategyMode:   "custom",
		SelectedStrategyID: "bb_lower_red_two_green",
	})
	assert.False(t, s.Enabled)
	assert.Equal(t, 2500.0, s.MaxTradeAmount)
	assert.Equal(t, predictor.ConfidenceHigh, s.MinConfidence)
	assert.Equal(t, autotrader.ModeCustom, s.StrategyMode)
	assert.Equal(t, "bb_lower_red_two_green", s.SelectedStrategyID)
}
