package tradehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeview/internal/autotrader"
	"tradeview/internal/indicator"
	"tradeview/internal/ledger"
	"tradeview/internal/market"
	"tradeview/internal/store/journal"
	"tradeview/internal/strategy"
)

func seedCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)*0.5
		out[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1)*60_000 - 1,
			Open:      base,
			High:      base + 2,
			Low:       base - 2,
			Close:     base + 1,
			Volume:    10,
		}
	}
	return out
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := market.NewMemoryKlineStore()
	require.NoError(t, store.Set(context.Background(), "BTC/USDT", "1m", seedCandles(60)))

	reg, err := strategy.NewRegistry(filepath.Join(t.TempDir(), "strategies.yaml"))
	require.NoError(t, err)

	led := ledger.New()
	trader := autotrader.New("BTC/USDT", led, reg)

	srv, err := New(Deps{
		Addr:     ":0",
		Symbol:   "BTC/USDT",
		Interval: "1m",
		MaxZoom:  10,
		Store:    store,
		Ledger:   led,
		Trader:   trader,
		Registry: reg,
	})
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), "body: %s", rec.Body.String())
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCandlesLimit(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/market/candles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Candles []market.Candle `json:"candles"`
	}
	decode(t, rec, &resp)
	assert.Len(t, resp.Candles, 60)

	rec = do(t, srv, http.MethodGet, "/api/market/candles?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	require.Len(t, resp.Candles, 5)
	assert.Equal(t, int64(55)*60_000, resp.Candles[0].OpenTime)

	rec = do(t, srv, http.MethodGet, "/api/market/candles?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWindowFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/chart/window", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var win windowResponse
	decode(t, rec, &win)
	assert.Equal(t, 1.0, win.Zoom)
	assert.Equal(t, 60, win.Visible.Count)

	// 放大后可见数量变少。
	rec = do(t, srv, http.MethodPost, "/api/chart/window/wheel",
		map[string]any{"scroll_out": false, "cursor_frac": 0.5})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &win)
	assert.Less(t, win.Visible.Count, 60)
	assert.Greater(t, win.Zoom, 1.0)

	rec = do(t, srv, http.MethodPost, "/api/chart/window/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &win)
	assert.Equal(t, 60, win.Visible.Count)

	rec = do(t, srv, http.MethodPut, "/api/chart/window", map[string]any{"zoom": 99.0, "pan": 0.5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/chart/window/drag",
		map[string]any{"delta_px": 40.0, "width_px": 0.0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualTrading(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/trade/buy", map[string]any{"amount": 0.5, "price": 100.0})
	require.Equal(t, http.StatusOK, rec.Code)
	var p ledger.Portfolio
	decode(t, rec, &p)
	assert.InDelta(t, 10000-50*1.001, p.Cash, 1e-9)
	require.Len(t, p.Trades, 1)

	// 持仓不足的卖单被拒。
	rec = do(t, srv, http.MethodPost, "/api/trade/sell", map[string]any{"amount": 5.0, "price": 100.0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// 非法数量。
	rec = do(t, srv, http.MethodPost, "/api/trade/buy", map[string]any{"amount": -1.0, "price": 100.0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 超出现金。
	rec = do(t, srv, http.MethodPost, "/api/trade/buy", map[string]any{"amount": 1000.0, "price": 100.0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBuyUsesLastCloseWhenPriceOmitted(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/trade/buy", map[string]any{"amount": 1.0})
	require.Equal(t, http.StatusOK, rec.Code)
	var p ledger.Portfolio
	decode(t, rec, &p)
	// 最后一根收盘价 100 + 59*0.5 + 1 = 130.5
	require.Len(t, p.Trades, 1)
	assert.InDelta(t, 130.5, p.Trades[0].Price, 1e-9)
}

func TestPortfolioValuation(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/trade/buy", map[string]any{"amount": 2.0, "price": 100.0})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/portfolio", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var v ledger.Valuation
	decode(t, rec, &v)
	require.Len(t, v.Holdings, 1)
	assert.Equal(t, "BTC/USDT", v.Holdings[0].Symbol)
	assert.InDelta(t, 130.5, v.Holdings[0].CurrentPrice, 1e-9)
	assert.InDelta(t, 2*130.5, v.Holdings[0].MarketValue, 1e-9)

	rec = do(t, srv, http.MethodPost, "/api/portfolio/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p ledger.Portfolio
	decode(t, rec, &p)
	assert.Equal(t, ledger.InitialCash, p.Cash)
	assert.Empty(t, p.Holdings)
}

func TestIndicatorSettingsPatch(t *testing.T) {
	srv := newTestServer(t)

	var called int
	srv.deps.OnIndicatorSettings = func(indicator.Settings) { called++ }

	rec := do(t, srv, http.MethodPatch, "/api/indicators/settings",
		map[string]any{"sma": map[string]any{"period": 50}})
	require.Equal(t, http.StatusOK, rec.Code)
	var set indicator.Settings
	decode(t, rec, &set)
	assert.Equal(t, 50, set.SMA.Period)
	assert.True(t, set.SMA.Enabled) // 未触及的字段保持默认
	assert.Equal(t, 14, set.RSI.Period)
	assert.Equal(t, 1, called)

	rec = do(t, srv, http.MethodGet, "/api/indicators/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &set)
	assert.Equal(t, 50, set.SMA.Period)
}

func TestIndicatorsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/indicators", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bundle indicator.Bundle
	decode(t, rec, &bundle)
	assert.NotEmpty(t, bundle.SMA)
	assert.NotEmpty(t, bundle.RSI)
	assert.Empty(t, bundle.EMA) // 默认关闭
}

func TestMarketSummary(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/market/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum struct {
		Symbol    string  `json:"symbol"`
		LastPrice float64 `json:"last_price"`
	}
	decode(t, rec, &sum)
	assert.Equal(t, "BTC/USDT", sum.Symbol)
	assert.InDelta(t, 130.5, sum.LastPrice, 1e-9)
}

func TestAutotradeSettingsRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/autotrade/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var set autotrader.Settings
	decode(t, rec, &set)
	assert.False(t, set.Enabled)

	set.MaxTradeAmount = 500
	set.MinConfidence = "high"
	rec = do(t, srv, http.MethodPut, "/api/autotrade/settings", set)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &set)
	assert.Equal(t, 500.0, set.MaxTradeAmount)

	// custom 模式必须带策略 id。
	bad := set
	bad.StrategyMode = "custom"
	bad.SelectedStrategyID = ""
	rec = do(t, srv, http.MethodPut, "/api/autotrade/settings", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/autotrade/enable", map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &set)
	assert.True(t, set.Enabled)
}

func TestAutotradeStatusAndLogExport(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/autotrade/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st map[string]json.RawMessage
	decode(t, rec, &st)
	assert.Contains(t, st, "settings")
	assert.Contains(t, st, "stats")
	assert.NotContains(t, st, "position")

	// 还没有导出工件时退回当前缓冲。
	rec = do(t, srv, http.MethodGet, "/api/autotrade/log/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	disp := rec.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disp, `attachment; filename="autotrade-log-btc-usdt-`), disp)

	// 停用后导出的是冻结的工件。
	rec = do(t, srv, http.MethodPost, "/api/autotrade/enable", map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/autotrade/enable", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/autotrade/log/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Auto-trading disabled")
}

func TestAutotradeLogExportFull(t *testing.T) {
	srv := newTestServer(t)
	jnl, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jnl.Close() })
	srv.deps.Journal = jnl

	require.NoError(t, jnl.Append(context.Background(), "BTC/USDT", 1000, "first"))
	require.NoError(t, jnl.Append(context.Background(), "BTC/USDT", 2000, "second"))

	rec := do(t, srv, http.MethodGet, "/api/autotrade/log/export?full=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "first\nsecond", rec.Body.String())

	// journal 未配置时 full 导出 503。
	other := newTestServer(t)
	rec = do(t, other, http.MethodGet, "/api/autotrade/log/export?full=true", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJournalUnconfigured(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/autotrade/journal", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStrategiesCRUD(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/strategies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap strategy.Snapshot
	decode(t, rec, &snap)
	require.NotEmpty(t, snap.Strategies) // 内置策略

	add := strategy.Strategy{Name: "My Dip Buyer", Logic: strategy.KindBBLowerRedTwoGreen}
	rec = do(t, srv, http.MethodPost, "/api/strategies", add)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created strategy.Strategy
	decode(t, rec, &created)
	assert.Equal(t, "my_dip_buyer", created.ID)

	rec = do(t, srv, http.MethodPost, "/api/strategies", add)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodPost,
		fmt.Sprintf("/api/strategies/%s/enable", created.ID), map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var enabled strategy.Strategy
	decode(t, rec, &enabled)
	assert.True(t, enabled.Enabled)

	rec = do(t, srv, http.MethodDelete, "/api/strategies/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/strategies/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictionUnavailable(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/prediction", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChartPageRenders(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/chart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")
	// 副标题标注窗口在完整序列中的位置。
	assert.Contains(t, rec.Body.String(), "window 0..60 of 60")
}
