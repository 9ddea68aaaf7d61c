package tradehttp

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tradeview/internal/analysis"
	"tradeview/internal/autotrader"
	"tradeview/internal/chart"
	"tradeview/internal/indicator"
	"tradeview/internal/ledger"
	"tradeview/internal/market"
	"tradeview/internal/strategy"
)

func abortErr(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// candles 返回当前 symbol/interval 的全部缓存 K 线。
func (s *Server) candles(c *gin.Context) ([]market.Candle, bool) {
	ks, err := s.deps.Store.Get(c.Request.Context(), s.deps.Symbol, s.deps.Interval)
	if err != nil {
		abortErr(c, http.StatusInternalServerError, err)
		return nil, false
	}
	return ks, true
}

func (s *Server) lastPrice(c *gin.Context) (float64, bool) {
	ks, ok := s.candles(c)
	if !ok {
		return 0, false
	}
	if len(ks) == 0 {
		abortErr(c, http.StatusServiceUnavailable, errors.New("no market data yet"))
		return 0, false
	}
	return ks[len(ks)-1].Close, true
}

// ---- market ----

func (s *Server) handleCandles(c *gin.Context) {
	ks, ok := s.candles(c)
	if !ok {
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			abortErr(c, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		if limit < len(ks) {
			ks = ks[len(ks)-limit:]
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":   s.deps.Symbol,
		"interval": s.deps.Interval,
		"candles":  ks,
	})
}

func (s *Server) handleMarketSummary(c *gin.Context) {
	ks, ok := s.candles(c)
	if !ok {
		return
	}
	sum, err := analysis.Snapshot(s.deps.Symbol, s.deps.Interval, ks, analysis.Options{})
	if err != nil {
		abortErr(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) handleMarketStats(c *gin.Context) {
	if s.deps.SourceStats == nil {
		abortErr(c, http.StatusServiceUnavailable, errors.New("market stats unavailable"))
		return
	}
	st := s.deps.SourceStats()
	c.JSON(http.StatusOK, gin.H{
		"reconnects":       st.Reconnects,
		"subscribe_errors": st.SubscribeErrors,
		"last_error":       st.LastError,
	})
}

func (s *Server) handlePrediction(c *gin.Context) {
	if s.deps.LatestPrediction == nil {
		abortErr(c, http.StatusServiceUnavailable, errors.New("prediction source not configured"))
		return
	}
	p := s.deps.LatestPrediction()
	if p == nil {
		abortErr(c, http.StatusServiceUnavailable, errors.New("no prediction yet"))
		return
	}
	c.JSON(http.StatusOK, p)
}

// ---- indicators ----

func (s *Server) indicatorSettings() indicator.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Server) handleIndicators(c *gin.Context) {
	ks, ok := s.candles(c)
	if !ok {
		return
	}
	set := s.indicatorSettings()

	if c.Query("visible") == "true" {
		s.mu.Lock()
		zp := s.window
		s.mu.Unlock()
		rng := chart.VisibleRange(len(ks), zp.Zoom, zp.Pan)
		ks = ks[rng.Start:rng.End]
	}
	bundle := indicator.ComputeAll(market.ClosePoints(ks), ks, set)
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) handleIndicatorSettingsGet(c *gin.Context) {
	c.JSON(http.StatusOK, s.indicatorSettings())
}

func (s *Server) handleIndicatorSettingsPatch(c *gin.Context) {
	var patch indicator.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortErr(c, http.StatusBadRequest, fmt.Errorf("invalid settings patch: %w", err))
		return
	}
	s.mu.Lock()
	s.settings = indicator.Merge(s.settings, patch)
	merged := s.settings
	s.mu.Unlock()

	if s.deps.OnIndicatorSettings != nil {
		s.deps.OnIndicatorSettings(merged)
	}
	c.JSON(http.StatusOK, merged)
}

// ---- chart window ----

type windowResponse struct {
	Zoom    float64     `json:"zoom"`
	Pan     float64     `json:"pan"`
	Visible chart.Range `json:"visible"`
	Total   int         `json:"total"`
}

func (s *Server) windowResponse(c *gin.Context) (windowResponse, bool) {
	ks, ok := s.candles(c)
	if !ok {
		return windowResponse{}, false
	}
	s.mu.Lock()
	zp := s.window
	s.mu.Unlock()
	return windowResponse{
		Zoom:    zp.Zoom,
		Pan:     zp.Pan,
		Visible: chart.VisibleRange(len(ks), zp.Zoom, zp.Pan),
		Total:   len(ks),
	}, true
}

func (s *Server) handleWindowGet(c *gin.Context) {
	resp, ok := s.windowResponse(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWindowSet(c *gin.Context) {
	var req chart.ZoomPan
	if err := c.ShouldBindJSON(&req); err != nil {
		abortErr(c, http.StatusBadRequest, fmt.Errorf("invalid window: %w", err))
		return
	}
	if req.Zoom < chart.MinZoom || req.Zoom > s.deps.MaxZoom {
		abortErr(c, http.StatusBadRequest,
			fmt.Errorf("zoom must be within [%.0f, %.0f]", chart.MinZoom, s.deps.MaxZoom))
		return
	}
	if req.Pan < 0 || req.Pan > 1 {
		abortErr(c, http.StatusBadRequest, errors.New("pan must be within [0, 1]"))
		return
	}
	s.mu.Lock()
	s.window = req
	s.mu.Unlock()

	resp, ok := s.windowResponse(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWindowWheel(c *gin.Context) {
	var req struct {
		ScrollOut  bool    `json:"scroll_out"`
		CursorFrac float64 `json:"cursor_frac"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortErr(c, http.StatusBadRequest, fmt.Errorf("invalid wheel event: %w", err))
		return
	}
	ks, ok := s.candles(c)
	if !ok {
		return
	}
	s.mu.Lock()
	s.window = chart.WheelZoom(s.window, len(ks), req.ScrollOut, req.CursorFrac, s.deps.MaxZoom)
	s.mu.Unlock()

	resp, ok := s.windowResponse(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWindowDrag(c *gin.Context) {
	var req struct {
		DeltaPx float64 `json:"delta_px"`
		WidthPx float64 `json:"width_px"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortErr(c, http.StatusBadRequest, fmt.Errorf("invalid drag event: %w", err))
		return
	}
	if req.WidthPx <= 0 {
		abortErr(c, http.StatusBadRequest, errors.New("width_px must be positive"))
		return
	}
	s.mu.Lock()
	s.window = chart.DragPan(s.window, req.DeltaPx, req.WidthPx)
	s.mu.Unlock()

	resp, ok := s.windowResponse(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWindowReset(c *gin.Context) {
	s.mu.Lock()
	s.window = chart.ZoomPan{Zoom: chart.MinZoom, Pan: 1}
	s.mu.Unlock()

	resp, ok := s.windowResponse(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleChartPage(c *gin.Context) {
	ks, ok := s.candles(c)
	if !ok {
		return
	}
	s.mu.Lock()
	zp := s.window
	set := s.settings
	s.mu.Unlock()

	rng := chart.VisibleRange(len(ks), zp.Zoom, zp.Pan)
	visible := ks[rng.Start:rng.End]
	bundle := indicator.ComputeAll(market.ClosePoints(visible), visible, set)

	c.Header("Content-Type", "text/html; charset=utf-8")
	err := chart.RenderPage(c.Writer, chart.PageInput{
		Symbol:   s.deps.Symbol,
		Interval: s.deps.Interval,
		Candles:  visible,
		Bundle:   bundle,
		Window:   rng,
		Total:    len(ks),
	})
	if err != nil {
		abortErr(c, http.StatusServiceUnavailable, err)
	}
}

// ---- portfolio & trades ----

func (s *Server) handlePortfolio(c *gin.Context) {
	prices := map[string]float64{}
	if ks, ok := s.candles(c); ok && len(ks) > 0 {
		prices[s.deps.Symbol] = ks[len(ks)-1].Close
	} else if !ok {
		return
	}
	c.JSON(http.StatusOK, s.deps.Ledger.Value(prices))
}

func (s *Server) handlePortfolioReset(c *gin.Context) {
	s.deps.Ledger.Reset()
	c.JSON(http.StatusOK, s.deps.Ledger.Snapshot())
}

func (s *Server) handleTrades(c *gin.Context) {
	p := s.deps.Ledger.Snapshot()
	c.JSON(http.StatusOK, gin.H{"trades": p.Trades})
}

type orderRequest struct {
	Amount float64 `json:"amount"`
	// Price 省略时用最新收盘价成交。
	Price float64 `json:"price,omitempty"`
}

func ledgerStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrInsufficientHoldings):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleBuy(c *gin.Context) {
	s.handleOrder(c, s.deps.Ledger.Buy)
}

func (s *Server) handleSell(c *gin.Context) {
	s.handleOrder(c, s.deps.Ledger.Sell)
}

func (s *Server) handleOrder(c *gin.Context, exec func(symbol string, amount, price float64) error) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortErr(c, http.StatusBadRequest, fmt.Errorf("invalid order: %w", err))
		return
	}
	price := req.Price
	if price <= 0 {
		p, ok := s.lastPrice(c)
		if !ok {
			return
		}
		price = p
	}
	if err := exec(s.deps.Symbol, req.Amount, price); err != nil {
		abortErr(c, ledgerStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, s.deps.Ledger.Snapshot())
}

// ---- autotrade ----

func (s *Server) handleAutoSettingsGet(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Trader.Settings())
}

func (s *Server) handleAutoSettingsPut(c *gin.Context) {
	var req autotrader.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		abortErr(c, http.StatusBadRequest, fmt.Errorf("invalid settings: %w", err))
		return
	}
	if err := s.deps.Trader.UpdateSettings(req); err != nil {
		abortErr(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, s.deps.Trader.Settings())
}

func (s *Server) handleAutoEnable(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortErr(c, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	s.deps.Trader.SetEnabled(req.Enabled)
	c.JSON(http.StatusOK, s.deps.Trader.Settings())
}

func (s *Server) handleAutoStatus(c *gin.Context) {
	resp := gin.H{
		"settings": s.deps.Trader.Settings(),
		"stats":    s.deps.Trader.Stats(),
	}
	if pos, ok := s.deps.Trader.Position(); ok {
		resp["position"] = pos
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAutoLog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": s.deps.Trader.Log()})
}

func (s *Server) handleAutoLogExport(c *gin.Context) {
	// full=true 走流水库导出完整历史，不受 100 条内存环限制。
	if c.Query("full") == "true" {
		if s.deps.Journal == nil {
			abortErr(c, http.StatusServiceUnavailable, errors.New("journal not configured"))
			return
		}
		content, err := s.deps.Journal.Export(c.Request.Context(), s.deps.Symbol)
		if err != nil {
			abortErr(c, http.StatusInternalServerError, err)
			return
		}
		s.serveExport(c, autotrader.ExportName(s.deps.Symbol, time.Now()), content)
		return
	}

	name, content := s.deps.Trader.ExportedLog()
	if name == "" {
		// 没有历史导出就导出当前缓冲。
		name = autotrader.ExportName(s.deps.Symbol, time.Now())
		entries := s.deps.Trader.Log()
		ring := autotrader.NewRingLog()
		ring.Restore(entries)
		content = ring.Joined()
	}
	s.serveExport(c, name, content)
}

func (s *Server) serveExport(c *gin.Context, name, content string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}

func (s *Server) handleAutoJournal(c *gin.Context) {
	if s.deps.Journal == nil {
		abortErr(c, http.StatusServiceUnavailable, errors.New("journal not configured"))
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortErr(c, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	entries, err := s.deps.Journal.List(c.Request.Context(), s.deps.Symbol, limit)
	if err != nil {
		abortErr(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ---- strategies ----

func strategyStatus(err error) int {
	switch {
	case errors.Is(err, strategy.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, strategy.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handleStrategiesList(c *gin.Context) {
	snap := s.deps.Registry.Snapshot()
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleStrategyAdd(c *gin.Context) {
	var req strategy.Strategy
	if err := c.ShouldBindJSON(&req); err != nil {
		abortErr(c, http.StatusBadRequest, fmt.Errorf("invalid strategy: %w", err))
		return
	}
	created, err := s.deps.Registry.Add(req)
	if err != nil {
		abortErr(c, strategyStatus(err), err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleStrategyUpdate(c *gin.Context) {
	var req strategy.Strategy
	if err := c.ShouldBindJSON(&req); err != nil {
		abortErr(c, http.StatusBadRequest, fmt.Errorf("invalid strategy: %w", err))
		return
	}
	req.ID = c.Param("id")
	updated, err := s.deps.Registry.Update(req)
	if err != nil {
		abortErr(c, strategyStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleStrategyDelete(c *gin.Context) {
	if err := s.deps.Registry.Delete(c.Param("id")); err != nil {
		abortErr(c, strategyStatus(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStrategyEnable(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortErr(c, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if err := s.deps.Registry.SetEnabled(c.Param("id"), req.Enabled); err != nil {
		abortErr(c, strategyStatus(err), err)
		return
	}
	st, _ := s.deps.Registry.Get(c.Param("id"))
	c.JSON(http.StatusOK, st)
}
