// Package tradehttp 暴露交易视图的 HTTP API：行情、指标、图表窗口、
// 账本与自动交易控制。
package tradehttp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"tradeview/internal/autotrader"
	"tradeview/internal/chart"
	"tradeview/internal/indicator"
	"tradeview/internal/ledger"
	"tradeview/internal/logger"
	"tradeview/internal/market"
	"tradeview/internal/predictor"
	"tradeview/internal/store/journal"
	"tradeview/internal/strategy"
)

// Deps 聚合 Server 需要的全部依赖。Journal 与 SourceStats 可以为空，
// 对应端点会返回 503。
type Deps struct {
	Addr     string
	Symbol   string
	Interval string
	MaxZoom  float64

	Store    market.KlineStore
	Ledger   *ledger.Ledger
	Trader   *autotrader.AutoTrader
	Registry *strategy.Registry
	Journal  *journal.Store

	SourceStats      func() market.SourceStats
	LatestPrediction func() *predictor.Prediction

	// OnIndicatorSettings 在指标设置被修改后回调（用于持久化）。
	OnIndicatorSettings func(indicator.Settings)
}

// Server 包一层 http.Server，Start 负责生命周期。
type Server struct {
	deps   Deps
	router *gin.Engine

	mu       sync.Mutex
	settings indicator.Settings
	window   chart.ZoomPan
}

func New(deps Deps) (*Server, error) {
	if deps.Addr == "" {
		return nil, errors.New("http server requires listen addr")
	}
	if deps.Store == nil || deps.Ledger == nil || deps.Trader == nil || deps.Registry == nil {
		return nil, errors.New("http server missing core dependencies")
	}
	if deps.MaxZoom < chart.MinZoom {
		deps.MaxZoom = chart.DefaultMaxZoom
	}

	s := &Server{
		deps:     deps,
		settings: indicator.DefaultSettings(),
		window:   chart.ZoomPan{Zoom: chart.MinZoom, Pan: 1},
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	s.registerRoutes(r)
	s.router = r
	return s, nil
}

// RestoreIndicatorSettings 用持久化的设置覆盖默认值（启动时调用一次）。
func (s *Server) RestoreIndicatorSettings(set indicator.Settings) {
	s.mu.Lock()
	s.settings = set
	s.mu.Unlock()
}

// Handler 暴露底层路由，测试直接用它。
func (s *Server) Handler() http.Handler { return s.router }

// Start 阻塞运行直到 ctx 取消，然后给 5 秒优雅退出。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.deps.Addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP 服务启动 addr=%s symbol=%s", s.deps.Addr, s.deps.Symbol)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("HTTP 优雅退出失败: %v", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/chart", s.handleChartPage)

	api := r.Group("/api")
	{
		api.GET("/market/candles", s.handleCandles)
		api.GET("/market/summary", s.handleMarketSummary)
		api.GET("/market/stats", s.handleMarketStats)
		api.GET("/prediction", s.handlePrediction)

		api.GET("/indicators", s.handleIndicators)
		api.GET("/indicators/settings", s.handleIndicatorSettingsGet)
		api.PATCH("/indicators/settings", s.handleIndicatorSettingsPatch)

		api.GET("/chart/window", s.handleWindowGet)
		api.PUT("/chart/window", s.handleWindowSet)
		api.POST("/chart/window/wheel", s.handleWindowWheel)
		api.POST("/chart/window/drag", s.handleWindowDrag)
		api.POST("/chart/window/reset", s.handleWindowReset)

		api.GET("/portfolio", s.handlePortfolio)
		api.POST("/portfolio/reset", s.handlePortfolioReset)
		api.GET("/trades", s.handleTrades)
		api.POST("/trade/buy", s.handleBuy)
		api.POST("/trade/sell", s.handleSell)

		api.GET("/autotrade/settings", s.handleAutoSettingsGet)
		api.PUT("/autotrade/settings", s.handleAutoSettingsPut)
		api.POST("/autotrade/enable", s.handleAutoEnable)
		api.GET("/autotrade/status", s.handleAutoStatus)
		api.GET("/autotrade/log", s.handleAutoLog)
		api.GET("/autotrade/log/export", s.handleAutoLogExport)
		api.GET("/autotrade/journal", s.handleAutoJournal)

		api.GET("/strategies", s.handleStrategiesList)
		api.POST("/strategies", s.handleStrategyAdd)
		api.PUT("/strategies/:id", s.handleStrategyUpdate)
		api.DELETE("/strategies/:id", s.handleStrategyDelete)
		api.POST("/strategies/:id/enable", s.handleStrategyEnable)
	}
}
