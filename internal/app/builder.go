package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradeview/internal/autotrader"
	"tradeview/internal/config"
	"tradeview/internal/gateway/binance"
	"tradeview/internal/indicator"
	"tradeview/internal/ledger"
	"tradeview/internal/logger"
	"tradeview/internal/market"
	"tradeview/internal/predictor"
	"tradeview/internal/scheduler"
	"tradeview/internal/store/journal"
	"tradeview/internal/store/statestore"
	"tradeview/internal/strategy"
	tradehttp "tradeview/internal/transport/http"
)

// 状态库里的固定键。
const (
	keyLedger            = "ledger"
	keyIndicatorSettings = "indicator:settings"
)

func autotradeKey(symbol string) string { return "autotrade:" + symbol }

// AppBuilder 汇集各组件的构建函数，测试可以逐个替换。
type AppBuilder struct {
	cfg *config.Config

	sourceFn    func(*config.Config) (market.Source, error)
	predictorFn func(*config.Config) *predictor.Client
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		sourceFn:    buildMarketSource,
		predictorFn: buildPredictorClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithMarketSource 覆盖行情来源（测试/回放用）。
func WithMarketSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) {
		b.sourceFn = func(*config.Config) (market.Source, error) { return src, nil }
	}
}

func buildMarketSource(cfg *config.Config) (market.Source, error) {
	return binance.New(binance.Config{
		RESTBaseURL:  cfg.Market.RESTBaseURL,
		HTTPTimeout:  time.Duration(cfg.Market.HTTPTimeoutSeconds) * time.Second,
		ProxyEnabled: cfg.Market.Proxy.Enabled,
		RESTProxyURL: cfg.Market.Proxy.RESTURL,
		WSProxyURL:   cfg.Market.Proxy.WSURL,
	})
}

func buildPredictorClient(cfg *config.Config) *predictor.Client {
	return predictor.NewClient(predictor.Config{
		BaseURL: cfg.Predictor.BaseURL,
		Timeout: time.Duration(cfg.Predictor.TimeoutSeconds) * time.Second,
	})
}

// fileExporter 把停用时导出的日志写成 dir 下的文本文件。
func fileExporter(dir string) func(name, content string) {
	return func(name, content string) {
		if dir == "" {
			return
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warnf("创建导出目录失败: %v", err)
			return
		}
		path := filepath.Join(dir, filepath.Base(name))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			logger.Warnf("写出日志导出文件失败: %v", err)
			return
		}
		logger.Infof("自动交易日志已导出 path=%s bytes=%d", path, len(content))
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	symbol, interval := cfg.Market.Symbol, cfg.Market.Interval

	app := &App{cfg: cfg}

	// 状态库与流水库。
	if err := ensureDir(cfg.Store.StatePath); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}
	states, err := statestore.New(cfg.Store.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	app.closers = append(app.closers, states.Close)

	if err := ensureDir(cfg.Store.JournalPath); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	jnl, err := journal.Open(cfg.Store.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	app.closers = append(app.closers, jnl.Close)

	// 行情来源 + 历史预热。
	src, err := b.sourceFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("market source: %w", err)
	}
	app.closers = append(app.closers, src.Close)

	store := market.NewMemoryKlineStore()
	history, err := src.FetchHistory(ctx, symbol, interval, cfg.Kline.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch history %s %s: %w", symbol, interval, err)
	}
	if err := store.Set(ctx, symbol, interval, history); err != nil {
		return nil, err
	}
	logger.Infof("✓ 历史 K 线预热完成 symbol=%s interval=%s count=%d", symbol, interval, len(history))

	// 策略注册表。
	if err := ensureDir(cfg.AutoTrade.StrategiesPath); err != nil {
		return nil, fmt.Errorf("strategies dir: %w", err)
	}
	registry, err := strategy.NewRegistry(cfg.AutoTrade.StrategiesPath)
	if err != nil {
		return nil, fmt.Errorf("strategy registry: %w", err)
	}

	// 账本：先注册持久化钩子，再恢复历史状态。
	led := ledger.New(ledger.WithOnMutate(func(p ledger.Portfolio) {
		if err := states.Save(context.Background(), keyLedger, p); err != nil {
			logger.Warnf("账本落盘失败: %v", err)
		}
	}))
	var portfolio ledger.Portfolio
	if found, err := states.Load(ctx, keyLedger, &portfolio); err != nil {
		return nil, fmt.Errorf("load ledger state: %w", err)
	} else if found {
		led.Restore(portfolio)
		logger.Infof("✓ 账本已恢复 cash=%.2f holdings=%d trades=%d",
			portfolio.Cash, len(portfolio.Holdings), len(portfolio.Trades))
	}

	// 自动交易引擎。
	trader := autotrader.New(symbol, led, registry,
		autotrader.WithPersist(func(st autotrader.State) {
			if err := states.Save(context.Background(), autotradeKey(symbol), st); err != nil {
				logger.Warnf("自动交易状态落盘失败: %v", err)
			}
		}),
		autotrader.WithJournal(func(ts int64, line string) {
			if err := jnl.Append(context.Background(), symbol, ts, line); err != nil {
				logger.Warnf("交易流水写入失败: %v", err)
			}
		}),
		autotrader.WithExporter(fileExporter(cfg.Store.ExportDir)),
	)
	var traderState autotrader.State
	if found, err := states.Load(ctx, autotradeKey(symbol), &traderState); err != nil {
		return nil, fmt.Errorf("load autotrade state: %w", err)
	} else if found {
		trader.Restore(traderState)
		logger.Infof("✓ 自动交易状态已恢复 enabled=%v", trader.Settings().Enabled)
	} else {
		trader.Restore(autotrader.State{Settings: settingsFromConfig(cfg.AutoTrade)})
	}

	// 预测客户端与 tick 驱动。
	pclient := b.predictorFn(cfg)
	app.ticker = &tickDriver{
		symbol:   symbol,
		interval: interval,
		store:    store,
		trader:   trader,
		client:   pclient,
		settings: indicator.DefaultSettings(),
	}

	updater := market.NewWSUpdater(store, cfg.Kline.MaxCached, src)
	updater.OnEvent = app.ticker.onCandle
	updater.OnDisconnected = func(err error) {
		logger.Warnf("行情连接断开: %v", err)
	}
	app.updater = updater

	if cfg.Predictor.BaseURL != "" && cfg.Predictor.PollIntervalSeconds > 0 {
		p := scheduler.NewPoller("predictor", time.Duration(cfg.Predictor.PollIntervalSeconds)*time.Second)
		p.RunImmediately = true
		p.AlignFirst = true
		app.poller = p
	}

	// HTTP 服务。
	server, err := tradehttp.New(tradehttp.Deps{
		Addr:             cfg.App.HTTPAddr,
		Symbol:           symbol,
		Interval:         interval,
		MaxZoom:          cfg.Chart.MaxZoom,
		Store:            store,
		Ledger:           led,
		Trader:           trader,
		Registry:         registry,
		Journal:          jnl,
		SourceStats:      updater.Stats,
		LatestPrediction: app.ticker.latestPrediction,
		OnIndicatorSettings: func(set indicator.Settings) {
			if err := states.Save(context.Background(), keyIndicatorSettings, set); err != nil {
				logger.Warnf("指标设置落盘失败: %v", err)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}
	var indSettings indicator.Settings
	if found, err := states.Load(ctx, keyIndicatorSettings, &indSettings); err != nil {
		return nil, fmt.Errorf("load indicator settings: %w", err)
	} else if found {
		server.RestoreIndicatorSettings(indSettings)
	}
	app.server = server

	return app, nil
}

// settingsFromConfig 把配置里的自动交易缺省值折算成引擎设置。
// 自动交易永远以关闭状态启动，必须显式开启。
func settingsFromConfig(c config.AutoTradeConfig) autotrader.Settings {
	s := autotrader.DefaultSettings()
	if c.MaxTradeAmount > 0 {
		s.MaxTradeAmount = c.MaxTradeAmount
	}
	if c.ProfitTarget > 0 {
		s.ProfitTarget = c.ProfitTarget
	}
	if c.StopLoss > 0 {
		s.StopLoss = c.StopLoss
	}
	if c.MinConfidence != "" {
		s.MinConfidence = predictor.Confidence(c.MinConfidence)
	}
	if c.StrategyMode != "" {
		s.StrategyMode = autotrader.StrategyMode(c.StrategyMode)
	}
	s.SelectedStrategyID = c.SelectedStrategyID
	s.Enabled = false
	return s
}
