package config

import "strings"

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9980"
	defaultMarketSymbol      = "BTC/USDT"
	defaultMarketInterval    = "1m"
	defaultMarketREST        = "https://api.binance.com"
	defaultMarketHTTPTimeout = 15
	defaultKlineMaxCached    = 500
	defaultKlineHistory      = 200
	defaultPredictorTimeout  = 15
	defaultPredictorPoll     = 30
	defaultMaxTradeAmount    = 1000.0
	defaultProfitTarget      = 0.012
	defaultStopLoss          = 0.005
	defaultMinConfidence     = "medium"
	defaultStrategyMode      = "default"
	defaultStrategiesPath    = "configs/strategies.yaml"
	defaultStatePath         = "data/state.db"
	defaultJournalPath       = "data/journal.db"
	defaultExportDir         = "data/exports"
	defaultChartMaxZoom      = 10.0
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Kline.applyDefaults(keys)
	c.Predictor.applyDefaults(keys)
	c.AutoTrade.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Chart.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	m.Proxy.normalize()
	applyFieldDefaults(keys,
		stringFieldDefault("market.symbol", &m.Symbol, defaultMarketSymbol),
		stringFieldDefault("market.interval", &m.Interval, defaultMarketInterval),
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		fieldDefault{
			key:   "market.http_timeout_seconds",
			need:  func() bool { return m.HTTPTimeoutSeconds <= 0 },
			apply: func() { m.HTTPTimeoutSeconds = defaultMarketHTTPTimeout },
		},
	)
}

func (k *KlineConfig) applyDefaults(keys keySet) {
	if k == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "kline.max_cached",
			need:  func() bool { return k.MaxCached <= 0 },
			apply: func() { k.MaxCached = defaultKlineMaxCached },
		},
		fieldDefault{
			key:   "kline.history_limit",
			need:  func() bool { return k.HistoryLimit <= 0 },
			apply: func() { k.HistoryLimit = defaultKlineHistory },
		},
	)
}

func (p *PredictorConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "predictor.timeout_seconds",
			need:  func() bool { return p.TimeoutSeconds <= 0 },
			apply: func() { p.TimeoutSeconds = defaultPredictorTimeout },
		},
		fieldDefault{
			key:   "predictor.poll_interval_seconds",
			need:  func() bool { return p.PollIntervalSeconds <= 0 },
			apply: func() { p.PollIntervalSeconds = defaultPredictorPoll },
		},
	)
}

func (a *AutoTradeConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "autotrade.max_trade_amount",
			need:  func() bool { return a.MaxTradeAmount <= 0 },
			apply: func() { a.MaxTradeAmount = defaultMaxTradeAmount },
		},
		fieldDefault{
			key:   "autotrade.profit_target",
			need:  func() bool { return a.ProfitTarget <= 0 },
			apply: func() { a.ProfitTarget = defaultProfitTarget },
		},
		fieldDefault{
			key:   "autotrade.stop_loss",
			need:  func() bool { return a.StopLoss <= 0 },
			apply: func() { a.StopLoss = defaultStopLoss },
		},
		stringFieldDefault("autotrade.min_confidence", &a.MinConfidence, defaultMinConfidence),
		stringFieldDefault("autotrade.strategy_mode", &a.StrategyMode, defaultStrategyMode),
		stringFieldDefault("autotrade.strategies_path", &a.StrategiesPath, defaultStrategiesPath),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.state_path", &s.StatePath, defaultStatePath),
		stringFieldDefault("store.journal_path", &s.JournalPath, defaultJournalPath),
		stringFieldDefault("store.export_dir", &s.ExportDir, defaultExportDir),
	)
}

func (c *ChartConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "chart.max_zoom",
			need:  func() bool { return c.MaxZoom <= 1 },
			apply: func() { c.MaxZoom = defaultChartMaxZoom },
		},
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
