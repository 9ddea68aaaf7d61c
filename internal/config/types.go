package config

import "strings"

// Config 是 tradeview 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Market    MarketConfig    `toml:"market"`
	Kline     KlineConfig     `toml:"kline"`
	Predictor PredictorConfig `toml:"predictor"`
	AutoTrade AutoTradeConfig `toml:"autotrade"`
	Store     StoreConfig     `toml:"store"`
	Chart     ChartConfig     `toml:"chart"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// MarketConfig 行情来源与订阅目标。
type MarketConfig struct {
	Symbol             string      `toml:"symbol"`
	Interval           string      `toml:"interval"`
	RESTBaseURL        string      `toml:"rest_base_url"`
	HTTPTimeoutSeconds int         `toml:"http_timeout_seconds"`
	Proxy              ProxyConfig `toml:"proxy"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
	WSURL   string `toml:"ws_url"`
}

func (p *ProxyConfig) normalize() {
	p.RESTURL = strings.TrimSpace(p.RESTURL)
	p.WSURL = strings.TrimSpace(p.WSURL)
	if p.RESTURL == "" && p.WSURL == "" {
		p.Enabled = false
	}
}

type KlineConfig struct {
	MaxCached    int `toml:"max_cached"`
	HistoryLimit int `toml:"history_limit"`
}

// PredictorConfig 外部预测服务。BaseURL 为空表示禁用默认策略入场信号。
type PredictorConfig struct {
	BaseURL             string `toml:"base_url"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
}

// AutoTradeConfig 自动交易初始设置与策略文件位置。运行期修改通过 HTTP
// 接口进行并持久化到状态库，这里只决定首次启动的缺省值。
type AutoTradeConfig struct {
	MaxTradeAmount     float64 `toml:"max_trade_amount"`
	ProfitTarget       float64 `toml:"profit_target"`
	StopLoss           float64 `toml:"stop_loss"`
	MinConfidence      string  `toml:"min_confidence"`
	StrategyMode       string  `toml:"strategy_mode"`
	SelectedStrategyID string  `toml:"selected_strategy_id"`
	StrategiesPath     string  `toml:"strategies_path"`
}

type StoreConfig struct {
	StatePath   string `toml:"state_path"`
	JournalPath string `toml:"journal_path"`
	ExportDir   string `toml:"export_dir"`
}

type ChartConfig struct {
	MaxZoom float64 `toml:"max_zoom"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
