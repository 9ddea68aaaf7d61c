// Package autotrader 实现每个 symbol 一个实例的自动交易状态机。
// 状态只有两个：FLAT（无持仓）和 LONG（一笔持仓）；每个 tick 先评估
// 离场再评估入场，一次 tick 至多产生一笔成交。
package autotrader

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tradeview/internal/indicator"
	"tradeview/internal/logger"
	"tradeview/internal/market"
	"tradeview/internal/pkg/money"
	"tradeview/internal/predictor"
	"tradeview/internal/strategy"
)

// TradeLedger 引擎需要的账本能力子集。
type TradeLedger interface {
	Buy(symbol string, amount, price float64) error
	Sell(symbol string, amount, price float64) error
	Cash() float64
}

// StrategyLookup 自定义策略查询。
type StrategyLookup interface {
	Get(id string) (strategy.Strategy, bool)
}

// Position 当前持仓。每个 symbol 至多一笔，只能整仓退出。
type Position struct {
	Symbol          string  `json:"symbol"`
	BuyPrice        float64 `json:"buy_price"`
	Amount          float64 `json:"amount"`
	Timestamp       int64   `json:"timestamp"`
	TargetSellPrice float64 `json:"target_sell_price"`
	StopLossPrice   float64 `json:"stop_loss_price"`
	Strategy        string  `json:"strategy,omitempty"`
}

// State 持久化形态：持仓、统计、日志、设置一起落盘。
type State struct {
	Position *Position  `json:"position,omitempty"`
	Stats    Stats      `json:"stats"`
	Log      []LogEntry `json:"log,omitempty"`
	Settings Settings   `json:"settings"`
}

// TickInput 单次评估的输入。Prediction 可以为 nil（预测源失败时）。
type TickInput struct {
	Price      float64
	Prediction *predictor.Prediction
	Candles    []market.Candle
	Bundle     *indicator.Bundle
}

// Outcome 标记一次 tick 的结果，测试与日志都用它。
type Outcome string

const (
	OutcomeDropped    Outcome = "dropped"
	OutcomeDisabled   Outcome = "disabled"
	OutcomeIdle       Outcome = "idle"
	OutcomeBought     Outcome = "bought"
	OutcomeSold       Outcome = "sold"
	OutcomeBuyFailed  Outcome = "buy_failed"
	OutcomeSellFailed Outcome = "sell_failed"
)

// TickResult 一次 tick 的评估结果。
type TickResult struct {
	Outcome Outcome
	Profit  float64
}

// AutoTrader 单 symbol 的自动交易引擎。
type AutoTrader struct {
	symbol string

	mu         sync.Mutex
	processing atomic.Bool

	settings Settings
	position *Position
	stats    Stats
	log      *RingLog

	lastExportName    string
	lastExportContent string

	ledger     TradeLedger
	strategies StrategyLookup
	persist    func(State)
	export     func(name, content string)
	journal    func(ts int64, line string)
	now        func() time.Time
}

type Option func(*AutoTrader)

// WithPersist 注册状态落盘钩子，在每个改变状态的 tick 后调用。
func WithPersist(fn func(State)) Option {
	return func(t *AutoTrader) { t.persist = fn }
}

// WithExporter 注册日志导出钩子，enabled→disabled 时触发。
func WithExporter(fn func(name, content string)) Option {
	return func(t *AutoTrader) { t.export = fn }
}

// WithJournal 注册逐条日志外写钩子。
func WithJournal(fn func(ts int64, line string)) Option {
	return func(t *AutoTrader) { t.journal = fn }
}

// WithClock 覆盖时间源，仅测试使用。
func WithClock(now func() time.Time) Option {
	return func(t *AutoTrader) { t.now = now }
}

func New(symbol string, ledger TradeLedger, strategies StrategyLookup, opts ...Option) *AutoTrader {
	t := &AutoTrader{
		symbol:     symbol,
		settings:   DefaultSettings(),
		log:        NewRingLog(),
		ledger:     ledger,
		strategies: strategies,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Restore 用持久化状态覆盖当前状态。设置不合法时退回默认，
// 保证坏存档只会降级为"空仓 + 默认配置"。
func (t *AutoTrader) Restore(st State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if norm, err := st.Settings.Normalize(); err == nil {
		t.settings = norm
	} else {
		logger.Warnf("Restored settings invalid for %s, using defaults: %v", t.symbol, err)
		t.settings = DefaultSettings()
	}
	if st.Position != nil && st.Position.Amount > 0 && st.Position.BuyPrice > 0 {
		pos := *st.Position
		pos.Symbol = t.symbol
		t.position = &pos
	} else {
		t.position = nil
	}
	t.stats = st.Stats
	t.log.Restore(st.Log)
}

// Tick 处理一次价格/预测更新。单飞保护：上一次还在执行时新 tick
// 直接丢弃而不是排队，宁可错过也不用旧决策打新价格。
func (t *AutoTrader) Tick(in TickInput) TickResult {
	if !t.processing.CompareAndSwap(false, true) {
		return TickResult{Outcome: OutcomeDropped}
	}
	defer t.processing.Store(false)

	t.mu.Lock()
	defer t.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("AutoTrader %s tick panic: %v", t.symbol, r)
		}
	}()

	if !t.settings.Enabled {
		return TickResult{Outcome: OutcomeDisabled}
	}
	if in.Price <= 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
		return TickResult{Outcome: OutcomeIdle}
	}

	if t.position != nil {
		return t.evaluateExitLocked(in.Price)
	}

	switch t.settings.StrategyMode {
	case ModeCustom:
		return t.evaluateCustomEntryLocked(in)
	default:
		return t.evaluateDefaultEntryLocked(in)
	}
}

// evaluateExitLocked 持仓时只看离场，本 tick 不再评估买入。
func (t *AutoTrader) evaluateExitLocked(price float64) TickResult {
	pos := t.position
	hitTarget := money.GTE(price, pos.TargetSellPrice)
	hitStop := money.LTE(price, pos.StopLossPrice)
	if !hitTarget && !hitStop {
		return TickResult{Outcome: OutcomeIdle}
	}

	reason := "TARGET"
	if hitStop && !hitTarget {
		reason = "STOP-LOSS"
	}
	if err := t.ledger.Sell(pos.Symbol, pos.Amount, price); err != nil {
		t.appendLogLocked(fmt.Sprintf("SELL FAILED (%s) %s %.8f @ %.2f: %v",
			reason, pos.Symbol, pos.Amount, price, err))
		t.persistLocked()
		return TickResult{Outcome: OutcomeSellFailed}
	}

	profit := (price - pos.BuyPrice) * pos.Amount
	t.stats.Record(profit)
	t.position = nil
	t.appendLogLocked(fmt.Sprintf("SELL executed (%s) %s %.8f @ %.2f, profit %.2f USD (win rate %.1f%%)",
		reason, pos.Symbol, pos.Amount, price, profit, t.stats.WinRate))
	t.persistLocked()
	return TickResult{Outcome: OutcomeSold, Profit: profit}
}

// evaluateDefaultEntryLocked 默认入场：预测给出 BUY 且置信度达标。
func (t *AutoTrader) evaluateDefaultEntryLocked(in TickInput) TickResult {
	p := in.Prediction
	if p == nil || p.Recommendation != predictor.RecommendBuy {
		return TickResult{Outcome: OutcomeIdle}
	}
	if !p.Confidence.Meets(t.settings.MinConfidence) {
		return TickResult{Outcome: OutcomeIdle}
	}
	if !t.fundsSufficientLocked() {
		return TickResult{Outcome: OutcomeIdle}
	}
	return t.openPositionLocked(in.Price, t.settings.ProfitTarget, "")
}

// evaluateCustomEntryLocked 自定义入场：按选中策略的内置规则分派。
func (t *AutoTrader) evaluateCustomEntryLocked(in TickInput) TickResult {
	id := strings.TrimSpace(t.settings.SelectedStrategyID)
	if id == "" || t.strategies == nil {
		return TickResult{Outcome: OutcomeIdle}
	}
	s, ok := t.strategies.Get(id)
	if !ok || !s.Enabled {
		return TickResult{Outcome: OutcomeIdle}
	}

	var triggered bool
	switch s.Logic {
	case strategy.KindBBLowerRedTwoGreen:
		triggered = evalBBLowerRedTwoGreen(in.Candles, in.Bundle)
	default:
		return TickResult{Outcome: OutcomeIdle}
	}
	if !triggered {
		return TickResult{Outcome: OutcomeIdle}
	}
	// 资金校验在执行前统一做一次，决策和执行之间现金可能已经变化
	if !t.fundsSufficientLocked() {
		return TickResult{Outcome: OutcomeIdle}
	}

	profitTarget := t.settings.ProfitTarget
	if override, ok := s.Logic.ProfitOverride(); ok {
		profitTarget = override
	}
	return t.openPositionLocked(in.Price, profitTarget, s.ID)
}

func (t *AutoTrader) fundsSufficientLocked() bool {
	return t.ledger.Cash()*0.95 >= t.settings.MaxTradeAmount
}

func (t *AutoTrader) openPositionLocked(price, profitTarget float64, strategyID string) TickResult {
	amount := t.settings.MaxTradeAmount / price
	if err := t.ledger.Buy(t.symbol, amount, price); err != nil {
		t.appendLogLocked(fmt.Sprintf("BUY FAILED %s %.8f @ %.2f: %v", t.symbol, amount, price, err))
		t.persistLocked()
		return TickResult{Outcome: OutcomeBuyFailed}
	}

	pos := &Position{
		Symbol:          t.symbol,
		BuyPrice:        price,
		Amount:          amount,
		Timestamp:       t.now().UnixMilli(),
		TargetSellPrice: money.RelativeLevel(price, profitTarget),
		StopLossPrice:   money.RelativeLevel(price, -t.settings.StopLoss),
		Strategy:        strategyID,
	}
	t.position = pos

	tag := ""
	if strategyID != "" {
		tag = " strategy=" + strategyID
	}
	t.appendLogLocked(fmt.Sprintf("BUY executed %s %.8f @ %.2f, target %.2f, stop %.2f%s",
		t.symbol, amount, price, pos.TargetSellPrice, pos.StopLossPrice, tag))
	t.persistLocked()
	return TickResult{Outcome: OutcomeBought}
}

// SetEnabled 开关自动交易。从开到关时把日志导出为文本工件，
// 缓冲本身不清空。
func (t *AutoTrader) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.settings.Enabled == enabled {
		return
	}
	wasEnabled := t.settings.Enabled
	t.settings.Enabled = enabled
	if enabled {
		t.appendLogLocked("Auto-trading enabled")
	} else {
		t.appendLogLocked("Auto-trading disabled")
	}
	if wasEnabled && !enabled {
		t.lastExportName = ExportName(t.symbol, t.now())
		t.lastExportContent = t.log.Joined()
		if t.export != nil {
			t.export(t.lastExportName, t.lastExportContent)
		}
	}
	t.persistLocked()
}

// UpdateSettings 整体替换设置。Enabled 的翻转走 SetEnabled 的
// 导出逻辑；其它字段直接生效。
func (t *AutoTrader) UpdateSettings(s Settings) error {
	norm, err := s.Normalize()
	if err != nil {
		return err
	}
	t.mu.Lock()
	enabledChange := norm.Enabled != t.settings.Enabled
	targetEnabled := norm.Enabled
	norm.Enabled = t.settings.Enabled
	t.settings = norm
	t.persistLocked()
	t.mu.Unlock()

	if enabledChange {
		t.SetEnabled(targetEnabled)
	}
	return nil
}

// Settings 返回当前设置副本。
func (t *AutoTrader) Settings() Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// Position 返回当前持仓副本；空仓时 ok=false。
func (t *AutoTrader) Position() (Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.position == nil {
		return Position{}, false
	}
	return *t.position, true
}

// Stats 返回统计副本。
func (t *AutoTrader) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Log 返回日志条目（从旧到新）。
func (t *AutoTrader) Log() []LogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.log.Entries()
}

// ExportedLog 返回最近一次停用时产生的导出工件。还没导出过时两者为空，
// 之后的日志追加不影响已导出的内容。
func (t *AutoTrader) ExportedLog() (name, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastExportName, t.lastExportContent
}

// Snapshot 返回完整持久化状态。
func (t *AutoTrader) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *AutoTrader) snapshotLocked() State {
	st := State{
		Stats:    t.stats,
		Log:      t.log.Entries(),
		Settings: t.settings,
	}
	if t.position != nil {
		pos := *t.position
		st.Position = &pos
	}
	return st
}

func (t *AutoTrader) appendLogLocked(line string) {
	ts := t.now().UnixMilli()
	t.log.Append(ts, line)
	logger.Infof("[autotrade %s] %s", t.symbol, line)
	if t.journal != nil {
		t.journal(ts, line)
	}
}

func (t *AutoTrader) persistLocked() {
	if t.persist != nil {
		t.persist(t.snapshotLocked())
	}
}

// evalBBLowerRedTwoGreen 内置规则：最近 3 根 K 线中任意一根的最低价
// 触及布林下轨（含 0.1% 容差），且形态为一红两绿（最老的收跌，
// 后两根收涨）。数据不足时规则不成立，而不是报错。
func evalBBLowerRedTwoGreen(candles []market.Candle, bundle *indicator.Bundle) bool {
	if len(candles) < 3 || bundle == nil || len(bundle.Bollinger) == 0 {
		return false
	}
	lower := bundle.Bollinger[len(bundle.Bollinger)-1].Lower
	if lower <= 0 {
		return false
	}

	last3 := candles[len(candles)-3:]
	touched := false
	for _, c := range last3 {
		if money.LTE(c.Low, lower*1.001) {
			touched = true
			break
		}
	}
	if !touched {
		return false
	}
	c3, c2, c1 := last3[0], last3[1], last3[2]
	return c3.IsRed() && c2.IsGreen() && c1.IsGreen()
}
