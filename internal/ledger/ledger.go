// Package ledger implements the simulated spot-trading account: cash,
// per-symbol holdings with weighted-average cost basis and an append-only
// trade history. All mutation goes through Buy/Sell/Reset.
package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradeview/internal/pkg/money"
)

const (
	// InitialCash 模拟账户初始资金（USD）。
	InitialCash = 10000.0
	// FeeRate 双边各收 0.1% 手续费。
	FeeRate = 0.001
)

var (
	ErrInvalidOrder         = errors.New("ledger: amount and price must be positive")
	ErrInsufficientFunds    = errors.New("ledger: insufficient funds")
	ErrInsufficientHoldings = errors.New("ledger: insufficient holdings")
)

type TradeType string

const (
	TradeBuy  TradeType = "BUY"
	TradeSell TradeType = "SELL"
)

// Trade 一经创建不再修改。Total 是本次实际移动的现金（含手续费）。
type Trade struct {
	ID        string    `json:"id"`
	Type      TradeType `json:"type"`
	Symbol    string    `json:"symbol"`
	Amount    float64   `json:"amount"`
	Price     float64   `json:"price"`
	Timestamp int64     `json:"timestamp"`
	Total     float64   `json:"total"`
}

type Holding struct {
	Amount        float64 `json:"amount"`
	AveragePrice  float64 `json:"average_price"`
	TotalInvested float64 `json:"total_invested"`
}

// Portfolio 是账本的可序列化快照形态。
type Portfolio struct {
	Cash     float64            `json:"cash"`
	Holdings map[string]Holding `json:"holdings"`
	Trades   []Trade            `json:"trades"`
}

// Ledger 包装 Portfolio 并提供唯一的变更入口。onMutate 在每次成功变更后
// 以最新快照回调（用于持久化），失败的操作不触发。
type Ledger struct {
	mu       sync.Mutex
	p        Portfolio
	feeRate  float64
	onMutate func(Portfolio)

	now func() int64
}

type Option func(*Ledger)

// WithOnMutate 注册成功变更后的回调（持久化钩子）。
func WithOnMutate(fn func(Portfolio)) Option {
	return func(l *Ledger) { l.onMutate = fn }
}

// WithClock 覆盖时间源，仅测试使用。
func WithClock(now func() int64) Option {
	return func(l *Ledger) { l.now = now }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		p: Portfolio{
			Cash:     InitialCash,
			Holdings: make(map[string]Holding),
		},
		feeRate: FeeRate,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore 用持久化的快照覆盖当前状态。快照缺字段时退回默认值。
func (l *Ledger) Restore(p Portfolio) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p.Holdings == nil {
		p.Holdings = make(map[string]Holding)
	}
	if p.Cash < 0 {
		p.Cash = InitialCash
	}
	l.p = p
}

// Buy 以 price 买入 amount 个 symbol。现金不足时返回
// ErrInsufficientFunds 且不产生任何状态变化。
func (l *Ledger) Buy(symbol string, amount, price float64) error {
	if amount <= 0 || price <= 0 {
		return ErrInvalidOrder
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	total := amount * price
	fee := total * l.feeRate
	cost := total + fee
	if l.p.Cash < cost {
		return ErrInsufficientFunds
	}

	l.p.Cash -= cost
	h, ok := l.p.Holdings[symbol]
	if !ok {
		h = Holding{Amount: amount, AveragePrice: price, TotalInvested: total}
	} else {
		newAmount := h.Amount + amount
		h.AveragePrice = (h.Amount*h.AveragePrice + amount*price) / newAmount
		h.Amount = newAmount
		h.TotalInvested += total
	}
	l.p.Holdings[symbol] = h

	l.p.Trades = append(l.p.Trades, Trade{
		ID:        uuid.NewString(),
		Type:      TradeBuy,
		Symbol:    symbol,
		Amount:    amount,
		Price:     price,
		Timestamp: l.now(),
		Total:     money.Round8(cost),
	})
	l.notifyLocked()
	return nil
}

// Sell 卖出 amount 个 symbol。持仓不足时返回 ErrInsufficientHoldings 且
// 不产生任何状态变化。部分卖出时均价保持不变，totalInvested 按剩余比例
// 缩放。
func (l *Ledger) Sell(symbol string, amount, price float64) error {
	if amount <= 0 || price <= 0 {
		return ErrInvalidOrder
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.p.Holdings[symbol]
	if !ok || h.Amount < amount {
		return ErrInsufficientHoldings
	}

	total := amount * price
	fee := total * l.feeRate
	proceeds := total - fee

	l.p.Cash += proceeds
	if h.Amount == amount {
		delete(l.p.Holdings, symbol)
	} else {
		remaining := h.Amount - amount
		h.TotalInvested *= remaining / h.Amount
		h.Amount = remaining
		l.p.Holdings[symbol] = h
	}

	l.p.Trades = append(l.p.Trades, Trade{
		ID:        uuid.NewString(),
		Type:      TradeSell,
		Symbol:    symbol,
		Amount:    amount,
		Price:     price,
		Timestamp: l.now(),
		Total:     money.Round8(proceeds),
	})
	l.notifyLocked()
	return nil
}

// Holding 返回 symbol 的当前持仓；不存在时 ok=false。
func (l *Ledger) Holding(symbol string) (Holding, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.p.Holdings[symbol]
	return h, ok
}

func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Cash
}

// Snapshot 返回深拷贝，调用方可安全持有。
func (l *Ledger) Snapshot() Portfolio {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() Portfolio {
	out := Portfolio{
		Cash:     l.p.Cash,
		Holdings: make(map[string]Holding, len(l.p.Holdings)),
		Trades:   make([]Trade, len(l.p.Trades)),
	}
	for k, v := range l.p.Holdings {
		out.Holdings[k] = v
	}
	copy(out.Trades, l.p.Trades)
	return out
}

// Reset 恢复初始资金并清空持仓与交易记录，不可撤销。
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.p = Portfolio{
		Cash:     InitialCash,
		Holdings: make(map[string]Holding),
	}
	l.notifyLocked()
}

func (l *Ledger) notifyLocked() {
	if l.onMutate != nil {
		l.onMutate(l.snapshotLocked())
	}
}
