package ledger

import "sort"

// HoldingView 是持仓加上按最新价格计算出的市值与浮动盈亏。
type HoldingView struct {
	Symbol           string  `json:"symbol"`
	Amount           float64 `json:"amount"`
	AveragePrice     float64 `json:"average_price"`
	TotalInvested    float64 `json:"total_invested"`
	CurrentPrice     float64 `json:"current_price"`
	MarketValue      float64 `json:"market_value"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"`
}

// Valuation 汇总账户估值。prices 缺失的符号按成本价估值。
type Valuation struct {
	Cash        float64       `json:"cash"`
	TotalValue  float64       `json:"total_value"`
	TotalPnL    float64       `json:"total_pnl"`
	TotalPnLPct float64       `json:"total_pnl_pct"`
	Holdings    []HoldingView `json:"holdings"`
}

func (l *Ledger) Value(prices map[string]float64) Valuation {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := Valuation{Cash: l.p.Cash, TotalValue: l.p.Cash}
	for sym, h := range l.p.Holdings {
		price, ok := prices[sym]
		if !ok {
			price = h.AveragePrice
		}
		mv := h.Amount * price
		view := HoldingView{
			Symbol:        sym,
			Amount:        h.Amount,
			AveragePrice:  h.AveragePrice,
			TotalInvested: h.TotalInvested,
			CurrentPrice:  price,
			MarketValue:   mv,
			UnrealizedPnL: mv - h.TotalInvested,
		}
		if h.TotalInvested > 0 {
			view.UnrealizedPnLPct = view.UnrealizedPnL / h.TotalInvested * 100
		}
		v.TotalValue += mv
		v.Holdings = append(v.Holdings, view)
	}
	sort.Slice(v.Holdings, func(i, j int) bool { return v.Holdings[i].Symbol < v.Holdings[j].Symbol })
	v.TotalPnL = v.TotalValue - InitialCash
	v.TotalPnLPct = v.TotalPnL / InitialCash * 100
	return v
}
