package autotrader

// Stats 自动交易累计统计，每次平仓后更新。
type Stats struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	TotalProfit   float64 `json:"total_profit"`
	WinRate       float64 `json:"win_rate"`
}

// Record 记入一笔已实现盈亏并重算胜率。
func (s *Stats) Record(profit float64) {
	s.TotalTrades++
	if profit > 0 {
		s.WinningTrades++
	} else {
		s.LosingTrades++
	}
	s.TotalProfit += profit
	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
}
