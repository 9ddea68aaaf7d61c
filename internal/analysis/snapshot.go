// Package analysis 基于 TALib 产出市场快照摘要，供摘要接口与日志展示使用。
// 这里只关心"最新状态"，逐点指标序列由 indicator 包负责。
package analysis

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"tradeview/internal/market"
)

// Metric 保存单个度量的最新值与状态标签。
type Metric struct {
	Latest float64 `json:"latest"`
	State  string  `json:"state,omitempty"`
	Note   string  `json:"note,omitempty"`
}

// Summary 汇总单个 symbol+interval 的市场状态。
type Summary struct {
	Symbol      string            `json:"symbol"`
	Interval    string            `json:"interval"`
	Count       int               `json:"count"`
	LastPrice   float64           `json:"last_price"`
	ChangePct   float64           `json:"change_pct"`
	HighestHigh float64           `json:"highest_high"`
	LowestLow   float64           `json:"lowest_low"`
	Metrics     map[string]Metric `json:"metrics"`
}

// Options 控制快照计算周期，零值使用默认。
type Options struct {
	ATRPeriod int
	ROCPeriod int
}

// Snapshot 计算市场快照。数据太少无法计算的度量直接省略。
func Snapshot(symbol, interval string, candles []market.Candle, opts Options) (Summary, error) {
	sum := Summary{
		Symbol:   symbol,
		Interval: interval,
		Count:    len(candles),
		Metrics:  make(map[string]Metric),
	}
	if len(candles) == 0 {
		return sum, fmt.Errorf("no candles")
	}
	if opts.ATRPeriod <= 0 {
		opts.ATRPeriod = 14
	}
	if opts.ROCPeriod <= 0 {
		opts.ROCPeriod = 9
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	sum.LastPrice = closes[len(closes)-1]
	if closes[0] != 0 {
		sum.ChangePct = (sum.LastPrice - closes[0]) / closes[0] * 100
	}
	sum.HighestHigh = highs[0]
	sum.LowestLow = lows[0]
	for i := 1; i < len(candles); i++ {
		if highs[i] > sum.HighestHigh {
			sum.HighestHigh = highs[i]
		}
		if lows[i] < sum.LowestLow {
			sum.LowestLow = lows[i]
		}
	}

	if len(candles) > opts.ATRPeriod {
		if atr := lastValid(talib.Atr(highs, lows, closes, opts.ATRPeriod)); atr > 0 {
			m := Metric{Latest: round4(atr), Note: "average true range"}
			if sum.LastPrice > 0 {
				pct := atr / sum.LastPrice * 100
				m.State = volatilityState(pct)
			}
			sum.Metrics["atr"] = m
		}
	}

	if len(candles) > opts.ROCPeriod {
		roc := lastValid(talib.Roc(closes, opts.ROCPeriod))
		sum.Metrics["roc"] = Metric{
			Latest: round4(roc),
			State:  polarityState(roc),
			Note:   "rate of change",
		}
	}

	if len(candles) >= 2 {
		obv := talib.Obv(closes, volumes)
		latest := lastValid(obv)
		prev := 0.0
		if len(obv) >= 2 {
			prev = obv[len(obv)-2]
		}
		sum.Metrics["obv"] = Metric{
			Latest: round4(latest),
			State:  polarityState(latest - prev),
			Note:   "volume thrust",
		}
	}

	return sum, nil
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func polarityState(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return "flat"
	}
}

// volatilityState 按 ATR 占价格的百分比粗分档。
func volatilityState(pct float64) string {
	switch {
	case pct >= 3:
		return "high"
	case pct >= 1:
		return "medium"
	default:
		return "low"
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
