// Package indicator orchestrates the series math over the currently visible
// slice according to the caller's settings.
package indicator

import (
	"tradeview/internal/market"
	"tradeview/internal/series"
)

// Bundle 汇总一次计算的全部指标输出。未启用（或数据不足以计算）的指标
// 字段为 nil，序列化时整体缺席。
type Bundle struct {
	SMA        []series.Point      `json:"sma,omitempty"`
	EMA        []series.Point      `json:"ema,omitempty"`
	RSI        []series.Point      `json:"rsi,omitempty"`
	MACD       []series.MACDPoint  `json:"macd,omitempty"`
	Bollinger  []series.BandPoint  `json:"bollinger,omitempty"`
	Stochastic []series.StochPoint `json:"stochastic,omitempty"`
}

// ComputeAll 对启用的指标逐一调用 series 包。每次调用都基于传入的数据
// 重新计算；缓存由调用方自行负责。
func ComputeAll(prices []market.PricePoint, candles []market.Candle, s Settings) Bundle {
	var b Bundle
	if s.SMA.Enabled {
		b.SMA = series.SMA(prices, s.SMA.Period)
	}
	if s.EMA.Enabled {
		b.EMA = series.EMA(prices, s.EMA.Period)
	}
	if s.RSI.Enabled {
		b.RSI = series.RSI(prices, s.RSI.Period)
	}
	if s.MACD.Enabled {
		b.MACD = series.MACD(prices, s.MACD.Fast, s.MACD.Slow, s.MACD.Signal)
	}
	if s.Bollinger.Enabled {
		b.Bollinger = series.BollingerBands(prices, s.Bollinger.Period, s.Bollinger.StdDev)
	}
	if s.Stochastic.Enabled && len(candles) > 0 {
		b.Stochastic = series.Stochastic(candles, s.Stochastic.KPeriod, s.Stochastic.DPeriod)
	}
	return b
}
