// Package series implements the pure indicator math used by the chart and
// the auto trader. All functions are deterministic, allocate their output
// and never mutate the input. A series shorter than the minimum window
// yields an empty result instead of an error.
package series

import (
	"math"

	"tradeview/internal/market"
)

// Point 是单值指标的一个输出点（SMA/EMA/RSI）。
type Point struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// MACDPoint 同时携带 MACD 线、信号线与柱体，三者按时间对齐。
type MACDPoint struct {
	Timestamp int64   `json:"timestamp"`
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// BandPoint 是布林带的一个输出点。
type BandPoint struct {
	Timestamp int64   `json:"timestamp"`
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
}

// StochPoint 是随机指标的一个输出点。
type StochPoint struct {
	Timestamp int64   `json:"timestamp"`
	K         float64 `json:"k"`
	D         float64 `json:"d"`
}

// SMA 计算简单移动平均。输出长度 = max(0, len-period+1)，
// 第一个值出现在源序列索引 period-1 处。
func SMA(points []market.PricePoint, period int) []Point {
	if period <= 0 || len(points) < period {
		return nil
	}
	out := make([]Point, 0, len(points)-period+1)
	sum := 0.0
	for i, p := range points {
		sum += p.Price
		if i < period-1 {
			continue
		}
		if i >= period {
			sum -= points[i-period].Price
		}
		out = append(out, Point{Timestamp: p.Timestamp, Value: sum / float64(period)})
	}
	return out
}

// EMA 计算指数移动平均。种子值为前 period 个点的 SMA，出现在索引 period-1；
// 之后按 ema = price*k + prev*(1-k)，k = 2/(period+1) 递推。
func EMA(points []market.PricePoint, period int) []Point {
	if period <= 0 || len(points) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += points[i].Price
	}
	seed /= float64(period)

	out := make([]Point, 0, len(points)-period+1)
	out = append(out, Point{Timestamp: points[period-1].Timestamp, Value: seed})
	prev := seed
	for i := period; i < len(points); i++ {
		ema := points[i].Price*k + prev*(1-k)
		out = append(out, Point{Timestamp: points[i].Timestamp, Value: ema})
		prev = ema
	}
	return out
}

// RSI 计算相对强弱指数（Wilder 平滑）。需要至少 period+1 个点，
// 输出长度 = len-period。avgLoss 为 0 时固定输出 100，不产生 NaN。
func RSI(points []market.PricePoint, period int) []Point {
	if period <= 0 || len(points) < period+1 {
		return nil
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := points[i].Price - points[i-1].Price
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]Point, 0, len(points)-period)
	out = append(out, Point{Timestamp: points[period].Timestamp, Value: rsiValue(avgGain, avgLoss)})
	for i := period + 1; i < len(points); i++ {
		change := points[i].Price - points[i-1].Price
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, Point{Timestamp: points[i].Timestamp, Value: rsiValue(avgGain, avgLoss)})
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// MACD 计算 MACD 线、信号线与柱体。MACD 线 = EMA(fast) - EMA(slow)，
// 两条 EMA 各取末尾 min(len) 个点按位置配对（时间戳一致）；信号线是
// MACD 线自身的 EMA(signal)，柱体按同样方式再与 MACD 线对齐。
// len < slow 或 MACD 线不足 signal 个点时返回空。
func MACD(points []market.PricePoint, fast, slow, signal int) []MACDPoint {
	if fast <= 0 || slow <= 0 || signal <= 0 || len(points) < slow {
		return nil
	}
	fastEMA := EMA(points, fast)
	slowEMA := EMA(points, slow)
	n := len(fastEMA)
	if len(slowEMA) < n {
		n = len(slowEMA)
	}
	if n == 0 {
		return nil
	}
	macdLine := make([]market.PricePoint, n)
	fOff := len(fastEMA) - n
	sOff := len(slowEMA) - n
	for i := 0; i < n; i++ {
		macdLine[i] = market.PricePoint{
			Timestamp: slowEMA[sOff+i].Timestamp,
			Price:     fastEMA[fOff+i].Value - slowEMA[sOff+i].Value,
		}
	}
	signalLine := EMA(macdLine, signal)
	if len(signalLine) == 0 {
		return nil
	}
	mOff := len(macdLine) - len(signalLine)
	out := make([]MACDPoint, len(signalLine))
	for i, s := range signalLine {
		m := macdLine[mOff+i]
		out[i] = MACDPoint{
			Timestamp: s.Timestamp,
			MACD:      m.Price,
			Signal:    s.Value,
			Histogram: m.Price - s.Value,
		}
	}
	return out
}

// BollingerBands 计算布林带：middle = SMA(period)，上下轨 = middle ± stdDev*σ，
// σ 为同一窗口上的总体标准差。
func BollingerBands(points []market.PricePoint, period int, stdDev float64) []BandPoint {
	if period <= 0 || len(points) < period {
		return nil
	}
	out := make([]BandPoint, 0, len(points)-period+1)
	for i := period - 1; i < len(points); i++ {
		window := points[i-period+1 : i+1]
		mean := 0.0
		for _, p := range window {
			mean += p.Price
		}
		mean /= float64(period)
		variance := 0.0
		for _, p := range window {
			d := p.Price - mean
			variance += d * d
		}
		sigma := math.Sqrt(variance / float64(period))
		out = append(out, BandPoint{
			Timestamp: points[i].Timestamp,
			Upper:     mean + stdDev*sigma,
			Middle:    mean,
			Lower:     mean - stdDev*sigma,
		})
	}
	return out
}

// Stochastic 计算随机指标。%K 取 kPeriod 根 K 线的滑动窗口，%D 为 %K 的
// SMA(dPeriod)，输出只包含 %D 可计算的区段。窗口内最高价等于最低价时
// %K 定为 50，不产生 NaN。
func Stochastic(candles []market.Candle, kPeriod, dPeriod int) []StochPoint {
	if kPeriod <= 0 || dPeriod <= 0 || len(candles) < kPeriod {
		return nil
	}
	kLine := make([]market.PricePoint, 0, len(candles)-kPeriod+1)
	for i := kPeriod - 1; i < len(candles); i++ {
		lowest := candles[i-kPeriod+1].Low
		highest := candles[i-kPeriod+1].High
		for j := i - kPeriod + 2; j <= i; j++ {
			if candles[j].Low < lowest {
				lowest = candles[j].Low
			}
			if candles[j].High > highest {
				highest = candles[j].High
			}
		}
		k := 50.0
		if highest > lowest {
			k = (candles[i].Close - lowest) / (highest - lowest) * 100
		}
		kLine = append(kLine, market.PricePoint{Timestamp: candles[i].CloseTime, Price: k})
	}
	dLine := SMA(kLine, dPeriod)
	if len(dLine) == 0 {
		return nil
	}
	kOff := len(kLine) - len(dLine)
	out := make([]StochPoint, len(dLine))
	for i, d := range dLine {
		out[i] = StochPoint{
			Timestamp: d.Timestamp,
			K:         kLine[kOff+i].Price,
			D:         d.Value,
		}
	}
	return out
}
