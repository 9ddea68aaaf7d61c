package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeview/internal/market"
)

func makePrices(n int) []market.PricePoint {
	out := make([]market.PricePoint, n)
	for i := range out {
		out[i] = market.PricePoint{Timestamp: int64(i+1) * 1000, Price: 100 + float64(i%7)}
	}
	return out
}

func makeCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		base := 100 + float64(i%7)
		out[i] = market.Candle{
			OpenTime:  int64(i) * 60000,
			CloseTime: int64(i+1)*60000 - 1,
			Open:      base,
			High:      base + 2,
			Low:       base - 2,
			Close:     base + 1,
		}
	}
	return out
}

func TestComputeAllOmitsDisabled(t *testing.T) {
	s := DefaultSettings()
	s.SMA.Enabled = false
	s.RSI.Enabled = false
	s.Bollinger.Enabled = false
	s.MACD.Enabled = true
	b := ComputeAll(makePrices(80), makeCandles(80), s)
	assert.Nil(t, b.SMA)
	assert.Nil(t, b.RSI)
	assert.Nil(t, b.Bollinger)
	assert.NotEmpty(t, b.MACD)
}

func TestComputeAllStochasticNeedsCandles(t *testing.T) {
	s := DefaultSettings()
	s.Stochastic.Enabled = true
	b := ComputeAll(makePrices(80), nil, s)
	assert.Nil(t, b.Stochastic)

	b = ComputeAll(makePrices(80), makeCandles(80), s)
	assert.NotEmpty(t, b.Stochastic)
}

func TestComputeAllInsufficientDataYieldsAbsent(t *testing.T) {
	s := DefaultSettings()
	s.MACD.Enabled = true
	b := ComputeAll(makePrices(5), makeCandles(5), s)
	assert.Nil(t, b.SMA)
	assert.Nil(t, b.RSI)
	assert.Nil(t, b.MACD)
	assert.Nil(t, b.Bollinger)
}

func TestMergeOverridesOnlyGivenFields(t *testing.T) {
	base := DefaultSettings()
	enabled := true
	period := 50
	out := Merge(base, Patch{EMA: &LinePatch{Enabled: &enabled, Period: &period}})

	assert.True(t, out.EMA.Enabled)
	assert.Equal(t, 50, out.EMA.Period)
	// 其余字段原样保留
	assert.Equal(t, base.SMA, out.SMA)
	assert.Equal(t, base.MACD, out.MACD)
	assert.Equal(t, base.Bollinger, out.Bollinger)
	// base 未被修改
	assert.False(t, base.EMA.Enabled)
	assert.Equal(t, 20, base.EMA.Period)
}

func TestMergeNestedNumericFields(t *testing.T) {
	base := DefaultSettings()
	std := 2.5
	fast := 8
	out := Merge(base, Patch{
		Bollinger: &BollingerPatch{StdDev: &std},
		MACD:      &MACDPatch{Fast: &fast},
	})
	assert.Equal(t, 2.5, out.Bollinger.StdDev)
	assert.Equal(t, 20, out.Bollinger.Period)
	assert.Equal(t, 8, out.MACD.Fast)
	assert.Equal(t, 26, out.MACD.Slow)
}

func TestMergeStyleReplacedWholesale(t *testing.T) {
	base := DefaultSettings()
	base.RSI.Style = Style{"color": "red", "width": 1}
	st := Style{"color": "blue"}
	out := Merge(base, Patch{RSI: &LinePatch{Style: &st}})
	require.Equal(t, Style{"color": "blue"}, out.RSI.Style)
}
