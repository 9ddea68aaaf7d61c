package binance

import (
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeview/internal/market"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	final := cfg.withDefaults()
	assert.Equal(t, "https://api.binance.com", final.RESTBaseURL)
	assert.Equal(t, 15*time.Second, final.HTTPTimeout)
}

func TestDropUnclosed(t *testing.T) {
	now := time.UnixMilli(180000)
	candles := []market.Candle{
		{OpenTime: 0, CloseTime: 59999},
		{OpenTime: 60000, CloseTime: 119999},
		{OpenTime: 120000, CloseTime: 179999},
	}

	// 最后一根恰好收盘，保留
	out := dropUnclosed(candles, time.Minute, now)
	assert.Len(t, out, 3)

	// 当前这根还在走，丢弃
	open := append(candles, market.Candle{OpenTime: 180000, CloseTime: 239999})
	out = dropUnclosed(open, time.Minute, now.Add(30*time.Second))
	require.Len(t, out, 3)
	assert.Equal(t, int64(120000), out[len(out)-1].OpenTime)

	assert.Empty(t, dropUnclosed(nil, time.Minute, now))
}

func TestConvertKlineEvent(t *testing.T) {
	ev := &binance.WsKlineEvent{
		Symbol: "btcusdt",
		Kline: binance.WsKline{
			StartTime: 1000,
			EndTime:   59999,
			Interval:  "1M",
			Open:      "100.5",
			High:      "101",
			Low:       "99.5",
			Close:     "100.8",
			Volume:    "12.5",
			IsFinal:   true,
			TradeNum:  42,
		},
	}
	ce, ok := convertKlineEvent(ev)
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", ce.Symbol)
	assert.Equal(t, "1m", ce.Interval)
	assert.True(t, ce.Final)
	assert.Equal(t, 100.5, ce.Candle.Open)
	assert.Equal(t, int64(42), ce.Candle.Trades)

	_, ok = convertKlineEvent(nil)
	assert.False(t, ok)
}

func TestNextDelayBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextDelay(0))
	assert.Equal(t, 2*time.Second, nextDelay(time.Second))
	assert.Equal(t, 30*time.Second, nextDelay(16*time.Second))
	assert.Equal(t, 30*time.Second, nextDelay(30*time.Second))
}
