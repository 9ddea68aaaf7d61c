package market

// Candle 表示单根 K 线。QuoteVolume/Trades 为透传字段，核心逻辑不依赖。
type Candle struct {
	OpenTime    int64   `json:"open_time"`
	CloseTime   int64   `json:"close_time"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	QuoteVolume float64 `json:"quote_volume,omitempty"`
	Trades      int64   `json:"trades,omitempty"`
}

// IsGreen 收盘高于开盘。
func (c Candle) IsGreen() bool { return c.Close > c.Open }

// IsRed 收盘低于开盘。
func (c Candle) IsRed() bool { return c.Close < c.Open }

// Valid 校验 OHLC 不变量：low ≤ min(open,close) ≤ max(open,close) ≤ high。
func (c Candle) Valid() bool {
	lo, hi := c.Open, c.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return c.Low <= lo && hi <= c.High && c.OpenTime < c.CloseTime
}

// PricePoint 是 (时间戳毫秒, 价格) 对，序列按时间升序且无重复时间戳。
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// Closes 提取收盘价序列。
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// ClosePoints 把 K 线折算成 (closeTime, close) 价格点序列。
func ClosePoints(candles []Candle) []PricePoint {
	out := make([]PricePoint, len(candles))
	for i, c := range candles {
		out[i] = PricePoint{Timestamp: c.CloseTime, Price: c.Close}
	}
	return out
}
