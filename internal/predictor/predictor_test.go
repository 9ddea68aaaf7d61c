package predictor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeview/internal/market"
)

func sampleCandles() []market.Candle {
	return []market.Candle{
		{OpenTime: 1000, Open: 100, High: 110, Low: 95, Close: 105, Volume: 10, CloseTime: 1999},
		{OpenTime: 2000, Open: 105, High: 112, Low: 101, Close: 108, Volume: 12, CloseTime: 2999},
	}
}

func TestPredictSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/predict", r.URL.Path)
		var rows []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
		require.Len(t, rows, 2)
		assert.Contains(t, rows[0], "Open time")
		assert.Contains(t, rows[0], "Close")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"prediction": 1,
			"probability": 0.82,
			"confidence": "high",
			"recommendation": "BUY",
			"current_price": 108,
			"technical_summary": {"rsi": 61.5, "macd": null},
			"data_points": 2,
			"timestamp": 2000
		}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	p := c.Predict(context.Background(), sampleCandles())

	assert.Equal(t, RecommendBuy, p.Recommendation)
	assert.Equal(t, ConfidenceHigh, p.Confidence)
	assert.InDelta(t, 0.82, p.Probability, 1e-12)
	assert.Empty(t, p.Err)
	require.NotNil(t, p.Technical.RSI)
	assert.InDelta(t, 61.5, *p.Technical.RSI, 1e-12)
	assert.Nil(t, p.Technical.MACD)
}

func TestPredictServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewClient(Config{BaseURL: srv.URL}).Predict(context.Background(), sampleCandles())
	assert.Equal(t, RecommendWait, p.Recommendation)
	assert.Equal(t, ConfidenceLow, p.Confidence)
	assert.InDelta(t, 0.5, p.Probability, 1e-12)
	assert.NotEmpty(t, p.Err)
}

func TestPredictSchemaViolationFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"probability": 2.5, "confidence": "huge", "recommendation": "HODL"}`))
	}))
	defer srv.Close()

	p := NewClient(Config{BaseURL: srv.URL}).Predict(context.Background(), sampleCandles())
	assert.Equal(t, RecommendWait, p.Recommendation)
	assert.Equal(t, "schema violation", p.Err)
}

func TestPredictInvalidJSONFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	p := NewClient(Config{BaseURL: srv.URL}).Predict(context.Background(), sampleCandles())
	assert.Equal(t, RecommendWait, p.Recommendation)
}

func TestPredictUnreachableFallsBack(t *testing.T) {
	p := NewClient(Config{BaseURL: "http://127.0.0.1:1"}).Predict(context.Background(), sampleCandles())
	assert.Equal(t, RecommendWait, p.Recommendation)
}

func TestPredictNoCandles(t *testing.T) {
	p := NewClient(Config{BaseURL: "http://example.invalid"}).Predict(context.Background(), nil)
	assert.Equal(t, RecommendWait, p.Recommendation)
	assert.Equal(t, "no candles", p.Err)
}

func TestConfidenceMeets(t *testing.T) {
	assert.True(t, ConfidenceHigh.Meets(ConfidenceHigh))
	assert.False(t, ConfidenceMedium.Meets(ConfidenceHigh))
	assert.True(t, ConfidenceMedium.Meets(ConfidenceMedium))
	assert.True(t, ConfidenceHigh.Meets(ConfidenceMedium))
	assert.False(t, ConfidenceLow.Meets(ConfidenceMedium))
	assert.True(t, ConfidenceLow.Meets(ConfidenceLow))
	assert.False(t, Confidence("huge").Meets(ConfidenceLow))
}
