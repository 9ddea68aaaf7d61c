// Package predictor 封装外部预测服务。服务是黑盒：输入最近的 K 线，
// 输出买卖建议与置信度。任何失败（网络、解析、schema 违例）都折叠成
// WAIT/low 的保底结果，不把错误抛给交易循环。
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"tradeview/internal/logger"
	"tradeview/internal/market"
)

// Recommendation 预测服务给出的操作建议。
type Recommendation string

const (
	RecommendBuy  Recommendation = "BUY"
	RecommendSell Recommendation = "SELL"
	RecommendWait Recommendation = "WAIT"
)

// Confidence 置信度分级。
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

var confidenceRank = map[Confidence]int{
	ConfidenceLow:    0,
	ConfidenceMedium: 1,
	ConfidenceHigh:   2,
}

// Meets 判断置信度是否达到阈值：high 只接受 high，medium 接受
// medium 或 high，low 接受全部。
func (c Confidence) Meets(min Confidence) bool {
	cr, ok1 := confidenceRank[c]
	mr, ok2 := confidenceRank[min]
	if !ok1 || !ok2 {
		return false
	}
	return cr >= mr
}

// TechnicalSummary 预测服务附带的技术指标摘要，仅用于展示。
type TechnicalSummary struct {
	RSI        *float64 `json:"rsi"`
	MACD       *float64 `json:"macd"`
	BBPosition *float64 `json:"bb_position"`
	Volatility *float64 `json:"volatility"`
}

// Prediction 一次预测结果。Err 非空表示这是保底结果。
type Prediction struct {
	Prediction     int              `json:"prediction"`
	Probability    float64          `json:"probability"`
	Confidence     Confidence       `json:"confidence"`
	Recommendation Recommendation   `json:"recommendation"`
	CurrentPrice   float64          `json:"current_price,omitempty"`
	PriceChange24h float64          `json:"price_change_24h,omitempty"`
	Technical      TechnicalSummary `json:"technical_summary,omitempty"`
	DataPoints     int              `json:"data_points,omitempty"`
	Timestamp      int64            `json:"timestamp,omitempty"`
	Err            string           `json:"error,omitempty"`
}

// Fallback 统一的失败保底结果。
func Fallback(reason string) Prediction {
	return Prediction{
		Prediction:     0,
		Probability:    0.5,
		Confidence:     ConfidenceLow,
		Recommendation: RecommendWait,
		Err:            reason,
	}
}

// responseSchema 校验服务返回的最小结构。
var responseSchema = mustCompileResponseSchema()

func mustCompileResponseSchema() *jsonschema.Schema {
	const raw = `{
		"type": "object",
		"required": ["probability", "confidence", "recommendation"],
		"properties": {
			"probability": {"type": "number", "minimum": 0, "maximum": 1},
			"confidence": {"enum": ["low", "medium", "high"]},
			"recommendation": {"enum": ["BUY", "SELL", "WAIT"]}
		}
	}`
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("prediction.json", strings.NewReader(raw)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("prediction.json")
}

// Config 预测客户端配置。
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client 通过 HTTP 调用预测服务。
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// klineRow 按预测服务期望的列名编码单根 K 线。
type klineRow struct {
	OpenTime int64   `json:"Open time"`
	Open     float64 `json:"Open"`
	High     float64 `json:"High"`
	Low      float64 `json:"Low"`
	Close    float64 `json:"Close"`
	Volume   float64 `json:"Volume"`
}

// Predict 把最近的 K 线发给预测服务。永不返回 error：任何失败都
// 产出 WAIT/low 的保底结果，调用方只需要看 Recommendation。
func (c *Client) Predict(ctx context.Context, candles []market.Candle) Prediction {
	if c.baseURL == "" {
		return Fallback("predictor not configured")
	}
	if len(candles) == 0 {
		return Fallback("no candles")
	}

	rows := make([]klineRow, len(candles))
	for i, k := range candles {
		rows[i] = klineRow{
			OpenTime: k.OpenTime,
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		}
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return Fallback(fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Fallback(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		logger.Warnf("Prediction request failed: %v", err)
		return Fallback(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Fallback(fmt.Sprintf("read response: %v", err))
	}
	if resp.StatusCode != http.StatusOK {
		logger.Warnf("Prediction service returned %d", resp.StatusCode)
		return Fallback(fmt.Sprintf("status %d", resp.StatusCode))
	}
	return parsePrediction(raw)
}

// parsePrediction 解析并校验响应；不满足 schema 的一律打回保底。
func parsePrediction(raw []byte) Prediction {
	if !gjson.ValidBytes(raw) {
		return Fallback("invalid json")
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Fallback(fmt.Sprintf("decode: %v", err))
	}
	if err := responseSchema.Validate(generic); err != nil {
		logger.Warnf("Prediction schema violation: %v", err)
		return Fallback("schema violation")
	}

	doc := gjson.ParseBytes(raw)
	p := Prediction{
		Prediction:     int(doc.Get("prediction").Int()),
		Probability:    doc.Get("probability").Float(),
		Confidence:     Confidence(doc.Get("confidence").String()),
		Recommendation: Recommendation(doc.Get("recommendation").String()),
		CurrentPrice:   doc.Get("current_price").Float(),
		PriceChange24h: doc.Get("price_change_24h").Float(),
		DataPoints:     int(doc.Get("data_points").Int()),
		Timestamp:      doc.Get("timestamp").Int(),
		Err:            doc.Get("error").String(),
	}
	if v := doc.Get("technical_summary.rsi"); v.Exists() && v.Type == gjson.Number {
		f := v.Float()
		p.Technical.RSI = &f
	}
	if v := doc.Get("technical_summary.macd"); v.Exists() && v.Type == gjson.Number {
		f := v.Float()
		p.Technical.MACD = &f
	}
	if v := doc.Get("technical_summary.bb_position"); v.Exists() && v.Type == gjson.Number {
		f := v.Float()
		p.Technical.BBPosition = &f
	}
	if v := doc.Get("technical_summary.volatility"); v.Exists() && v.Type == gjson.Number {
		f := v.Float()
		p.Technical.Volatility = &f
	}
	return p
}
