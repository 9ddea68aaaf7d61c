package app

import (
	"context"
	"sync"

	"tradeview/internal/autotrader"
	"tradeview/internal/indicator"
	"tradeview/internal/logger"
	"tradeview/internal/market"
	"tradeview/internal/predictor"
)

// tickDriver 把行情事件与预测轮询折算成自动交易 tick。
// 交易路径上的指标永远用引擎缺省参数计算，前端展示设置不影响下单判断。
type tickDriver struct {
	symbol   string
	interval string
	store    market.KlineStore
	trader   *autotrader.AutoTrader
	client   *predictor.Client
	settings indicator.Settings

	mu   sync.Mutex
	pred *predictor.Prediction
}

func (d *tickDriver) latestPrediction() *predictor.Prediction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pred
}

func (d *tickDriver) setPrediction(p predictor.Prediction) {
	d.mu.Lock()
	d.pred = &p
	d.mu.Unlock()
}

// onCandle 每个行情事件触发一次 tick。引擎内部单飞，处理中的事件直接丢弃。
func (d *tickDriver) onCandle(ev market.CandleEvent) {
	d.tick(ev.Candle.Close)
}

// refreshPrediction 轮询预测服务并在刷新后跟进一次 tick。
func (d *tickDriver) refreshPrediction(ctx context.Context) {
	candles, err := d.store.Get(ctx, d.symbol, d.interval)
	if err != nil || len(candles) == 0 {
		return
	}
	p := d.client.Predict(ctx, candles)
	d.setPrediction(p)
	if p.Err != "" {
		logger.Debugf("预测服务降级: %s", p.Err)
	}
	d.tick(candles[len(candles)-1].Close)
}

func (d *tickDriver) tick(price float64) {
	candles, err := d.store.Get(context.Background(), d.symbol, d.interval)
	if err != nil || len(candles) == 0 {
		return
	}
	in := autotrader.TickInput{
		Price:      price,
		Prediction: d.latestPrediction(),
		Candles:    candles,
	}
	bundle := indicator.ComputeAll(market.ClosePoints(candles), candles, d.settings)
	in.Bundle = &bundle
	d.trader.Tick(in)
}
