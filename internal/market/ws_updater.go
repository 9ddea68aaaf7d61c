package market

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tradeview/internal/logger"
)

// WSUpdater 消费实时 K 线事件并写入 KlineStore，同时把事件透传给 OnEvent
// （价格 tick 驱动方）。
type WSUpdater struct {
	Store  KlineStore
	Max    int
	Source Source

	OnConnected    func()
	OnDisconnected func(error)
	OnEvent        func(CandleEvent)

	startOnce sync.Once
}

func NewWSUpdater(s KlineStore, max int, src Source) *WSUpdater {
	return &WSUpdater{Store: s, Max: max, Source: src}
}

func (u *WSUpdater) Start(ctx context.Context, symbol, interval string) error {
	if u.Source == nil {
		return fmt.Errorf("ws updater missing source")
	}
	if symbol == "" || interval == "" {
		return fmt.Errorf("ws updater requires symbol & interval")
	}
	opts := SubscribeOptions{
		OnConnect:    u.OnConnected,
		OnDisconnect: u.OnDisconnected,
	}
	events, err := u.Source.Subscribe(ctx, symbol, interval, opts)
	if err != nil {
		return err
	}
	u.startOnce.Do(func() {
		go u.consume(ctx, events)
	})
	logger.Infof("[WS] 订阅已启动 symbol=%s interval=%s", symbol, interval)
	return nil
}

func (u *WSUpdater) consume(ctx context.Context, events <-chan CandleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			sym := strings.ToUpper(evt.Symbol)
			if err := u.Store.Put(ctx, sym, evt.Interval, []Candle{evt.Candle}, u.Max); err != nil {
				logger.Warnf("[WS] 写入 %s %s 失败: %v", evt.Symbol, evt.Interval, err)
			}
			if u.OnEvent != nil {
				u.OnEvent(evt)
			}
		}
	}
}

func (u *WSUpdater) Stats() SourceStats {
	if u.Source == nil {
		return SourceStats{}
	}
	return u.Source.Stats()
}
