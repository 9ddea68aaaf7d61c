// Package app 负责应用级编排：加载配置→初始化依赖→启动 HTTP、行情订阅
// 与预测轮询。
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tradeview/internal/config"
	"tradeview/internal/logger"
	"tradeview/internal/market"
	"tradeview/internal/scheduler"
	tradehttp "tradeview/internal/transport/http"
)

// App 持有运行期组件，Run 启动全部服务并在 ctx 取消后收尾。
type App struct {
	cfg     *config.Config
	server  *tradehttp.Server
	updater *market.WSUpdater
	poller  *scheduler.Poller
	ticker  *tickDriver
	closers []func() error
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务、WS 订阅与预测轮询，阻塞直到出错或 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if err := a.updater.Start(ctx, a.cfg.Market.Symbol, a.cfg.Market.Interval); err != nil {
			return fmt.Errorf("ws updater error: %w", err)
		}
		<-ctx.Done()
		return nil
	})

	if a.poller != nil {
		group.Go(func() error {
			a.poller.Run(ctx, a.ticker.refreshPrediction)
			return nil
		})
	}

	return group.Wait()
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warnf("关闭组件失败: %v", err)
		}
	}
}

// Server 暴露 HTTP 服务实例（测试用）。
func (a *App) Server() *tradehttp.Server {
	if a == nil {
		return nil
	}
	return a.server
}
