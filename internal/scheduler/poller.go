package scheduler

import (
	"context"
	"time"

	"tradeview/internal/logger"
)

// Poller 固定周期执行任务，用于预测轮询这类"错过一次没关系"的工作。
// 任务执行不重入：上一次还没结束时到点的那次直接跳过。
type Poller struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool
	// AlignFirst 先等到下一个 interval 边界再进入周期循环。
	AlignFirst bool

	nowFn func() time.Time
}

func NewPoller(name string, interval time.Duration) *Poller {
	return &Poller{
		Name:     name,
		Interval: interval,
		nowFn:    time.Now,
	}
}

// Run 阻塞运行直到 ctx 取消。task 接收同一个 ctx，自行决定超时。
func (p *Poller) Run(ctx context.Context, task func(ctx context.Context)) {
	if p == nil || task == nil {
		return
	}
	if p.Interval <= 0 {
		logger.Warnf("Poller[%s]: invalid interval=%s, exit", p.Name, p.Interval)
		return
	}
	logger.Infof("Poller[%s]: started interval=%s", p.Name, p.Interval)

	if p.RunImmediately {
		p.runOnce(ctx, task)
	}
	if p.AlignFirst {
		wait := time.Until(AlignNext(p.nowFn(), p.Interval))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			p.runOnce(ctx, task)
		}
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("Poller[%s]: ctx done, exit", p.Name)
			return
		case <-ticker.C:
			p.runOnce(ctx, task)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context, task func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Poller[%s]: task panic: %v", p.Name, r)
		}
	}()
	task(ctx)
}
