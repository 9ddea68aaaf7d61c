package config

import (
	"fmt"
	"strings"

	"tradeview/internal/pkg/symbol"
	"tradeview/internal/scheduler"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.AutoTrade.validate(); err != nil {
		return err
	}
	if err := c.Chart.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if !symbol.IsValid(m.Symbol) {
		return fmt.Errorf("market.symbol invalid: %q", m.Symbol)
	}
	if _, ok := scheduler.ParseIntervalDuration(m.Interval); !ok {
		return fmt.Errorf("market.interval invalid: %q", m.Interval)
	}
	return nil
}

func (a *AutoTradeConfig) validate() error {
	if a.ProfitTarget >= 1 {
		return fmt.Errorf("autotrade.profit_target must be a fraction < 1")
	}
	if a.StopLoss >= 1 {
		return fmt.Errorf("autotrade.stop_loss must be a fraction < 1")
	}
	switch strings.ToLower(strings.TrimSpace(a.MinConfidence)) {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("autotrade.min_confidence must be low/medium/high, got %q", a.MinConfidence)
	}
	switch strings.ToLower(strings.TrimSpace(a.StrategyMode)) {
	case "default":
	case "custom":
		if strings.TrimSpace(a.SelectedStrategyID) == "" {
			return fmt.Errorf("autotrade.strategy_mode=custom requires selected_strategy_id")
		}
	default:
		return fmt.Errorf("autotrade.strategy_mode must be default or custom, got %q", a.StrategyMode)
	}
	return nil
}

func (c *ChartConfig) validate() error {
	if c.MaxZoom < 1 {
		return fmt.Errorf("chart.max_zoom must be >= 1")
	}
	return nil
}
