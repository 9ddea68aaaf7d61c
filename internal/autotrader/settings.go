package autotrader

import (
	"fmt"
	"strings"

	"tradeview/internal/predictor"
)

// StrategyMode 入场决策走默认预测信号还是自定义策略。
type StrategyMode string

const (
	ModeDefault StrategyMode = "default"
	ModeCustom  StrategyMode = "custom"
)

// Settings 自动交易配置。调用方整体替换，引擎内部只读。
type Settings struct {
	Enabled            bool                 `json:"enabled"`
	MaxTradeAmount     float64              `json:"max_trade_amount"`
	ProfitTarget       float64              `json:"profit_target"`
	StopLoss           float64              `json:"stop_loss"`
	MinConfidence      predictor.Confidence `json:"min_confidence"`
	StrategyMode       StrategyMode         `json:"strategy_mode"`
	SelectedStrategyID string               `json:"selected_strategy_id,omitempty"`
}

// DefaultSettings 初始配置：1.2% 止盈、0.5% 止损、单笔 1000 USD。
func DefaultSettings() Settings {
	return Settings{
		Enabled:        false,
		MaxTradeAmount: 1000,
		ProfitTarget:   0.012,
		StopLoss:       0.005,
		MinConfidence:  predictor.ConfidenceMedium,
		StrategyMode:   ModeDefault,
	}
}

// Normalize 校验并修正设置，非法字段退回默认值。
func (s Settings) Normalize() (Settings, error) {
	def := DefaultSettings()
	if s.MaxTradeAmount <= 0 {
		s.MaxTradeAmount = def.MaxTradeAmount
	}
	if s.ProfitTarget <= 0 || s.ProfitTarget >= 1 {
		s.ProfitTarget = def.ProfitTarget
	}
	if s.StopLoss <= 0 || s.StopLoss >= 1 {
		s.StopLoss = def.StopLoss
	}
	switch s.MinConfidence {
	case predictor.ConfidenceLow, predictor.ConfidenceMedium, predictor.ConfidenceHigh:
	case "":
		s.MinConfidence = def.MinConfidence
	default:
		return s, fmt.Errorf("invalid min_confidence: %q", s.MinConfidence)
	}
	switch StrategyMode(strings.ToLower(string(s.StrategyMode))) {
	case ModeDefault:
		s.StrategyMode = ModeDefault
	case ModeCustom:
		s.StrategyMode = ModeCustom
	case "":
		s.StrategyMode = def.StrategyMode
	default:
		return s, fmt.Errorf("invalid strategy_mode: %q", s.StrategyMode)
	}
	if s.StrategyMode == ModeCustom && strings.TrimSpace(s.SelectedStrategyID) == "" {
		return s, fmt.Errorf("custom mode requires selected_strategy_id")
	}
	return s, nil
}
