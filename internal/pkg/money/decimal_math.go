// Package money wraps shopspring/decimal for price-level arithmetic where
// float comparison fuzz would make trigger checks unreliable.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

var decimalZero = decimal.Zero

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimalZero
	}
	return decimal.NewFromFloat(val)
}

func Compare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func GTE(a, b float64) bool { return Compare(a, b) >= 0 }
func LTE(a, b float64) bool { return Compare(a, b) <= 0 }

// RelativeLevel 计算 entry*(1+pct) 的精确值；pct 可为负（止损）。
// entry<=0 时返回 0。
func RelativeLevel(entry, pct float64) float64 {
	if entry <= 0 {
		return 0
	}
	base := decFromFloat(entry)
	factor := decimal.NewFromInt(1).Add(decFromFloat(pct))
	out, _ := base.Mul(factor).Float64()
	return out
}

// Round8 把金额收敛到 8 位小数，避免长链路浮点漂移进入持久化层。
func Round8(v float64) float64 {
	out, _ := decFromFloat(v).Round(8).Float64()
	return out
}
