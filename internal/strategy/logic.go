package strategy

import (
	"fmt"
	"strings"
)

// LogicKind 是内置规则的封闭枚举。持久化形态仍是字符串标识符，
// 但求值按枚举分派而不是比对任意字符串。
type LogicKind string

const (
	// KindBBLowerRedTwoGreen 布林下轨触碰 + 一红两绿形态。
	KindBBLowerRedTwoGreen LogicKind = "bb_lower_red_two_green"
)

// builtinKinds 列出所有可被策略引用的内置规则。
var builtinKinds = map[LogicKind]struct{}{
	KindBBLowerRedTwoGreen: {},
}

// ParseLogicKind 校验并归一化字符串形式的规则标识符。
func ParseLogicKind(raw string) (LogicKind, error) {
	kind := LogicKind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := builtinKinds[kind]; !ok {
		return "", fmt.Errorf("unknown strategy logic: %q", raw)
	}
	return kind, nil
}

// KnownKinds 返回全部内置规则标识符（排序不保证）。
func KnownKinds() []LogicKind {
	out := make([]LogicKind, 0, len(builtinKinds))
	for k := range builtinKinds {
		out = append(out, k)
	}
	return out
}

// ProfitOverride 返回该规则自带的利润目标覆盖值；ok=false 表示沿用默认。
func (k LogicKind) ProfitOverride() (float64, bool) {
	switch k {
	case KindBBLowerRedTwoGreen:
		return 0.01, true
	default:
		return 0, false
	}
}
