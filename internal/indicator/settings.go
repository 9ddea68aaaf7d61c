package indicator

// Style 是透传给前端渲染的样式配置，引擎不解释其内容。
type Style map[string]any

type LineSetting struct {
	Enabled bool  `json:"enabled" mapstructure:"enabled"`
	Period  int   `json:"period" mapstructure:"period"`
	Style   Style `json:"style,omitempty" mapstructure:"style"`
}

type MACDSetting struct {
	Enabled bool  `json:"enabled" mapstructure:"enabled"`
	Fast    int   `json:"fast" mapstructure:"fast"`
	Slow    int   `json:"slow" mapstructure:"slow"`
	Signal  int   `json:"signal" mapstructure:"signal"`
	Style   Style `json:"style,omitempty" mapstructure:"style"`
}

type BollingerSetting struct {
	Enabled bool    `json:"enabled" mapstructure:"enabled"`
	Period  int     `json:"period" mapstructure:"period"`
	StdDev  float64 `json:"std_dev" mapstructure:"std_dev"`
	Style   Style   `json:"style,omitempty" mapstructure:"style"`
}

type StochasticSetting struct {
	Enabled bool  `json:"enabled" mapstructure:"enabled"`
	KPeriod int   `json:"k_period" mapstructure:"k_period"`
	DPeriod int   `json:"d_period" mapstructure:"d_period"`
	Style   Style `json:"style,omitempty" mapstructure:"style"`
}

// Settings 是调用方持有的指标配置；引擎只读不改。
type Settings struct {
	SMA        LineSetting       `json:"sma" mapstructure:"sma"`
	EMA        LineSetting       `json:"ema" mapstructure:"ema"`
	RSI        LineSetting       `json:"rsi" mapstructure:"rsi"`
	MACD       MACDSetting       `json:"macd" mapstructure:"macd"`
	Bollinger  BollingerSetting  `json:"bollinger" mapstructure:"bollinger"`
	Stochastic StochasticSetting `json:"stochastic" mapstructure:"stochastic"`
}

func DefaultSettings() Settings {
	return Settings{
		SMA:        LineSetting{Enabled: true, Period: 20},
		EMA:        LineSetting{Enabled: false, Period: 20},
		RSI:        LineSetting{Enabled: true, Period: 14},
		MACD:       MACDSetting{Enabled: false, Fast: 12, Slow: 26, Signal: 9},
		Bollinger:  BollingerSetting{Enabled: true, Period: 20, StdDev: 2},
		Stochastic: StochasticSetting{Enabled: false, KPeriod: 14, DPeriod: 3},
	}
}

// Patch 表达一次部分更新：nil 字段表示不变。只覆盖已知的嵌套结构，
// 不做通用反射式 deep-merge。
type Patch struct {
	SMA        *LinePatch       `json:"sma,omitempty"`
	EMA        *LinePatch       `json:"ema,omitempty"`
	RSI        *LinePatch       `json:"rsi,omitempty"`
	MACD       *MACDPatch       `json:"macd,omitempty"`
	Bollinger  *BollingerPatch  `json:"bollinger,omitempty"`
	Stochastic *StochasticPatch `json:"stochastic,omitempty"`
}

type LinePatch struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Period  *int   `json:"period,omitempty"`
	Style   *Style `json:"style,omitempty"`
}

type MACDPatch struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Fast    *int   `json:"fast,omitempty"`
	Slow    *int   `json:"slow,omitempty"`
	Signal  *int   `json:"signal,omitempty"`
	Style   *Style `json:"style,omitempty"`
}

type BollingerPatch struct {
	Enabled *bool    `json:"enabled,omitempty"`
	Period  *int     `json:"period,omitempty"`
	StdDev  *float64 `json:"std_dev,omitempty"`
	Style   *Style   `json:"style,omitempty"`
}

type StochasticPatch struct {
	Enabled *bool  `json:"enabled,omitempty"`
	KPeriod *int   `json:"k_period,omitempty"`
	DPeriod *int   `json:"d_period,omitempty"`
	Style   *Style `json:"style,omitempty"`
}

// Merge 返回 base 应用 patch 之后的新配置，base 本身不被修改。
func Merge(base Settings, patch Patch) Settings {
	out := base
	if patch.SMA != nil {
		out.SMA = mergeLine(out.SMA, *patch.SMA)
	}
	if patch.EMA != nil {
		out.EMA = mergeLine(out.EMA, *patch.EMA)
	}
	if patch.RSI != nil {
		out.RSI = mergeLine(out.RSI, *patch.RSI)
	}
	if patch.MACD != nil {
		p := *patch.MACD
		if p.Enabled != nil {
			out.MACD.Enabled = *p.Enabled
		}
		if p.Fast != nil {
			out.MACD.Fast = *p.Fast
		}
		if p.Slow != nil {
			out.MACD.Slow = *p.Slow
		}
		if p.Signal != nil {
			out.MACD.Signal = *p.Signal
		}
		if p.Style != nil {
			out.MACD.Style = *p.Style
		}
	}
	if patch.Bollinger != nil {
		p := *patch.Bollinger
		if p.Enabled != nil {
			out.Bollinger.Enabled = *p.Enabled
		}
		if p.Period != nil {
			out.Bollinger.Period = *p.Period
		}
		if p.StdDev != nil {
			out.Bollinger.StdDev = *p.StdDev
		}
		if p.Style != nil {
			out.Bollinger.Style = *p.Style
		}
	}
	if patch.Stochastic != nil {
		p := *patch.Stochastic
		if p.Enabled != nil {
			out.Stochastic.Enabled = *p.Enabled
		}
		if p.KPeriod != nil {
			out.Stochastic.KPeriod = *p.KPeriod
		}
		if p.DPeriod != nil {
			out.Stochastic.DPeriod = *p.DPeriod
		}
		if p.Style != nil {
			out.Stochastic.Style = *p.Style
		}
	}
	return out
}

func mergeLine(base LineSetting, p LinePatch) LineSetting {
	if p.Enabled != nil {
		base.Enabled = *p.Enabled
	}
	if p.Period != nil {
		base.Period = *p.Period
	}
	if p.Style != nil {
		base.Style = *p.Style
	}
	return base
}
