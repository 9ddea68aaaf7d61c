package chart

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"tradeview/internal/indicator"
	"tradeview/internal/market"
	"tradeview/internal/series"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorSMA           = "#3b82f6"
	colorEMA           = "#fbbf24"
	colorBBand         = "#a78bfa"
	colorRSI           = "#f472b6"
	colorDIF           = "#22d3ee"
	colorDEA           = "#fb7185"
	colorStochK        = "#60a5fa"
	colorStochD        = "#f59e0b"

	chartWidthPx  = 1400
	klineHeightPx = 560
	subHeightPx   = 240
)

// PageInput 是渲染一个图表页面所需的全部数据：可见窗口内的 K 线与
// 在同一窗口上计算好的指标集。
type PageInput struct {
	Symbol   string
	Interval string
	Candles  []market.Candle
	Bundle   indicator.Bundle
	Window   Range
	// Total 完整序列长度，仅用于标题里的窗口位置提示。
	Total int
}

// RenderPage 把可见窗口渲染成 go-echarts HTML 页面。
func RenderPage(w io.Writer, input PageInput) error {
	if input.Symbol == "" {
		return fmt.Errorf("symbol required for chart render")
	}
	if len(input.Candles) == 0 {
		return fmt.Errorf("no candles in visible window for %s", input.Symbol)
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	xAxis := buildXAxis(input.Candles)
	page.AddCharts(buildKlineChart(input, xAxis))

	if len(input.Bundle.RSI) > 0 {
		page.AddCharts(buildRSIChart(input, xAxis))
	}
	if len(input.Bundle.MACD) > 0 {
		page.AddCharts(buildMACDChart(input, xAxis))
	}
	if len(input.Bundle.Stochastic) > 0 {
		page.AddCharts(buildStochChart(input, xAxis))
	}
	return page.Render(w)
}

func buildKlineChart(input PageInput, xAxis []string) *charts.Kline {
	candles := input.Candles
	minPrice, maxPrice := priceBounds(candles)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(maxPrice)*0.01)
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", klineHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTitleOpts(opts.Title{
			Title:      fmt.Sprintf("%s %s", strings.ToUpper(input.Symbol), input.Interval),
			Subtitle:   fmt.Sprintf("window %d..%d of %d", input.Window.Start, input.Window.End, input.Total),
			Left:       "left",
			Top:        "10",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			Min:       round(minPrice-padding, 4),
			Max:       round(maxPrice+padding, 4),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)

	data := make([]opts.KlineData, 0, len(candles))
	for _, c := range candles {
		data = append(data, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", data)

	overlay := charts.NewLine()
	overlay.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	overlay.SetXAxis(xAxis)
	hasOverlay := false
	if len(input.Bundle.SMA) > 0 {
		overlay.AddSeries("SMA", pointLine(input.Bundle.SMA, len(candles)),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorSMA, Width: 2}))
		hasOverlay = true
	}
	if len(input.Bundle.EMA) > 0 {
		overlay.AddSeries("EMA", pointLine(input.Bundle.EMA, len(candles)),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorEMA, Width: 2}))
		hasOverlay = true
	}
	if len(input.Bundle.Bollinger) > 0 {
		upper := make([]float64, len(input.Bundle.Bollinger))
		middle := make([]float64, len(input.Bundle.Bollinger))
		lower := make([]float64, len(input.Bundle.Bollinger))
		for i, b := range input.Bundle.Bollinger {
			upper[i], middle[i], lower[i] = b.Upper, b.Middle, b.Lower
		}
		overlay.AddSeries("BB Upper", floatLine(upper, len(candles)),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorBBand, Width: 1}))
		overlay.AddSeries("BB Mid", floatLine(middle, len(candles)),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorBBand, Width: 1, Type: "dashed"}))
		overlay.AddSeries("BB Lower", floatLine(lower, len(candles)),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorBBand, Width: 1}))
		hasOverlay = true
	}
	if hasOverlay {
		kline.Overlap(overlay)
	}
	return kline
}

func buildRSIChart(input PageInput, xAxis []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		subChartOptions("RSI"),
		charts.WithYAxisOpts(opts.YAxis{
			Min:       0,
			Max:       100,
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
	)
	line.SetXAxis(xAxis)
	values := make([]float64, len(input.Bundle.RSI))
	for i, p := range input.Bundle.RSI {
		values[i] = p.Value
	}
	line.AddSeries("RSI", floatLine(values, len(input.Candles)),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorRSI, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

func buildMACDChart(input PageInput, xAxis []string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(subChartOptions("MACD"))

	n := len(input.Candles)
	histData := make([]opts.BarData, n)
	offset := n - len(input.Bundle.MACD)
	if offset < 0 {
		offset = 0
	}
	for i := 0; i < offset; i++ {
		histData[i] = opts.BarData{Value: nil}
	}
	for i, p := range input.Bundle.MACD {
		if offset+i >= n {
			break
		}
		color := colorBear
		if p.Histogram >= 0 {
			color = colorBull
		}
		histData[offset+i] = opts.BarData{
			Value:     round(p.Histogram, 6),
			ItemStyle: &opts.ItemStyle{Color: color},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Histogram", histData)

	dif := make([]float64, len(input.Bundle.MACD))
	dea := make([]float64, len(input.Bundle.MACD))
	for i, p := range input.Bundle.MACD {
		dif[i], dea[i] = p.MACD, p.Signal
	}
	line := charts.NewLine()
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.SetXAxis(xAxis)
	line.AddSeries("DIF", floatLine(dif, n), charts.WithLineStyleOpts(opts.LineStyle{Color: colorDIF, Width: 2}))
	line.AddSeries("DEA", floatLine(dea, n), charts.WithLineStyleOpts(opts.LineStyle{Color: colorDEA, Width: 2}))
	bar.Overlap(line)
	return bar
}

func buildStochChart(input PageInput, xAxis []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		subChartOptions("Stochastic"),
		charts.WithYAxisOpts(opts.YAxis{
			Min:       0,
			Max:       100,
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
	)
	kv := make([]float64, len(input.Bundle.Stochastic))
	dv := make([]float64, len(input.Bundle.Stochastic))
	for i, p := range input.Bundle.Stochastic {
		kv[i], dv[i] = p.K, p.D
	}
	n := len(input.Candles)
	line.SetXAxis(xAxis)
	line.AddSeries("%K", floatLine(kv, n),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorStochK, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.AddSeries("%D", floatLine(dv, n),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorStochD, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

func subChartOptions(title string) charts.GlobalOpts {
	return func(bc *charts.BaseConfiguration) {
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", subHeightPx),
			BackgroundColor: colorBackground,
		})(bc)
		charts.WithTitleOpts(opts.Title{Title: title, Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}})(bc)
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextSecondary}})(bc)
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"})(bc)
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}})(bc)
	}
}

func buildXAxis(candles []market.Candle) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = time.UnixMilli(c.CloseTime).UTC().Format("01-02 15:04")
	}
	return x
}

func pointLine(points []series.Point, length int) []opts.LineData {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return floatLine(values, length)
}

// floatLine 把较短的指标序列尾对齐到 K 线长度，前导补 nil。
func floatLine(series []float64, length int) []opts.LineData {
	line := make([]opts.LineData, length)
	offset := length - len(series)
	if offset < 0 {
		offset = 0
	}
	for i := 0; i < offset; i++ {
		line[i] = opts.LineData{Value: nil}
	}
	for i := 0; i < len(series) && offset+i < length; i++ {
		v := series[i]
		if math.IsNaN(v) {
			line[offset+i] = opts.LineData{Value: nil}
			continue
		}
		line[offset+i] = opts.LineData{Value: round(v, 6)}
	}
	return line
}

func priceBounds(candles []market.Candle) (lo, hi float64) {
	lo, hi = candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		if c.Low < lo {
			lo = c.Low
		}
		if c.High > hi {
			hi = c.High
		}
	}
	return lo, hi
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
