// Package chart owns the zoom/pan window math and the kline page renderer.
package chart

import "math"

const (
	MinZoom        = 1.0
	DefaultMaxZoom = 10.0

	zoomOutFactor = 0.9
	zoomInFactor  = 1.1
)

// ZoomPan 描述当前视窗：zoom=1 表示完全缩小（显示全部数据），
// pan∈[0,1]，0 靠最旧数据，1 靠最新数据。
type ZoomPan struct {
	Zoom float64 `json:"zoom"`
	Pan  float64 `json:"pan"`
}

// Range 是可见的索引区间 [Start, End)。
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Count int `json:"count"`
}

// VisibleRange 把 (总长度, zoom, pan) 映射为可见索引区间。
// 保证 0 ≤ start ≤ end ≤ total、end-start = count，且 zoom=1 时覆盖全序列。
// total=0 时按约定返回 {0,0,1}。
func VisibleRange(total int, zoom, pan float64) Range {
	if total <= 0 {
		return Range{Start: 0, End: 0, Count: 1}
	}
	if zoom < MinZoom {
		zoom = MinZoom
	}
	count := int(math.Floor(float64(total) / zoom))
	if count < 1 {
		count = 1
	}
	if count > total {
		count = total
	}
	maxOffset := total - count
	start := int(math.Round(pan * float64(maxOffset)))
	if start < 0 {
		start = 0
	}
	if start > maxOffset {
		start = maxOffset
	}
	return Range{Start: start, End: start + count, Count: count}
}

// WheelZoom 按滚轮步进缩放，并同步调整 pan 使光标下的数据点保持不动。
// cursorFrac 是光标在可见窗口内的横向比例 [0,1]。
func WheelZoom(zp ZoomPan, total int, scrollOut bool, cursorFrac, maxZoom float64) ZoomPan {
	if maxZoom < MinZoom {
		maxZoom = DefaultMaxZoom
	}
	factor := zoomInFactor
	if scrollOut {
		factor = zoomOutFactor
	}
	newZoom := clamp(zp.Zoom*factor, MinZoom, maxZoom)
	if total <= 0 {
		return ZoomPan{Zoom: newZoom, Pan: clamp(zp.Pan, 0, 1)}
	}
	cursorFrac = clamp(cursorFrac, 0, 1)

	// 连续空间的标准 zoom-to-cursor 推导：
	// anchor = start + f*count；newStart = anchor - f*newCount。
	count := float64(total) / math.Max(zp.Zoom, MinZoom)
	newCount := float64(total) / newZoom
	start := zp.Pan * (float64(total) - count)
	newStart := start + cursorFrac*(count-newCount)

	maxOffset := float64(total) - newCount
	pan := 0.0
	if maxOffset > 0 {
		pan = clamp(newStart/maxOffset, 0, 1)
	}
	return ZoomPan{Zoom: newZoom, Pan: pan}
}

// DragPan 处理拖拽平移：光标右移（deltaPx>0）露出更早的数据，即 pan 变小。
// 仅在 zoom>1 时生效，位移按 zoom/可见像素宽度折算。
func DragPan(zp ZoomPan, deltaPx, visibleWidthPx float64) ZoomPan {
	if zp.Zoom <= MinZoom || visibleWidthPx <= 0 {
		return zp
	}
	delta := deltaPx * zp.Zoom / visibleWidthPx
	return ZoomPan{Zoom: zp.Zoom, Pan: clamp(zp.Pan-delta, 0, 1)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
