package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibleRangeZoomedOutCoversAll(t *testing.T) {
	for _, pan := range []float64{0, 0.3, 0.5, 0.99, 1} {
		r := VisibleRange(500, 1, pan)
		assert.Equal(t, 0, r.Start)
		assert.Equal(t, 500, r.End)
		assert.Equal(t, 500, r.Count)
	}
}

func TestVisibleRangeInvariants(t *testing.T) {
	totals := []int{1, 2, 7, 100, 499}
	zooms := []float64{1, 1.5, 2, 3.7, 10}
	pans := []float64{0, 0.2, 0.5, 0.8, 1}
	for _, n := range totals {
		for _, z := range zooms {
			for _, p := range pans {
				r := VisibleRange(n, z, p)
				assert.GreaterOrEqual(t, r.Start, 0)
				assert.LessOrEqual(t, r.Start, r.End)
				assert.LessOrEqual(t, r.End, n)
				assert.Equal(t, r.Count, r.End-r.Start)
				assert.GreaterOrEqual(t, r.Count, 1)
			}
		}
	}
}

func TestVisibleRangePanMonotonic(t *testing.T) {
	prev := -1
	for pan := 0.0; pan <= 1.0; pan += 0.01 {
		r := VisibleRange(1000, 4, pan)
		require.GreaterOrEqual(t, r.Start, prev, "pan=%f", pan)
		prev = r.Start
	}
}

func TestVisibleRangeEmptySeries(t *testing.T) {
	r := VisibleRange(0, 3, 0.5)
	assert.Equal(t, Range{Start: 0, End: 0, Count: 1}, r)
}

func TestVisibleRangePanExtremes(t *testing.T) {
	r := VisibleRange(100, 4, 0)
	assert.Equal(t, 0, r.Start)
	r = VisibleRange(100, 4, 1)
	assert.Equal(t, 100, r.End)
}

func TestWheelZoomClamps(t *testing.T) {
	zp := ZoomPan{Zoom: 1, Pan: 0.5}
	out := WheelZoom(zp, 100, true, 0.5, 10)
	assert.Equal(t, 1.0, out.Zoom)

	zp = ZoomPan{Zoom: 10, Pan: 0.5}
	out = WheelZoom(zp, 100, false, 0.5, 10)
	assert.Equal(t, 10.0, out.Zoom)
	assert.GreaterOrEqual(t, out.Pan, 0.0)
	assert.LessOrEqual(t, out.Pan, 1.0)
}

func TestWheelZoomKeepsCursorAnchored(t *testing.T) {
	total := 1000
	zp := ZoomPan{Zoom: 2, Pan: 0.5}
	cursor := 0.25

	count := float64(total) / zp.Zoom
	start := zp.Pan * (float64(total) - count)
	anchor := start + cursor*count

	out := WheelZoom(zp, total, false, cursor, 10)
	newCount := float64(total) / out.Zoom
	newStart := out.Pan * (float64(total) - newCount)
	newAnchor := newStart + cursor*newCount

	assert.InDelta(t, anchor, newAnchor, 1e-9)
}

func TestDragPanOnlyWhenZoomed(t *testing.T) {
	zp := ZoomPan{Zoom: 1, Pan: 0.5}
	assert.Equal(t, zp, DragPan(zp, 100, 800))
}

func TestDragPanRightRevealsOlderData(t *testing.T) {
	zp := ZoomPan{Zoom: 4, Pan: 0.5}
	out := DragPan(zp, 40, 800)
	assert.Less(t, out.Pan, zp.Pan)

	out = DragPan(zp, -40, 800)
	assert.Greater(t, out.Pan, zp.Pan)

	// clamp 到 [0,1]
	out = DragPan(ZoomPan{Zoom: 10, Pan: 0.01}, 10000, 800)
	assert.Equal(t, 0.0, out.Pan)
}
