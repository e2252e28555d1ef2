package trail

import (
	"image/color"

	"github.com/Acqua1/neon-chronos/pose"
)

// neonPalette is the fixed layer color cycle. Chosen for additive blending:
// saturated primaries and secondaries that stay distinct when stacked.
var neonPalette = []color.RGBA{
	{R: 0, G: 255, B: 255, A: 255},   // cyan
	{R: 255, G: 0, B: 255, A: 255},   // magenta
	{R: 64, G: 128, B: 255, A: 255},  // electric blue
	{R: 160, G: 64, B: 255, A: 255},  // violet
	{R: 64, G: 255, B: 160, A: 255},  // mint
}

// minOpacity is the floor for the oldest layer's opacity falloff.
const minOpacity = 0.15

// Layer is one time-offset skeleton copy.
//
// The renderer owns all mutation; the display reads a layer only between
// ticks (the render loop runs sample and draw on the same goroutine).
type Layer struct {
	// DelayMS is how far behind "now" this layer samples.
	DelayMS int64
	// Opacity is the index-derived falloff, newest layer brightest.
	Opacity float32
	// Color is the fixed palette entry for this layer.
	Color color.RGBA

	// Visible is false when the layer has nothing drawable this tick
	// (no sample, stale sample, empty landmark set, recovered panic).
	Visible bool

	// Positions is the flat segment endpoint buffer: for each connection,
	// two endpoints of three floats each (2*len(pose.Connections)*3 total).
	// Stale values may remain after an endpoint goes missing; SegValid is
	// what decides whether a segment is drawn.
	Positions []float32
	// SegValid marks, per connection, whether both endpoints were present
	// in this tick's sample.
	SegValid []bool

	// SampledTimestampMS is the timestamp of the frame this layer drew
	// from, 0 when hidden. Diagnostic only.
	SampledTimestampMS int64
}

func newLayer(index, total int, maxDelayMS int64) *Layer {
	var delay int64
	if total > 1 {
		delay = int64(index) * maxDelayMS / int64(total-1)
	}

	opacity := float32(1.0)
	if total > 1 {
		opacity = 1 - (1-minOpacity)*float32(index)/float32(total-1)
	}

	return &Layer{
		DelayMS:   delay,
		Opacity:   opacity,
		Color:     neonPalette[index%len(neonPalette)],
		Positions: make([]float32, 2*len(pose.Connections)*3),
		SegValid:  make([]bool, len(pose.Connections)),
	}
}

// write fills the layer's segment buffer from a sampled frame.
//
// Segments whose endpoints are both present get fresh world-space
// coordinates; segments with a missing endpoint keep whatever bytes were in
// the buffer but have their valid bit cleared, so they vanish for the tick
// instead of drawing a stale fragment.
func (l *Layer) write(frame pose.Frame) {
	for s, conn := range pose.Connections {
		a, okA := frame.Landmark(conn.A)
		b, okB := frame.Landmark(conn.B)
		if !okA || !okB {
			l.SegValid[s] = false
			continue
		}

		va := toWorld(a)
		vb := toWorld(b)

		base := s * 6
		l.Positions[base+0] = va.X()
		l.Positions[base+1] = va.Y()
		l.Positions[base+2] = va.Z()
		l.Positions[base+3] = vb.X()
		l.Positions[base+4] = vb.Y()
		l.Positions[base+5] = vb.Z()
		l.SegValid[s] = true
	}
}

// hide clears the layer for this tick without touching the position buffer.
func (l *Layer) hide() {
	l.Visible = false
	l.SampledTimestampMS = 0
}
