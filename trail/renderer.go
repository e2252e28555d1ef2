// Package trail implements the chronostasis trail renderer: N time-offset
// skeleton copies sampled from the landmark history, each layer looking a
// fixed delay into the past.
//
// # Philosophy: sample, never interpolate
//
// A layer either shows a real captured pose or nothing. When the history has
// no frame close enough to a layer's target moment the layer hides for the
// tick; it never blends between frames and never invents positions. The
// characteristic "freeze" of the effect comes from nearest-sample reuse when
// the subject holds still.
package trail

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Acqua1/neon-chronos/history"
	"github.com/Acqua1/neon-chronos/pose"
)

// Defaults for the trail shape.
const (
	DefaultLayers     = 15
	DefaultMaxDelayMS = 2500
)

// Config controls the trail shape.
type Config struct {
	// Layers is the number of skeleton copies (default 15).
	Layers int
	// MaxDelayMS is the oldest layer's delay; layer i uses
	// i/(Layers-1) of it. Zero selects the default (2500), so a literal
	// zero spread is not representable here; a single "now" copy is
	// Layers: 1.
	MaxDelayMS int64
	// StalenessMS overrides the hide threshold
	// (default history.StalenessThresholdMS).
	StalenessMS int64
}

// RendererStats tracks per-tick outcomes.
type RendererStats struct {
	// Ticks is the number of completed render ticks.
	Ticks uint64
	// HiddenStale counts layer-ticks hidden because the nearest sample was
	// too far from the target moment.
	HiddenStale uint64
	// HiddenEmpty counts layer-ticks hidden on empty history or an empty
	// landmark set.
	HiddenEmpty uint64
	// LayerPanics counts recovered per-layer panics.
	LayerPanics uint64
}

// Renderer owns the trail layers and fills them from a history snapshot once
// per tick. Not safe for concurrent use; the render loop is its only caller.
type Renderer struct {
	layers      []*Layer
	stalenessMS int64

	ticks       atomic.Uint64
	hiddenStale atomic.Uint64
	hiddenEmpty atomic.Uint64
	layerPanics atomic.Uint64
}

// NewRenderer creates the renderer with fail-fast validation.
func NewRenderer(cfg Config) (*Renderer, error) {
	if cfg.Layers == 0 {
		cfg.Layers = DefaultLayers
	}
	if cfg.Layers < 1 {
		return nil, fmt.Errorf("trail: invalid layer count %d (must be >= 1)", cfg.Layers)
	}
	if cfg.MaxDelayMS == 0 {
		cfg.MaxDelayMS = DefaultMaxDelayMS
	}
	if cfg.MaxDelayMS < 0 {
		return nil, fmt.Errorf("trail: invalid max delay %dms (must be >= 0)", cfg.MaxDelayMS)
	}
	if cfg.StalenessMS == 0 {
		cfg.StalenessMS = history.StalenessThresholdMS
	}
	if cfg.StalenessMS < 0 {
		return nil, fmt.Errorf("trail: invalid staleness threshold %dms", cfg.StalenessMS)
	}

	layers := make([]*Layer, cfg.Layers)
	for i := range layers {
		layers[i] = newLayer(i, cfg.Layers, cfg.MaxDelayMS)
	}

	slog.Info("trail: renderer created",
		"layers", cfg.Layers,
		"max_delay_ms", cfg.MaxDelayMS,
		"staleness_ms", cfg.StalenessMS,
	)

	return &Renderer{
		layers:      layers,
		stalenessMS: cfg.StalenessMS,
	}, nil
}

// Layers returns the layer slice for the display to read between ticks.
func (r *Renderer) Layers() []*Layer {
	return r.layers
}

// Tick updates every layer from the given history snapshot.
//
// For each layer: target = nowMS - delay; the nearest history frame to the
// target is sampled, and the layer hides when there is no sample, the sample
// is at or beyond the staleness threshold, or the frame has no landmarks.
// Otherwise the layer's segment buffer is rewritten.
//
// A panic in a single layer is recovered and degrades to "layer hidden this
// tick"; the remaining layers still update.
func (r *Renderer) Tick(nowMS int64, frames []pose.Frame) {
	for _, layer := range r.layers {
		r.tickLayer(nowMS, frames, layer)
	}
	r.ticks.Add(1)
}

func (r *Renderer) tickLayer(nowMS int64, frames []pose.Frame, layer *Layer) {
	defer func() {
		if rec := recover(); rec != nil {
			r.layerPanics.Add(1)
			layer.hide()
			slog.Error("trail: layer update panicked, layer hidden for this tick",
				"delay_ms", layer.DelayMS,
				"panic", rec,
			)
		}
	}()

	frame, diff, ok := history.FindNearest(frames, nowMS-layer.DelayMS)
	if !ok {
		r.hiddenEmpty.Add(1)
		layer.hide()
		return
	}
	if diff >= r.stalenessMS {
		r.hiddenStale.Add(1)
		layer.hide()
		return
	}
	if !frame.HasLandmarks() {
		r.hiddenEmpty.Add(1)
		layer.hide()
		return
	}

	layer.write(frame)
	layer.Visible = true
	layer.SampledTimestampMS = frame.TimestampMS
}

// Stats returns tick counters (non-blocking snapshot).
func (r *Renderer) Stats() RendererStats {
	return RendererStats{
		Ticks:       r.ticks.Load(),
		HiddenStale: r.hiddenStale.Load(),
		HiddenEmpty: r.hiddenEmpty.Load(),
		LayerPanics: r.layerPanics.Load(),
	}
}
