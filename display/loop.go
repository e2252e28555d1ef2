package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Acqua1/neon-chronos/history"
	"github.com/Acqua1/neon-chronos/trail"
)

// DefaultRefreshHz is the default display refresh rate.
const DefaultRefreshHz = 60

// LoopStats tracks render loop throughput.
type LoopStats struct {
	// Frames is the number of composited frames.
	Frames uint64
	// CompositeErrors counts failed composites (excluding the shutdown
	// signal ErrDisplayClosed).
	CompositeErrors uint64
}

// Loop drives the render pipeline: once per refresh interval it snapshots
// the history, ticks the trail renderer, and composites the layers onto the
// target.
//
// # Contract
//
// Run blocks until the context is cancelled or the user closes the window.
// Teardown is ordered: ticking stops first, then the caller closes the
// renderer-independent resources and the target - a layer is never uploaded
// concurrently with target destruction because Run has returned by then.
type Loop struct {
	store    *history.Store
	renderer *trail.Renderer
	target   Target
	interval time.Duration

	frames          atomic.Uint64
	compositeErrors atomic.Uint64
}

// NewLoop creates the loop with fail-fast validation.
func NewLoop(store *history.Store, renderer *trail.Renderer, target Target, refreshHz float64) (*Loop, error) {
	if store == nil || renderer == nil || target == nil {
		return nil, fmt.Errorf("display: store, renderer and target are all required")
	}
	if refreshHz == 0 {
		refreshHz = DefaultRefreshHz
	}
	if refreshHz < 1 || refreshHz > 240 {
		return nil, fmt.Errorf("display: invalid refresh rate %.1f Hz (must be 1-240)", refreshHz)
	}

	return &Loop{
		store:    store,
		renderer: renderer,
		target:   target,
		interval: time.Duration(float64(time.Second) / refreshHz),
	}, nil
}

// Run executes the render loop until ctx is cancelled or the window closes.
//
// Returns nil on cancellation and on ErrDisplayClosed (both are normal
// shutdown); any other composite error is logged, counted and survived -
// a bad frame must not take the loop down.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("display: render loop starting", "interval", l.interval)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		// Cancellation check before each tick: once Run returns, no layer
		// upload can race resource teardown.
		select {
		case <-ctx.Done():
			slog.Info("display: render loop stopped",
				"frames", l.frames.Load(),
				"composite_errors", l.compositeErrors.Load(),
			)
			return nil
		case <-ticker.C:
		}

		if err := l.renderFrame(); err != nil {
			if errors.Is(err, ErrDisplayClosed) {
				slog.Info("display: window closed, render loop stopped",
					"frames", l.frames.Load(),
				)
				return nil
			}
			l.compositeErrors.Add(1)
			slog.Error("display: composite failed, continuing", "error", err)
		}
	}
}

func (l *Loop) renderFrame() error {
	nowMS := time.Now().UnixMilli()
	snapshot := l.store.Snapshot()

	l.renderer.Tick(nowMS, snapshot)

	l.target.BeginFrame()
	layers := l.renderer.Layers()
	// Oldest first, so the newest (brightest) layers blend on top.
	for i := len(layers) - 1; i >= 0; i-- {
		l.target.UploadLayer(layers[i])
	}

	err := l.target.Composite()
	if err == nil {
		l.frames.Add(1)
	}
	return err
}

// Stats returns loop counters (non-blocking snapshot).
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Frames:          l.frames.Load(),
		CompositeErrors: l.compositeErrors.Load(),
	}
}
