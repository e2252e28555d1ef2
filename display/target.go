// Package display owns the output side of the pipeline: a render target
// that composites the trail layers with additive neon blending and bloom,
// and the loop that drives one sample-and-draw tick per display refresh.
package display

import (
	"errors"

	"github.com/Acqua1/neon-chronos/trail"
)

// ErrDisplayClosed is returned by Composite when the user closed the window
// or requested exit. The render loop treats it as a shutdown signal, not a
// failure.
var ErrDisplayClosed = errors.New("display: window closed")

// Target is the render output contract.
//
// A frame is: BeginFrame, one UploadLayer per trail layer (oldest first so
// newer layers blend on top), then Composite. Implementations own native
// resources; Close releases them exactly once and is idempotent.
type Target interface {
	// BeginFrame clears the accumulation buffer for a new frame.
	BeginFrame()

	// UploadLayer blends one trail layer into the accumulation buffer.
	// Hidden layers and invalid segments are skipped.
	UploadLayer(layer *trail.Layer)

	// Composite applies bloom, presents the frame, and reports
	// ErrDisplayClosed when the user closed the window.
	Composite() error

	// Resize recomputes the world-to-pixel mapping and reallocates
	// size-dependent buffers.
	Resize(width, height int)

	// Close releases native resources. Idempotent.
	Close() error
}
