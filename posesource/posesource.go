// Package posesource defines the pose-estimation capability contract and its
// MediaPipe worker implementation.
//
// The detector is a black box: camera frames in, landmark sets out. The host
// wires a concrete Source up explicitly at startup; there is no runtime
// probing of alternative backends. A missing capability is a typed,
// fail-fast construction error (ErrUnavailable), not a silent empty screen.
package posesource

import (
	"context"
	"errors"
	"time"

	"github.com/Acqua1/neon-chronos/pose"
)

// ErrUnavailable indicates the pose-estimation capability cannot be
// provided (worker script missing, not executable, interpreter absent).
// Fatal to the feature: hosts surface it once as state instead of rendering
// nothing.
var ErrUnavailable = errors.New("posesource: pose estimation capability unavailable")

// InputFrame is a camera frame handed to the detector. Minimal on purpose:
// the capture layer owns the full frame type, this is the slice the detector
// needs.
type InputFrame struct {
	// Data is the encoded image (JPEG).
	Data   []byte
	Width  int
	Height int
	// Seq and TraceID flow through to the resulting pose.Frame.
	Seq     uint64
	TraceID string
	// Timestamp is when the camera frame was captured.
	Timestamp time.Time
}

// Source is the pose-estimation capability contract.
//
// Implementations must guarantee:
//   - Start() returns quickly; detections arrive asynchronously on Frames()
//   - SendFrame() never blocks (drop policy when the detector is behind)
//   - result timestamps are assigned at receipt time, not by the detector
//   - Stop() is idempotent and releases the detector's native resources
type Source interface {
	// Start launches the detector. Must be called before SendFrame.
	Start(ctx context.Context) error

	// SendFrame submits a camera frame for detection (non-blocking).
	// Returns an error when the frame was dropped; dropping is expected
	// when detection is slower than capture and is not fatal.
	SendFrame(frame InputFrame) error

	// Frames returns the channel of detection results. Each result carries
	// a wall-clock timestamp assigned at receipt. The channel closes when
	// the source stops.
	Frames() <-chan pose.Frame

	// Stop shuts the detector down. Idempotent.
	Stop() error

	// Stats returns operational counters (non-blocking snapshot).
	Stats() SourceStats
}

// SourceStats tracks detector health.
type SourceStats struct {
	// FramesSent is the number of frames handed to the detector.
	FramesSent uint64
	// FramesDropped counts frames dropped because the detector was behind.
	// Expected and healthy when detection FPS < capture FPS.
	FramesDropped uint64
	// Detections is the number of landmark results received.
	Detections uint64
	// EmptyDetections counts results with no body in frame.
	EmptyDetections uint64
	// AvgLatencyMS is the mean detector-reported inference latency.
	AvgLatencyMS float64
	// LastResultAt is the receipt time of the most recent result.
	LastResultAt time.Time
}
