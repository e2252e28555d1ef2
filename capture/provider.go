package capture

import (
	"context"
	"time"
)

// StreamProvider defines the contract for camera frame acquisition
//
// Implementations must guarantee:
//   - Start() returns immediately (non-blocking)
//   - Start() returns a channel that never closes until Stop()
//   - Stop() is idempotent (safe to call multiple times)
//   - Stats() is thread-safe (can be called from any goroutine)
//   - Warmup() measures FPS stability (optional but recommended)
type StreamProvider interface {
	// Start opens the camera and returns a read-only channel of frames.
	//
	// This method returns immediately. Frames will start arriving
	// asynchronously once the GStreamer pipeline reaches PLAYING state.
	//
	// The returned channel remains open until Stop() is called. Frames are
	// sent using a non-blocking pattern - if the channel buffer is full,
	// frames are dropped rather than queued to maintain low latency.
	Start(ctx context.Context) (<-chan Frame, error)

	// Stop gracefully shuts down capture.
	//
	// Cancels the internal context, waits up to 3 seconds for goroutines,
	// destroys the GStreamer pipeline and closes the frame channel.
	// Idempotent.
	Stop() error

	// Stats returns current capture statistics. Thread-safe.
	Stats() StreamStats

	// Warmup measures camera FPS stability over a duration.
	//
	// Call after Start() to verify the camera delivers a stable frame rate
	// before wiring frames into the rest of the pipeline. Blocks for the
	// entire duration while collecting statistics.
	//
	// Returns an error if the stream is not running, fewer than 2 frames
	// arrive, or the measured FPS is unstable.
	Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error)
}
