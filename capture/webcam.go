package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/Acqua1/neon-chronos/capture/internal/v4l2"
)

var _ StreamProvider = (*WebcamStream)(nil)

// WebcamStream implements StreamProvider using GStreamer for V4L2 webcam capture
type WebcamStream struct {
	// Configuration
	device    string
	width     int
	height    int
	targetFPS float64

	// GStreamer pipeline elements
	elements *v4l2.PipelineElements

	// Frame output
	frames chan Frame
	mu     sync.RWMutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Statistics (atomic for thread-safety)
	frameCount    uint64
	framesDropped uint64
	bytesRead     uint64
	started       time.Time
	lastFrameAt   atomic.Int64 // unix nanos of the newest forwarded frame

	// Pipeline-internal frame channel. The appsink callback is its only
	// sender, so only Stop may close it, and only after the pipeline is
	// destroyed.
	internalFrames chan v4l2.Frame

	// Error telemetry (atomic for thread-safety)
	errorsPermission uint64
	errorsDevice     uint64
	errorsFormat     uint64
	errorsUnknown    uint64

	// Reopen state
	reopenState *v4l2.ReopenState
	reopenCfg   v4l2.ReopenConfig

	// Shutdown protection (atomic flag to prevent double-close panic)
	framesClosed atomic.Bool
}

// NewWebcamStream creates a new webcam stream with fail-fast validation
//
// Validates configuration at construction time:
//   - Device path must not be empty
//   - Target FPS must be between 1.0 and 60.0
//   - Resolution must be valid (480p, 720p, 1080p)
//
// Returns an error if validation fails or GStreamer is not available.
func NewWebcamStream(cfg WebcamConfig) (*WebcamStream, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("capture: camera device is required")
	}

	if cfg.TargetFPS < 1 || cfg.TargetFPS > 60 {
		return nil, fmt.Errorf(
			"capture: invalid FPS %.2f (must be 1-60)",
			cfg.TargetFPS,
		)
	}

	width, height := cfg.Resolution.Dimensions()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("capture: invalid resolution %v", cfg.Resolution)
	}

	if err := checkGStreamerAvailable(); err != nil {
		return nil, fmt.Errorf("capture: GStreamer not available: %w", err)
	}

	reopenCfg := v4l2.DefaultReopenConfig()
	if cfg.MaxReopenAttempts > 0 {
		reopenCfg.MaxRetries = cfg.MaxReopenAttempts
	}
	if cfg.ReopenInitialDelay > 0 {
		reopenCfg.RetryDelay = cfg.ReopenInitialDelay
	}
	if cfg.ReopenMaxDelay > 0 {
		reopenCfg.MaxRetryDelay = cfg.ReopenMaxDelay
	}

	s := &WebcamStream{
		device:    cfg.Device,
		width:     width,
		height:    height,
		targetFPS: cfg.TargetFPS,
		frames:    make(chan Frame, 10),
		reopenCfg: reopenCfg,
		reopenState: &v4l2.ReopenState{
			Reopens: new(uint32),
		},
	}

	slog.Info("capture: webcam stream created",
		"device", cfg.Device,
		"resolution", fmt.Sprintf("%dx%d", width, height),
		"target_fps", cfg.TargetFPS,
	)

	return s, nil
}

// Start opens the camera and returns a read-only channel of frames
//
// This method:
//  1. Creates the GStreamer pipeline
//  2. Starts it in Playing state
//  3. Launches background goroutines for frame forwarding and bus monitoring
//  4. Returns the frame channel immediately (non-blocking)
//
// Frames will start arriving asynchronously once the pipeline reaches
// PLAYING state. Call Warmup() afterwards to verify FPS stability.
func (s *WebcamStream) Start(ctx context.Context) (<-chan Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil, fmt.Errorf("capture: stream already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = time.Now()

	slog.Info("capture: starting webcam stream",
		"device", s.device,
		"resolution", fmt.Sprintf("%dx%d", s.width, s.height),
		"target_fps", s.targetFPS,
	)

	elements, err := v4l2.CreatePipeline(v4l2.PipelineConfig{
		Device:    s.device,
		Width:     s.width,
		Height:    s.height,
		TargetFPS: s.targetFPS,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: failed to create pipeline: %w", err)
	}
	s.elements = elements

	// Internal channel for callbacks (avoids import cycle by using
	// v4l2.Frame instead of capture.Frame)
	s.internalFrames = make(chan v4l2.Frame, 10)

	callbackCtx := &v4l2.CallbackContext{
		FrameChan:     s.internalFrames,
		FrameCounter:  &s.frameCount,
		BytesRead:     &s.bytesRead,
		FramesDropped: &s.framesDropped,
		Width:         s.width,
		Height:        s.height,
		Device:        s.device,
	}

	// Forward internal frames to the public channel.
	// Capture ctx locally to avoid nil dereference during shutdown.
	localCtx := s.ctx
	s.wg.Add(1)
	go s.forwardFrames(localCtx, s.internalFrames, s.frames)

	s.elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return v4l2.OnNewSample(sink, callbackCtx)
		},
	})

	if err := s.elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("capture: failed to start pipeline: %w", err)
	}

	// Wait for pipeline to reach PLAYING state
	bus := s.elements.Pipeline.GetPipelineBus()
	msg := bus.TimedPop(5 * time.Second)
	if msg != nil && msg.Type() == gst.MessageStateChanged {
		_, newState := msg.ParseStateChanged()
		if newState == gst.StatePlaying {
			slog.Info("capture: pipeline reached PLAYING state")
		}
	}

	s.wg.Add(1)
	go s.runPipeline()

	slog.Info("capture: webcam stream started",
		"device", s.device,
		"note", "frames arrive asynchronously once pipeline reaches PLAYING state",
	)

	return s.frames, nil
}

// forwardFrames copies frames from the pipeline-internal channel to the
// public channel until the context is cancelled or the internal channel is
// closed.
//
// The forwarder never closes the internal channel itself: the appsink
// callback is still a live sender until the pipeline is destroyed, and a
// send on a closed channel panics the process. Stop owns the close, after
// DestroyPipeline. The cancel path exists so the goroutine exits promptly
// at shutdown even when no frame is in flight.
func (s *WebcamStream) forwardFrames(ctx context.Context, in <-chan v4l2.Frame, out chan<- Frame) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case internalFrame, ok := <-in:
			if !ok {
				return
			}

			publicFrame := Frame{
				Seq:       internalFrame.Seq,
				Timestamp: internalFrame.Timestamp,
				Width:     internalFrame.Width,
				Height:    internalFrame.Height,
				Data:      internalFrame.Data,
				Device:    internalFrame.Device,
				TraceID:   internalFrame.TraceID,
			}

			s.lastFrameAt.Store(time.Now().UnixNano())

			select {
			case out <- publicFrame:
			default:
				// Channel full - drop frame and track metric
				atomic.AddUint64(&s.framesDropped, 1)
				slog.Debug("capture: dropping frame, channel full",
					"seq", publicFrame.Seq,
					"trace_id", publicFrame.TraceID,
				)
			}
		}
	}
}

// runPipeline monitors the GStreamer pipeline bus with reopen-on-failure
//
// Runs until context is cancelled or max reopen attempts are exceeded.
func (s *WebcamStream) runPipeline() {
	defer s.wg.Done()

	openFn := func(ctx context.Context) error {
		return s.monitorPipeline(ctx)
	}

	err := v4l2.RunWithReopen(s.ctx, openFn, s.reopenCfg, s.reopenState)
	if err != nil {
		slog.Error("capture: pipeline stopped after reopen failure",
			"error", err,
			"device", s.device,
			"uptime", time.Since(s.started),
			"frames_captured", atomic.LoadUint64(&s.frameCount),
			"reopens", atomic.LoadUint32(s.reopenState.Reopens),
		)
	}
}

// monitorPipeline monitors the GStreamer pipeline bus for messages
//
// Returns an error if the pipeline encounters an error (triggers reopen).
// Returns nil if context is cancelled (graceful shutdown).
func (s *WebcamStream) monitorPipeline(ctx context.Context) error {
	if s.elements == nil || s.elements.Pipeline == nil {
		return fmt.Errorf("pipeline not initialized")
	}

	bus := s.elements.Pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("capture: context cancelled, stopping pipeline monitor")
			return nil

		default:
			// Poll with short timeout for responsive shutdown
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}

			switch msg.Type() {
			case gst.MessageEOS:
				slog.Info("capture: end of stream received",
					"device", s.device,
					"uptime", time.Since(s.started),
					"frames_captured", atomic.LoadUint64(&s.frameCount),
				)
				return fmt.Errorf("end of stream")

			case gst.MessageError:
				gerr := msg.ParseError()

				category := v4l2.ClassifyGStreamerError(gerr)
				switch category {
				case v4l2.ErrCategoryPermission:
					atomic.AddUint64(&s.errorsPermission, 1)
				case v4l2.ErrCategoryDevice:
					atomic.AddUint64(&s.errorsDevice, 1)
				case v4l2.ErrCategoryFormat:
					atomic.AddUint64(&s.errorsFormat, 1)
				case v4l2.ErrCategoryUnknown:
					atomic.AddUint64(&s.errorsUnknown, 1)
				}

				slog.Error("capture: pipeline error",
					"error", gerr.Error(),
					"debug", gerr.DebugString(),
					"category", category.String(),
					"device", s.device,
					"uptime", time.Since(s.started),
					"frames_captured", atomic.LoadUint64(&s.frameCount),
					"reopens", atomic.LoadUint32(s.reopenState.Reopens),
				)

				if category == v4l2.ErrCategoryPermission {
					// Reopening never fixes a permission problem.
					return fmt.Errorf("camera access denied [%s]: %s (check video group membership)",
						category.String(), gerr.Error())
				}
				return fmt.Errorf("pipeline error [%s]: %s", category.String(), gerr.Error())

			case gst.MessageStateChanged:
				if msg.Source() == s.elements.Pipeline.GetName() {
					oldState, newState := msg.ParseStateChanged()
					slog.Debug("capture: pipeline state changed",
						"from", oldState,
						"to", newState,
					)

					if newState == gst.StatePlaying {
						v4l2.ResetReopenState(s.reopenState)
						slog.Info("capture: pipeline playing, reopen state reset")
					}
				}
			}
		}
	}
}

// Stop gracefully shuts down the stream
//
// Cancels the context, waits for goroutines (timeout 3s), destroys the
// GStreamer pipeline, closes the frame channel and resets state for a
// potential restart. Idempotent.
func (s *WebcamStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		slog.Debug("capture: stream not started, nothing to stop")
		return nil
	}

	slog.Info("capture: stopping webcam stream")

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Debug("capture: goroutines stopped cleanly")
	case <-time.After(3 * time.Second):
		slog.Warn("capture: stop timeout exceeded, some goroutines may still be running")
	}

	if s.elements != nil {
		if err := v4l2.DestroyPipeline(s.elements); err != nil {
			slog.Error("capture: failed to destroy pipeline", "error", err)
		}
		s.elements = nil
	}

	// Safe only now: the appsink callback cannot fire after the pipeline is
	// destroyed, so there is no sender left to race the close.
	if s.internalFrames != nil {
		close(s.internalFrames)
		s.internalFrames = nil
	}

	// Close frame channel exactly once
	if s.framesClosed.CompareAndSwap(false, true) {
		close(s.frames)
		slog.Debug("capture: frame channel closed")
	}

	slog.Info("capture: webcam stream stopped",
		"frames_captured", atomic.LoadUint64(&s.frameCount),
		"reopens", atomic.LoadUint32(s.reopenState.Reopens),
		"uptime", time.Since(s.started),
	)

	// Reset state for potential restart
	s.cancel = nil
	s.ctx = nil
	s.frames = make(chan Frame, 10)
	s.framesClosed.Store(false)

	return nil
}

// Stats returns current capture statistics
//
// Thread-safe - uses atomic operations for counters.
func (s *WebcamStream) Stats() StreamStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	frameCount := atomic.LoadUint64(&s.frameCount)
	framesDropped := atomic.LoadUint64(&s.framesDropped)

	var fpsReal float64
	if !s.started.IsZero() {
		uptime := time.Since(s.started).Seconds()
		if uptime > 0 {
			fpsReal = float64(frameCount) / uptime
		}
	}

	var dropRate float64
	if total := frameCount + framesDropped; total > 0 {
		dropRate = (float64(framesDropped) / float64(total)) * 100.0
	}

	var latencyMS int64
	if last := s.lastFrameAt.Load(); last > 0 {
		latencyMS = time.Since(time.Unix(0, last)).Milliseconds()
	}

	return StreamStats{
		FrameCount:       frameCount,
		FramesDropped:    framesDropped,
		DropRate:         dropRate,
		FPSTarget:        s.targetFPS,
		FPSReal:          fpsReal,
		LatencyMS:        latencyMS,
		Device:           s.device,
		Resolution:       fmt.Sprintf("%dx%d", s.width, s.height),
		Reopens:          atomic.LoadUint32(s.reopenState.Reopens),
		BytesRead:        atomic.LoadUint64(&s.bytesRead),
		IsConnected:      s.elements != nil && s.cancel != nil,
		ErrorsPermission: atomic.LoadUint64(&s.errorsPermission),
		ErrorsDevice:     atomic.LoadUint64(&s.errorsDevice),
		ErrorsFormat:     atomic.LoadUint64(&s.errorsFormat),
		ErrorsUnknown:    atomic.LoadUint64(&s.errorsUnknown),
	}
}

// Warmup measures camera FPS stability over a specified duration
//
// Consumes frames from the stream for the duration and returns FPS
// statistics. Blocks for the entire duration.
//
// Returns an error if the stream is not running, fewer than 2 frames
// arrive, or the measured FPS is unstable.
func (s *WebcamStream) Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error) {
	s.mu.RLock()
	if s.cancel == nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("capture: stream not started")
	}
	s.mu.RUnlock()

	slog.Info("capture: starting warmup",
		"duration", duration,
		"reason", "measure real FPS and verify stability",
	)

	startTime := time.Now()
	frameTimes := make([]time.Time, 0, 100)

	warmupCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	for {
		select {
		case <-warmupCtx.Done():
			goto analyze

		case frame, ok := <-s.frames:
			if !ok {
				return nil, fmt.Errorf("capture: stream closed during warmup")
			}
			frameTimes = append(frameTimes, frame.Timestamp)
			slog.Debug("capture: warmup frame received",
				"seq", frame.Seq,
				"frames_collected", len(frameTimes),
			)
		}
	}

analyze:
	elapsed := time.Since(startTime)

	if len(frameTimes) < 2 {
		return nil, fmt.Errorf(
			"capture: not enough frames received during warmup (got %d, need at least 2)",
			len(frameTimes),
		)
	}

	stats := CalculateFPSStats(frameTimes, elapsed)

	slog.Info("capture: warmup complete",
		"frames", stats.FramesReceived,
		"duration", stats.Duration,
		"fps_mean", fmt.Sprintf("%.2f", stats.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", stats.FPSMin, stats.FPSMax),
		"stable", stats.IsStable,
	)

	if !stats.IsStable {
		return nil, fmt.Errorf(
			"capture: warmup failed - camera FPS unstable (mean=%.2f Hz, stddev=%.2f, threshold=15%%)",
			stats.FPSMean,
			stats.FPSStdDev,
		)
	}

	return stats, nil
}

// checkGStreamerAvailable checks if GStreamer is available
//
// Fail-fast validation that runs at construction time.
func checkGStreamerAvailable() error {
	gst.Init(nil)

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("GStreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)

	return nil
}
