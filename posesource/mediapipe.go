package posesource

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Acqua1/neon-chronos/pose"
)

// MediaPipeConfig configures the MediaPipe pose worker subprocess.
//
// The detector tuning fields (ModelComplexity, MinDetectionConfidence,
// MinTrackingConfidence, SmoothLandmarks) are passed through opaquely on the
// worker command line; they are not part of this package's contract.
type MediaPipeConfig struct {
	// Script is the path to the worker launcher (activates the venv and
	// runs the MediaPipe process). Required.
	Script string

	ModelComplexity        int     // 0=lite, 1=full, 2=heavy
	MinDetectionConfidence float64 // default 0.5
	MinTrackingConfidence  float64 // default 0.5
	SmoothLandmarks        bool
}

var _ Source = (*MediaPipeWorker)(nil)

// MediaPipeWorker runs MediaPipe Pose in a subprocess and bridges it to Go:
// JPEG frames go to the worker's stdin, landmark results come back on its
// stdout, both as length-prefixed MsgPack (4-byte big-endian length, then
// the payload).
//
// Goroutine topology:
//   - processFrames: input channel -> worker stdin
//   - readResults:   worker stdout -> Frames() channel
//   - logStderr:     worker stderr -> slog
//   - waitProcess:   reaps the subprocess (no zombies)
//
// Drop semantics: drops are expected and healthy. Capture runs at camera
// rate, detection at detector rate; SendFrame drops when the input channel
// is full so the freshest frames win.
type MediaPipeWorker struct {
	cfg MediaPipeConfig

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	input chan InputFrame
	out   chan pose.Frame

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	isActive atomic.Bool
	closeOut sync.Once

	framesSent      atomic.Uint64
	framesDropped   atomic.Uint64
	detections      atomic.Uint64
	emptyDetections atomic.Uint64
	totalLatencyUS  atomic.Uint64
	lastResultAt    atomic.Value // time.Time
}

// Wire protocol, worker-bound.
type workerRequest struct {
	FrameData []byte            `msgpack:"frame_data"`
	Width     int               `msgpack:"width"`
	Height    int               `msgpack:"height"`
	Meta      workerRequestMeta `msgpack:"meta"`
}

type workerRequestMeta struct {
	Seq       uint64 `msgpack:"seq"`
	TraceID   string `msgpack:"trace_id"`
	Timestamp string `msgpack:"timestamp"`
}

// Wire protocol, host-bound.
type workerResult struct {
	Seq       uint64         `msgpack:"seq"`
	TraceID   string         `msgpack:"trace_id"`
	Landmarks []wireLandmark `msgpack:"landmarks"`
	Timing    workerTiming   `msgpack:"timing"`
}

type wireLandmark struct {
	X          float64 `msgpack:"x"`
	Y          float64 `msgpack:"y"`
	Z          float64 `msgpack:"z"`
	Visibility float64 `msgpack:"visibility"`
	Present    bool    `msgpack:"present"`
}

type workerTiming struct {
	TotalMS float64 `msgpack:"total_ms"`
}

// NewMediaPipeWorker creates the worker with fail-fast capability checks:
// the launcher script must exist and be executable, otherwise the pose
// capability is unavailable and the error wraps ErrUnavailable.
func NewMediaPipeWorker(cfg MediaPipeConfig) (*MediaPipeWorker, error) {
	if cfg.Script == "" {
		return nil, fmt.Errorf("%w: worker script not configured", ErrUnavailable)
	}

	info, err := os.Stat(cfg.Script)
	if err != nil {
		return nil, fmt.Errorf("%w: worker script %q: %v", ErrUnavailable, cfg.Script, err)
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return nil, fmt.Errorf("%w: worker script %q is not executable", ErrUnavailable, cfg.Script)
	}

	if cfg.ModelComplexity < 0 || cfg.ModelComplexity > 2 {
		return nil, fmt.Errorf("posesource: invalid model complexity %d (must be 0-2)", cfg.ModelComplexity)
	}
	if cfg.MinDetectionConfidence <= 0 {
		cfg.MinDetectionConfidence = 0.5
	}
	if cfg.MinTrackingConfidence <= 0 {
		cfg.MinTrackingConfidence = 0.5
	}

	w := &MediaPipeWorker{
		cfg:   cfg,
		input: make(chan InputFrame, 5),
		out:   make(chan pose.Frame, 10),
	}

	slog.Info("posesource: mediapipe worker created",
		"script", cfg.Script,
		"model_complexity", cfg.ModelComplexity,
		"min_detection_confidence", cfg.MinDetectionConfidence,
		"smooth_landmarks", cfg.SmoothLandmarks,
	)

	return w, nil
}

// Start spawns the worker subprocess and the bridge goroutines.
func (w *MediaPipeWorker) Start(ctx context.Context) error {
	if w.isActive.Load() {
		return fmt.Errorf("posesource: worker already started")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	if err := w.spawn(); err != nil {
		return fmt.Errorf("posesource: failed to spawn worker: %w", err)
	}

	w.isActive.Store(true)
	w.lastResultAt.Store(time.Now())

	w.wg.Add(2)
	go w.processFrames()
	go w.logStderr()

	slog.Info("posesource: mediapipe worker started", "pid", w.cmd.Process.Pid)
	return nil
}

func (w *MediaPipeWorker) spawn() error {
	args := []string{
		"--model-complexity", fmt.Sprintf("%d", w.cfg.ModelComplexity),
		"--min-detection-confidence", fmt.Sprintf("%.2f", w.cfg.MinDetectionConfidence),
		"--min-tracking-confidence", fmt.Sprintf("%.2f", w.cfg.MinTrackingConfidence),
	}
	if w.cfg.SmoothLandmarks {
		args = append(args, "--smooth-landmarks")
	}

	w.cmd = exec.CommandContext(w.ctx, w.cfg.Script, args...)

	stdin, err := w.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	w.stdin = stdin

	stdout, err := w.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	w.stdout = stdout

	stderr, err := w.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	w.stderr = stderr

	if err := w.cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}

	w.wg.Add(2)
	go w.readResults()
	go w.waitProcess()

	return nil
}

// SendFrame submits a frame for detection (non-blocking, drop when behind).
func (w *MediaPipeWorker) SendFrame(frame InputFrame) (err error) {
	// A restart can close the input channel between the isActive check and
	// the send; recover instead of taking a lock on the hot path.
	defer func() {
		if r := recover(); r != nil {
			w.framesDropped.Add(1)
			err = fmt.Errorf("posesource: worker channel closed")
		}
	}()

	if !w.isActive.Load() {
		w.framesDropped.Add(1)
		return fmt.Errorf("posesource: worker not active")
	}

	select {
	case w.input <- frame:
		return nil
	default:
		w.framesDropped.Add(1)
		return fmt.Errorf("posesource: detector behind, frame dropped")
	}
}

// Frames returns the detection result channel.
func (w *MediaPipeWorker) Frames() <-chan pose.Frame {
	return w.out
}

func (w *MediaPipeWorker) processFrames() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case frame, ok := <-w.input:
			if !ok {
				return
			}
			if err := w.writeFrame(frame); err != nil {
				slog.Error("posesource: failed to send frame to worker",
					"seq", frame.Seq,
					"trace_id", frame.TraceID,
					"error", err,
				)
				// Single-frame failure: keep the stream alive.
				continue
			}
			w.framesSent.Add(1)
		}
	}
}

// writeFrame serializes a frame and writes it to the worker's stdin with a
// 2 second timeout so a hung worker cannot stall the capture path.
func (w *MediaPipeWorker) writeFrame(frame InputFrame) error {
	req := workerRequest{
		FrameData: frame.Data,
		Width:     frame.Width,
		Height:    frame.Height,
		Meta: workerRequestMeta{
			Seq:       frame.Seq,
			TraceID:   frame.TraceID,
			Timestamp: frame.Timestamp.Format(time.RFC3339Nano),
		},
	}

	payload, err := msgpack.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	writeErr := make(chan error, 1)
	go func() {
		prefix := make([]byte, 4)
		binary.BigEndian.PutUint32(prefix, uint32(len(payload)))
		if _, err := w.stdin.Write(prefix); err != nil {
			writeErr <- fmt.Errorf("write length prefix: %w", err)
			return
		}
		if _, err := w.stdin.Write(payload); err != nil {
			writeErr <- fmt.Errorf("write payload: %w", err)
			return
		}
		writeErr <- nil
	}()

	select {
	case err := <-writeErr:
		return err
	case <-time.After(2 * time.Second):
		return fmt.Errorf("stdin write timeout (worker may be hung)")
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

// readResults reads length-prefixed MsgPack results from the worker's
// stdout, converts them to pose frames and publishes them. The receipt
// timestamp is assigned HERE, with the host's wall clock - never trusted
// from the detector.
func (w *MediaPipeWorker) readResults() {
	defer w.wg.Done()

	prefix := make([]byte, 4)
	for {
		if _, err := io.ReadFull(w.stdout, prefix); err != nil {
			if err == io.EOF {
				slog.Debug("posesource: worker stdout closed")
			} else {
				slog.Error("posesource: failed to read result length", "error", err)
			}
			return
		}

		payload := make([]byte, binary.BigEndian.Uint32(prefix))
		if _, err := io.ReadFull(w.stdout, payload); err != nil {
			slog.Error("posesource: failed to read result payload",
				"error", err,
				"expected_length", len(payload),
			)
			return
		}

		var result workerResult
		if err := msgpack.Unmarshal(payload, &result); err != nil {
			slog.Error("posesource: failed to unmarshal result",
				"error", err,
				"payload_length", len(payload),
			)
			continue
		}

		frame := w.toPoseFrame(result)

		select {
		case w.out <- frame:
			w.detections.Add(1)
			if !frame.HasLandmarks() {
				w.emptyDetections.Add(1)
			}
			w.totalLatencyUS.Add(uint64(result.Timing.TotalMS * 1000))
			w.lastResultAt.Store(time.Now())
		default:
			// Consumer behind: latest-wins philosophy, drop the result.
			slog.Debug("posesource: dropping result, channel full",
				"seq", result.Seq, "trace_id", result.TraceID)
		}
	}
}

// toPoseFrame converts a wire result into an immutable pose.Frame.
func (w *MediaPipeWorker) toPoseFrame(result workerResult) pose.Frame {
	frame := pose.Frame{
		TimestampMS: time.Now().UnixMilli(),
		Seq:         result.Seq,
		TraceID:     result.TraceID,
	}
	if len(result.Landmarks) == 0 {
		return frame
	}

	frame.Landmarks = make([]pose.Landmark, len(result.Landmarks))
	for i, lm := range result.Landmarks {
		frame.Landmarks[i] = pose.Landmark{
			X:          lm.X,
			Y:          lm.Y,
			Z:          lm.Z,
			Visibility: lm.Visibility,
			Present:    lm.Present,
		}
	}
	return frame
}

// logStderr forwards worker stderr to slog, mapping Python levels.
func (w *MediaPipeWorker) logStderr() {
	defer w.wg.Done()

	scanner := bufio.NewScanner(w.stderr)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]") || strings.Contains(line, "[CRITICAL]"):
			slog.Error("posesource: worker error", "log", line)
		case strings.Contains(line, "[WARNING]") || strings.Contains(line, "[WARN]"):
			slog.Warn("posesource: worker warning", "log", line)
		default:
			slog.Debug("posesource: worker log", "log", line)
		}
	}
}

// waitProcess reaps the subprocess so it never becomes a zombie.
func (w *MediaPipeWorker) waitProcess() {
	defer w.wg.Done()

	if w.cmd == nil || w.cmd.Process == nil {
		return
	}

	err := w.cmd.Wait()
	if err == nil {
		slog.Info("posesource: worker exited cleanly", "pid", w.cmd.Process.Pid)
		return
	}

	select {
	case <-w.ctx.Done():
		slog.Debug("posesource: worker exited (shutdown)", "pid", w.cmd.Process.Pid)
	default:
		slog.Error("posesource: worker exited unexpectedly",
			"pid", w.cmd.Process.Pid,
			"error", err,
		)
	}
}

// Stop shuts the worker down: cancel, close stdin (graceful exit signal),
// wait with timeout, force-kill on overrun. Idempotent.
func (w *MediaPipeWorker) Stop() error {
	if !w.isActive.CompareAndSwap(true, false) {
		return nil
	}

	slog.Info("posesource: stopping mediapipe worker")

	w.cancel()
	if w.stdin != nil {
		w.stdin.Close()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Debug("posesource: worker goroutines stopped cleanly")
	case <-time.After(2 * time.Second):
		slog.Warn("posesource: stop timeout, force killing worker")
		if w.cmd != nil && w.cmd.Process != nil {
			if err := w.cmd.Process.Kill(); err != nil {
				slog.Error("posesource: failed to kill worker", "error", err)
			}
		}
	}

	w.closeOut.Do(func() { close(w.out) })

	slog.Info("posesource: mediapipe worker stopped",
		"frames_sent", w.framesSent.Load(),
		"detections", w.detections.Load(),
		"dropped", w.framesDropped.Load(),
	)
	return nil
}

// Stats returns operational counters (non-blocking snapshot).
func (w *MediaPipeWorker) Stats() SourceStats {
	detections := w.detections.Load()

	var avgLatencyMS float64
	if detections > 0 {
		avgLatencyMS = float64(w.totalLatencyUS.Load()) / 1000 / float64(detections)
	}

	var lastResultAt time.Time
	if v := w.lastResultAt.Load(); v != nil {
		lastResultAt = v.(time.Time)
	}

	return SourceStats{
		FramesSent:      w.framesSent.Load(),
		FramesDropped:   w.framesDropped.Load(),
		Detections:      detections,
		EmptyDetections: w.emptyDetections.Load(),
		AvgLatencyMS:    avgLatencyMS,
		LastResultAt:    lastResultAt,
	}
}
