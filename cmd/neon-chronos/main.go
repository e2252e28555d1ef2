package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Acqua1/neon-chronos/capture"
	"github.com/Acqua1/neon-chronos/display"
	"github.com/Acqua1/neon-chronos/history"
	"github.com/Acqua1/neon-chronos/internal/config"
	"github.com/Acqua1/neon-chronos/posesource"
	"github.com/Acqua1/neon-chronos/trail"
)

const version = "v0.1.0"

type cliFlags struct {
	ConfigPath    string
	Device        string
	WorkerScript  string
	FPS           float64
	StatsInterval time.Duration
	Debug         bool
}

func main() {
	flags := parseFlags()

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(&cfg, flags)

	logLevel := slog.LevelInfo
	if flags.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	printBanner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutdown signal received, stopping gracefully...")
		cancel()
	}()

	if err := runPipeline(ctx, cfg, flags.StatsInterval, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Pipeline failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Pipeline stopped gracefully")
}

func parseFlags() cliFlags {
	var flags cliFlags

	flag.StringVar(&flags.ConfigPath, "config", "config.yaml", "Configuration file path")
	flag.StringVar(&flags.Device, "device", "", "Camera device path (overrides config)")
	flag.StringVar(&flags.WorkerScript, "worker", "", "Pose worker script path (overrides config)")
	flag.Float64Var(&flags.FPS, "fps", 0, "Capture FPS (overrides config)")

	var statsIntervalSec int
	flag.IntVar(&statsIntervalSec, "stats-interval", 10, "Statistics reporting interval (seconds)")

	flag.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")

	flag.Parse()

	flags.StatsInterval = time.Duration(statsIntervalSec) * time.Second
	return flags
}

// applyFlagOverrides lets the command line win over the config file.
func applyFlagOverrides(cfg *config.Config, flags cliFlags) {
	if flags.Device != "" {
		cfg.Camera.Device = flags.Device
	}
	if flags.WorkerScript != "" {
		cfg.Pose.Script = flags.WorkerScript
	}
	if flags.FPS > 0 {
		cfg.Camera.FPS = flags.FPS
	}
}

func runPipeline(ctx context.Context, cfg config.Config, statsInterval time.Duration, logger *slog.Logger) error {
	// 1. Pose worker: fail fast when the detection capability is missing.
	source, err := posesource.NewMediaPipeWorker(posesource.MediaPipeConfig{
		Script:                 cfg.Pose.Script,
		ModelComplexity:        cfg.Pose.ModelComplexity,
		MinDetectionConfidence: cfg.Pose.MinDetectionConfidence,
		MinTrackingConfidence:  cfg.Pose.MinTrackingConfidence,
		SmoothLandmarks:        cfg.Pose.SmoothLandmarks,
	})
	if err != nil {
		if errors.Is(err, posesource.ErrUnavailable) {
			return fmt.Errorf("pose estimation unavailable (is the worker installed?): %w", err)
		}
		return fmt.Errorf("failed to create pose worker: %w", err)
	}

	// 2. Camera.
	stream, err := capture.NewWebcamStream(capture.WebcamConfig{
		Device:     cfg.Camera.Device,
		Resolution: parseResolution(cfg.Camera.Resolution),
		TargetFPS:  cfg.Camera.FPS,
	})
	if err != nil {
		return fmt.Errorf("failed to create webcam stream: %w", err)
	}

	// 3. History, renderer, render target, loop.
	store := history.NewStore(cfg.Trail.HistoryCapacity)

	renderer, err := trail.NewRenderer(trail.Config{
		Layers:      cfg.Trail.Layers,
		MaxDelayMS:  cfg.Trail.MaxDelayMS,
		StalenessMS: cfg.Trail.StalenessMS,
	})
	if err != nil {
		return fmt.Errorf("failed to create trail renderer: %w", err)
	}

	canvas, err := display.NewNeonCanvas(display.CanvasConfig{
		Width:          cfg.Display.Width,
		Height:         cfg.Display.Height,
		WindowTitle:    "neon-chronos " + version,
		BloomRadius:    cfg.Display.BloomRadius,
		BloomIntensity: cfg.Display.BloomIntensity,
		LineThickness:  cfg.Display.LineThickness,
	})
	if err != nil {
		return fmt.Errorf("failed to create canvas: %w", err)
	}

	loop, err := display.NewLoop(store, renderer, canvas, cfg.Display.RefreshHz)
	if err != nil {
		canvas.Close()
		return fmt.Errorf("failed to create render loop: %w", err)
	}

	// 4. Start the worker, then the camera. A camera failure here is fatal
	// to capture but the detector is stopped cleanly on the way out.
	if err := source.Start(ctx); err != nil {
		canvas.Close()
		return fmt.Errorf("failed to start pose worker: %w", err)
	}

	frameChan, err := stream.Start(ctx)
	if err != nil {
		// Camera denial (permissions, missing device) surfaces here once.
		// Per design the show still goes on with an empty scene.
		logger.Error("Camera unavailable, rendering empty scene",
			"error", err,
			"device", cfg.Camera.Device,
		)
		frameChan = nil
	}

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	// 5. Feed detector and collect results.
	if frameChan != nil {
		go feedDetector(loopCtx, frameChan, source, logger)
	}
	go collectPoses(loopCtx, source, store, logger)

	// 6. Statistics reporter.
	go reportStats(loopCtx, statsInterval, stream, source, store, renderer, loop, logger)

	// 7. Render loop on the main goroutine (GUI toolkits want the main
	// thread). Blocks until cancellation or window close.
	runErr := loop.Run(loopCtx)

	// 8. Ordered teardown: ticking has stopped (Run returned), so stopping
	// the producers and closing the canvas cannot race a draw.
	cancelLoop()
	if err := stream.Stop(); err != nil {
		logger.Error("Failed to stop camera gracefully", "error", err)
	}
	if err := source.Stop(); err != nil {
		logger.Error("Failed to stop pose worker gracefully", "error", err)
	}
	if err := canvas.Close(); err != nil {
		logger.Error("Failed to close canvas", "error", err)
	}

	printFinalStats(stream, source, store, renderer, loop)

	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

// feedDetector forwards camera frames to the pose worker. Drops are expected
// when detection runs slower than capture.
func feedDetector(ctx context.Context, frameChan <-chan capture.Frame, source posesource.Source, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frameChan:
			if !ok {
				logger.Info("Camera channel closed")
				return
			}

			err := source.SendFrame(posesource.InputFrame{
				Data:      frame.Data,
				Width:     frame.Width,
				Height:    frame.Height,
				Seq:       frame.Seq,
				TraceID:   frame.TraceID,
				Timestamp: frame.Timestamp,
			})
			if err != nil {
				logger.Debug("Frame not sent to detector",
					"seq", frame.Seq,
					"reason", err,
				)
			}
		}
	}
}

// collectPoses appends detector results to the history store.
func collectPoses(ctx context.Context, source posesource.Source, store *history.Store, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source.Frames():
			if !ok {
				logger.Info("Pose result channel closed")
				return
			}
			store.Append(frame)
			logger.Debug("Pose frame stored",
				"seq", frame.Seq,
				"timestamp_ms", frame.TimestampMS,
				"landmarks", len(frame.Landmarks),
			)
		}
	}
}

func reportStats(
	ctx context.Context,
	interval time.Duration,
	stream *capture.WebcamStream,
	source posesource.Source,
	store *history.Store,
	renderer *trail.Renderer,
	loop *display.Loop,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			captureStats := stream.Stats()
			sourceStats := source.Stats()
			storeStats := store.Stats()
			rendererStats := renderer.Stats()
			loopStats := loop.Stats()

			logger.Info("Pipeline statistics",
				"capture_fps", fmt.Sprintf("%.2f", captureStats.FPSReal),
				"capture_drop_rate", fmt.Sprintf("%.1f%%", captureStats.DropRate),
				"detections", sourceStats.Detections,
				"detector_dropped", sourceStats.FramesDropped,
				"detector_latency_ms", fmt.Sprintf("%.1f", sourceStats.AvgLatencyMS),
				"history_size", storeStats.Size,
				"render_frames", loopStats.Frames,
				"hidden_stale", rendererStats.HiddenStale,
			)
		}
	}
}

func parseResolution(s string) capture.Resolution {
	switch s {
	case "480p":
		return capture.Res480p
	case "1080p":
		return capture.Res1080p
	default:
		return capture.Res720p
	}
}

func printBanner(cfg config.Config) {
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        neon-chronos - Chronostasis Motion Trails              ║")
	fmt.Printf("║                    Version %-30s ║\n", version)
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Camera:          %s (%s @ %.0f fps)\n", cfg.Camera.Device, cfg.Camera.Resolution, cfg.Camera.FPS)
	fmt.Printf("  Pose worker:     %s (complexity %d)\n", cfg.Pose.Script, cfg.Pose.ModelComplexity)
	fmt.Printf("  Trail:           %d layers over %dms\n", cfg.Trail.Layers, cfg.Trail.MaxDelayMS)
	fmt.Printf("  Display:         %dx%d @ %.0f Hz\n", cfg.Display.Width, cfg.Display.Height, cfg.Display.RefreshHz)
	fmt.Println()
	fmt.Println("Pipeline:")
	fmt.Println("  capture → pose worker → history → trail renderer → neon canvas")
	fmt.Println()
	fmt.Println("Press Ctrl+C or ESC to stop gracefully")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()
}

func printFinalStats(
	stream *capture.WebcamStream,
	source posesource.Source,
	store *history.Store,
	renderer *trail.Renderer,
	loop *display.Loop,
) {
	captureStats := stream.Stats()
	sourceStats := source.Stats()
	storeStats := store.Stats()
	rendererStats := renderer.Stats()
	loopStats := loop.Stats()

	fmt.Println()
	fmt.Println("═══════════════════ Final Statistics ═══════════════════")
	fmt.Printf("  Frames captured:   %d (%.1f%% dropped)\n", captureStats.FrameCount, captureStats.DropRate)
	fmt.Printf("  Detections:        %d (%d empty)\n", sourceStats.Detections, sourceStats.EmptyDetections)
	fmt.Printf("  History appends:   %d (%d clamped)\n", storeStats.Appended, storeStats.Clamped)
	fmt.Printf("  Frames rendered:   %d\n", loopStats.Frames)
	fmt.Printf("  Render ticks:      %d (%d stale layer hides, %d recovered panics)\n",
		rendererStats.Ticks, rendererStats.HiddenStale, rendererStats.LayerPanics)
	fmt.Println("═════════════════════════════════════════════════════════")
}
