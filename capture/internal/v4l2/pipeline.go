package v4l2

import (
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// PipelineConfig contains configuration for GStreamer pipeline creation
type PipelineConfig struct {
	Device    string
	Width     int
	Height    int
	TargetFPS float64
}

// PipelineElements holds references to GStreamer pipeline elements
// needed for cleanup and stats inspection
type PipelineElements struct {
	Pipeline   *gst.Pipeline
	AppSink    *app.Sink
	VideoRate  *gst.Element
	CapsFilter *gst.Element
	Source     *gst.Element
}

// CreatePipeline creates and configures a GStreamer pipeline for webcam capture
//
// Pipeline structure:
//
//	v4l2src → videoconvert → videoscale → videorate → capsfilter →
//	jpegenc → appsink
//
// The camera delivers whatever format it natively produces; videoconvert and
// videoscale normalize it, videorate pins the frame rate, and jpegenc
// produces the JPEG payload handed to the pose detector.
//
// The pipeline is configured but NOT started (state remains NULL).
// Caller must call pipeline.SetState(gst.StatePlaying) to start.
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	source, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("failed to create v4l2src: %w", err)
	}
	source.SetProperty("device", cfg.Device)
	// Live source, no internal queueing.
	source.SetProperty("do-timestamp", true)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0) // auto-detect cores

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("failed to create videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)     // Only drop frames, never duplicate
	videorate.SetProperty("skip-to-first", true) // Skip to first frame on start

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	caps := gst.NewCapsFromString(buildFramerateCaps(cfg.Width, cfg.Height, cfg.TargetFPS))
	capsfilter.SetProperty("caps", caps)

	encoder, err := gst.NewElement("jpegenc")
	if err != nil {
		return nil, fmt.Errorf("failed to create jpegenc: %w", err)
	}
	encoder.SetProperty("quality", 85)

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // No sync with clock (real-time)
	appsink.SetProperty("max-buffers", 1) // Keep only latest frame
	appsink.SetProperty("drop", true)     // Drop old frames

	pipeline.AddMany(
		source,
		converter,
		scaler,
		videorate,
		capsfilter,
		encoder,
		appsink.Element,
	)

	if err := gst.ElementLinkMany(
		source,
		converter,
		scaler,
		videorate,
		capsfilter,
		encoder,
		appsink.Element,
	); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	return &PipelineElements{
		Pipeline:   pipeline,
		AppSink:    appsink,
		VideoRate:  videorate,
		CapsFilter: capsfilter,
		Source:     source,
	}, nil
}

// DestroyPipeline cleans up GStreamer pipeline resources
//
// Sets pipeline state to NULL and releases all resources.
// Safe to call even if pipeline is already destroyed.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}

	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}

	return nil
}

// buildFramerateCaps builds the raw-video caps string enforced before the
// JPEG encoder.
//
// Handles fractional framerates:
//   - fps >= 1.0: framerate = fps/1 (e.g., 15.0 → 15/1)
//   - fps < 1.0: framerate = 1/(1/fps) (e.g., 0.5 → 1/2)
func buildFramerateCaps(width, height int, fps float64) string {
	numerator := 1
	denominator := 1

	if fps < 1.0 {
		denominator = int(1.0 / fps)
	} else {
		numerator = int(fps)
	}

	return fmt.Sprintf(
		"video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/%d",
		width, height, numerator, denominator,
	)
}
