package v4l2

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Frame is a minimal frame struct for internal use (avoids import cycle)
// The actual Frame type is defined in the parent package
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
	Device    string
	TraceID   string
}

// CallbackContext holds state needed by GStreamer callbacks
type CallbackContext struct {
	FrameChan     chan<- Frame
	FrameCounter  *uint64 // Atomic counter for sequence numbers
	BytesRead     *uint64 // Atomic counter for bytes read
	FramesDropped *uint64 // Atomic counter for dropped frames (channel full)
	Width         int
	Height        int
	Device        string
}

// OnNewSample is called by GStreamer when a new JPEG frame is available
//
// This callback:
//  1. Pulls the sample from the appsink
//  2. Maps the buffer to read the encoded bytes
//  3. Copies data (GStreamer will reuse the buffer)
//  4. Creates a Frame struct with metadata and a fresh trace id
//  5. Sends frame to channel (non-blocking - drops if full)
//
// Returns gst.FlowOK to continue processing. Single corrupted frames are
// skipped instead of terminating the stream.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("v4l2: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("v4l2: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("v4l2: empty buffer received")
		return gst.FlowOK
	}

	// Copy frame data (GStreamer will reuse buffer)
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	seq := atomic.AddUint64(ctx.FrameCounter, 1)
	atomic.AddUint64(ctx.BytesRead, uint64(len(data)))

	frame := Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     ctx.Width,
		Height:    ctx.Height,
		Data:      frameData,
		Device:    ctx.Device,
		TraceID:   uuid.New().String(),
	}

	// Send frame (non-blocking - drop if channel full)
	select {
	case ctx.FrameChan <- frame:
		slog.Debug("v4l2: frame sent",
			"seq", frame.Seq,
			"size_bytes", len(data),
			"trace_id", frame.TraceID,
		)
	default:
		atomic.AddUint64(ctx.FramesDropped, 1)
		slog.Debug("v4l2: dropping frame, channel full",
			"seq", frame.Seq,
			"trace_id", frame.TraceID,
		)
	}

	return gst.FlowOK
}
