package capture

import "time"

// Frame represents a single camera frame with metadata
type Frame struct {
	// Seq is the monotonic sequence number
	Seq uint64
	// Timestamp is when the frame left the camera pipeline
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains the JPEG-encoded frame
	Data []byte
	// Device is the camera device path (e.g., "/dev/video0")
	Device string
	// TraceID is a unique identifier for tracing a frame through the pipeline
	TraceID string
}

// StreamStats contains current capture statistics
type StreamStats struct {
	// FrameCount is the total number of frames captured
	FrameCount uint64
	// FramesDropped is the total number of frames dropped (channel full)
	FramesDropped uint64
	// DropRate is the percentage of frames dropped (0-100)
	DropRate float64
	// FPSTarget is the configured target FPS
	FPSTarget float64
	// FPSReal is the measured real FPS
	FPSReal float64
	// LatencyMS is the time since last frame in milliseconds
	LatencyMS int64
	// Device is the camera device path
	Device string
	// Resolution is the frame resolution (e.g., "1280x720")
	Resolution string
	// Reopens is the number of device reopen attempts
	Reopens uint32
	// BytesRead is the total bytes read from the camera
	BytesRead uint64
	// IsConnected indicates if the camera is currently open
	IsConnected bool
	// ErrorsPermission counts device permission errors
	ErrorsPermission uint64
	// ErrorsDevice counts missing/busy device errors
	ErrorsDevice uint64
	// ErrorsFormat counts caps negotiation / format errors
	ErrorsFormat uint64
	// ErrorsUnknown counts unclassified errors
	ErrorsUnknown uint64
}

// Resolution represents supported capture resolutions
type Resolution int

const (
	// Res480p represents 640x480 resolution (VGA)
	Res480p Resolution = iota
	// Res720p represents 1280x720 resolution (HD)
	Res720p
	// Res1080p represents 1920x1080 resolution (Full HD)
	Res1080p
)

// Dimensions returns the width and height for the resolution
func (r Resolution) Dimensions() (width, height int) {
	switch r {
	case Res480p:
		return 640, 480
	case Res720p:
		return 1280, 720
	case Res1080p:
		return 1920, 1080
	default:
		// Safe default: 720p
		return 1280, 720
	}
}

// String returns a human-readable string representation of the resolution
func (r Resolution) String() string {
	switch r {
	case Res480p:
		return "480p"
	case Res720p:
		return "720p"
	case Res1080p:
		return "1080p"
	default:
		return "720p"
	}
}

// WebcamConfig contains configuration for webcam capture
type WebcamConfig struct {
	// Device is the V4L2 device path (required, e.g., "/dev/video0")
	Device string
	// Resolution is the target capture resolution
	Resolution Resolution
	// TargetFPS is the target frames per second (1.0 - 60.0)
	TargetFPS float64
	// MaxReopenAttempts overrides the default reopen retry limit
	MaxReopenAttempts int
	// ReopenInitialDelay overrides the default initial reopen delay
	ReopenInitialDelay time.Duration
	// ReopenMaxDelay overrides the default reopen delay cap
	ReopenMaxDelay time.Duration
}

// WarmupStats contains statistics collected during the capture warm-up phase
type WarmupStats struct {
	// FramesReceived is the number of frames received during warm-up
	FramesReceived int
	// Duration is the actual warm-up duration
	Duration time.Duration
	// FPSMean is the mean FPS across all frames
	FPSMean float64
	// FPSStdDev is the standard deviation of FPS
	FPSStdDev float64
	// FPSMin is the minimum instantaneous FPS
	FPSMin float64
	// FPSMax is the maximum instantaneous FPS
	FPSMax float64
	// IsStable is true if FPS is stable (stddev < 15% of mean)
	IsStable bool
}
