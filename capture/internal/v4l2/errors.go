package v4l2

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory represents the classification of GStreamer errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryPermission indicates the camera device denied access
	// (user not in the video group, another policy in the way)
	ErrCategoryPermission ErrorCategory = iota
	// ErrCategoryDevice indicates a missing, busy or unplugged camera device
	ErrCategoryDevice
	// ErrCategoryFormat indicates caps negotiation / format failures
	ErrCategoryFormat
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryPermission:
		return "permission"
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryFormat:
		return "format"
	default:
		return "unknown"
	}
}

// ClassifyGStreamerError analyzes a GStreamer error and categorizes it for telemetry
//
// The categories drive different operator responses:
//   - permission: fix device access, reopening will not help
//   - device: camera unplugged/busy, reopening may help
//   - format: camera cannot deliver the requested caps, change config
//
// Classification is based on error message heuristics; go-gst's GError does
// not expose Domain(), so we rely on string matching.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}

	combined := strings.ToLower(gerr.Error()) + " " + strings.ToLower(gerr.DebugString())
	return classifyText(combined)
}

// classifyText applies the keyword heuristics to lowercased error text.
func classifyText(combined string) ErrorCategory {
	// Priority 1: permission errors (most specific, reopen never helps)
	if containsAny(combined, permissionKeywords) {
		return ErrCategoryPermission
	}

	// Priority 2: device presence/busy errors
	if containsAny(combined, deviceKeywords) {
		return ErrCategoryDevice
	}

	// Priority 3: caps/format errors
	if containsAny(combined, formatKeywords) {
		return ErrCategoryFormat
	}

	return ErrCategoryUnknown
}

var permissionKeywords = []string{
	"permission denied",
	"not permitted",
	"access denied",
	"eacces",
	"eperm",
}

var deviceKeywords = []string{
	"no such device",
	"no such file",
	"device or resource busy",
	"could not open device",
	"cannot open device",
	"device not found",
	"enodev",
	"ebusy",
	"disconnected",
	"v4l2",
}

var formatKeywords = []string{
	"not negotiated",
	"negotiation",
	"caps",
	"format",
	"unsupported",
	"no supported",
	"framerate",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
