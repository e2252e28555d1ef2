// Package pose defines the landmark and frame types shared by the capture,
// inference and rendering pipeline.
//
// Landmark indexing follows the MediaPipe Pose 33-point contract. Indices are
// semantically meaningful (11/12 = shoulders, 23/24 = hips) and MUST match
// the pose worker's output exactly - see topology.go for the full map.
package pose

// Landmark is a single detected body point.
//
// X and Y are normalized to [0,1] relative to the source frame. Z is a
// relative depth estimate (roughly same scale as X, origin at the hips).
// Visibility is the detector's confidence in [0,1] that the point is visible.
//
// Present distinguishes a real detection from a hole in a partial result:
// a frame may carry zero, partial, or full landmark sets, and consumers must
// check Present before trusting the coordinates.
type Landmark struct {
	X          float64
	Y          float64
	Z          float64
	Visibility float64
	Present    bool
}

// Frame is one timestamped pose detection result.
//
// IMMUTABILITY CONTRACT: a Frame is never mutated after construction. It is
// appended to the history store by the pose-source goroutine and read
// concurrently by the render loop; sharing is safe only because nobody
// writes.
type Frame struct {
	// TimestampMS is wall-clock milliseconds assigned at receipt time
	// (NOT by the detector). History ordering relies on this.
	TimestampMS int64

	// Landmarks is indexed positionally per the MediaPipe contract.
	// len is 0 (no detection), NumLandmarks (full set), or shorter for a
	// partial result; indices past the end are simply absent.
	Landmarks []Landmark

	// Seq is the source frame sequence number the detection was run on.
	Seq uint64

	// TraceID correlates the detection with the captured camera frame.
	TraceID string
}

// Landmark returns the landmark at index i and whether it is usable.
// Out-of-range indices and absent detections both report false.
func (f *Frame) Landmark(i int) (Landmark, bool) {
	if i < 0 || i >= len(f.Landmarks) {
		return Landmark{}, false
	}
	lm := f.Landmarks[i]
	return lm, lm.Present
}

// HasLandmarks reports whether the frame carries any usable landmark set.
func (f *Frame) HasLandmarks() bool {
	return len(f.Landmarks) > 0
}
