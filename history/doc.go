// Package history implements the landmark history store and the temporal
// sampler behind the trail effect.
//
// # Philosophy
//
// "Latest 200 frames, ordered by time, queried by nearest timestamp."
//
// The store is the single piece of mutable state shared between the two
// asynchronous event sources in the system: the pose-source goroutine
// appends, the render loop snapshots. Everything else (layer buffers,
// canvases) is owned exclusively by the render side.
//
// # Invariant
//
// Frame timestamps are non-decreasing in sequence order. Append enforces it
// by clamping a regressing timestamp to the current tail. The invariant is
// not cosmetic: FindNearest's early-exit scan is only correct when the
// distance to the target is unimodal over the scan, which holds only for
// monotonic timestamps scanned oldest to newest.
//
// # Usage
//
//	store := history.NewStore(200)
//	store.Append(frame)                         // pose-source goroutine
//
//	frames := store.Snapshot()                  // render tick
//	f, diff, ok := history.FindNearest(frames, nowMS-delayMS)
//	if !ok || diff >= history.StalenessThresholdMS {
//	    // no usable sample: hide the layer, not an error
//	}
package history
