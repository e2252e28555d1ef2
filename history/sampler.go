package history

import "github.com/Acqua1/neon-chronos/pose"

// StalenessThresholdMS is the maximum tolerated distance between a requested
// display moment and the best available sample. At or beyond this the sample
// must be treated as unavailable - enforced by the caller (the trail
// renderer hides the layer), not by FindNearest itself, which always reports
// the true nearest frame.
const StalenessThresholdMS = 1000

// FindNearest returns the frame whose timestamp is closest to targetMS,
// together with the absolute time difference in milliseconds. ok is false
// when frames is empty.
//
// Algorithm: scan oldest to newest, tracking the smallest absolute
// difference seen. Because timestamps are non-decreasing, the difference is
// unimodal over the scan: once it starts growing past the best, no later
// frame can be closer, so the scan stops early. Ties keep the first minimal
// frame encountered.
//
// The early exit is correctness-sensitive, not just a speedup: it is valid
// only under the store's ordering invariant. See TestFindNearestMatchesLinearScan.
func FindNearest(frames []pose.Frame, targetMS int64) (pose.Frame, int64, bool) {
	if len(frames) == 0 {
		return pose.Frame{}, 0, false
	}

	best := frames[0]
	bestDiff := absDiff(frames[0].TimestampMS, targetMS)

	for _, f := range frames[1:] {
		d := absDiff(f.TimestampMS, targetMS)
		if d < bestDiff {
			best = f
			bestDiff = d
		} else if d > bestDiff {
			// Monotonic timestamps: distance only grows from here.
			break
		}
	}
	return best, bestDiff, true
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
