package capture

import (
	"math"
	"time"
)

// stabilityThreshold is the FPS stddev/mean ratio above which the camera is
// considered unstable (15%).
const stabilityThreshold = 0.15

// CalculateFPSStats computes FPS statistics from a series of frame arrival
// times collected over totalDuration.
//
// The mean is the overall rate (frames / duration); min, max and stddev come
// from the instantaneous per-interval rates. Fewer than 2 frames yields an
// unstable result with zeroed interval statistics.
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *WarmupStats {
	n := len(frameTimes)
	stats := &WarmupStats{
		FramesReceived: n,
		Duration:       totalDuration,
	}
	if n == 0 || totalDuration <= 0 {
		return stats
	}

	stats.FPSMean = float64(n) / totalDuration.Seconds()

	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}
	if len(instantaneous) == 0 {
		return stats
	}

	stats.FPSMin = instantaneous[0]
	stats.FPSMax = instantaneous[0]
	var sum float64
	for _, fps := range instantaneous {
		if fps < stats.FPSMin {
			stats.FPSMin = fps
		}
		if fps > stats.FPSMax {
			stats.FPSMax = fps
		}
		sum += fps
	}
	intervalMean := sum / float64(len(instantaneous))

	var variance float64
	for _, fps := range instantaneous {
		d := fps - intervalMean
		variance += d * d
	}
	variance /= float64(len(instantaneous))
	stats.FPSStdDev = math.Sqrt(variance)

	if stats.FPSMean > 0 {
		stats.IsStable = stats.FPSStdDev/stats.FPSMean < stabilityThreshold
	}
	return stats
}
