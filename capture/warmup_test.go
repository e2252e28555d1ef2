package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evenFrameTimes generates n frame timestamps spaced exactly interval apart.
func evenFrameTimes(n int, interval time.Duration) []time.Time {
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	times := make([]time.Time, n)
	for i := range times {
		times[i] = base.Add(time.Duration(i) * interval)
	}
	return times
}

func TestCalculateFPSStats(t *testing.T) {
	t.Parallel()

	t.Run("no frames", func(t *testing.T) {
		t.Parallel()
		stats := CalculateFPSStats(nil, 5*time.Second)
		assert.Equal(t, 0, stats.FramesReceived)
		assert.False(t, stats.IsStable)
	})

	t.Run("single frame has no intervals", func(t *testing.T) {
		t.Parallel()
		stats := CalculateFPSStats(evenFrameTimes(1, 0), 2*time.Second)
		assert.Equal(t, 1, stats.FramesReceived)
		assert.False(t, stats.IsStable)
		assert.Zero(t, stats.FPSStdDev)
	})

	t.Run("perfectly even 15 fps is stable", func(t *testing.T) {
		t.Parallel()
		// 30 frames over 2 seconds at 66.67ms spacing
		times := evenFrameTimes(30, 2*time.Second/30)
		stats := CalculateFPSStats(times, 2*time.Second)

		require.Equal(t, 30, stats.FramesReceived)
		assert.InDelta(t, 15.0, stats.FPSMean, 0.1)
		assert.InDelta(t, 15.0, stats.FPSMin, 0.5)
		assert.InDelta(t, 15.0, stats.FPSMax, 0.5)
		assert.Less(t, stats.FPSStdDev, 0.1)
		assert.True(t, stats.IsStable)
	})

	t.Run("erratic intervals are unstable", func(t *testing.T) {
		t.Parallel()
		base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
		times := []time.Time{
			base,
			base.Add(10 * time.Millisecond),  // 100 fps burst
			base.Add(510 * time.Millisecond), // 2 fps stall
			base.Add(520 * time.Millisecond), // 100 fps burst
			base.Add(1520 * time.Millisecond), // 1 fps stall
		}
		stats := CalculateFPSStats(times, 1520*time.Millisecond)

		assert.False(t, stats.IsStable)
		assert.Greater(t, stats.FPSMax, stats.FPSMin)
	})
}

func TestNewWebcamStreamValidation(t *testing.T) {
	t.Parallel()

	// Only cases that fail before GStreamer probing - these must not need a
	// camera or GStreamer install to be rejected.

	t.Run("missing device", func(t *testing.T) {
		t.Parallel()
		_, err := NewWebcamStream(WebcamConfig{TargetFPS: 15})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "device is required")
	})

	t.Run("fps out of range", func(t *testing.T) {
		t.Parallel()
		for _, fps := range []float64{0, 0.5, 61, -3} {
			_, err := NewWebcamStream(WebcamConfig{Device: "/dev/video0", TargetFPS: fps})
			assert.Errorf(t, err, "fps %.1f should be rejected", fps)
		}
	})
}

func TestResolutionDimensions(t *testing.T) {
	t.Parallel()

	w, h := Res480p.Dimensions()
	assert.Equal(t, [2]int{640, 480}, [2]int{w, h})

	w, h = Res720p.Dimensions()
	assert.Equal(t, [2]int{1280, 720}, [2]int{w, h})

	w, h = Res1080p.Dimensions()
	assert.Equal(t, [2]int{1920, 1080}, [2]int{w, h})

	// Unknown values fall back to 720p
	w, h = Resolution(99).Dimensions()
	assert.Equal(t, [2]int{1280, 720}, [2]int{w, h})
}
