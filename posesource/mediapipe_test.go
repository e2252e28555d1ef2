package posesource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates a fake worker launcher with the given mode.
func writeScript(t *testing.T, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pose_worker.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), mode))
	return path
}

func TestNewMediaPipeWorkerFailFast(t *testing.T) {
	t.Parallel()

	t.Run("missing script path", func(t *testing.T) {
		t.Parallel()
		_, err := NewMediaPipeWorker(MediaPipeConfig{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("script does not exist", func(t *testing.T) {
		t.Parallel()
		_, err := NewMediaPipeWorker(MediaPipeConfig{
			Script: filepath.Join(t.TempDir(), "nope.sh"),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("script not executable", func(t *testing.T) {
		t.Parallel()
		_, err := NewMediaPipeWorker(MediaPipeConfig{
			Script: writeScript(t, 0o644),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("invalid model complexity", func(t *testing.T) {
		t.Parallel()
		_, err := NewMediaPipeWorker(MediaPipeConfig{
			Script:          writeScript(t, 0o755),
			ModelComplexity: 3,
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable, "bad tuning is misconfiguration, not a missing capability")
	})

	t.Run("valid config applies confidence defaults", func(t *testing.T) {
		t.Parallel()
		w, err := NewMediaPipeWorker(MediaPipeConfig{
			Script:          writeScript(t, 0o755),
			ModelComplexity: 1,
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, w.cfg.MinDetectionConfidence, 1e-9)
		assert.InDelta(t, 0.5, w.cfg.MinTrackingConfidence, 1e-9)
	})
}

func TestToPoseFrame(t *testing.T) {
	t.Parallel()

	w := &MediaPipeWorker{}

	t.Run("empty detection keeps landmarks nil", func(t *testing.T) {
		t.Parallel()
		frame := w.toPoseFrame(workerResult{Seq: 7, TraceID: "abc"})
		assert.Equal(t, uint64(7), frame.Seq)
		assert.Equal(t, "abc", frame.TraceID)
		assert.False(t, frame.HasLandmarks())
		assert.Greater(t, frame.TimestampMS, int64(0), "receipt timestamp assigned by host")
	})

	t.Run("landmarks map positionally", func(t *testing.T) {
		t.Parallel()
		result := workerResult{
			Seq: 12,
			Landmarks: []wireLandmark{
				{X: 0.5, Y: 0.25, Z: -0.1, Visibility: 0.9, Present: true},
				{X: 0.6, Y: 0.3, Z: 0.0, Visibility: 0.2, Present: false},
			},
		}
		frame := w.toPoseFrame(result)
		require.True(t, frame.HasLandmarks())
		require.Len(t, frame.Landmarks, 2)

		lm, ok := frame.Landmark(0)
		require.True(t, ok)
		assert.InDelta(t, 0.5, lm.X, 1e-9)
		assert.InDelta(t, 0.25, lm.Y, 1e-9)
		assert.True(t, lm.Present)

		_, ok = frame.Landmark(1)
		assert.False(t, ok, "low-visibility point is stored but not usable")
		assert.False(t, frame.Landmarks[1].Present)

		_, ok = frame.Landmark(2)
		assert.False(t, ok, "out of range index")
	})
}

func TestSendFrameWhenInactive(t *testing.T) {
	t.Parallel()

	w, err := NewMediaPipeWorker(MediaPipeConfig{Script: writeScript(t, 0o755)})
	require.NoError(t, err)

	err = w.SendFrame(InputFrame{Seq: 1})
	require.Error(t, err)
	assert.Equal(t, uint64(1), w.Stats().FramesDropped)
}
