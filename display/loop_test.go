package display

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Acqua1/neon-chronos/history"
	"github.com/Acqua1/neon-chronos/pose"
	"github.com/Acqua1/neon-chronos/trail"
)

// fakeTarget records the call sequence and can fail or close on demand.
type fakeTarget struct {
	mu sync.Mutex

	beginFrames int
	uploads     int
	composites  int
	closed      bool

	// compositeErr returns the error for the nth composite (1-based).
	compositeErr func(n int) error
}

func (f *fakeTarget) BeginFrame() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beginFrames++
}

func (f *fakeTarget) UploadLayer(layer *trail.Layer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
}

func (f *fakeTarget) Composite() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.composites++
	if f.compositeErr != nil {
		return f.compositeErr(f.composites)
	}
	return nil
}

func (f *fakeTarget) Resize(width, height int) {}

func (f *fakeTarget) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestLoop(t *testing.T, target Target, refreshHz float64) *Loop {
	t.Helper()
	store := history.NewStore(history.DefaultCapacity)
	store.Append(pose.Frame{
		TimestampMS: time.Now().UnixMilli(),
		Landmarks:   make([]pose.Landmark, pose.NumLandmarks),
	})

	renderer, err := trail.NewRenderer(trail.Config{Layers: 4})
	require.NoError(t, err)

	loop, err := NewLoop(store, renderer, target, refreshHz)
	require.NoError(t, err)
	return loop
}

func TestNewLoopValidation(t *testing.T) {
	t.Parallel()

	renderer, err := trail.NewRenderer(trail.Config{})
	require.NoError(t, err)
	store := history.NewStore(10)

	_, err = NewLoop(nil, renderer, &fakeTarget{}, 60)
	assert.Error(t, err)
	_, err = NewLoop(store, nil, &fakeTarget{}, 60)
	assert.Error(t, err)
	_, err = NewLoop(store, renderer, nil, 60)
	assert.Error(t, err)
	_, err = NewLoop(store, renderer, &fakeTarget{}, 500)
	assert.Error(t, err)

	// Zero refresh rate falls back to the default.
	loop, err := NewLoop(store, renderer, &fakeTarget{}, 0)
	require.NoError(t, err)
	assert.NotNil(t, loop)
}

// TestLoopFrameSequence validates the per-frame contract: BeginFrame, one
// upload per layer, then Composite - and that window close stops the loop
// cleanly.
func TestLoopFrameSequence(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{
		compositeErr: func(n int) error {
			if n >= 3 {
				return ErrDisplayClosed
			}
			return nil
		},
	}
	loop := newTestLoop(t, target, 200)

	err := loop.Run(context.Background())
	require.NoError(t, err, "window close is normal shutdown")

	assert.Equal(t, 3, target.composites)
	assert.Equal(t, 3, target.beginFrames)
	assert.Equal(t, 3*4, target.uploads, "one upload per layer per frame")
	assert.Equal(t, uint64(2), loop.Stats().Frames, "the closing composite is not counted")
}

// TestLoopSurvivesCompositeError validates that a failed frame is logged and
// counted, never fatal.
func TestLoopSurvivesCompositeError(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{
		compositeErr: func(n int) error {
			switch n {
			case 1:
				return errors.New("upload stall")
			case 4:
				return ErrDisplayClosed
			default:
				return nil
			}
		},
	}
	loop := newTestLoop(t, target, 200)

	err := loop.Run(context.Background())
	require.NoError(t, err)

	stats := loop.Stats()
	assert.Equal(t, uint64(1), stats.CompositeErrors)
	assert.Equal(t, uint64(2), stats.Frames)
}

// TestLoopCancellation validates that context cancellation stops ticking
// before the caller tears down target resources.
func TestLoopCancellation(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{}
	loop := newTestLoop(t, target, 200)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// Let a few frames through, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("render loop did not stop after cancellation")
	}

	// Run has returned: closing the target now cannot race an upload.
	framesAtStop := target.composites
	require.NoError(t, target.Close())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, framesAtStop, target.composites, "no composite after Run returned")
}
