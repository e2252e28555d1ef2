package capture

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Acqua1/neon-chronos/capture/internal/v4l2"
)

// startForwarder runs forwardFrames on a bare stream and returns a channel
// that closes when the goroutine exits.
func startForwarder(ctx context.Context, s *WebcamStream, in chan v4l2.Frame, out chan Frame) <-chan struct{} {
	s.wg.Add(1)
	go s.forwardFrames(ctx, in, out)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	return done
}

func TestForwardFramesExitsOnCancel(t *testing.T) {
	t.Parallel()

	// Shutdown with no frame in flight: nothing ever sends on the internal
	// channel, so cancellation is the only exit path.
	s := &WebcamStream{}
	ctx, cancel := context.WithCancel(context.Background())
	done := startForwarder(ctx, s, make(chan v4l2.Frame), make(chan Frame, 1))

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not exit after cancel")
	}
}

func TestForwardFramesExitsOnChannelClose(t *testing.T) {
	t.Parallel()

	s := &WebcamStream{}
	in := make(chan v4l2.Frame)
	done := startForwarder(context.Background(), s, in, make(chan Frame, 1))

	close(in)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not exit after channel close")
	}
}

func TestForwardFramesForwardsAndDrops(t *testing.T) {
	t.Parallel()

	s := &WebcamStream{}
	in := make(chan v4l2.Frame, 3)
	out := make(chan Frame, 1)

	now := time.Now()
	for seq := uint64(1); seq <= 3; seq++ {
		in <- v4l2.Frame{
			Seq:       seq,
			Timestamp: now,
			Width:     1280,
			Height:    720,
			Data:      []byte{0xFF, 0xD8},
			Device:    "/dev/video0",
			TraceID:   "trace",
		}
	}
	close(in)
	done := startForwarder(context.Background(), s, in, out)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not drain the channel")
	}

	// Public channel holds one frame; the other two dropped against the full
	// channel instead of blocking.
	require.Len(t, out, 1)
	frame := <-out
	assert.Equal(t, uint64(1), frame.Seq)
	assert.Equal(t, "/dev/video0", frame.Device)
	assert.Equal(t, []byte{0xFF, 0xD8}, frame.Data)
	assert.Equal(t, uint64(2), atomic.LoadUint64(&s.framesDropped))
	assert.Positive(t, s.lastFrameAt.Load())
}
