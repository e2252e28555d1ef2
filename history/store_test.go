package history

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Acqua1/neon-chronos/pose"
)

func frameAt(ts int64) pose.Frame {
	return pose.Frame{TimestampMS: ts}
}

func timestamps(frames []pose.Frame) []int64 {
	out := make([]int64, len(frames))
	for i, f := range frames {
		out[i] = f.TimestampMS
	}
	return out
}

func TestStoreBound(t *testing.T) {
	t.Parallel()

	t.Run("under capacity keeps everything", func(t *testing.T) {
		t.Parallel()
		s := NewStore(5)
		for ts := int64(1); ts <= 3; ts++ {
			s.Append(frameAt(ts))
		}
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, []int64{1, 2, 3}, timestamps(s.Snapshot()))
	})

	t.Run("over capacity evicts oldest", func(t *testing.T) {
		t.Parallel()
		s := NewStore(3)
		for ts := int64(1); ts <= 4; ts++ {
			s.Append(frameAt(ts))
		}
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, []int64{2, 3, 4}, timestamps(s.Snapshot()))
	})

	t.Run("len is min of appends and capacity", func(t *testing.T) {
		t.Parallel()
		for _, n := range []int{0, 1, 7, 20, 50} {
			s := NewStore(20)
			for i := 0; i < n; i++ {
				s.Append(frameAt(int64(i)))
			}
			want := n
			if want > 20 {
				want = 20
			}
			assert.Equalf(t, want, s.Len(), "after %d appends", n)
		}
	})

	t.Run("retained frames are the most recent in arrival order", func(t *testing.T) {
		t.Parallel()
		s := NewStore(10)
		for ts := int64(0); ts < 100; ts++ {
			s.Append(frameAt(ts))
		}
		assert.Equal(t, []int64{90, 91, 92, 93, 94, 95, 96, 97, 98, 99},
			timestamps(s.Snapshot()))
	})
}

func TestStoreTimestampClamp(t *testing.T) {
	t.Parallel()

	s := NewStore(10)
	s.Append(frameAt(100))
	s.Append(frameAt(90)) // regresses: clamped to 100
	s.Append(frameAt(110))

	got := timestamps(s.Snapshot())
	require.Len(t, got, 3)
	assert.Equal(t, []int64{100, 100, 110}, got)
	assert.Equal(t, uint64(1), s.Stats().Clamped)

	// Snapshot ordering invariant holds for any append sequence.
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
	}
}

func TestSnapshotIsStable(t *testing.T) {
	t.Parallel()

	s := NewStore(4)
	s.Append(frameAt(1))
	s.Append(frameAt(2))

	snap := s.Snapshot()
	require.Equal(t, []int64{1, 2}, timestamps(snap))

	// Later appends (including evicting ones) must not disturb the snapshot.
	for ts := int64(3); ts <= 10; ts++ {
		s.Append(frameAt(ts))
	}
	assert.Equal(t, []int64{1, 2}, timestamps(snap))
}

func TestStoreClear(t *testing.T) {
	t.Parallel()

	s := NewStore(3)
	s.Append(frameAt(1))
	s.Append(frameAt(2))
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.Snapshot())

	// Store remains usable after Clear.
	s.Append(frameAt(7))
	assert.Equal(t, []int64{7}, timestamps(s.Snapshot()))
}

// TestStoreConcurrentAccess validates the append/snapshot paths under the
// race detector: one goroutine appending (pose source), one snapshotting
// (render loop). Run with -race.
func TestStoreConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := NewStore(50)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for ts := int64(0); ts < 500; ts++ {
			s.Append(frameAt(ts))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			snap := s.Snapshot()
			got := timestamps(snap)
			for j := 1; j < len(got); j++ {
				if got[j] < got[j-1] {
					t.Errorf("snapshot out of order at %d: %v", j, got)
					return
				}
			}
		}
	}()

	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
