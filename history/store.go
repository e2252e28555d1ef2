package history

import (
	"sync"

	"github.com/Acqua1/neon-chronos/pose"
)

// DefaultCapacity is the default bound on retained pose frames.
// At ~30 detections/sec this covers a little under 7 seconds, comfortably
// more than the maximum trail delay.
const DefaultCapacity = 200

// Store is an append-only, capacity-bounded, time-ordered sequence of pose
// frames.
//
// Contract:
//   - Append adds at the tail; when the bound is exceeded the oldest frame
//     is evicted (FIFO). Append of a well-formed frame always succeeds;
//     eviction is not an error.
//   - Snapshot returns the current sequence by value, oldest first, so a
//     concurrent consumer sees a stable view unaffected by later appends.
//   - No search capability: all querying is FindNearest's job.
//
// Thread-safety: all methods safe for concurrent use. Append is called from
// the pose-source goroutine, Snapshot from the render loop.
type Store struct {
	mu       sync.Mutex
	frames   []pose.Frame
	capacity int
	head     int // next write position
	size     int
	appended uint64
	clamped  uint64
}

// NewStore creates a store bounded to capacity frames. Non-positive
// capacities fall back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Store{
		frames:   make([]pose.Frame, capacity),
		capacity: capacity,
	}
}

// Append adds a frame at the tail, evicting the oldest when full.
//
// The non-decreasing timestamp invariant is enforced here: a frame whose
// timestamp regresses below the current tail (clock adjustment, delayed
// delivery) is clamped to the tail's timestamp rather than rejected.
func (s *Store) Append(frame pose.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size > 0 {
		last := s.frames[(s.head-1+s.capacity)%s.capacity]
		if frame.TimestampMS < last.TimestampMS {
			frame.TimestampMS = last.TimestampMS
			s.clamped++
		}
	}

	s.frames[s.head] = frame
	s.head = (s.head + 1) % s.capacity
	if s.size < s.capacity {
		s.size++
	}
	s.appended++
}

// Snapshot returns all retained frames, oldest first, as a fresh slice.
// Frames are immutable after construction, so the shallow copy is a stable
// view.
func (s *Store) Snapshot() []pose.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size == 0 {
		return nil
	}
	out := make([]pose.Frame, s.size)
	for i := 0; i < s.size; i++ {
		out[i] = s.frames[(s.head-s.size+i+s.capacity)%s.capacity]
	}
	return out
}

// Len returns the current number of retained frames.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Capacity returns the retention bound.
func (s *Store) Capacity() int {
	return s.capacity
}

// Clear drops all retained frames.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.frames {
		s.frames[i] = pose.Frame{}
	}
	s.head = 0
	s.size = 0
}

// StoreStats is a snapshot of store counters.
type StoreStats struct {
	// Size is the current number of retained frames.
	Size int
	// Appended is the lifetime count of appends.
	Appended uint64
	// Clamped counts frames whose timestamp was clamped to keep ordering.
	// Non-zero values indicate clock trouble upstream, not data loss.
	Clamped uint64
}

// Stats returns operational counters (non-blocking snapshot).
func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreStats{Size: s.size, Appended: s.appended, Clamped: s.clamped}
}
