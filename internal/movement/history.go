package movement

import "sync"

// DefaultHistoryCapacity is the number of fixes the trajectory analysis looks
// back over.
const DefaultHistoryCapacity = 6

// HistoryBuffer holds the most recent fixes, newest first. Push and Snapshot
// are serialised by a mutex; Snapshot copies at most capacity entries, so the
// producer is never held for longer than that copy.
type HistoryBuffer struct {
	mu       sync.Mutex
	samples  []PositionSample
	capacity int
}

// NewHistoryBuffer creates a buffer holding up to capacity fixes.
func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &HistoryBuffer{
		samples:  make([]PositionSample, 0, capacity),
		capacity: capacity,
	}
}

// Push inserts s at the front, evicting the oldest entry once the buffer is
// full. The buffer does not re-sort by timestamp: insertion order is recency.
func (b *HistoryBuffer) Push(s PositionSample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples) < b.capacity {
		b.samples = append(b.samples, PositionSample{})
	}
	// shift right by one, dropping the last element when full
	copy(b.samples[1:], b.samples[:len(b.samples)-1])
	b.samples[0] = s
}

// Snapshot returns a point-in-time copy, most recent first.
func (b *HistoryBuffer) Snapshot() []PositionSample {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]PositionSample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Len returns the number of fixes currently held.
func (b *HistoryBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Capacity returns the maximum number of fixes held.
func (b *HistoryBuffer) Capacity() int {
	return b.capacity
}

// Reset drops all fixes.
func (b *HistoryBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
}
