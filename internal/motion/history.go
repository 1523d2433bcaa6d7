package motion

import (
	"time"

	"github.com/kinetic-data/motion.report/internal/pose"
)

// Snapshot is one scored frame retained for temporal analysis.
type Snapshot struct {
	Timestamp time.Time
	Landmarks []pose.Landmark
	Angles    JointAngleSet
}

// History maintains a fixed-capacity sliding window of snapshots, oldest
// evicted on overflow.
type History struct {
	snapshots []*Snapshot
	capacity  int
	head      int // next write position
	size      int
}

// NewHistory creates a history buffer with the specified capacity.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 60 // Default
	}
	return &History{
		snapshots: make([]*Snapshot, capacity),
		capacity:  capacity,
	}
}

// Add stores a new snapshot, overwriting the oldest if at capacity.
func (h *History) Add(s *Snapshot) {
	h.snapshots[h.head] = s
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Previous returns the snapshot N steps back from the most recent.
// Previous(1) is the most recently added snapshot. Returns nil if the
// requested snapshot doesn't exist.
func (h *History) Previous(n int) *Snapshot {
	if n < 1 || n > h.size {
		return nil
	}
	idx := (h.head - n + h.capacity) % h.capacity
	return h.snapshots[idx]
}

// Size returns the current number of snapshots in history.
func (h *History) Size() int {
	return h.size
}

// Capacity returns the maximum number of snapshots that can be stored.
func (h *History) Capacity() int {
	return h.capacity
}

// Clear removes all snapshots from history.
func (h *History) Clear() {
	for i := range h.snapshots {
		h.snapshots[i] = nil
	}
	h.head = 0
	h.size = 0
}

// All returns the snapshots from oldest to newest.
func (h *History) All() []*Snapshot {
	if h.size == 0 {
		return nil
	}
	result := make([]*Snapshot, h.size)
	for i := 0; i < h.size; i++ {
		idx := (h.head - h.size + i + h.capacity) % h.capacity
		result[i] = h.snapshots[idx]
	}
	return result
}
