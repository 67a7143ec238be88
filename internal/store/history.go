package store

import (
	"sync"
)

// History is a fixed-capacity, oldest-first ring of [Snapshot] values.
//
// Appending to a full History evicts the oldest snapshot first (strict FIFO,
// never reordered). All methods are safe for concurrent use.
type History struct {
	mu   sync.RWMutex
	ring []Snapshot
	head int // index of the next write
	size int
}

// NewHistory creates an empty [History] holding at most capacity snapshots.
//
// A capacity of zero or less falls back to [DefaultCapacity].
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{ring: make([]Snapshot, capacity)}
}

// Append adds a snapshot as the newest entry, evicting the oldest one when
// the history is already at capacity.
func (h *History) Append(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.head] = s
	h.head = (h.head + 1) % len(h.ring)
	if h.size < len(h.ring) {
		h.size++
	}
}

// Snapshot returns a copy of the buffered snapshots in insertion order.
//
// The returned slice is never nil and is not affected by later calls to
// [History.Append] or [History.Clear].
func (h *History) Snapshot() []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Snapshot, h.size)
	start := (h.head - h.size + len(h.ring)) % len(h.ring)
	for i := 0; i < h.size; i++ {
		out[i] = h.ring[(start+i)%len(h.ring)]
	}
	return out
}

// Clear empties the history. It does not touch anything already persisted
// or delivered to observers.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	// drop references so cleared snapshots can be collected
	for i := range h.ring {
		h.ring[i] = Snapshot{}
	}
	h.head = 0
	h.size = 0
}

// Len returns the number of buffered snapshots.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Cap returns the maximum number of snapshots the history holds.
func (h *History) Cap() int {
	return len(h.ring)
}
