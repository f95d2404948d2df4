// Package eventlog provides the bounded, append-only ring buffer of
// alarm events consumed by the external reporting collaborator.
package eventlog

import (
	"github.com/avolkov/plant-controller/internal/domain/plant"
)

// DefaultCapacity bounds the ring when no capacity is configured.
const DefaultCapacity = 256

// Log is a bounded append-only ring of alarm events. When full, the
// oldest entry is evicted. Stored events are never mutated.
//
// Log is not safe for concurrent use; the scan loop is single-threaded
// and readers consume snapshots.
type Log struct {
	events []plant.AlarmEvent
	head   int
	size   int
}

// New returns a ring with the given capacity (DefaultCapacity if <= 0).
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Log{
		events: make([]plant.AlarmEvent, capacity),
	}
}

// Append stores an event, evicting the oldest one when the ring is full.
func (l *Log) Append(evt plant.AlarmEvent) {
	idx := (l.head + l.size) % len(l.events)
	l.events[idx] = evt

	if l.size < len(l.events) {
		l.size++

		return
	}

	// Full: the slot we just wrote replaced the oldest entry.
	l.head = (l.head + 1) % len(l.events)
}

// Len returns the number of stored events.
func (l *Log) Len() int {
	return l.size
}

// Capacity returns the maximum number of stored events.
func (l *Log) Capacity() int {
	return len(l.events)
}

// Snapshot returns the stored events oldest first. The returned slice is
// a copy and safe to hand to external consumers.
func (l *Log) Snapshot() []plant.AlarmEvent {
	out := make([]plant.AlarmEvent, 0, l.size)
	for i := 0; i < l.size; i++ {
		out = append(out, l.events[(l.head+i)%len(l.events)])
	}

	return out
}
