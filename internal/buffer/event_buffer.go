// Package buffer provides a fixed-capacity buffer of recent progress events.
package buffer

import (
	"sync"

	"github.com/form-automation/tracker/internal/model"
)

// EventBuffer is a thread-safe circular buffer that keeps the most recent
// progress events across all jobs, up to a fixed capacity. When the buffer is
// full, the oldest event is discarded to make room.
//
// It feeds the status API's recent-activity view, so a consumer connecting
// late still sees what the tracker has been doing without replaying every
// job's full history.
type EventBuffer struct {
	mu       sync.RWMutex
	events   []model.ProgressEvent
	start    int
	count    int
	capacity int
}

// NewEventBuffer creates an EventBuffer with the given capacity. A capacity
// below 1 defaults to 1.
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &EventBuffer{
		events:   make([]model.ProgressEvent, capacity),
		capacity: capacity,
	}
}

// Add appends an event, discarding the oldest one if the buffer is full.
func (b *EventBuffer) Add(ev model.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := (b.start + b.count) % b.capacity
	b.events[idx] = ev

	if b.count < b.capacity {
		b.count++
	} else {
		b.start = (b.start + 1) % b.capacity
	}
}

// Recent returns a copy of the buffered events, oldest first.
func (b *EventBuffer) Recent() []model.ProgressEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return nil
	}

	out := make([]model.ProgressEvent, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.events[(b.start+i)%b.capacity]
	}
	return out
}

// Clear removes all buffered events.
func (b *EventBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.start = 0
	b.count = 0
}

// Len returns the number of buffered events.
func (b *EventBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Cap returns the capacity of the buffer.
func (b *EventBuffer) Cap() int {
	return b.capacity
}
