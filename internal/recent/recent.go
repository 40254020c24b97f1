// Package recent tracks the most recently created or updated entities.
package recent

import (
	"sort"
	"sync"

	"taskmaster/backend"
)

// DefaultCapacity is the number of entries kept when no capacity is configured
const DefaultCapacity = 5

// Tracker maintains a bounded, most-recent-first list of entities with no
// repeated ids. It is safe for concurrent use.
type Tracker[E backend.Entity] struct {
	mu          sync.Mutex
	capacity    int
	items       []E
	subscribers map[int]chan []E
	nextSub     int
}

// New creates a tracker holding at most capacity entities.
// A capacity of zero or less selects DefaultCapacity.
func New[E backend.Entity](capacity int) *Tracker[E] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker[E]{
		capacity:    capacity,
		items:       make([]E, 0, capacity),
		subscribers: make(map[int]chan []E),
	}
}

// Record moves e to the front of the list, replacing any entry with the same
// id, and evicts the oldest entry when the list exceeds its capacity.
func (t *Tracker[E]) Record(e E) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := e.EntityID()
	next := make([]E, 0, t.capacity)
	next = append(next, e)
	for _, item := range t.items {
		if len(next) == t.capacity {
			break
		}
		if item.EntityID() != id {
			next = append(next, item)
		}
	}
	t.items = next
	t.publish()
}

// Seed records items in ascending modification order so the resulting list
// reflects which entities were touched last according to their timestamps.
func (t *Tracker[E]) Seed(items []E) {
	ordered := make([]E, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ModifiedAt().Before(ordered[j].ModifiedAt())
	})
	for _, e := range ordered {
		t.Record(e)
	}
}

// List returns a snapshot of the tracked entities, most recent first.
func (t *Tracker[E]) List() []E {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Len returns the number of tracked entities.
func (t *Tracker[E]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Capacity returns the maximum number of tracked entities.
func (t *Tracker[E]) Capacity() int {
	return t.capacity
}

// Subscribe returns a channel that receives a snapshot after every Record.
// Only the latest snapshot is buffered, so a slow reader skips intermediate
// states. The returned function unsubscribes and closes the channel.
func (t *Tracker[E]) Subscribe() (<-chan []E, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSub
	t.nextSub++
	ch := make(chan []E, 1)
	t.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subscribers, id)
			close(ch)
		})
	}
}

// snapshot copies the list. Callers hold t.mu.
func (t *Tracker[E]) snapshot() []E {
	out := make([]E, len(t.items))
	copy(out, t.items)
	return out
}

// publish delivers the current list to subscribers, replacing any unread
// snapshot. Callers hold t.mu.
func (t *Tracker[E]) publish() {
	for _, ch := range t.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- t.snapshot()
	}
}
