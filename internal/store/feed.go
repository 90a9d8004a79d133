package store

import (
	"sync"
)

// Table names a collection that emits change notifications
type Table string

const (
	TableProjects Table = "projects"
	TableTasks    Table = "tasks"
)

// Op is the kind of change that happened
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	// OpUnknown is used when a backend only knows that something changed
	OpUnknown Op = "UNKNOWN"
)

// Event is a change notification
type Event struct {
	Table Table
	Op    Op
}

// Subscription is a cancellable handle on a stream of events.
// Events is closed after Close returns.
type Subscription struct {
	events <-chan Event
	cancel func()
	once   sync.Once
}

// NewSubscription wraps an event channel and the function that stops it.
// cancel must eventually cause events to be closed.
func NewSubscription(events <-chan Event, cancel func()) *Subscription {
	return &Subscription{events: events, cancel: cancel}
}

// Events returns the notification channel
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Inert returns a subscription that never delivers anything
func Inert() *Subscription {
	ch := make(chan Event)
	return NewSubscription(ch, func() { close(ch) })
}

// Hub fans events out to in-process subscribers.
// Each subscriber has a one-slot buffer: since subscribers refetch whole
// collections, a pending signal already covers any that arrive after it.
type Hub struct {
	mu     sync.Mutex
	subs   map[Table]map[chan Event]struct{}
	closed bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[Table]map[chan Event]struct{})}
}

// Subscribe registers a listener for table
func (h *Hub) Subscribe(table Table) *Subscription {
	ch := make(chan Event, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return NewSubscription(ch, nil)
	}
	if h.subs[table] == nil {
		h.subs[table] = make(map[chan Event]struct{})
	}
	h.subs[table][ch] = struct{}{}
	h.mu.Unlock()

	return NewSubscription(ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[table][ch]; ok {
			delete(h.subs[table], ch)
			close(ch)
		}
	})
}

// Publish delivers ev to every subscriber of ev.Table without blocking
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.Table] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends every subscription
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for table, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
		delete(h.subs, table)
	}
}
