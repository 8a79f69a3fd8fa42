package core

import "sync"

// EventBus fans events out to subscriber channels. The zero value is ready
// to use and a nil *EventBus drops every event.
type EventBus struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewEventBus creates an event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe returns a channel for receiving events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (b *EventBus) Subscribe() <-chan Event {
	ch := make(chan Event, 100)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Subscribe.
// The channel is not closed. After Unsubscribe returns, no further events
// will be sent to it.
func (b *EventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit sends e to every subscriber, dropping it for subscribers whose
// buffer is full.
func (b *EventBus) Emit(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]chan Event, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}
