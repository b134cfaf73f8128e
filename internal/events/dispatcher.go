package events

import (
	"context"
	"sync"
)

// EventHandler consumes one published event. A handler error does not stop
// delivery to the remaining handlers.
type EventHandler func(context.Context, Event) error

// Dispatcher fans domain events out to subscribed handlers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// memoryDispatcher delivers events synchronously in process. Publish
// returns only after every handler ran, which keeps presence and unread
// bookkeeping ordered with the chat lifecycle events that caused it.
type memoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

// NewInMemoryDispatcher builds an empty dispatcher.
func NewInMemoryDispatcher() Dispatcher {
	return &memoryDispatcher{listeners: make(map[EventType][]EventHandler)}
}

// Publish invokes every handler subscribed to the event's type, in
// subscription order.
func (d *memoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.listeners[event.Type]...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		// a failing subscriber must not starve the ones after it
		_ = handler(ctx, event)
	}
	return nil
}

// Subscribe adds a handler for one event type.
func (d *memoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}
