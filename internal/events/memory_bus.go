package events

import (
	"sync"
	"time"
)

// #region memory-bus

// MemoryBus is the in-process fan-out implementation. Handlers run
// synchronously in subscription order; a handler must not block.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []func(Event)
	closed   bool
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Subscribe registers a handler for every subsequent event.
func (b *MemoryBus) Subscribe(handler func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish delivers the event to all handlers. Events published after Close
// are dropped.
func (b *MemoryBus) Publish(event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, h := range b.handlers {
		h(event)
	}
}

// Close stops delivery.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = nil
	return nil
}

// #endregion memory-bus

// #region nop-bus

// NopBus discards every event. Useful as a default when no observer is wired.
type NopBus struct{}

func (NopBus) Publish(Event) {}
func (NopBus) Close() error  { return nil }

// #endregion nop-bus
