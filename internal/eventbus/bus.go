// Package eventbus carries post-commit mutation notifications out of the
// batch engine. The engine never reaches into caches or other read-side state
// directly: it announces which identifiers were touched and lets subscribers
// decide their own eviction policy.
package eventbus

import (
	"context"
	"log"
	"sync"
)

// Bus dispatches events to registered handlers sequentially, in registration
// order. Handler errors are logged but do not stop the chain.
type Bus struct {
	handlers []Handler
	mu       sync.RWMutex
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{}
}

// Register adds a handler to the bus.
func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Dispatch sends an event to all registered handlers that handle its type.
func (b *Bus) Dispatch(ctx context.Context, event *Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	matching := b.matchingHandlers(event.Type)
	b.mu.RUnlock()

	for _, h := range matching {
		if ctx.Err() != nil {
			return
		}
		if err := h.Handle(ctx, event); err != nil {
			log.Printf("eventbus: handler %q error for %s: %v", h.ID(), event.Type, err)
		}
	}
}

// Handlers returns all registered handlers (for introspection).
func (b *Bus) Handlers() []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Handler, len(b.handlers))
	copy(out, b.handlers)
	return out
}

// matchingHandlers must be called with at least a read lock held.
func (b *Bus) matchingHandlers(eventType EventType) []Handler {
	var matched []Handler
	for _, h := range b.handlers {
		for _, t := range h.Handles() {
			if t == eventType {
				matched = append(matched, h)
				break
			}
		}
	}
	return matched
}
