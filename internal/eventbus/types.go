package eventbus

import (
	"context"
	"time"
)

// EventType identifies an event flowing through the bus.
type EventType string

const (
	// EventBatchCommitted fires after a batch finishes without rolling back.
	// It names every real identifier the batch touched.
	EventBatchCommitted EventType = "BatchCommitted"
)

// TouchedItem is one identifier a batch mutated, with the kind of mutation.
type TouchedItem struct {
	RealID string `json:"real_id"`
	Type   string `json:"type"`
	Action string `json:"action"` // create, update, complete, delete
}

// Event is the envelope dispatched to handlers.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Touched   []TouchedItem `json:"touched,omitempty"`
}

// Handler processes events on the bus. Handlers are called sequentially in
// registration order for matching event types.
type Handler interface {
	// ID returns a unique identifier for this handler.
	ID() string

	// Handles returns the event types this handler processes.
	Handles() []EventType

	// Handle processes a single event. Returning an error logs a warning but
	// does not stop the handler chain.
	Handle(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	Name   string
	Events []EventType
	Fn     func(ctx context.Context, event *Event) error
}

func (h *HandlerFunc) ID() string { return h.Name }

func (h *HandlerFunc) Handles() []EventType { return h.Events }

func (h *HandlerFunc) Handle(ctx context.Context, event *Event) error {
	return h.Fn(ctx, event)
}
