package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownEvent is returned when no handler is registered for an event kind
var ErrUnknownEvent = errors.New("unknown event kind")

// Handler processes one event
type Handler func(ctx context.Context, event Event) error

// Dispatcher routes events to the handler registered for their kind
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventKind]Handler
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventKind]Handler)}
}

// Handle registers h for kind, replacing any earlier registration
func (d *Dispatcher) Handle(kind EventKind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Dispatch runs the handler registered for the event's kind
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	d.mu.RLock()
	h, ok := d.handlers[event.Kind]
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event.Kind)
	}
	return h(ctx, event)
}
