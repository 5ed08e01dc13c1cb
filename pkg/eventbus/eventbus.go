package eventbus

import "context"

// Event is anything published on a Bus. Type is the routing key.
type Event interface {
	Type() string
}

// HandlerFunc processes a single event.
type HandlerFunc func(ctx context.Context, e Event) error

// Bus publishes events and dispatches them to registered handlers.
type Bus interface {
	Emit(ctx context.Context, event Event) error
	Register(eventType string, handler HandlerFunc)
}
