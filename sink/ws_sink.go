package sink

import (
	"chat-gen/domain/event"
	"context"
)

// WsSink decouples the publisher from a websocket connection. Consume
// drops the event into a buffered channel; the connection handler owns
// the pump that writes it out.
type WsSink struct {
	Events chan event.DomainEvent
}

func NewWsSink(bufferSize int) *WsSink {
	return &WsSink{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by fanout.
// A full buffer means the client is too slow; the event is dropped
// rather than blocking the whole broadcast.
func (s *WsSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
