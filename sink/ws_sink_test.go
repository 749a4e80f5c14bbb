package sink

import (
	"chat-gen/domain/event"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWsSink_Buffers_Events(t *testing.T) {
	req := require.New(t)
	s := NewWsSink(2)
	evt := event.MessagePartial{Chat: "chat-1", Partial: "Hel"}

	req.NoError(s.Consume(context.Background(), evt))

	received := <-s.Events
	req.Equal(evt, received)
}

func TestWsSink_Drops_When_Full(t *testing.T) {
	req := require.New(t)
	s := NewWsSink(1)
	ctx := context.Background()

	// Given a full buffer
	req.NoError(s.Consume(ctx, event.MessagePartial{Chat: "chat-1", Partial: "first"}))

	// When another event arrives, it is dropped rather than blocking
	req.NoError(s.Consume(ctx, event.MessagePartial{Chat: "chat-1", Partial: "second"}))

	req.Len(s.Events, 1)
}
