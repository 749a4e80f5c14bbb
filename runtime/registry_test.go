package runtime

import (
	"chat-gen/domain/event"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Subscribe_One_Participant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID := uuid.NewString()
	sink := Sink{}

	// Given no user is connected
	req.Empty(registry.GetSinksFor([]string{participantID}))

	// When a participant subscribes
	registry.Subscribe(participantID, sink)

	// Then
	sinks := registry.GetSinksFor([]string{participantID})
	req.Len(sinks, 1)
	req.Contains(sinks, sink)
}

func TestRegistry_GetSinksFor_Skips_Offline_Participants(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	online := uuid.NewString()
	offline := uuid.NewString()
	sink := Sink{}

	// Given one of two audience members is connected
	registry.Subscribe(online, sink)

	// When resolving the whole audience
	sinks := registry.GetSinksFor([]string{online, offline})

	// Then only the live connection comes back
	req.Len(sinks, 1)
}

func TestRegistry_Reconnect_Replaces_Previous_Sink(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID := uuid.NewString()
	first := &countingSink{}
	second := &countingSink{}

	// When the participant reconnects
	registry.Subscribe(participantID, first)
	registry.Subscribe(participantID, second)

	// Then only the newest sink is live
	sinks := registry.GetSinksFor([]string{participantID})
	req.Len(sinks, 1)
	req.Same(second, sinks[0])
}

func TestRegistry_Unsubscribe_One_Participant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID := uuid.NewString()
	sink := Sink{}

	// Given a subscribed participant
	registry.Subscribe(participantID, sink)

	// When the participant unsubscribes
	registry.Unsubscribe(participantID)

	// Then no sink is left
	req.Empty(registry.GetSinksFor([]string{participantID}))
}

type countingSink struct {
	consumed int
}

func (s *countingSink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.consumed++
	return nil
}
