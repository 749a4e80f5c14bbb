package runtime

import (
	"chat-gen/contract"
	"chat-gen/domain/event"
	"context"
	"log/slog"
	"time"
)

// Publisher fans a domain event out to the live sinks of a chat's
// audience, plus any permanent sinks (indexing, projections).
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. Publisher is not a message broker.
type Publisher struct {
	log            *slog.Logger
	registry       contract.IRegistry
	permanentSinks []contract.EventSink
	sinkTimeout    time.Duration
}

func NewPublisher(log *slog.Logger, registry contract.IRegistry, sinkTimeout time.Duration) *Publisher {
	return &Publisher{log: log, registry: registry, sinkTimeout: sinkTimeout}
}

// Add registers sinks that receive every published event regardless of
// audience. Not safe to call once publishing started.
func (p *Publisher) Add(sinks ...contract.EventSink) {
	p.permanentSinks = append(p.permanentSinks, sinks...)
}

// PublishMany delivers the event to each member's live sink. A slow or
// failing sink only loses its own copy.
func (p *Publisher) PublishMany(ctx context.Context, memberIDs []string, e event.DomainEvent) {
	sinks := append(p.registry.GetSinksFor(memberIDs), p.permanentSinks...)
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, p.sinkTimeout)
		if err := sink.Consume(sinkCtx, e); err != nil {
			p.log.Debug("Sink rejected event", "chat_id", e.ChatID(), "error", err)
		}
		cancel()
	}
}
