package sink

import (
	"chat-gen/domain/event"
	"chat-gen/repositories"
	"context"
	"log/slog"
)

// SearchSink keeps the full-text index in step with committed messages.
// It is registered as a permanent sink so it sees every broadcast.
type SearchSink struct {
	index repositories.ISearchIndex
	store repositories.IStore
	log   *slog.Logger
}

func NewSearchSink(index repositories.ISearchIndex, store repositories.IStore, log *slog.Logger) *SearchSink {
	return &SearchSink{index: index, store: store, log: log}
}

func (s *SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageCreated:
		// Ephemeral replies never touch disk, so they never touch the index.
		if evt.Msg.Ephemeral {
			return nil
		}
		if err := s.index.Index(evt.Msg); err != nil {
			s.log.Warn("Failed to index message", "message_id", evt.Msg.ID, "error", err)
		}
	case event.MessageRetry:
		// The store was already edited when this event was published.
		msg, _, err := s.store.GetMessageAndChat(evt.MessageID)
		if err != nil {
			s.log.Warn("Failed to load retried message for indexing", "message_id", evt.MessageID, "error", err)
			return nil
		}
		if err := s.index.Index(msg); err != nil {
			s.log.Warn("Failed to re-index message", "message_id", evt.MessageID, "error", err)
		}
	}
	return nil
}
