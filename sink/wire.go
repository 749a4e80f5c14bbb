package sink

import (
	"chat-gen/domain/event"

	"github.com/google/uuid"
)

// WireEvent is the JSON envelope pushed over a websocket. Type selects
// which optional fields are populated.
type WireEvent struct {
	Type      string `json:"type"`
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id,omitempty"`
	SenderID  string `json:"sender_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Partial   string `json:"partial,omitempty"`
	Error     string `json:"error,omitempty"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
	SentAt    int64  `json:"sent_at,omitempty"`
}

const (
	TypeMessageCreated = "message-created"
	TypeMessagePartial = "message-partial"
	TypeMessageError   = "message-error"
	TypeMessageRetry   = "message-retry"
)

// ToWire flattens a domain event into its wire envelope.
func ToWire(e event.DomainEvent) WireEvent {
	switch evt := e.(type) {
	case event.MessageCreated:
		return WireEvent{
			Type:      TypeMessageCreated,
			ChatID:    string(evt.Msg.ChatID),
			MessageID: evt.Msg.ID.String(),
			SenderID:  evt.Msg.SenderID,
			Content:   evt.Msg.Content,
			Ephemeral: evt.Msg.Ephemeral,
			SentAt:    evt.Msg.SentAt.UnixMilli(),
		}
	case event.MessagePartial:
		return WireEvent{
			Type:      TypeMessagePartial,
			ChatID:    string(evt.Chat),
			MessageID: idOrEmpty(evt.MessageID),
			Partial:   evt.Partial,
		}
	case event.MessageError:
		return WireEvent{
			Type:      TypeMessageError,
			ChatID:    string(evt.Chat),
			MessageID: idOrEmpty(evt.MessageID),
			Error:     evt.Error,
		}
	case event.MessageRetry:
		return WireEvent{
			Type:      TypeMessageRetry,
			ChatID:    string(evt.Chat),
			MessageID: evt.MessageID.String(),
			Content:   evt.Message,
		}
	}
	return WireEvent{ChatID: string(e.ChatID())}
}

func idOrEmpty(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
