package event

import (
	"chat-gen/domain/chat"

	"github.com/google/uuid"
)

// DomainEvent is anything broadcast to a chat's audience.
type DomainEvent interface {
	ChatID() chat.ChatID
}

// MessageCreated announces a committed message, either the caller's own
// message or a freshly generated character reply.
type MessageCreated struct {
	Msg chat.Message
}

func (e MessageCreated) ChatID() chat.ChatID { return e.Msg.ChatID }

// MessagePartial carries the accumulated generated text so far.
// Partials are best-effort; clients may see partials from a superseded
// session after a newer one started.
type MessagePartial struct {
	Chat      chat.ChatID
	MessageID *uuid.UUID // set when regenerating an existing message
	Partial   string
}

func (e MessagePartial) ChatID() chat.ChatID { return e.Chat }

// MessageError forwards a generation backend error. It does not imply
// the generation stopped; further partials may follow.
type MessageError struct {
	Chat      chat.ChatID
	MessageID *uuid.UUID
	Error     string
}

func (e MessageError) ChatID() chat.ChatID { return e.Chat }

// MessageRetry announces the final text of a regenerated message.
type MessageRetry struct {
	Chat      chat.ChatID
	MessageID uuid.UUID
	Message   string
}

func (e MessageRetry) ChatID() chat.ChatID { return e.Chat }
