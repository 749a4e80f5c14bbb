// Package chat contains core concepts of the generation system.
// This file defines Message records and related rules.
// Messages are immutable once committed, except through an explicit edit.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a single chat message, authored either by a user
// or by the chat's character. Ephemeral messages are broadcast to the
// audience but are not required to be listed afterwards.
type Message struct {
	ID        uuid.UUID // unique identifier, assigned by the store
	ChatID    ChatID
	SenderID  string // user or character identity
	Content   string
	Lang      string // detected language tag, best effort
	Ephemeral bool
	SentAt    time.Time
}
