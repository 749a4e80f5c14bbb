package chat

import (
	"github.com/google/uuid"
)

type Command interface {
	ChatID() ChatID
}

// GenerateCommand asks for a fresh AI reply in a chat. The caller's own
// message is persisted and broadcast before generation starts.
type GenerateCommand struct {
	Chat      ChatID
	UserID    string
	Message   string
	History   []Message
	Ephemeral bool
}

func (c GenerateCommand) ChatID() ChatID { return c.Chat }

// RetryCommand regenerates the text of an existing message in place.
type RetryCommand struct {
	Chat      ChatID
	UserID    string
	MessageID uuid.UUID
	Message   string
	History   []Message
	Ephemeral bool
}

func (c RetryCommand) ChatID() ChatID { return c.Chat }

type GetMessageCommand struct {
	Chat   ChatID
	Cursor *string
}

func (c GetMessageCommand) ChatID() ChatID { return c.Chat }
