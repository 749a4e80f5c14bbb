// Package ai wraps the text-generation backend behind a stream contract.
// It has no knowledge of locking or persistence.
package ai

import (
	"chat-gen/domain/chat"
	"context"
)

// StreamRequest carries everything the backend needs to produce a reply.
type StreamRequest struct {
	SenderID string
	ChatID   chat.ChatID
	Message  string
	History  []chat.Message
}

// StreamEvent is either a Partial or a Failure.
type StreamEvent interface {
	streamEvent()
}

// Partial carries the accumulated generated text so far. The last Partial
// seen before the stream ends is the full generated text; there is no
// distinct "final" event.
type Partial struct {
	Text string
}

// Failure forwards a backend error. A Failure does not end the stream;
// further events may follow until the channel closes.
type Failure struct {
	Message string
}

func (Partial) streamEvent() {}
func (Failure) streamEvent() {}

// IStreamAdapter produces a lazy, finite, non-restartable event sequence.
// Closing the channel signals completion, success or not. Consumers must
// drain in sequence order and must not assume any bound on its length.
type IStreamAdapter interface {
	ResponseStream(ctx context.Context, req StreamRequest) (<-chan StreamEvent, error)
}
