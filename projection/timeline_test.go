package projection

import (
	"chat-gen/sink"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimeline_Tracks_Draft_Until_Commit(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	// Given a generation in flight
	timeline.Consume(sink.WireEvent{Type: sink.TypeMessagePartial, Partial: "Hel"})
	timeline.Consume(sink.WireEvent{Type: sink.TypeMessagePartial, Partial: "Hello"})
	req.Equal("Hello", timeline.Draft)
	req.Empty(timeline.Entries)

	// When the reply is committed
	timeline.Consume(sink.WireEvent{
		Type:      sink.TypeMessageCreated,
		MessageID: "msg-1",
		SenderID:  "character-1",
		Content:   "Hello there",
	})

	// Then the draft is gone and the entry is in place
	req.Empty(timeline.Draft)
	req.Len(timeline.Entries, 1)
	req.Equal("Hello there", timeline.Entries[0].Content)
	req.Equal("character-1", timeline.Entries[0].SenderID)
}

func TestTimeline_Deduplicates_Replayed_Messages(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	evt := sink.WireEvent{Type: sink.TypeMessageCreated, MessageID: "msg-1", Content: "hello"}

	timeline.Consume(evt)
	timeline.Consume(evt)

	req.Len(timeline.Entries, 1)
}

func TestTimeline_Edits_In_Place_On_Retry(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	timeline.Consume(sink.WireEvent{Type: sink.TypeMessageCreated, MessageID: "msg-1", Content: "first draft"})
	timeline.Consume(sink.WireEvent{Type: sink.TypeMessageCreated, MessageID: "msg-2", Content: "unrelated"})

	timeline.Consume(sink.WireEvent{Type: sink.TypeMessageRetry, MessageID: "msg-1", Content: "better answer"})

	req.Len(timeline.Entries, 2)
	req.Equal("better answer", timeline.Entries[0].Content)
	req.Equal("unrelated", timeline.Entries[1].Content)
}

func TestTimeline_Retry_Of_Unseen_Message(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	timeline.Consume(sink.WireEvent{Type: sink.TypeMessageRetry, MessageID: "msg-1", Content: "regenerated"})

	req.Len(timeline.Entries, 1)
	req.Equal("regenerated", timeline.Entries[0].Content)
}
