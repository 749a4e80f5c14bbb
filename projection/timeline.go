// Package projection builds local timelines from observed wire events.
// Handles ordering, deduplication and in-place edits.
// Does not emit events or interact with the UI directly.
package projection

import (
	"chat-gen/sink"
	"time"

	"github.com/samber/lo"
)

// Entry is one committed message as seen from the event stream.
type Entry struct {
	MessageID string
	SenderID  string
	Content   string
	SentAt    time.Time
	Ephemeral bool
}

// Timeline holds a simple local timeline. Committed messages accumulate
// in arrival order; the in-flight generation lives in Draft until its
// completion event arrives.
type Timeline struct {
	Entries []Entry
	Draft   string
}

func NewTimeline() *Timeline {
	return &Timeline{
		Entries: nil,
	}
}

func (t *Timeline) Consume(e sink.WireEvent) {
	switch e.Type {
	case sink.TypeMessagePartial:
		// Partials are cumulative, the latest one replaces the draft
		t.Draft = e.Partial
	case sink.TypeMessageCreated:
		t.Draft = ""
		t.append(fromEvent(e))
	case sink.TypeMessageRetry:
		t.Draft = ""
		t.edit(e.MessageID, e.Content)
	}
}

func (t *Timeline) append(entry Entry) {
	// The server may replay a message already seen on reconnect
	if _, found := lo.Find(t.Entries, func(existing Entry) bool {
		return existing.MessageID == entry.MessageID
	}); found {
		return
	}
	t.Entries = append(t.Entries, entry)
}

func (t *Timeline) edit(messageID, content string) {
	for i := range t.Entries {
		if t.Entries[i].MessageID == messageID {
			t.Entries[i].Content = content
			return
		}
	}
	// Regeneration of a message committed before we subscribed
	t.Entries = append(t.Entries, Entry{MessageID: messageID, Content: content})
}

func fromEvent(e sink.WireEvent) Entry {
	return Entry{
		MessageID: e.MessageID,
		SenderID:  e.SenderID,
		Content:   e.Content,
		SentAt:    time.UnixMilli(e.SentAt),
		Ephemeral: e.Ephemeral,
	}
}
