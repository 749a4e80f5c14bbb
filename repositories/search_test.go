package repositories

import (
	"chat-gen/domain/chat"
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *SearchIndex {
	t.Helper()
	index, err := NewSearchIndex(t.TempDir(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func Test_Index_And_Search(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)
	ctx := context.Background()

	msg := chat.Message{
		ID:       uuid.New(),
		ChatID:   "chat-1",
		SenderID: "alice",
		Content:  "the dragon guards the mountain pass",
	}
	req.NoError(index.Index(msg))

	// When searching inside the chat
	hits, err := index.Search(ctx, "chat-1", "dragon", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(msg.ID.String(), hits[0].MessageID)
	req.Equal("alice", hits[0].SenderID)
	req.Equal(msg.Content, hits[0].Content)
}

func Test_Search_Is_Scoped_Per_Chat(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)
	ctx := context.Background()

	req.NoError(index.Index(chat.Message{
		ID: uuid.New(), ChatID: "chat-1", SenderID: "alice", Content: "dragon here",
	}))
	req.NoError(index.Index(chat.Message{
		ID: uuid.New(), ChatID: "chat-2", SenderID: "bob", Content: "dragon there",
	}))

	hits, err := index.Search(ctx, "chat-1", "dragon", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal("alice", hits[0].SenderID)
}

func Test_Reindex_Replaces_Content(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)
	ctx := context.Background()
	id := uuid.New()

	req.NoError(index.Index(chat.Message{
		ID: id, ChatID: "chat-1", SenderID: "character-1", Content: "a knight appears",
	}))
	// Re-indexing the same id mirrors an edit after a retry
	req.NoError(index.Index(chat.Message{
		ID: id, ChatID: "chat-1", SenderID: "character-1", Content: "a wizard appears",
	}))

	hits, err := index.Search(ctx, "chat-1", "knight", 10)
	req.NoError(err)
	req.Empty(hits)

	hits, err = index.Search(ctx, "chat-1", "wizard", 10)
	req.NoError(err)
	req.Len(hits, 1)
}
