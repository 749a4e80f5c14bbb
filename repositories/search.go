//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_index.go -package=mocks
package repositories

import (
	"chat-gen/domain/chat"
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"
)

// ISearchIndex offers full-text search over committed messages.
type ISearchIndex interface {
	Index(msg chat.Message) error
	Search(ctx context.Context, chatID chat.ChatID, terms string, limit int) ([]SearchHit, error)
	Close() error
}

// SearchHit is one match returned by the index.
type SearchHit struct {
	MessageID string
	ChatID    string
	SenderID  string
	Content   string
}

// SearchIndex maintains a Bluge index of message content, scoped per chat
// through a keyword field. Ephemeral messages never reach the index.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(path string, log *slog.Logger) (*SearchIndex, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &SearchIndex{writer: writer, log: log}, nil
}

// Index upserts a message. Re-indexing the same ID after an edit replaces
// the stored content, which is exactly what a retry needs.
func (s *SearchIndex) Index(msg chat.Message) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewKeywordField("chat_id", string(msg.ChatID)).StoreValue()).
		AddField(bluge.NewKeywordField("sender_id", msg.SenderID).StoreValue()).
		AddField(bluge.NewTextField("content", msg.Content).StoreValue())
	return s.writer.Update(doc.ID(), doc)
}

// Search returns up to limit matches for terms inside one chat.
func (s *SearchIndex) Search(ctx context.Context, chatID chat.ChatID, terms string, limit int) ([]SearchHit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(string(chatID)).SetField("chat_id")).
		AddMust(bluge.NewMatchQuery(terms).SetField("content"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	match, err := iterator.Next()
	for err == nil && match != nil {
		var hit SearchHit
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "chat_id":
				hit.ChatID = string(value)
			case "sender_id":
				hit.SenderID = string(value)
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (s *SearchIndex) Close() error {
	return s.writer.Close()
}
