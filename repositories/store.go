//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package repositories

import (
	"chat-gen/domain/chat"
	"chat-gen/errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// IStore is the message store contract consumed by the coordinator and
// the transport layer. Identifiers and timestamps are server-assigned.
type IStore interface {
	CreateChat(ch chat.Chat) (chat.Chat, error)
	GetChat(id chat.ChatID) (chat.Chat, error)
	CreateChatMessage(msg chat.Message) (chat.Message, error)
	EditMessage(id uuid.UUID, content string) error
	GetMessageAndChat(id uuid.UUID) (chat.Message, chat.Chat, error)
	GetMessages(chatID chat.ChatID, cursor *string) ([]chat.Message, *string, error)
}

// Store persists chats and messages in BadgerDB, msgpack-encoded.
type Store struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewStore(db *badger.DB, log *slog.Logger, limitMessages *int) *Store {
	return &Store{db: db, log: log, limitMessages: limitMessages}
}

// diskChat is the on-disk layout of a chat record.
type diskChat struct {
	ID          string   `msgpack:"id"`
	OwnerID     string   `msgpack:"owner_id"`
	MemberIDs   []string `msgpack:"member_ids"`
	CharacterID string   `msgpack:"character_id"`
	CreatedAt   int64    `msgpack:"created_at"`
}

func chatKey(id chat.ChatID) []byte {
	return []byte(fmt.Sprintf("chat:%s", id))
}

// CreateChat persists a new chat and returns it with server-assigned
// identity and creation time.
func (s *Store) CreateChat(ch chat.Chat) (chat.Chat, error) {
	ch.ID = chat.ChatID(uuid.NewString())
	ch.CreatedAt = time.Now().UTC()

	data, err := msgpack.Marshal(fromChat(ch))
	if err != nil {
		return chat.Chat{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chatKey(ch.ID), data)
	})
	if err != nil {
		return chat.Chat{}, err
	}
	return ch, nil
}

// GetChat loads a chat record, mapping a missing key to ErrNotFound.
func (s *Store) GetChat(id chat.ChatID) (chat.Chat, error) {
	var disk diskChat
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &disk)
		})
	})
	if err == badger.ErrKeyNotFound {
		return chat.Chat{}, errors.ErrNotFound
	}
	if err != nil {
		return chat.Chat{}, err
	}
	return toChat(disk), nil
}

func fromChat(ch chat.Chat) diskChat {
	return diskChat{
		ID:          string(ch.ID),
		OwnerID:     ch.OwnerID,
		MemberIDs:   ch.MemberIDs,
		CharacterID: ch.CharacterID,
		CreatedAt:   ch.CreatedAt.UnixNano(),
	}
}

func toChat(disk diskChat) chat.Chat {
	return chat.Chat{
		ID:          chat.ChatID(disk.ID),
		OwnerID:     disk.OwnerID,
		MemberIDs:   disk.MemberIDs,
		CharacterID: disk.CharacterID,
		CreatedAt:   time.Unix(0, disk.CreatedAt).UTC(),
	}
}
