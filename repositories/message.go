package repositories

import (
	"chat-gen/domain/chat"
	"chat-gen/errors"
	"fmt"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/vmihailenco/msgpack/v5"
)

// diskMessage is the on-disk layout of a message record.
type diskMessage struct {
	ID       string `msgpack:"id"`
	ChatID   string `msgpack:"chat_id"`
	SenderID string `msgpack:"sender_id"`
	Content  string `msgpack:"content"`
	Lang     string `msgpack:"lang"`
	At       int64  `msgpack:"at"`
}

// messageKey builds the primary key "msg:{chat_id}:{timestamp_padded}:{uuid}":
//  1. The 19-digit zero padding keeps chronological order under
//     lexicographical iteration.
//  2. The UUID suffix disambiguates two messages stored in the same
//     nanosecond.
func messageKey(chatID chat.ChatID, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", chatID, at.UnixNano(), id))
}

// indexKey maps a message id to its primary key for direct lookups.
func indexKey(id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msgid:%s", id))
}

// CreateChatMessage assigns identity, timestamp and a best-effort language
// tag, then persists the record. Ephemeral messages are returned fully
// populated but never written: they are broadcast-only by contract.
func (s *Store) CreateChatMessage(msg chat.Message) (chat.Message, error) {
	msg.ID = uuid.New()
	msg.SentAt = time.Now().UTC()
	msg.Lang = detectLang(msg.Content)

	if msg.Ephemeral {
		return msg, nil
	}

	data, err := msgpack.Marshal(fromMessage(msg))
	if err != nil {
		return chat.Message{}, fmt.Errorf("marshal failed: %w", err)
	}

	key := messageKey(msg.ChatID, msg.SentAt, msg.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(indexKey(msg.ID), key)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

// EditMessage rewrites the text of an existing message in place, keeping
// identity and timestamp. The language tag follows the new content.
func (s *Store) EditMessage(id uuid.UUID, content string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		disk, key, err := resolveMessage(txn, id)
		if err != nil {
			return err
		}
		disk.Content = content
		disk.Lang = detectLang(content)

		data, err := msgpack.Marshal(disk)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		return txn.Set(key, data)
	})
	if err == badger.ErrKeyNotFound {
		return errors.ErrNotFound
	}
	return err
}

// GetMessageAndChat loads a message together with its owning chat.
// Either one missing maps to ErrNotFound.
func (s *Store) GetMessageAndChat(id uuid.UUID) (chat.Message, chat.Chat, error) {
	var disk diskMessage
	err := s.db.View(func(txn *badger.Txn) error {
		found, _, err := resolveMessage(txn, id)
		if err != nil {
			return err
		}
		disk = found
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return chat.Message{}, chat.Chat{}, errors.ErrNotFound
	}
	if err != nil {
		return chat.Message{}, chat.Chat{}, err
	}

	msg, err := toMessage(disk)
	if err != nil {
		return chat.Message{}, chat.Chat{}, err
	}
	owner, err := s.GetChat(msg.ChatID)
	if err != nil {
		return chat.Message{}, chat.Chat{}, err
	}
	return msg, owner, nil
}

// resolveMessage follows the msgid index to the primary record.
func resolveMessage(txn *badger.Txn, id uuid.UUID) (diskMessage, []byte, error) {
	item, err := txn.Get(indexKey(id))
	if err != nil {
		return diskMessage{}, nil, err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return diskMessage{}, nil, err
	}

	item, err = txn.Get(key)
	if err != nil {
		return diskMessage{}, nil, err
	}
	var disk diskMessage
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &disk)
	})
	return disk, key, err
}

// GetMessages retrieves messages for a chat using a reverse prefix scan.
// Thanks to the padded timestamp in the key, records come out newest
// first; the returned cursor is the key remainder to resume from. It
// stops collecting once the configured limitMessages is reached.
func (s *Store) GetMessages(chatID chat.ChatID, cursor *string) ([]chat.Message, *string, error) {
	var rawMessages [][]byte
	var lastKey string
	err := s.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", chatID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if s.limitMessages != nil && len(rawMessages) == *s.limitMessages {
				s.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *s.limitMessages))
				break
			}
			item := it.Item()
			// Memorize the cursor part of the current key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				rawMessages = append(rawMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var messages []chat.Message
	for _, raw := range rawMessages {
		var disk diskMessage
		if err = msgpack.Unmarshal(raw, &disk); err != nil {
			return nil, nil, err
		}
		msg, err := toMessage(disk)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, msg)
	}
	if lastKey == "" {
		// Nothing was read, there is no position to resume from
		return messages, nil, nil
	}
	return messages, lo.ToPtr(lastKey), nil
}

// detectLang tags the content with an ISO 639-3 code. The tag is a best
// guess kept even at low confidence; short chat messages rarely clear
// whatlanggo's reliability bar.
func detectLang(content string) string {
	if content == "" {
		return ""
	}
	return whatlanggo.Detect(content).Lang.Iso6393()
}

func fromMessage(msg chat.Message) diskMessage {
	return diskMessage{
		ID:       msg.ID.String(),
		ChatID:   string(msg.ChatID),
		SenderID: msg.SenderID,
		Content:  msg.Content,
		Lang:     msg.Lang,
		At:       msg.SentAt.UnixNano(),
	}
}

func toMessage(disk diskMessage) (chat.Message, error) {
	parsedID, err := uuid.Parse(disk.ID)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{
		ID:       parsedID,
		ChatID:   chat.ChatID(disk.ChatID),
		SenderID: disk.SenderID,
		Content:  disk.Content,
		Lang:     disk.Lang,
		SentAt:   time.Unix(0, disk.At).UTC(),
	}, nil
}
