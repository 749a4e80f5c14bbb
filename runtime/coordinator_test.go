package runtime

import (
	"chat-gen/ai"
	"chat-gen/domain/chat"
	"chat-gen/domain/event"
	"chat-gen/errors"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// RecordingSink captures every broadcast event in order.
type RecordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *RecordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *RecordingSink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent{}, s.events...)
}

// memStore is an in-memory stand-in for the badger store.
type memStore struct {
	mu       sync.Mutex
	chats    map[chat.ChatID]chat.Chat
	messages map[uuid.UUID]chat.Message
	edits    map[uuid.UUID]string
}

func newMemStore(chats ...chat.Chat) *memStore {
	s := &memStore{
		chats:    make(map[chat.ChatID]chat.Chat),
		messages: make(map[uuid.UUID]chat.Message),
		edits:    make(map[uuid.UUID]string),
	}
	for _, c := range chats {
		s.chats[c.ID] = c
	}
	return s
}

func (s *memStore) CreateChat(ch chat.Chat) (chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch.ID = chat.ChatID(uuid.NewString())
	s.chats[ch.ID] = ch
	return ch, nil
}

func (s *memStore) GetChat(id chat.ChatID) (chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chats[id]
	if !ok {
		return chat.Chat{}, errors.ErrNotFound
	}
	return ch, nil
}

func (s *memStore) CreateChatMessage(msg chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = uuid.New()
	msg.SentAt = time.Now().UTC()
	if !msg.Ephemeral {
		s.messages[msg.ID] = msg
	}
	return msg, nil
}

func (s *memStore) EditMessage(id uuid.UUID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return errors.ErrNotFound
	}
	msg.Content = content
	s.messages[id] = msg
	s.edits[id] = content
	return nil
}

func (s *memStore) GetMessageAndChat(id uuid.UUID) (chat.Message, chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return chat.Message{}, chat.Chat{}, errors.ErrNotFound
	}
	ch, ok := s.chats[msg.ChatID]
	if !ok {
		return chat.Message{}, chat.Chat{}, errors.ErrNotFound
	}
	return msg, ch, nil
}

func (s *memStore) GetMessages(chat.ChatID, *string) ([]chat.Message, *string, error) {
	return nil, nil, nil
}

func (s *memStore) committedBySender(senderID string) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chat.Message
	for _, m := range s.messages {
		if m.SenderID == senderID {
			out = append(out, m)
		}
	}
	return out
}

// manualAdapter hands out one raw channel per call so a test can decide
// exactly when each stream emits and ends.
type manualAdapter struct {
	mu      sync.Mutex
	streams []chan ai.StreamEvent
}

func (a *manualAdapter) ResponseStream(context.Context, ai.StreamRequest) (<-chan ai.StreamEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch := make(chan ai.StreamEvent)
	a.streams = append(a.streams, ch)
	return ch, nil
}

func (a *manualAdapter) stream(i int) chan ai.StreamEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.streams[i]
}

func (a *manualAdapter) opened() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.streams)
}

func newTestCoordinator(adapter ai.IStreamAdapter, store *memStore) (*Coordinator, *LockManager, *RecordingSink) {
	log := slog.Default()
	locks := NewLockManager()
	recorder := &RecordingSink{}
	publisher := NewPublisher(log, NewRegistry(), time.Second)
	publisher.Add(recorder)
	return NewCoordinator(log, locks, store, publisher, adapter, nil), locks, recorder
}

func testChat() chat.Chat {
	return chat.Chat{
		ID:          "chat-1",
		OwnerID:     "alice",
		MemberIDs:   []string{"bob"},
		CharacterID: "character-1",
	}
}

func TestCoordinator_Generate_Streams_And_Commits_Last_Partial(t *testing.T) {
	req := require.New(t)
	adapter := &ai.ScriptedAdapter{Events: []ai.StreamEvent{
		ai.Partial{Text: "Hel"},
		ai.Partial{Text: "Hello"},
		ai.Failure{Message: "backend hiccup"},
		ai.Partial{Text: "Hello there"},
	}}
	store := newMemStore(testChat())
	coordinator, locks, recorder := newTestCoordinator(adapter, store)

	// When alice asks for a reply
	err := coordinator.Generate(context.Background(), chat.GenerateCommand{
		Chat:    "chat-1",
		UserID:  "alice",
		Message: "hi",
	})
	req.NoError(err)
	coordinator.Wait()

	// Then the event order is: user message, two partials, one error,
	// one partial, character message
	events := recorder.Events()
	req.Len(events, 6)

	userCreated, ok := events[0].(event.MessageCreated)
	req.True(ok, "the user's own message must be broadcast before any generation event")
	req.Equal("alice", userCreated.Msg.SenderID)
	req.Equal("hi", userCreated.Msg.Content)

	req.Equal(event.MessagePartial{Chat: "chat-1", Partial: "Hel"}, events[1])
	req.Equal(event.MessagePartial{Chat: "chat-1", Partial: "Hello"}, events[2])
	req.Equal(event.MessageError{Chat: "chat-1", Error: "backend hiccup"}, events[3])
	req.Equal(event.MessagePartial{Chat: "chat-1", Partial: "Hello there"}, events[4])

	committed, ok := events[5].(event.MessageCreated)
	req.True(ok)
	req.Equal("character-1", committed.Msg.SenderID)
	req.Equal("Hello there", committed.Msg.Content, "the last partial before the stream closed is the final text")

	// And the commit is persisted and the lock released
	replies := store.committedBySender("character-1")
	req.Len(replies, 1)
	req.Equal("Hello there", replies[0].Content)
	req.Empty(locks.tokens)
}

func TestCoordinator_Generate_Forbidden_Caller_Still_Acquired_First(t *testing.T) {
	req := require.New(t)
	store := newMemStore(testChat())
	coordinator, locks, recorder := newTestCoordinator(&ai.ScriptedAdapter{}, store)

	// When an outsider asks for a reply
	err := coordinator.Generate(context.Background(), chat.GenerateCommand{
		Chat:    "chat-1",
		UserID:  "mallory",
		Message: "let me in",
	})

	// Then the call is rejected, but the acquire already happened: a fresh
	// token sits on the chat even though no session was started
	req.ErrorIs(err, errors.ErrForbidden)
	req.Len(locks.tokens, 1)
	req.Empty(recorder.Events())
	req.Empty(store.committedBySender("mallory"))
}

func TestCoordinator_Generate_Unknown_Chat(t *testing.T) {
	req := require.New(t)
	coordinator, _, _ := newTestCoordinator(&ai.ScriptedAdapter{}, newMemStore())

	err := coordinator.Generate(context.Background(), chat.GenerateCommand{
		Chat:    "ghost",
		UserID:  "alice",
		Message: "anyone here?",
	})

	req.ErrorIs(err, errors.ErrNotFound)
}

func TestCoordinator_Superseded_Session_Never_Commits(t *testing.T) {
	req := require.New(t)
	adapter := &manualAdapter{}
	store := newMemStore(testChat())
	coordinator, locks, recorder := newTestCoordinator(adapter, store)
	ctx := context.Background()

	// Given a first request streaming
	req.NoError(coordinator.Generate(ctx, chat.GenerateCommand{
		Chat: "chat-1", UserID: "alice", Message: "first",
	}))
	require.Eventually(t, func() bool { return adapter.opened() == 1 }, time.Second, time.Millisecond)

	// And a second request superseding it
	req.NoError(coordinator.Generate(ctx, chat.GenerateCommand{
		Chat: "chat-1", UserID: "bob", Message: "second",
	}))
	require.Eventually(t, func() bool { return adapter.opened() == 2 }, time.Second, time.Millisecond)

	// When the stale stream finishes first
	adapter.stream(0) <- ai.Partial{Text: "stale reply"}
	close(adapter.stream(0))
	adapter.stream(1) <- ai.Partial{Text: "fresh reply"}
	close(adapter.stream(1))
	coordinator.Wait()

	// Then only the newest request's text was committed
	replies := store.committedBySender("character-1")
	req.Len(replies, 1)
	req.Equal("fresh reply", replies[0].Content)

	// And the stale session broadcast no completion
	for _, e := range recorder.Events() {
		if created, ok := e.(event.MessageCreated); ok {
			req.NotEqual("stale reply", created.Msg.Content)
		}
	}

	// And the lock was released exactly once, by the winner
	req.Empty(locks.tokens)

	// Both user messages were persisted: user content is not what the
	// token protects
	req.Len(store.committedBySender("alice"), 1)
	req.Len(store.committedBySender("bob"), 1)
}

func TestCoordinator_Retry_Edits_In_Place(t *testing.T) {
	req := require.New(t)
	store := newMemStore(testChat())
	target, err := store.CreateChatMessage(chat.Message{
		ChatID: "chat-1", SenderID: "character-1", Content: "old reply",
	})
	req.NoError(err)

	adapter := &ai.ScriptedAdapter{Events: []ai.StreamEvent{
		ai.Partial{Text: "better"},
		ai.Partial{Text: "better reply"},
	}}
	coordinator, locks, recorder := newTestCoordinator(adapter, store)

	// When the message is regenerated
	req.NoError(coordinator.Retry(context.Background(), chat.RetryCommand{
		Chat: "chat-1", UserID: "alice", MessageID: target.ID, Message: "try harder",
	}))
	coordinator.Wait()

	// Then the stored message was rewritten in place
	store.mu.Lock()
	req.Equal("better reply", store.edits[target.ID])
	store.mu.Unlock()

	// And partials referenced the regenerated message
	events := recorder.Events()
	partial, ok := events[0].(event.MessagePartial)
	req.True(ok)
	req.NotNil(partial.MessageID)
	req.Equal(target.ID, *partial.MessageID)

	// And the completion is a retry event, not a created one
	retry, ok := events[len(events)-1].(event.MessageRetry)
	req.True(ok)
	req.Equal(target.ID, retry.MessageID)
	req.Equal("better reply", retry.Message)

	req.Empty(locks.tokens)
}

func TestCoordinator_Ephemeral_Retry_Broadcasts_Without_Editing(t *testing.T) {
	req := require.New(t)
	store := newMemStore(testChat())
	target, err := store.CreateChatMessage(chat.Message{
		ChatID: "chat-1", SenderID: "character-1", Content: "old reply",
	})
	req.NoError(err)

	adapter := &ai.ScriptedAdapter{Events: []ai.StreamEvent{
		ai.Partial{Text: "throwaway reply"},
	}}
	coordinator, _, recorder := newTestCoordinator(adapter, store)

	// When the retry is ephemeral
	req.NoError(coordinator.Retry(context.Background(), chat.RetryCommand{
		Chat: "chat-1", UserID: "alice", MessageID: target.ID,
		Message: "again", Ephemeral: true,
	}))
	coordinator.Wait()

	// Then nothing was edited
	store.mu.Lock()
	req.Empty(store.edits)
	req.Equal("old reply", store.messages[target.ID].Content)
	store.mu.Unlock()

	// But the completion was still broadcast
	events := recorder.Events()
	retry, ok := events[len(events)-1].(event.MessageRetry)
	req.True(ok)
	req.Equal("throwaway reply", retry.Message)
}

func TestCoordinator_Stale_Retry_Leaves_Superseding_Token_Alone(t *testing.T) {
	req := require.New(t)
	store := newMemStore(testChat())
	target, err := store.CreateChatMessage(chat.Message{
		ChatID: "chat-1", SenderID: "character-1", Content: "old reply",
	})
	req.NoError(err)

	adapter := &manualAdapter{}
	coordinator, locks, recorder := newTestCoordinator(adapter, store)
	ctx := context.Background()

	// Given an ephemeral retry streaming
	req.NoError(coordinator.Retry(ctx, chat.RetryCommand{
		Chat: "chat-1", UserID: "alice", MessageID: target.ID,
		Message: "again", Ephemeral: true,
	}))
	require.Eventually(t, func() bool { return adapter.opened() == 1 }, time.Second, time.Millisecond)

	// And a newer request taking over the chat
	newerToken, err := locks.Acquire(ctx, "chat-1")
	req.NoError(err)

	// When the stale stream finishes
	adapter.stream(0) <- ai.Partial{Text: "too late"}
	close(adapter.stream(0))
	coordinator.Wait()

	// Then the stale retry neither broadcast a completion nor touched the
	// newer session's token
	for _, e := range recorder.Events() {
		_, isRetry := e.(event.MessageRetry)
		req.False(isRetry)
	}
	req.NoError(locks.Verify(ctx, "chat-1", newerToken))
}
