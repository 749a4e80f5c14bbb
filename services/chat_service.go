package services

import (
	"chat-gen/contract"
	"chat-gen/domain/chat"
	"chat-gen/repositories"
	"chat-gen/runtime"
	"context"
)

type IChatService interface {
	CreateChat(ch chat.Chat) (chat.Chat, error)
	GetChat(id chat.ChatID) (chat.Chat, error)
	Generate(ctx context.Context, cmd chat.GenerateCommand) error
	Retry(ctx context.Context, cmd chat.RetryCommand) error
	GetMessages(cmd chat.GetMessageCommand) ([]chat.Message, *string, error)
	Search(ctx context.Context, chatID chat.ChatID, terms string, limit int) ([]repositories.SearchHit, error)
	Subscribe(userID string, sink contract.EventSink)
	Unsubscribe(userID string)
}

// ChatService is the thin seam between the transport and the runtime.
// Access control lives in the coordinator, not here.
type ChatService struct {
	coordinator *runtime.Coordinator
	registry    contract.IRegistry
	store       repositories.IStore
	search      repositories.ISearchIndex
}

func NewChatService(c *runtime.Coordinator, registry contract.IRegistry,
	store repositories.IStore, search repositories.ISearchIndex) *ChatService {
	return &ChatService{coordinator: c, registry: registry, store: store, search: search}
}

func (s *ChatService) CreateChat(ch chat.Chat) (chat.Chat, error) {
	return s.store.CreateChat(ch)
}

func (s *ChatService) GetChat(id chat.ChatID) (chat.Chat, error) {
	return s.store.GetChat(id)
}

func (s *ChatService) Generate(ctx context.Context, cmd chat.GenerateCommand) error {
	return s.coordinator.Generate(ctx, cmd)
}

func (s *ChatService) Retry(ctx context.Context, cmd chat.RetryCommand) error {
	return s.coordinator.Retry(ctx, cmd)
}

func (s *ChatService) GetMessages(cmd chat.GetMessageCommand) ([]chat.Message, *string, error) {
	return s.store.GetMessages(cmd.Chat, cmd.Cursor)
}

func (s *ChatService) Search(ctx context.Context, chatID chat.ChatID, terms string, limit int) ([]repositories.SearchHit, error) {
	return s.search.Search(ctx, chatID, terms, limit)
}

func (s *ChatService) Subscribe(userID string, sink contract.EventSink) {
	s.registry.Subscribe(userID, sink)
}

func (s *ChatService) Unsubscribe(userID string) {
	s.registry.Unsubscribe(userID)
}
