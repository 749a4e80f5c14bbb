//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-gen/domain/chat"
	"chat-gen/domain/event"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	GetSinksFor(userIDs []string) []EventSink
	Subscribe(participantID string, sink EventSink)
	Unsubscribe(participantID string)
}

// IPublisher fans an event out to a set of member identities, best effort.
type IPublisher interface {
	PublishMany(ctx context.Context, memberIDs []string, e event.DomainEvent)
}

// ILockManager owns the chat -> token mapping that decides which
// generation session may commit. Acquire never blocks and never fails
// against a held token: the newest acquire always wins. The context is
// part of the contract so a shared (networked) implementation can back
// multiple coordinator instances.
type ILockManager interface {
	Acquire(ctx context.Context, chatID chat.ChatID) (uuid.UUID, error)
	Verify(ctx context.Context, chatID chat.ChatID, token uuid.UUID) error
	Release(ctx context.Context, chatID chat.ChatID) error
}
