package runtime

import (
	"chat-gen/domain/chat"
	"chat-gen/errors"
	"context"
	"sync"

	"github.com/google/uuid"
)

// LockManager owns the chat -> token mapping. It is a latest-request-wins
// advisory lock, not a mutual-exclusion queue: Acquire never waits and
// never fails, it simply discards whatever token was stored before. The
// session still holding the old token finds out on its next Verify.
//
// This is the only mutable state shared between sessions; mutation
// granularity is one chat's token.
type LockManager struct {
	mu     sync.Mutex
	tokens map[chat.ChatID]uuid.UUID
}

func NewLockManager() *LockManager {
	return &LockManager{tokens: make(map[chat.ChatID]uuid.UUID)}
}

// Acquire installs a fresh token as the chat's current owner. The previous
// holder is not notified.
func (l *LockManager) Acquire(_ context.Context, chatID chat.ChatID) (uuid.UUID, error) {
	token := uuid.New()
	l.mu.Lock()
	l.tokens[chatID] = token
	l.mu.Unlock()
	return token, nil
}

// Verify succeeds iff token is still the chat's current token. Pure read,
// safe to call any number of times.
func (l *LockManager) Verify(_ context.Context, chatID chat.ChatID, token uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.tokens[chatID]
	if !ok || current != token {
		return errors.ErrStaleLock
	}
	return nil
}

// Release clears the chat's token unconditionally. Idempotent. After a
// release every Verify fails, including with the token just released:
// a session must not verify after releasing.
func (l *LockManager) Release(_ context.Context, chatID chat.ChatID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tokens, chatID)
	return nil
}
