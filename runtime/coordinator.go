// Package runtime handles lock ownership, generation sessions and event
// propagation. It orchestrates the system without containing domain rules.
package runtime

import (
	"chat-gen/ai"
	"chat-gen/contract"
	"chat-gen/domain/chat"
	"chat-gen/domain/event"
	"chat-gen/errors"
	"chat-gen/moderation"
	"chat-gen/repositories"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Coordinator runs one generation session per inbound request:
//
//	Acquiring -> Acked -> Streaming -> PreCommitVerify -> Committing -> Released
//
// The caller is acknowledged right after the membership check; everything
// past that point happens in a background session goroutine. At most one
// session's generated content is ever committed per acquired token: a
// session can only commit if no newer Acquire happened between its own
// Acquire and its pre-commit Verify. Superseded sessions abort silently
// and never release the lock, since the superseding session owns it.
type Coordinator struct {
	log       *slog.Logger
	locks     contract.ILockManager
	store     repositories.IStore
	publisher contract.IPublisher
	adapter   ai.IStreamAdapter
	moderator *moderation.Moderator // nil disables censoring

	wg   sync.WaitGroup
	live atomic.Int64
}

func NewCoordinator(log *slog.Logger, locks contract.ILockManager, store repositories.IStore,
	publisher contract.IPublisher, adapter ai.IStreamAdapter, moderator *moderation.Moderator) *Coordinator {
	return &Coordinator{
		log:       log,
		locks:     locks,
		store:     store,
		publisher: publisher,
		adapter:   adapter,
		moderator: moderator,
	}
}

// session is the transient per-request state. It is never shared across
// requests and dies with the goroutine that owns it.
type session struct {
	chatID  chat.ChatID
	token   uuid.UUID
	members []string
	// target is set on retries: partials and errors reference the message
	// being regenerated.
	target *uuid.UUID
}

// Generate handles a fresh generation request. It acquires the chat lock,
// validates the caller, then returns; the returned nil error is the ack.
// Note the observed order: the lock is acquired before the chat lookup
// and membership check, so a NotFound or Forbidden outcome still leaves a
// fresh token installed. The next Acquire overwrites it either way.
func (c *Coordinator) Generate(ctx context.Context, cmd chat.GenerateCommand) error {
	token, err := c.locks.Acquire(ctx, cmd.Chat)
	if err != nil {
		return err
	}

	loaded, err := c.store.GetChat(cmd.Chat)
	if err != nil {
		return err
	}
	if !loaded.HasMember(cmd.UserID) {
		return errors.ErrForbidden
	}

	s := &session{chatID: cmd.Chat, token: token, members: loaded.Audience()}

	c.spawn(ctx, func(ctx context.Context) {
		c.runGenerate(ctx, s, cmd, loaded)
	})
	return nil
}

// Retry handles an in-place regeneration request for an existing message.
func (c *Coordinator) Retry(ctx context.Context, cmd chat.RetryCommand) error {
	token, err := c.locks.Acquire(ctx, cmd.Chat)
	if err != nil {
		return err
	}

	_, loaded, err := c.store.GetMessageAndChat(cmd.MessageID)
	if err != nil {
		return err
	}
	if !loaded.HasMember(cmd.UserID) {
		return errors.ErrForbidden
	}

	target := cmd.MessageID
	s := &session{chatID: cmd.Chat, token: token, members: loaded.Audience(), target: &target}

	c.spawn(ctx, func(ctx context.Context) {
		c.runRetry(ctx, s, cmd)
	})
	return nil
}

// LiveSessions reports how many sessions are currently streaming.
func (c *Coordinator) LiveSessions() int64 { return c.live.Load() }

// Wait blocks until every in-flight session returned. Used on shutdown.
func (c *Coordinator) Wait() { c.wg.Wait() }

// spawn runs fn detached from the request context: the caller was already
// acknowledged, so cancellation of the inbound request must not kill the
// session. Checkpoint verification is the cancellation mechanism.
func (c *Coordinator) spawn(ctx context.Context, fn func(context.Context)) {
	detached := context.WithoutCancel(ctx)
	c.wg.Add(1)
	c.live.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.live.Add(-1)
		fn(detached)
	}()
}

func (c *Coordinator) runGenerate(ctx context.Context, s *session, cmd chat.GenerateCommand, loaded chat.Chat) {
	// First checkpoint: a newer request may already own the chat, in which
	// case this session must not speak for it.
	if err := c.locks.Verify(ctx, s.chatID, s.token); err != nil {
		c.log.Debug("Session superseded before streaming", "chat_id", s.chatID)
		return
	}

	// The caller's own authored message is persisted outside the lock's
	// protection: the race this design guards against is stale *generated*
	// output, not user content.
	userMsg, err := c.store.CreateChatMessage(chat.Message{
		ChatID:   cmd.Chat,
		SenderID: cmd.UserID,
		Content:  c.censor(cmd.Message),
	})
	if err != nil {
		c.log.Error("Failed to persist user message", "chat_id", s.chatID, "error", err)
		return
	}
	c.publisher.PublishMany(ctx, s.members, event.MessageCreated{Msg: userMsg})

	generated, err := c.drain(ctx, s, ai.StreamRequest{
		SenderID: cmd.UserID,
		ChatID:   cmd.Chat,
		Message:  cmd.Message,
		History:  cmd.History,
	})
	if err != nil {
		c.log.Error("Generation stream could not be opened", "chat_id", s.chatID, "error", err)
		return
	}

	// Decisive checkpoint: stale means discard everything. No completion
	// broadcast, nothing persisted, and the lock stays untouched.
	if err := c.locks.Verify(ctx, s.chatID, s.token); err != nil {
		c.log.Debug("Session superseded, discarding generated text", "chat_id", s.chatID)
		return
	}

	msg, err := c.store.CreateChatMessage(chat.Message{
		ChatID:    cmd.Chat,
		SenderID:  loaded.CharacterID,
		Content:   generated,
		Ephemeral: cmd.Ephemeral,
	})
	if err != nil {
		c.log.Error("Failed to commit generated message", "chat_id", s.chatID, "error", err)
		_ = c.locks.Release(ctx, s.chatID)
		return
	}

	c.publisher.PublishMany(ctx, s.members, event.MessageCreated{Msg: msg})
	_ = c.locks.Release(ctx, s.chatID)
}

func (c *Coordinator) runRetry(ctx context.Context, s *session, cmd chat.RetryCommand) {
	if err := c.locks.Verify(ctx, s.chatID, s.token); err != nil {
		c.log.Debug("Retry superseded before streaming", "chat_id", s.chatID)
		return
	}

	generated, err := c.drain(ctx, s, ai.StreamRequest{
		SenderID: cmd.UserID,
		ChatID:   cmd.Chat,
		Message:  cmd.Message,
		History:  cmd.History,
	})
	if err != nil {
		c.log.Error("Generation stream could not be opened", "chat_id", s.chatID, "error", err)
		return
	}

	// The pre-commit checkpoint runs even when an ephemeral retry has
	// nothing to persist; a stale session must neither broadcast a
	// completion nor release the superseding session's token.
	if err := c.locks.Verify(ctx, s.chatID, s.token); err != nil {
		c.log.Debug("Retry superseded, discarding generated text", "chat_id", s.chatID)
		return
	}

	if !cmd.Ephemeral {
		if err := c.store.EditMessage(cmd.MessageID, generated); err != nil {
			c.log.Error("Failed to edit message", "message_id", cmd.MessageID, "error", err)
			_ = c.locks.Release(ctx, s.chatID)
			return
		}
	}

	c.publisher.PublishMany(ctx, s.members, event.MessageRetry{
		Chat:      cmd.Chat,
		MessageID: cmd.MessageID,
		Message:   generated,
	})
	_ = c.locks.Release(ctx, s.chatID)
}

// drain consumes the adapter's event sequence to completion, exactly once.
// Text events update the accumulated text and are broadcast as partials;
// error events are broadcast and never terminate the drain. The return
// value is the last partial seen before the sequence ended.
func (c *Coordinator) drain(ctx context.Context, s *session, req ai.StreamRequest) (string, error) {
	stream, err := c.adapter.ResponseStream(ctx, req)
	if err != nil {
		return "", err
	}

	var generated string
	for evt := range stream {
		switch e := evt.(type) {
		case ai.Partial:
			generated = e.Text
			c.publisher.PublishMany(ctx, s.members, event.MessagePartial{
				Chat:      s.chatID,
				MessageID: s.target,
				Partial:   e.Text,
			})
		case ai.Failure:
			c.publisher.PublishMany(ctx, s.members, event.MessageError{
				Chat:      s.chatID,
				MessageID: s.target,
				Error:     e.Message,
			})
		}
	}
	return generated, nil
}

func (c *Coordinator) censor(content string) string {
	if c.moderator == nil {
		return content
	}
	return c.moderator.Censor(content)
}
