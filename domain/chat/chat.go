// Package chat contains core concepts of the generation system.
// This file defines the Chat conversation and its membership invariants.
// No runtime, network, or UI logic should be added here.
package chat

import (
	"time"

	"github.com/samber/lo"
)

type ChatID string

// Chat is a shared conversation, optionally bound to an AI character
// that authors the generated replies.
type Chat struct {
	ID          ChatID
	OwnerID     string
	MemberIDs   []string
	CharacterID string
	CreatedAt   time.Time
}

// Audience is the effective broadcast target: memberIds plus the owner.
// It is never empty since the owner is always included.
func (c Chat) Audience() []string {
	return lo.Uniq(append(append([]string{}, c.MemberIDs...), c.OwnerID))
}

// HasMember reports whether userID belongs to the chat's audience.
func (c Chat) HasMember(userID string) bool {
	return lo.Contains(c.Audience(), userID)
}
