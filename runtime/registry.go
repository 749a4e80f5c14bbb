package runtime

import (
	"chat-gen/contract"
	"sync"
)

// Registry tracks the live connection (sink) of each participant.
// Membership itself lives on the chat record; the registry only answers
// "who is reachable right now".
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.EventSink // participant -> sink
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]contract.EventSink)}
}

// GetSinksFor resolves the given participant IDs into active sinks.
// Participants without a live connection are silently skipped.
func (r *Registry) GetSinksFor(userIDs []string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var activeSinks []contract.EventSink
	for _, id := range userIDs {
		if sink, ok := r.sessions[id]; ok {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a participant's active connection. A participant has
// a single sink; reconnecting replaces the previous one.
func (r *Registry) Subscribe(participantID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[participantID] = sink
}

// Unsubscribe drops a participant's connection.
func (r *Registry) Unsubscribe(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, participantID)
}
