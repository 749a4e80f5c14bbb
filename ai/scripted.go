package ai

import (
	"context"
	"time"
)

// ScriptedAdapter replays a fixed list of events. It backs local
// development when no backend is configured, and the coordinator tests.
type ScriptedAdapter struct {
	Events []StreamEvent
	Delay  time.Duration // pause between events, zero for none
}

func (a *ScriptedAdapter) ResponseStream(ctx context.Context, _ StreamRequest) (<-chan StreamEvent, error) {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		for _, evt := range a.Events {
			if a.Delay > 0 {
				select {
				case <-time.After(a.Delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
