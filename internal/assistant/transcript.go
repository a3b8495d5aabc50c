package assistant

import (
	"sync"

	"site-assistant/internal/domain"
)

// Transcript is the append-only chat history of one session.
type Transcript struct {
	mu    sync.Mutex
	turns []domain.ChatMessage
}

func (t *Transcript) Append(turns ...domain.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turns...)
}

// Snapshot returns a copy that later appends do not affect.
func (t *Transcript) Snapshot() []domain.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.ChatMessage, len(t.turns))
	copy(out, t.turns)
	return out
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.turns)
}
