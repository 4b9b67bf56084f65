// Package events carries the one-way "saved" notification emitted after each
// local mutation, so a UI can refresh status counters without polling.
package events

import (
	"sync"

	"github.com/gstbill/gstbill/internal/models"
)

// Saved is published after a local store mutation has been committed.
type Saved struct {
	Kind     models.EntityKind
	EntityID string
	Action   models.Action
	Counts   models.Counts
}

// Notifier fans Saved events out to subscribers. Publishing never blocks:
// a subscriber that falls behind loses events, which is acceptable for a
// status signal that is re-derivable from the store.
type Notifier struct {
	mu   sync.RWMutex
	subs []chan Saved
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe returns a buffered channel receiving future events.
func (n *Notifier) Subscribe() <-chan Saved {
	ch := make(chan Saved, 16)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}

// Publish delivers ev to every subscriber, dropping it for full channels.
func (n *Notifier) Publish(ev Saved) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
