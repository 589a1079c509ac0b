// Package notify delivers user-facing notifications for bus events. Senders
// are fanned out per notification; each sender's failures are isolated and
// retried independently by the subscriber.
package notify

import (
	"context"
	"sort"
	"sync"

	"github.com/taskcycle/taskcycle/internal/domain"
)

// Notification is the channel-agnostic message handed to every sender.
type Notification struct {
	EventID   string
	EventType domain.EventType
	UserID    string
	TaskID    string
	Title     string
	DueDate   *string
}

// FromEnvelope builds a Notification from a bus envelope.
func FromEnvelope(env domain.Envelope) Notification {
	return Notification{
		EventID:   env.EventID,
		EventType: env.EventType,
		UserID:    env.Data.UserID,
		TaskID:    env.Data.TaskID,
		Title:     env.Data.Title,
		DueDate:   env.Data.DueDate,
	}
}

// Sender delivers a notification over one channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
	Name() string
}

// Registry holds the configured senders.
type Registry struct {
	mu      sync.RWMutex
	senders map[string]Sender
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

// Register adds a sender. Safe to call concurrently.
func (r *Registry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[s.Name()] = s
}

// All returns every registered sender in stable name order.
func (r *Registry) All() []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.senders))
	for name := range r.senders {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Sender, 0, len(names))
	for _, name := range names {
		out = append(out, r.senders[name])
	}
	return out
}
