package tracker

import (
	"sync"
	"time"

	"github.com/p-n-ai/pai-sheets/internal/progress"
)

// Event types emitted on progress changes.
const (
	EventProgressUpdated = "progress.updated"
	EventProgressCleared = "progress.cleared"
)

// Event describes a change to one user's progress on one problem.
type Event struct {
	Type      string             `json:"type"`
	UserID    string             `json:"user_id"`
	ProblemID string             `json:"problem_id"`
	Progress  *progress.Progress `json:"progress,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// EventPublisher receives progress events. Publish must not block.
type EventPublisher interface {
	Publish(event Event)
}

// NopPublisher ignores all events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// MemoryPublisher stores events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{
		events: []Event{},
	}
}

func (p *MemoryPublisher) Publish(event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event{}, p.events...)
}

// Publishers fans an event out to several publishers.
type Publishers []EventPublisher

func (ps Publishers) Publish(event Event) {
	for _, p := range ps {
		p.Publish(event)
	}
}
