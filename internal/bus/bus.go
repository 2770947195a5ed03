// Package bus is the in-process event fan-out. Publishers fire events after
// their transaction commits; delivery to subscribers is best-effort and never
// blocks a writer.
package bus

import (
	"log/slog"
	"sync"
)

// Event types emitted by facade operations.
const (
	EventTaskCreated      = "task.created"
	EventTaskUpdated      = "task.updated"
	EventIntentPosted     = "intent.posted"
	EventEvidenceAttached = "evidence.attached"
	EventClaimCreated     = "claim.created"
	EventClaimReleased    = "claim.released"
	EventClaimExtended    = "claim.extended"
	EventClaimConflict    = "claim.conflict"
	EventChangelogLogged  = "changelog.logged"
	EventAgentRegistered  = "agent.registered"
	EventAgentHeartbeat   = "agent.heartbeat"
)

// Event is one framed record: type field first, then the commit timestamp.
type Event struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
	Data any    `json:"data,omitempty"`
}

// DefaultQueueSize bounds each subscriber's pending queue.
const DefaultQueueSize = 256

// Bus fans events out to subscribers over bounded per-subscriber queues.
// A slow subscriber loses its oldest events rather than stalling publishers.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*Subscription
	logger *slog.Logger
}

// New returns an empty bus. A nil logger disables drop logging.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{subs: make(map[int]*Subscription), logger: logger}
}

// Subscription is one subscriber's event queue. Receive from C; Close when done.
type Subscription struct {
	C      chan Event
	id     int
	bus    *Bus
	closed bool
}

// Subscribe registers a subscriber with a queue of size queueSize
// (DefaultQueueSize when <= 0).
func (b *Bus) Subscribe(queueSize int) *Subscription {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{C: make(chan Event, queueSize), id: b.nextID, bus: b}
	b.subs[sub.id] = sub
	return sub
}

// Close unregisters the subscription and closes its channel. Idempotent.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.bus.subs, s.id)
	close(s.C)
}

// Publish delivers ev to every subscriber without blocking. When a queue is
// full the oldest pending event is dropped to make room.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.C <- ev:
			continue
		default:
		}
		// Queue full: drop the oldest, then retry once. The second send can
		// still lose the race against a concurrent receiver; that is fine,
		// delivery is best-effort.
		select {
		case dropped := <-sub.C:
			b.logger.Debug("event dropped for slow subscriber", "type", dropped.Type)
		default:
		}
		select {
		case sub.C <- ev:
		default:
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
