// Package event carries typed poll lifecycle events to interested
// consumers. Publishing is fire and forget: the poll core logs a failed
// publish and moves on.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pollhub/pkg/data"
)

// Type identifies a lifecycle transition.
type Type string

const (
	PollCreated     Type = "poll_created"
	PollUpdated     Type = "poll_updated"
	PollArchived    Type = "poll_archived"
	PollRestored    Type = "poll_restored"
	PollClosed      Type = "poll_closed"
	PollReopened    Type = "poll_reopened"
	PollDeleted     Type = "poll_deleted"
	PollOwnerChange Type = "poll_owner_change"
	PollTakeover    Type = "poll_takeover"
)

// Event is one lifecycle transition of one poll.
type Event struct {
	Type      Type       `json:"type"`
	Poll      *data.Poll `json:"poll"`
	ActorID   string     `json:"actor_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Publisher consumes lifecycle events. Implementations must not block the
// caller for long; the return value is logged, never acted upon.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// LogPublisher writes events to the process log. Default sink when no
// notification backend is wired.
type LogPublisher struct {
	logger *zap.Logger
}

var _ Publisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	p.logger.Info("poll lifecycle event",
		zap.String("event", string(ev.Type)),
		zap.String("pollId", ev.Poll.ID),
		zap.String("actor", ev.ActorID))
	return nil
}

// Bus fans events out to subscriber channels. Subscribers that fall behind
// lose events rather than stalling publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
}

var _ Publisher = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber channel with the given buffer size.
// On a closed bus the returned channel is already closed.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// subscriber buffer full, drop
		}
	}
	return nil
}

// Close closes every subscriber channel so consumers ranging over them
// terminate. Publish and Subscribe after Close are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.closed = true
}
