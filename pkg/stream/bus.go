package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-research/deepresearch/pkg/logger"
)

// Subscriber is a connected streaming client. Send is buffered; a full
// buffer on Broadcast counts as a send failure and disconnects the client
// (subscriber_send error kind, event loss accepted). Send is never closed —
// a Broadcast in flight may hold a reference to a Subscriber that
// Unsubscribe concurrently evicts, and sending on a closed channel panics.
// Done closes exactly once, on eviction, and is what a reader (the
// WebSocket writePump) selects on to learn it should stop.
type Subscriber struct {
	ID   string
	Send chan Event

	done      chan struct{}
	closeOnce sync.Once
}

// Done returns the channel that closes when the subscriber is unsubscribed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Bus is the Event Bus / Streaming Gateway (C7): a flat, many-to-many
// broadcast registry. Every event is delivered to every live subscriber;
// clients filter by SearchID themselves. Registry writes (add/remove) are
// serialized with broadcasts via the same RWMutex so no event is delivered
// to a subscriber removed before it, and none is lost to one added mid
// broadcast.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber

	heartbeatInterval time.Duration
	stop              chan struct{}
	stopOnce          sync.Once

	logger logger.Logger
}

// NewBus constructs a Bus and starts its heartbeat loop.
func NewBus(heartbeatInterval time.Duration, log logger.Logger) *Bus {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	b := &Bus{
		subscribers:       make(map[string]*Subscriber),
		heartbeatInterval: heartbeatInterval,
		stop:              make(chan struct{}),
		logger:            log,
	}
	go b.heartbeatLoop()
	return b
}

// Stop halts the heartbeat loop. Safe to call more than once.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// Subscribe registers a new client with a buffered send channel and
// immediately emits a connection event to it only.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{ID: uuid.New().String(), Send: make(chan Event, 64), done: make(chan struct{})}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()

	b.deliver(sub, NewConnectionEvent(sub.ID))
	return sub
}

// Unsubscribe removes a client from the registry and signals its Done
// channel. Safe to call more than once or concurrently for the same id.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()

	if ok {
		sub.closeOnce.Do(func() { close(sub.done) })
	}
}

// Broadcast delivers event to every live subscriber. A subscriber whose
// send buffer is full is disconnected; the event is considered lost for
// that subscriber (accepted per spec).
func (b *Bus) Broadcast(event Event) {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, event)
	}
}

func (b *Bus) deliver(s *Subscriber, event Event) {
	select {
	case s.Send <- event:
	default:
		b.logger.Warn("subscriber send failed, disconnecting", "client_id", s.ID)
		b.Unsubscribe(s.ID)
	}
}

// Count returns the number of connected subscribers.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Bus) heartbeatLoop() {
	if b.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(b.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if b.Count() > 0 {
				b.Broadcast(NewHeartbeatEvent(b.Count()))
			}
		case <-b.stop:
			return
		}
	}
}
