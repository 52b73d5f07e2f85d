// Package events provides a bounded topic-based publish/subscribe bus
// used to fan out region lifecycle notifications to interested clients.
package events

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTooManySubscribers = errors.New("too many subscribers")
	ErrUnknownSubscriber  = errors.New("unknown subscriber")
	ErrBusClosed          = errors.New("bus closed")
)

const (
	// DefaultMaxSubscribers bounds the subscriber table.
	DefaultMaxSubscribers = 16
	// subscriberBuffer is the per-subscriber delivery queue. Slow
	// consumers drop messages rather than stall publishers.
	subscriberBuffer = 64
)

// Message is one published event.
type Message struct {
	ID        string                 `json:"id"`
	Topic     string                 `json:"topic"`
	Sender    uint32                 `json:"sender"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type subscriber struct {
	id     int
	filter string
	ch     chan Message
}

// Bus is a bounded pub/sub message bus. Delivery is asynchronous: each
// subscriber owns a buffered channel and publishers never block.
type Bus struct {
	mu      sync.Mutex
	subs    []*subscriber
	nextID  int
	maxSubs int
	closed  bool
	dropped uint64
}

// NewBus creates a bus with the default subscriber bound.
func NewBus() *Bus {
	return &Bus{nextID: 1, maxSubs: DefaultMaxSubscribers}
}

// Subscribe registers interest in a topic filter. A filter is either an
// exact topic or a prefix ending in ".*" ("shm.*" matches every region
// event). It returns the subscriber id and the delivery channel; the
// channel is closed on Unsubscribe or bus Close.
func (b *Bus) Subscribe(filter string) (int, <-chan Message, error) {
	if filter == "" {
		filter = "*"
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, nil, ErrBusClosed
	}
	if len(b.subs) >= b.maxSubs {
		return 0, nil, ErrTooManySubscribers
	}
	sub := &subscriber{
		id:     b.nextID,
		filter: filter,
		ch:     make(chan Message, subscriberBuffer),
	}
	b.nextID++
	b.subs = append(b.subs, sub)
	return sub.id, sub.ch, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub.ch)
			return nil
		}
	}
	return ErrUnknownSubscriber
}

// Publish broadcasts a message to every subscriber whose filter matches
// the topic. Messages to full subscriber queues are dropped.
func (b *Bus) Publish(topic string, sender uint32, payload map[string]interface{}) {
	if topic == "" {
		return
	}
	msg := Message{
		ID:        uuid.New().String(),
		Topic:     topic,
		Sender:    sender,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if !matches(sub.filter, topic) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			b.dropped++
		}
	}
}

// Dropped returns the number of messages discarded because a subscriber
// queue was full.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}

func matches(filter, topic string) bool {
	if filter == "*" || filter == topic {
		return true
	}
	if prefix, ok := strings.CutSuffix(filter, ".*"); ok {
		return strings.HasPrefix(topic, prefix+".")
	}
	return false
}
