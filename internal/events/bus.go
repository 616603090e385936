// Package events fans out ledger events to websocket clients and NATS.
package events

import (
	"sync"
	"time"
)

// Type of a ledger event
type Type string

const (
	DepositCreated  Type = "deposit.created"
	ActionRelayed   Type = "action.relayed"
	ActionReceived  Type = "action.received"
	ActionProcessed Type = "action.processed"
	ReleaseApplied  Type = "release.applied"
	PriceUpdated    Type = "price.updated"
	TokenConfigured Type = "token.configured"
	RouterEnrolled  Type = "router.enrolled"
	FeedConfigured  Type = "feed.configured"
)

// Event is a single notification.
type Event struct {
	Type      Type        `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher is what services emit events through.
type Publisher interface {
	Publish(eventType Type, data interface{})
}

// Sink receives every published event synchronously.
type Sink func(Event)

// Bus delivers events to channel subscribers and sinks. Slow subscribers drop events.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
	sinks  []Sink
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// AddSink registers a synchronous consumer.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Subscribe returns a buffered event channel and a cancel func that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

func (b *Bus) Publish(eventType Type, data interface{}) {
	evt := Event{Type: eventType, Data: data, Timestamp: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.sinks {
		s(evt)
	}
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Type, interface{}) {}
