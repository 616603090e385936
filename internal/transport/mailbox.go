package transport

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Delivery is the outcome of handing one message to its handler.
type Delivery struct {
	Message *Message
	Err     error
}

// Mailbox is an in-process transport. Dispatch queues; Relay delivers.
// It backs single-binary deployments and tests that drive both domains.
type Mailbox struct {
	mu       sync.Mutex
	queue    []*Message
	handlers map[string]Handler
	closed   bool
}

// NewMailbox creates an empty mailbox
func NewMailbox() *Mailbox {
	return &Mailbox{handlers: make(map[string]Handler)}
}

func (m *Mailbox) Register(domain uint32, router common.Hash, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := routeKey(domain, router)
	if _, exists := m.handlers[key]; exists {
		return fmt.Errorf("handler already registered for %s", key)
	}
	m.handlers[key] = h
	return nil
}

func (m *Mailbox) Dispatch(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mailbox closed")
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	cp := *msg
	cp.Body = append([]byte(nil), msg.Body...)
	m.queue = append(m.queue, &cp)
	return nil
}

// Pending returns the number of queued messages.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Relay delivers queued messages, including those dispatched by handlers while relaying,
// until the queue is empty. Handler errors are reported in the result and do not stop the relay.
func (m *Mailbox) Relay(ctx context.Context) []Delivery {
	var deliveries []Delivery
	for {
		msg, h, ok := m.next()
		if !ok {
			return deliveries
		}
		if err := ctx.Err(); err != nil {
			deliveries = append(deliveries, Delivery{Message: msg, Err: err})
			return deliveries
		}

		var err error
		if h == nil {
			err = fmt.Errorf("%w: domain %d router %s", ErrNoRoute, msg.DestinationDomain, msg.Recipient.Hex())
		} else {
			err = h.HandleMessage(ctx, msg.OriginDomain, msg.Sender, msg.Body)
		}
		if err != nil {
			log.Printf("⚠️ [Mailbox] delivery %s %d->%d rejected: %v", msg.ID, msg.OriginDomain, msg.DestinationDomain, err)
		}
		deliveries = append(deliveries, Delivery{Message: msg, Err: err})
	}
}

func (m *Mailbox) next() (*Message, Handler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, nil, false
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, m.handlers[routeKey(msg.DestinationDomain, msg.Recipient)], true
}

func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.queue = nil
	return nil
}
