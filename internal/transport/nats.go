package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"private-lending/internal/metrics"
)

// reply sent by the receiving node once the handler has run
type natsAck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NATSTransport delivers messages over NATS request/reply on
// <prefix>.<domain>.<router-hex>. A reply means the receiver ran its handler;
// a missing reply leaves the message for redelivery.
type NATSTransport struct {
	conn    *nats.Conn
	prefix  string
	timeout time.Duration

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSTransport wraps an established connection
func NewNATSTransport(conn *nats.Conn, prefix string, timeout time.Duration) *NATSTransport {
	if prefix == "" {
		prefix = "lending.mailbox"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NATSTransport{conn: conn, prefix: prefix, timeout: timeout}
}

// Subject returns the mailbox subject of (domain, router).
func (t *NATSTransport) Subject(domain uint32, router common.Hash) string {
	return t.prefix + "." + routeKey(domain, router)
}

func (t *NATSTransport) Dispatch(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal transport message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	reply, err := t.conn.RequestWithContext(ctx, t.Subject(msg.DestinationDomain, msg.Recipient), data)
	if err != nil {
		return fmt.Errorf("nats request failed: %w", err)
	}
	metrics.TransportMessagesSent.WithLabelValues(strconv.FormatUint(uint64(msg.DestinationDomain), 10)).Inc()

	var ack natsAck
	if err := json.Unmarshal(reply.Data, &ack); err != nil {
		return fmt.Errorf("invalid ack: %w", err)
	}
	if !ack.OK {
		// the receiver rejected the message; redelivery would be rejected the same way
		log.Printf("⚠️ [NATS] message %s rejected by %d: %s", msg.ID, msg.DestinationDomain, ack.Error)
	}
	return nil
}

func (t *NATSTransport) Register(domain uint32, router common.Hash, h Handler) error {
	subject := t.Subject(domain, router)
	sub, err := t.conn.Subscribe(subject, func(m *nats.Msg) {
		var msg Message
		ack := natsAck{OK: true}
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			ack = natsAck{Error: fmt.Sprintf("invalid message: %v", err)}
		} else if err := h.HandleMessage(context.Background(), msg.OriginDomain, msg.Sender, msg.Body); err != nil {
			ack = natsAck{Error: err.Error()}
		}

		result := "accepted"
		if !ack.OK {
			result = "rejected"
		}
		metrics.TransportMessagesReceived.WithLabelValues(strconv.FormatUint(uint64(msg.OriginDomain), 10), result).Inc()

		data, _ := json.Marshal(ack)
		if err := m.Respond(data); err != nil {
			log.Printf("❌ [NATS] failed to ack message %s: %v", msg.ID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()
	log.Printf("✅ [NATS] mailbox subscribed: %s", subject)
	return nil
}

func (t *NATSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("⚠️ [NATS] unsubscribe %s: %v", sub.Subject, err)
		}
	}
	t.subs = nil
	return nil
}
