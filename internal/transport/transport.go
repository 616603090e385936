// Package transport carries messages between enrolled domain/router pairs.
//
// Delivery is authenticated and at-least-once: the receiver learns the origin domain and
// the sending router, and must tolerate duplicates. No ordering is guaranteed.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoRoute is returned when no handler is registered for the recipient.
var ErrNoRoute = errors.New("no route to recipient")

// Message is one cross-domain delivery.
type Message struct {
	ID                string      `json:"id"`
	OriginDomain      uint32      `json:"origin_domain"`
	Sender            common.Hash `json:"sender"` // bytes32 router
	DestinationDomain uint32      `json:"destination_domain"`
	Recipient         common.Hash `json:"recipient"` // bytes32 router
	Body              []byte      `json:"body"`
}

// Handler receives messages addressed to a local router.
type Handler interface {
	HandleMessage(ctx context.Context, origin uint32, sender common.Hash, body []byte) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, origin uint32, sender common.Hash, body []byte) error

func (f HandlerFunc) HandleMessage(ctx context.Context, origin uint32, sender common.Hash, body []byte) error {
	return f(ctx, origin, sender, body)
}

// Transport dispatches messages and routes inbound ones to registered handlers.
type Transport interface {
	// Dispatch hands msg to the transport. A nil error means the transport accepted it;
	// it says nothing about whether the receiver accepted it.
	Dispatch(ctx context.Context, msg *Message) error
	// Register installs the handler for messages addressed to (domain, router).
	Register(domain uint32, router common.Hash, h Handler) error
	Close() error
}

// RouterToBytes32 left-pads a 20-byte address (or parses a 32-byte value) into a router id.
func RouterToBytes32(s string) (common.Hash, error) {
	raw := common.FromHex(strings.TrimSpace(s))
	switch len(raw) {
	case common.AddressLength:
		return common.BytesToHash(raw), nil
	case common.HashLength:
		return common.BytesToHash(raw), nil
	default:
		return common.Hash{}, fmt.Errorf("router must be 20 or 32 bytes, got %d", len(raw))
	}
}

func routeKey(domain uint32, router common.Hash) string {
	return fmt.Sprintf("%d.%s", domain, strings.TrimPrefix(strings.ToLower(router.Hex()), "0x"))
}
