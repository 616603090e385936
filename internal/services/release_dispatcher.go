package services

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	"private-lending/internal/models"
	"private-lending/internal/transport"
)

// ReleaseDispatcher addresses release instructions back to the router an action came from.
type ReleaseDispatcher struct {
	outbox *OutboxService
}

// NewReleaseDispatcher creates a new release dispatcher
func NewReleaseDispatcher(outbox *OutboxService) *ReleaseDispatcher {
	return &ReleaseDispatcher{outbox: outbox}
}

// Enqueue encodes the release and stores it in the outbox inside tx
func (d *ReleaseDispatcher) Enqueue(ctx context.Context, tx *gorm.DB, action *models.EncryptedAction, release *transport.ReleaseMessage) (*models.OutboundMessage, error) {
	body, err := release.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode release: %w", err)
	}
	return d.outbox.Enqueue(ctx, tx, action.OriginDomain, common.HexToHash(action.OriginRouter), body)
}

// Deliver hands a committed release to the transport
func (d *ReleaseDispatcher) Deliver(ctx context.Context, messageID string) error {
	return d.outbox.Deliver(ctx, messageID)
}
