package models

import "time"

// Outbound message status
const (
	OutboundStatusPending   = "pending"
	OutboundStatusDelivered = "delivered"
	OutboundStatusFailed    = "failed"
)

// OutboundMessage is a transport message committed with the state change that produced it
// and delivered after commit by the outbox.
type OutboundMessage struct {
	ID                string     `json:"id" gorm:"primaryKey;size:36"` // uuid
	DestinationDomain uint32     `json:"destination_domain" gorm:"index;not null"`
	Recipient         string     `json:"recipient" gorm:"size:66;not null"` // bytes32 router
	Body              string     `json:"body" gorm:"type:text;not null"`    // hex
	Status            string     `json:"status" gorm:"index;size:16;not null;default:pending"`
	Attempts          int        `json:"attempts" gorm:"not null;default:0"`
	LastError         string     `json:"last_error,omitempty" gorm:"type:text"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
