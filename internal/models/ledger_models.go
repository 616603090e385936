// Origin-side ledger models: deposits held in custody and the ciphertext index of relayed actions.
package models

import "time"

// Deposit is a locked deposit on the origin ledger.
// Released flips false -> true once and is never reset.
type Deposit struct {
	Handle    string `json:"handle" gorm:"primaryKey;size:66"`        // bytes32 deposit handle
	Depositor string `json:"depositor" gorm:"index;size:42;not null"` // address
	Token     string `json:"token" gorm:"index;size:42;not null"`     // address, zero address for native
	Amount    string `json:"amount" gorm:"not null"`                  // uint256
	IsNative  bool   `json:"is_native" gorm:"not null;default:false"`
	Nonce     uint64 `json:"nonce" gorm:"uniqueIndex;not null"`

	Released       bool       `json:"released" gorm:"index;not null;default:false"`
	ReleasedTo     string     `json:"released_to,omitempty" gorm:"size:42"`
	ReleasedAmount string     `json:"released_amount,omitempty"`
	ReleasedAt     *time.Time `json:"released_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Custody transfer kinds
const (
	TransferKindUnlock = "UNLOCK"
	TransferKindPayout = "PAYOUT"
)

// CustodyTransfer records every outbound transfer from custody.
// DedupKey is "unlock:<deposit>" or "payout:<action>", so a deposit unlocks at most once
// and a borrow pays out at most once.
type CustodyTransfer struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	DedupKey      string    `json:"dedup_key" gorm:"uniqueIndex;not null"`
	Kind          string    `json:"kind" gorm:"size:16;not null"`
	DepositHandle string    `json:"deposit_handle" gorm:"index;size:66;not null"`
	ActionHandle  string    `json:"action_handle" gorm:"index;size:66"`
	Recipient     string    `json:"recipient" gorm:"size:42;not null"`
	Token         string    `json:"token" gorm:"size:42;not null"`
	Amount        string    `json:"amount" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
}

// CustodyBalance is the amount of a token currently held by the ledger.
type CustodyBalance struct {
	Token     string    `json:"token" gorm:"primaryKey;size:42"`
	Balance   string    `json:"balance" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RelayedAction is the origin-side ciphertext hash -> action handle index.
type RelayedAction struct {
	CiphertextHash    string    `json:"ciphertext_hash" gorm:"primaryKey;size:66"`
	ActionHandle      string    `json:"action_handle" gorm:"uniqueIndex;size:66;not null"`
	DepositHandle     string    `json:"deposit_handle" gorm:"index;size:66;not null"`
	DestinationDomain uint32    `json:"destination_domain" gorm:"not null"`
	Submitter         string    `json:"submitter" gorm:"size:42;not null"`
	MessageID         string    `json:"message_id" gorm:"size:36"`
	CreatedAt         time.Time `json:"created_at"`
}

// RemoteRouter is the enrolled counterpart router for a domain.
type RemoteRouter struct {
	Domain    uint32    `json:"domain" gorm:"primaryKey;autoIncrement:false"`
	Router    string    `json:"router" gorm:"size:66;not null"` // bytes32, left-padded address
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
