// Lending core models: received encrypted actions, market state and prices.
package models

import "time"

// EncryptedAction is an action received from an origin router, pending until processed.
type EncryptedAction struct {
	ActionHandle    string `json:"action_handle" gorm:"primaryKey;size:66"`
	CiphertextHash  string `json:"ciphertext_hash" gorm:"uniqueIndex;size:66;not null"`
	SenderPublicKey string `json:"sender_public_key" gorm:"size:66;not null"`
	Nonce           string `json:"nonce" gorm:"size:34;not null"` // bytes16 wire nonce
	Ciphertext      string `json:"-" gorm:"type:text;not null"`
	OriginDomain    uint32 `json:"origin_domain" gorm:"not null"`
	OriginRouter    string `json:"origin_router" gorm:"size:66;not null"`

	// deposit metadata carried by the action message
	DepositHandle   string `json:"deposit_handle" gorm:"index;size:66;not null"`
	Depositor       string `json:"depositor" gorm:"size:42;not null"`
	DepositToken    string `json:"deposit_token" gorm:"size:42;not null"`
	DepositAmount   string `json:"deposit_amount" gorm:"not null"`
	DepositIsNative bool   `json:"deposit_is_native" gorm:"not null;default:false"`

	Processed   bool       `json:"processed" gorm:"index;not null;default:false"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProcessedPayload is the audit snapshot of an executed action.
type ProcessedPayload struct {
	ActionHandle     string    `json:"action_handle" gorm:"primaryKey;size:66"`
	ActionType       uint8     `json:"action_type" gorm:"not null"`
	ActionName       string    `json:"action_name" gorm:"size:16;not null"`
	Token            string    `json:"token" gorm:"size:42;not null"`
	Amount           string    `json:"amount" gorm:"not null"`
	OnBehalf         string    `json:"on_behalf" gorm:"index;size:42;not null"`
	DepositHandle    string    `json:"deposit_handle" gorm:"index;size:66;not null"`
	IsNative         bool      `json:"is_native"`
	Memo             string    `json:"memo"` // hex
	ReleaseKind      string    `json:"release_kind,omitempty" gorm:"size:16"`
	ReleaseRecipient string    `json:"release_recipient,omitempty" gorm:"size:42"`
	ReleaseAmount    string    `json:"release_amount,omitempty"`
	SeizedToken      string    `json:"seized_token,omitempty" gorm:"size:42"` // cross-market liquidation payout
	SeizedAmount     string    `json:"seized_amount,omitempty"`
	Price            string    `json:"price"` // 8 decimals, read during processing
	CreatedAt        time.Time `json:"created_at"`
}

// TokenConfig is the per-token market configuration and state.
// Indices are RAY (1e27) fixed point; totals are in scaled units.
type TokenConfig struct {
	Token                string    `json:"token" gorm:"primaryKey;size:42"`
	Enabled              bool      `json:"enabled" gorm:"not null;default:false"`
	LTV                  uint32    `json:"ltv" gorm:"column:ltv;not null"`                // bps
	LiquidationThreshold uint32    `json:"liquidation_threshold" gorm:"not null"`         // bps
	LiquidationBonus     uint32    `json:"liquidation_bonus" gorm:"not null;default:500"` // bps
	BorrowRate           uint32    `json:"borrow_rate" gorm:"not null"`                   // bps APR
	SupplyRate           uint32    `json:"supply_rate" gorm:"not null"`                   // bps APR
	SupplyIndex          string    `json:"supply_index" gorm:"not null"`
	BorrowIndex          string    `json:"borrow_index" gorm:"not null"`
	TotalSupply          string    `json:"total_supply" gorm:"not null"`
	TotalBorrow          string    `json:"total_borrow" gorm:"not null"`
	LastUpdate           int64     `json:"last_update" gorm:"not null"` // unix seconds
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Position is an account's scaled balances in one market.
type Position struct {
	Account      string    `json:"account" gorm:"primaryKey;size:42"`
	Token        string    `json:"token" gorm:"primaryKey;size:42"`
	ScaledSupply string    `json:"scaled_supply" gorm:"not null"`
	ScaledDebt   string    `json:"scaled_debt" gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Price sources
const (
	PriceSourceManual    = "manual"
	PriceSourceChainlink = "chainlink"
	PriceSourceRofl      = "rofl"
)

// PriceRecord is the latest price of a token, 8 decimal fixed point.
type PriceRecord struct {
	Token         string    `json:"token" gorm:"primaryKey;size:42"`
	Price         string    `json:"price" gorm:"not null"`
	Timestamp     time.Time `json:"timestamp" gorm:"not null"`
	Valid         bool      `json:"valid" gorm:"not null;default:false"`
	Source        string    `json:"source" gorm:"size:16;not null"`
	ObservedBlock uint64    `json:"observed_block"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PriceSource holds the external feed addresses configured for a token.
type PriceSource struct {
	Token         string    `json:"token" gorm:"primaryKey;size:42"`
	ChainlinkFeed string    `json:"chainlink_feed" gorm:"size:42"`
	RoflOracle    string    `json:"rofl_oracle" gorm:"size:42"`
	UpdatedAt     time.Time `json:"updated_at"`
}
