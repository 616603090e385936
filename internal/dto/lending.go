package dto

// ==================== Ingress DTOs ====================

// DepositNativeRequest locks a native amount
type DepositNativeRequest struct {
	Amount string `json:"amount" binding:"required"` // base-10 uint256
}

// DepositErc20Request locks a token amount
type DepositErc20Request struct {
	Token  string `json:"token" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// DepositResponse returns the handle of a new deposit
type DepositResponse struct {
	Success       bool   `json:"success"`
	DepositHandle string `json:"deposit_handle"`
}

// SubmitActionRequest relays an encrypted envelope bound to a deposit
type SubmitActionRequest struct {
	DestinationDomain uint32 `json:"destination_domain" binding:"required"`
	DepositHandle     string `json:"deposit_handle" binding:"required"`
	Envelope          string `json:"envelope" binding:"required"` // 0x hex of the ABI-encoded envelope
}

// ==================== Admin DTOs ====================

// EnrollRouterRequest sets the remote router of a domain
type EnrollRouterRequest struct {
	Domain uint32 `json:"domain" binding:"required"`
	Router string `json:"router" binding:"required"` // 20-byte address or bytes32
}

// ConfigureTokenRequest creates or updates a market
type ConfigureTokenRequest struct {
	Token                string  `json:"token" binding:"required"`
	LTV                  uint32  `json:"ltv"`
	LiquidationThreshold uint32  `json:"liquidation_threshold"`
	LiquidationBonus     *uint32 `json:"liquidation_bonus,omitempty"`
	BorrowRate           uint32  `json:"borrow_rate"`
	SupplyRate           uint32  `json:"supply_rate"`
	Enabled              *bool   `json:"enabled,omitempty"`
}

// UpdatePriceRequest sets a price with 8 decimals
type UpdatePriceRequest struct {
	Token string `json:"token" binding:"required"`
	Price string `json:"price" binding:"required"`
}

// FeedRequest configures an external price source of a token
type FeedRequest struct {
	Token string `json:"token" binding:"required"`
	Feed  string `json:"feed" binding:"required"` // Chainlink aggregator or ROFL oracle address
}
