package dto

import "github.com/golang-jwt/jwt/v5"

// ==================== Auth DTOs ====================

// NonceRequest asks for a login challenge
type NonceRequest struct {
	Address string `json:"address" binding:"required"` // wallet address
}

// NonceResponse carries the message the wallet must sign
type NonceResponse struct {
	Success   bool   `json:"success"`
	Nonce     string `json:"nonce"`
	Message   string `json:"message"`
	ExpiresAt int64  `json:"expires_at"`
}

// AuthRequest Authentication request structure
type AuthRequest struct {
	Address   string `json:"address" binding:"required"`   // wallet address
	Signature string `json:"signature" binding:"required"` // EIP-191 personal_sign over the nonce message
}

// AuthResponse Authentication response structure
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// AdminLoginRequest owner login
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code" binding:"required"`
}

// JWTClaims JWT Claims structure
type JWTClaims struct {
	UserAddress string `json:"user_address"` // lowercase wallet address, the owner address for admin tokens
	Role        string `json:"role"`         // "user" or "admin"
	jwt.RegisteredClaims
}
