package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"

	"private-lending/internal/dto"
	"private-lending/internal/utils"
)

const nonceTTL = 5 * time.Minute

type pendingNonce struct {
	message   string
	expiresAt time.Time
}

// AuthHandler issues wallet sessions after an EIP-191 signature over a one-time nonce
type AuthHandler struct {
	tokens *TokenIssuer
	mu     sync.Mutex
	nonces map[string]pendingNonce
	now    func() time.Time
}

// NewAuthHandler createprocess
func NewAuthHandler(tokens *TokenIssuer) *AuthHandler {
	return &AuthHandler{
		tokens: tokens,
		nonces: make(map[string]pendingNonce),
		now:    time.Now,
	}
}

// LoginMessage is the text a wallet signs to log in
func LoginMessage(address, nonce string, timestamp int64) string {
	return fmt.Sprintf("Private Lending Authentication\nAddress: %s\nNonce: %s\nTimestamp: %d", address, nonce, timestamp)
}

// GenerateNonceHandler nonce
// POST /api/auth/nonce
func (h *AuthHandler) GenerateNonceHandler(c *gin.Context) {
	var req dto.NonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	address, err := utils.ParseAddress(req.Address)
	if err != nil {
		respondError(c, err)
		return
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "failed to generate nonce",
		})
		return
	}
	nonceStr := hex.EncodeToString(nonce)
	now := h.now()
	key := utils.AddressKey(address)
	message := LoginMessage(key, nonceStr, now.Unix())
	expiresAt := now.Add(nonceTTL)

	h.mu.Lock()
	h.nonces[key] = pendingNonce{message: message, expiresAt: expiresAt}
	h.mu.Unlock()

	c.JSON(http.StatusOK, dto.NonceResponse{
		Success:   true,
		Nonce:     nonceStr,
		Message:   message,
		ExpiresAt: expiresAt.Unix(),
	})
}

// AuthenticateHandler verifies the signed nonce message and returns a JWT
// POST /api/auth/login
func (h *AuthHandler) AuthenticateHandler(c *gin.Context) {
	var req dto.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: fmt.Sprintf("invalid request: %v", err),
		})
		return
	}
	address, err := utils.ParseAddress(req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	key := utils.AddressKey(address)

	// a nonce is consumed by the first login attempt, successful or not
	h.mu.Lock()
	pending, ok := h.nonces[key]
	delete(h.nonces, key)
	h.mu.Unlock()
	if !ok || h.now().After(pending.expiresAt) {
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "no pending nonce for address, request a new one",
		})
		return
	}

	if err := VerifyPersonalSignature(address, pending.message, req.Signature); err != nil {
		log.Printf("⚠️ Login rejected for %s: %v", key, err)
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "signature verification failed",
		})
		return
	}

	token, err := h.tokens.Issue(key, RoleUser)
	if err != nil {
		log.Printf("❌ JWT issue failed: %v", err)
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "failed to issue token",
		})
		return
	}

	log.Printf("✅ Wallet login: %s", key)
	c.JSON(http.StatusOK, dto.AuthResponse{
		Success: true,
		Token:   token,
		Message: "success",
	})
}

// VerifyPersonalSignature checks an EIP-191 personal_sign signature of message by address
func VerifyPersonalSignature(address common.Address, message, signature string) error {
	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil {
		return fmt.Errorf("signature is not hex: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", err)
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != address {
		return fmt.Errorf("signed by %s, not %s", signer.Hex(), address.Hex())
	}
	return nil
}
