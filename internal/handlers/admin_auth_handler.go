package handlers

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"

	"private-lending/internal/config"
	"private-lending/internal/dto"
	"private-lending/internal/utils"
)

// AdminAuthHandler logs the owner in with password and TOTP. The admin token acts as the
// configured owner address on owner-gated operations.
type AdminAuthHandler struct {
	tokens *TokenIssuer
	cfg    config.AdminConfig
	owner  string
}

// NewAdminAuthHandler 创建管理员认证处理器
func NewAdminAuthHandler(tokens *TokenIssuer, cfg config.AdminConfig, ownerAddress string) *AdminAuthHandler {
	if cfg.TOTPSecret == "" || cfg.Password == "" {
		logrus.Warn("⚠️ admin.password or admin.totp_secret is not set, admin login is disabled")
	}
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
	return &AdminAuthHandler{
		tokens: tokens,
		cfg:    cfg,
		owner:  utils.NormalizeAddress(ownerAddress),
	}
}

// AdminLoginHandler 管理员登录处理
// POST /api/admin/login
func (h *AdminAuthHandler) AdminLoginHandler(c *gin.Context) {
	if h.cfg.TOTPSecret == "" || h.cfg.Password == "" {
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "Server misconfiguration: admin credentials not set",
		})
		return
	}
	if !utils.IsEvmAddress(h.owner) {
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "Server misconfiguration: node.owner_address not set",
		})
		return
	}

	var req dto.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.Password)) == 1
	if !userOK || !passOK {
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}

	if !totp.Validate(req.TOTPCode, h.cfg.TOTPSecret) {
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "Invalid TOTP code",
		})
		return
	}

	token, err := h.tokens.Issue(h.owner, RoleAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	logrus.WithField("username", req.Username).Info("✅ Admin login")
	c.JSON(http.StatusOK, dto.AuthResponse{
		Success: true,
		Token:   token,
		Message: "Login successful",
	})
}

// GenerateTOTPSecretHandler 生成 TOTP secret（仅用于初始化）
// Refused once a secret is configured.
func (h *AdminAuthHandler) GenerateTOTPSecretHandler(c *gin.Context) {
	if h.cfg.TOTPSecret != "" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "TOTP secret already configured",
		})
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Private Lending Admin",
		AccountName: h.cfg.Username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to generate TOTP secret",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"secret":  key.Secret(),
		"url":     key.URL(),
		"message": "Save this secret to ADMIN_TOTP_SECRET and restart the node.",
	})
}
