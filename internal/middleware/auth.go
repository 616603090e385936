package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"private-lending/internal/handlers"
)

// AuthMiddleware JWT
type AuthMiddleware struct {
	logger *logrus.Logger
	tokens *handlers.TokenIssuer
}

// NewAuthMiddleware createJWT
func NewAuthMiddleware(logger *logrus.Logger, tokens *handlers.TokenIssuer) *AuthMiddleware {
	return &AuthMiddleware{
		logger: logger,
		tokens: tokens,
	}
}

// bearerToken extracts the token or answers 401 and aborts
func bearerToken(c *gin.Context, logger *logrus.Logger) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	fail := func(reason, message, code string) (string, bool) {
		logger.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Warn("JWT auth failed - " + reason)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   message,
			"code":    code,
		})
		return "", false
	}

	if authHeader == "" {
		return fail("missing Authorization header", "Authentication required", "MISSING_AUTH_HEADER")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return fail("invalid Authorization format", "Authorization header must be in format: Bearer <token>", "INVALID_AUTH_FORMAT")
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if tokenString == "" {
		return fail("empty token", "Token cannot be empty", "EMPTY_TOKEN")
	}
	return tokenString, true
}

// RequireAuth JWT
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c, a.logger)
		if !ok {
			return
		}

		claims, err := a.tokens.Validate(tokenString)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"error":  err.Error(),
			}).Warn("JWT auth failed - invalid token")

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid or expired token",
				"code":    "INVALID_TOKEN",
			})
			return
		}

		c.Set("user_address", claims.UserAddress)
		c.Set("role", claims.Role)

		a.logger.WithFields(logrus.Fields{
			"path":         c.Request.URL.Path,
			"method":       c.Request.Method,
			"user_address": claims.UserAddress,
		}).Debug("JWT auth ok")

		c.Next()
	}
}
