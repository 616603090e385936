package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler reports liveness of the node and its database
type HealthHandler struct {
	db     *gorm.DB
	role   string
	domain uint32
	natsUp func() bool
}

// NewHealthHandler creates a health handler. natsUp may be nil when the node runs without NATS.
func NewHealthHandler(db *gorm.DB, role string, domain uint32, natsUp func() bool) *HealthHandler {
	return &HealthHandler{db: db, role: role, domain: domain, natsUp: natsUp}
}

// HealthCheckHandler GET /health
func (h *HealthHandler) HealthCheckHandler(c *gin.Context) {
	status := http.StatusOK
	database := "ok"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status = http.StatusServiceUnavailable
		database = "unreachable"
	}
	body := gin.H{
		"status":   "ok",
		"service":  "private-lending",
		"role":     h.role,
		"domain":   h.domain,
		"database": database,
	}
	if h.natsUp != nil {
		if h.natsUp() {
			body["nats"] = "connected"
		} else {
			body["nats"] = "disconnected"
		}
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}
