package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"private-lending/internal/services"
	"private-lending/internal/utils"
)

// ProcessorHandler exposes the lending core action processor
type ProcessorHandler struct {
	processor *services.ActionProcessorService
}

// NewProcessorHandler creates a processor handler
func NewProcessorHandler(processor *services.ActionProcessorService) *ProcessorHandler {
	return &ProcessorHandler{processor: processor}
}

// PublicKeyHandler GET /api/public-key
// Clients seal envelopes to this X25519 key.
func (h *ProcessorHandler) PublicKeyHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"public_key": h.processor.PublicKey(),
	})
}

// ProcessActionHandler POST /api/actions/:handle/process
func (h *ProcessorHandler) ProcessActionHandler(c *gin.Context) {
	handle, ok := hashParam(c, "handle")
	if !ok {
		return
	}
	res, err := h.processor.ProcessAction(c.Request.Context(), handle)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

// GetActionHandler GET /api/actions/:handle
func (h *ProcessorHandler) GetActionHandler(c *gin.Context) {
	handle, ok := hashParam(c, "handle")
	if !ok {
		return
	}
	action, err := h.processor.GetAction(c.Request.Context(), handle)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "action": action})
}

// GetPayloadHandler GET /api/actions/:handle/payload
func (h *ProcessorHandler) GetPayloadHandler(c *gin.Context) {
	handle, ok := hashParam(c, "handle")
	if !ok {
		return
	}
	payload, err := h.processor.GetPayload(c.Request.Context(), handle)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payload": payload})
}

// PendingActionsHandler GET /api/actions?limit=
func (h *ProcessorHandler) PendingActionsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	limit = utils.Min(utils.Max(limit, 1), 500)
	actions, err := h.processor.PendingActions(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "actions": actions})
}
