package handlers

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"private-lending/internal/dto"
	"private-lending/internal/errs"
	"private-lending/internal/services"
	"private-lending/internal/utils"
)

// ActionHandler relays encrypted actions from the ingress node
type ActionHandler struct {
	relay *services.ActionRelayService
}

// NewActionHandler creates an action handler
func NewActionHandler(relay *services.ActionRelayService) *ActionHandler {
	return &ActionHandler{relay: relay}
}

// SubmitActionHandler POST /api/actions
func (h *ActionHandler) SubmitActionHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	var req dto.SubmitActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	depositHandle, err := utils.ParseHash(req.DepositHandle)
	if err != nil {
		respondError(c, err)
		return
	}
	envelopeBytes, err := hexutil.Decode(req.Envelope)
	if err != nil {
		respondError(c, fmt.Errorf("%w: envelope is not 0x hex: %v", errs.ErrFraming, err))
		return
	}

	res, err := h.relay.SubmitAction(c.Request.Context(), caller, req.DestinationDomain, depositHandle, envelopeBytes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"success":            true,
		"action_handle":      res.ActionHandle.Hex(),
		"ciphertext_hash":    res.CiphertextHash.Hex(),
		"destination_domain": res.DestinationDomain,
		"message_id":         res.MessageID,
	})
}

// LookupActionHandler GET /api/actions/:ciphertextHash
func (h *ActionHandler) LookupActionHandler(c *gin.Context) {
	ciphertextHash, ok := hashParam(c, "ciphertextHash")
	if !ok {
		return
	}
	action, err := h.relay.LookupAction(c.Request.Context(), ciphertextHash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "action": action})
}
