package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"private-lending/internal/dto"
	"private-lending/internal/services"
	"private-lending/internal/utils"
)

// DepositHandler exposes the origin deposit ledger
type DepositHandler struct {
	ledger *services.DepositLedgerService
	relay  *services.ActionRelayService
}

// NewDepositHandler creates a deposit handler
func NewDepositHandler(ledger *services.DepositLedgerService, relay *services.ActionRelayService) *DepositHandler {
	return &DepositHandler{ledger: ledger, relay: relay}
}

// DepositNativeHandler POST /api/deposits/native
func (h *DepositHandler) DepositNativeHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	var req dto.DepositNativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	amount, err := utils.ParsePositiveAmount(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	handle, err := h.ledger.DepositNative(c.Request.Context(), caller, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.DepositResponse{Success: true, DepositHandle: handle.Hex()})
}

// DepositErc20Handler POST /api/deposits/erc20
func (h *DepositHandler) DepositErc20Handler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	var req dto.DepositErc20Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	token, err := utils.ParseAddress(req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	amount, err := utils.ParsePositiveAmount(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	handle, err := h.ledger.DepositErc20(c.Request.Context(), caller, token, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.DepositResponse{Success: true, DepositHandle: handle.Hex()})
}

// GetDepositHandler GET /api/deposits/:handle
func (h *DepositHandler) GetDepositHandler(c *gin.Context) {
	handle, ok := hashParam(c, "handle")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	deposit, err := h.ledger.GetDeposit(ctx, handle)
	if err != nil {
		respondError(c, err)
		return
	}
	transfers, err := h.ledger.TransfersForDeposit(ctx, handle)
	if err != nil {
		respondError(c, err)
		return
	}
	actions, err := h.relay.ActionsForDeposit(ctx, handle)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"deposit":   deposit,
		"transfers": transfers,
		"actions":   actions,
	})
}

// ListMyDepositsHandler GET /api/deposits?page=&limit=
func (h *DepositHandler) ListMyDepositsHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	page = utils.Max(page, 1)
	limit = utils.Min(utils.Max(limit, 1), 100)

	deposits, total, err := h.ledger.ListDepositsByDepositor(c.Request.Context(), caller, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"deposits": deposits,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// CustodyBalanceHandler GET /api/custody/:token
func (h *DepositHandler) CustodyBalanceHandler(c *gin.Context) {
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}
	balance, err := h.ledger.CustodyBalance(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   utils.AddressKey(token),
		"balance": balance.String(),
	})
}
