package handlers

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"private-lending/internal/dto"
	"private-lending/internal/services"
	"private-lending/internal/utils"
)

// AdminHandler serves owner-gated operations. The caller is the owner address carried by the
// admin token; services check it again against the configured owner.
// markets and prices are nil on the ingress node.
type AdminHandler struct {
	routers *services.RouterRegistryService
	markets *services.MarketService
	prices  *services.PriceOracleService
}

// NewAdminHandler creates an admin handler
func NewAdminHandler(routers *services.RouterRegistryService, markets *services.MarketService, prices *services.PriceOracleService) *AdminHandler {
	return &AdminHandler{routers: routers, markets: markets, prices: prices}
}

// EnrollRouterHandler POST /api/admin/routers
func (h *AdminHandler) EnrollRouterHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	var req dto.EnrollRouterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	router, err := h.routers.EnrollRemoteRouter(c.Request.Context(), caller, req.Domain, req.Router)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "domain": req.Domain, "router": router.Hex()})
}

// ListRoutersHandler GET /api/admin/routers
func (h *AdminHandler) ListRoutersHandler(c *gin.Context) {
	routers, err := h.routers.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "routers": routers})
}

// ConfigureTokenHandler POST /api/admin/tokens
func (h *AdminHandler) ConfigureTokenHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	var req dto.ConfigureTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	token, err := utils.ParseAddress(req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	cfg, err := h.markets.ConfigureToken(c.Request.Context(), caller, token, services.TokenParams{
		LTV:                  req.LTV,
		LiquidationThreshold: req.LiquidationThreshold,
		LiquidationBonus:     req.LiquidationBonus,
		BorrowRate:           req.BorrowRate,
		SupplyRate:           req.SupplyRate,
		Enabled:              req.Enabled,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "market": cfg})
}

// UpdatePriceHandler POST /api/admin/prices
func (h *AdminHandler) UpdatePriceHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	var req dto.UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	token, err := utils.ParseAddress(req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	price, err := utils.ParseAmount(req.Price)
	if err != nil {
		respondError(c, err)
		return
	}
	record, err := h.prices.UpdatePrice(c.Request.Context(), caller, token, price)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "price": record})
}

// RefreshRoflPriceHandler POST /api/admin/prices/:token/rofl
func (h *AdminHandler) RefreshRoflPriceHandler(c *gin.Context) {
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}
	record, err := h.prices.UpdatePriceFromRoflOracle(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "price": record})
}

// RefreshChainlinkPriceHandler POST /api/admin/prices/:token/chainlink
func (h *AdminHandler) RefreshChainlinkPriceHandler(c *gin.Context) {
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}
	record, err := h.prices.UpdatePriceFromChainlink(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "price": record})
}

// SetChainlinkFeedHandler POST /api/admin/feeds/chainlink
func (h *AdminHandler) SetChainlinkFeedHandler(c *gin.Context) {
	h.setFeed(c, h.prices.SetChainlinkFeed)
}

// SetRoflOracleHandler POST /api/admin/feeds/rofl
func (h *AdminHandler) SetRoflOracleHandler(c *gin.Context) {
	h.setFeed(c, h.prices.SetRoflOracle)
}

type feedSetter func(ctx context.Context, caller, token, feed common.Address) error

func (h *AdminHandler) setFeed(c *gin.Context, apply feedSetter) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	var req dto.FeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	token, err := utils.ParseAddress(req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	feed, err := utils.ParseAddress(req.Feed)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := apply(ctx, caller, token, feed); err != nil {
		respondError(c, err)
		return
	}
	source, err := h.prices.GetSource(ctx, token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "source": source})
}
