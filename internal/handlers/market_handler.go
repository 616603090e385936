package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"private-lending/internal/services"
)

// MarketHandler serves market, price and account health queries on the lending core
type MarketHandler struct {
	markets *services.MarketService
	prices  *services.PriceOracleService
}

// NewMarketHandler creates a market handler
func NewMarketHandler(markets *services.MarketService, prices *services.PriceOracleService) *MarketHandler {
	return &MarketHandler{markets: markets, prices: prices}
}

// ListMarketsHandler GET /api/tokens
func (h *MarketHandler) ListMarketsHandler(c *gin.Context) {
	markets, err := h.markets.ListMarkets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "markets": markets})
}

// GetMarketHandler GET /api/tokens/:token
func (h *MarketHandler) GetMarketHandler(c *gin.Context) {
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}
	market, err := h.markets.GetMarket(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "market": market})
}

// GetPriceHandler GET /api/prices/:token
func (h *MarketHandler) GetPriceHandler(c *gin.Context) {
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	price, err := h.prices.GetPrice(ctx, token)
	if err != nil {
		respondError(c, err)
		return
	}
	source, err := h.prices.GetSource(ctx, token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "price": price, "source": source})
}

// AccountHealthHandler GET /api/accounts/:address/health
func (h *MarketHandler) AccountHealthHandler(c *gin.Context) {
	account, ok := addressParam(c, "address")
	if !ok {
		return
	}
	report, err := h.markets.AccountHealth(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "account": report})
}
