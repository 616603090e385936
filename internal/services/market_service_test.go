package services

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"private-lending/internal/errs"
	"private-lending/internal/utils"
)

func TestConfigureToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.markets.ConfigureToken(h.ctx, aliceAddr, tokenA, TokenParams{LTV: 7500, LiquidationThreshold: 8000})
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	_, err = h.markets.ConfigureToken(h.ctx, ownerAddr, tokenA, TokenParams{LTV: 9000, LiquidationThreshold: 8000})
	assert.ErrorIs(t, err, errs.ErrValidation)

	tooHigh := uint32(20000)
	_, err = h.markets.ConfigureToken(h.ctx, ownerAddr, tokenA, TokenParams{LTV: 7500, LiquidationThreshold: 8000, LiquidationBonus: &tooHigh})
	assert.ErrorIs(t, err, errs.ErrValidation)

	cfg, err := h.markets.ConfigureToken(h.ctx, ownerAddr, tokenA, TokenParams{LTV: 7500, LiquidationThreshold: 8000, BorrowRate: 10000})
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, uint32(500), cfg.LiquidationBonus, "default bonus")
	assert.Equal(t, RAY.String(), cfg.BorrowIndex)

	_, err = h.markets.GetMarket(h.ctx, common.HexToAddress("0x1234"))
	assert.ErrorIs(t, err, errs.ErrNotFound)

	tokens, err := h.markets.Tokens(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{utils.AddressKey(tokenA)}, tokens)
}

func TestConfigureTokenKeepsIndices(t *testing.T) {
	h := newHarness(t)
	_, err := h.markets.ConfigureToken(h.ctx, ownerAddr, tokenA, TokenParams{LTV: 7500, LiquidationThreshold: 8000, BorrowRate: 10000})
	require.NoError(t, err)

	h.advance(SecondsPerYear * time.Second)
	disabled := false
	cfg, err := h.markets.ConfigureToken(h.ctx, ownerAddr, tokenA, TokenParams{LTV: 5000, LiquidationThreshold: 6000, Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, ray(2, 1).String(), cfg.BorrowIndex, "a year at the old rate accrued before the update")

	h.advance(SecondsPerYear * time.Second)
	view, err := h.markets.GetMarket(h.ctx, tokenA)
	require.NoError(t, err)
	assert.Equal(t, ray(2, 1).String(), view.BorrowIndex, "new zero rate applies from the update")
	assert.Equal(t, uint32(5000), view.LTV)
}

func TestAccountHealthWithoutPositions(t *testing.T) {
	h := newHarness(t)
	report, err := h.markets.AccountHealth(h.ctx, aliceAddr)
	require.NoError(t, err)
	assert.True(t, report.Health.Infinite)
	assert.Empty(t, report.Positions)
	assert.Equal(t, utils.AddressKey(aliceAddr), report.Account)
}

func TestRouterRegistry(t *testing.T) {
	h := newHarness(t)

	_, err := h.routersC.EnrollRemoteRouter(h.ctx, aliceAddr, 7, coreRouter.Hex())
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	_, err = h.routersC.EnrollRemoteRouter(h.ctx, ownerAddr, 0, coreRouter.Hex())
	assert.ErrorIs(t, err, errs.ErrValidation)

	// 20-byte addresses are left-padded
	router, err := h.routersC.EnrollRemoteRouter(h.ctx, ownerAddr, 7, "0x3333333333333333333333333333333333333333")
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x0000000000000000000000003333333333333333333333333333333333333333"), router)

	ok, err := h.routersC.IsEnrolled(h.ctx, 7, router)
	require.NoError(t, err)
	assert.True(t, ok)

	// re-enrolling replaces the previous router
	_, err = h.routersC.EnrollRemoteRouter(h.ctx, ownerAddr, 7, coreRouter.Hex())
	require.NoError(t, err)
	ok, err = h.routersC.IsEnrolled(h.ctx, 7, router)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.routersC.RemoteRouter(h.ctx, 8)
	assert.ErrorIs(t, err, errs.ErrConfig)

	list, err := h.routersC.List(h.ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
