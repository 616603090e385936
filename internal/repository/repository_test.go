package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"private-lending/internal/config"
	"private-lending/internal/db"
	"private-lending/internal/errs"
	"private-lending/internal/models"
)

func openDB(t *testing.T, role string) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenInMemory(role)
	require.NoError(t, err)
	return gdb
}

func TestDepositRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDepositRepository(openDB(t, config.RoleIngress))

	nonce, err := repo.NextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)

	d := &models.Deposit{Handle: "0x01", Depositor: "0xaa", Token: "0x00", Amount: "100", IsNative: true, Nonce: nonce}
	require.NoError(t, repo.Create(ctx, d))

	nonce, err = repo.NextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), nonce)

	got, err := repo.GetByHandle(ctx, "0x01")
	require.NoError(t, err)
	assert.Equal(t, "100", got.Amount)

	_, err = repo.GetByHandle(ctx, "0x02")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	flipped, err := repo.MarkReleased(ctx, "0x01", "0xbb", "100", time.Now())
	require.NoError(t, err)
	assert.True(t, flipped)
	flipped, err = repo.MarkReleased(ctx, "0x01", "0xcc", "100", time.Now())
	require.NoError(t, err)
	assert.False(t, flipped, "released is write-once")

	got, err = repo.GetByHandle(ctx, "0x01")
	require.NoError(t, err)
	assert.True(t, got.Released)
	assert.Equal(t, "0xbb", got.ReleasedTo)

	list, total, err := repo.FindByDepositor(ctx, "0xaa", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
}

func TestDepositRepository_TransferDedup(t *testing.T) {
	ctx := context.Background()
	repo := NewDepositRepository(openDB(t, config.RoleIngress))

	tr := &models.CustodyTransfer{DedupKey: "unlock:0x01", Kind: models.TransferKindUnlock, DepositHandle: "0x01", Recipient: "0xbb", Token: "0x00", Amount: "1"}
	require.NoError(t, repo.CreateTransfer(ctx, tr))

	dup := &models.CustodyTransfer{DedupKey: "unlock:0x01", Kind: models.TransferKindUnlock, DepositHandle: "0x01", Recipient: "0xcc", Token: "0x00", Amount: "1"}
	assert.Error(t, repo.CreateTransfer(ctx, dup))

	found, err := repo.FindTransferByDedupKey(ctx, "unlock:0x01")
	require.NoError(t, err)
	assert.Equal(t, "0xbb", found.Recipient)

	transfers, err := repo.FindTransfersByDeposit(ctx, "0x01")
	require.NoError(t, err)
	assert.Len(t, transfers, 1)
}

func TestDepositRepository_Balance(t *testing.T) {
	ctx := context.Background()
	repo := NewDepositRepository(openDB(t, config.RoleIngress))

	bal, err := repo.GetBalance(ctx, "0x00")
	require.NoError(t, err)
	assert.Equal(t, "0", bal)

	require.NoError(t, repo.SaveBalance(ctx, "0x00", "42"))
	require.NoError(t, repo.SaveBalance(ctx, "0x00", "40"))
	bal, err = repo.GetBalance(ctx, "0x00")
	require.NoError(t, err)
	assert.Equal(t, "40", bal)
}

func TestDepositRepository_WithTxRollback(t *testing.T) {
	ctx := context.Background()
	gdb := openDB(t, config.RoleIngress)
	repo := NewDepositRepository(gdb)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, repo.WithTx(tx).Create(ctx, &models.Deposit{Handle: "0x09", Depositor: "0xaa", Token: "0x00", Amount: "1", Nonce: 9}))
		return errs.ErrState
	})
	assert.ErrorIs(t, err, errs.ErrState)

	_, err = repo.GetByHandle(ctx, "0x09")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRelayedActionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRelayedActionRepository(openDB(t, config.RoleIngress))

	a := &models.RelayedAction{CiphertextHash: "0xc1", ActionHandle: "0xa1", DepositHandle: "0x01", DestinationDomain: 23295, Submitter: "0xaa"}
	require.NoError(t, repo.Create(ctx, a))

	exists, err := repo.ExistsByCiphertextHash(ctx, "0xc1")
	require.NoError(t, err)
	assert.True(t, exists)

	// same handle for a different ciphertext is rejected by the unique index
	assert.Error(t, repo.Create(ctx, &models.RelayedAction{CiphertextHash: "0xc2", ActionHandle: "0xa1", DepositHandle: "0x01", DestinationDomain: 23295, Submitter: "0xaa"}))

	got, err := repo.GetByActionHandle(ctx, "0xa1")
	require.NoError(t, err)
	assert.Equal(t, "0xc1", got.CiphertextHash)

	_, err = repo.GetByCiphertextHash(ctx, "0xff")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	byDeposit, err := repo.FindByDeposit(ctx, "0x01")
	require.NoError(t, err)
	assert.Len(t, byDeposit, 1)
}

func TestRouterRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRouterRepository(openDB(t, config.RoleIngress))

	_, err := repo.Get(ctx, 23295)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, repo.Upsert(ctx, 23295, "0x01"))
	require.NoError(t, repo.Upsert(ctx, 23295, "0x02"))
	got, err := repo.Get(ctx, 23295)
	require.NoError(t, err)
	assert.Equal(t, "0x02", got.Router)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOutboxRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository(openDB(t, config.RoleLendingCore))

	require.NoError(t, repo.Create(ctx, &models.OutboundMessage{ID: "m1", DestinationDomain: 5003, Recipient: "0x01", Body: "0x", Status: models.OutboundStatusPending}))
	require.NoError(t, repo.Create(ctx, &models.OutboundMessage{ID: "m2", DestinationDomain: 5003, Recipient: "0x01", Body: "0x", Status: models.OutboundStatusPending}))

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, repo.MarkDelivered(ctx, "m1", time.Now()))
	require.NoError(t, repo.RecordFailure(ctx, "m2", "boom", false))
	require.NoError(t, repo.RecordFailure(ctx, "m2", "boom again", true))

	m2, err := repo.Get(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, 2, m2.Attempts)
	assert.Equal(t, models.OutboundStatusFailed, m2.Status)
	assert.Equal(t, "boom again", m2.LastError)

	delivered, err := repo.CountByStatus(ctx, models.OutboundStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, int64(1), delivered)

	pending, err = repo.FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEncryptedActionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewEncryptedActionRepository(openDB(t, config.RoleLendingCore))

	a := &models.EncryptedAction{
		ActionHandle: "0xa1", CiphertextHash: "0xc1", SenderPublicKey: "0x01", Nonce: "0x02", Ciphertext: "0x03",
		OriginDomain: 5003, OriginRouter: "0x04", DepositHandle: "0x05", Depositor: "0xaa", DepositToken: "0x00", DepositAmount: "1",
	}
	require.NoError(t, repo.Create(ctx, a))

	exists, err := repo.Exists(ctx, "0xa1")
	require.NoError(t, err)
	assert.True(t, exists)

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	ok, err := repo.MarkProcessed(ctx, "0xa1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkProcessed(ctx, "0xa1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.CreatePayload(ctx, &models.ProcessedPayload{ActionHandle: "0xa1", ActionName: "SUPPLY", Token: "0x00", Amount: "1", OnBehalf: "0xaa", DepositHandle: "0x05"}))
	p, err := repo.GetPayload(ctx, "0xa1")
	require.NoError(t, err)
	assert.Equal(t, "SUPPLY", p.ActionName)

	_, err = repo.GetPayload(ctx, "0xa2")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMarketRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMarketRepository(openDB(t, config.RoleLendingCore))

	_, err := repo.GetTokenConfig(ctx, "0x00")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	cfg := &models.TokenConfig{Token: "0x00", Enabled: true, LTV: 7500, LiquidationThreshold: 8000, SupplyIndex: "1", BorrowIndex: "1", TotalSupply: "0", TotalBorrow: "0"}
	require.NoError(t, repo.SaveTokenConfig(ctx, cfg))
	got, err := repo.GetTokenConfig(ctx, "0x00")
	require.NoError(t, err)
	assert.Equal(t, uint32(7500), got.LTV)

	pos, err := repo.GetPosition(ctx, "0xaa", "0x00")
	require.NoError(t, err)
	assert.Equal(t, "0", pos.ScaledSupply)

	pos.ScaledSupply = "10"
	require.NoError(t, repo.SavePosition(ctx, pos))
	positions, err := repo.FindPositionsByAccount(ctx, "0xaa")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "10", positions[0].ScaledSupply)
}

func TestPriceRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPriceRepository(openDB(t, config.RoleLendingCore))

	_, err := repo.GetPrice(ctx, "0x00")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, repo.SavePrice(ctx, &models.PriceRecord{Token: "0x00", Price: "200000000000", Timestamp: time.Now(), Valid: true, Source: models.PriceSourceManual}))
	rec, err := repo.GetPrice(ctx, "0x00")
	require.NoError(t, err)
	assert.True(t, rec.Valid)

	src, err := repo.GetSource(ctx, "0x00")
	require.NoError(t, err)
	assert.Empty(t, src.RoflOracle)

	src.RoflOracle = "0xfeed"
	require.NoError(t, repo.SaveSource(ctx, src))
	src, err = repo.GetSource(ctx, "0x00")
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", src.RoflOracle)
}
