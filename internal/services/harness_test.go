package services

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"private-lending/internal/config"
	"private-lending/internal/db"
	"private-lending/internal/envelope"
	"private-lending/internal/repository"
	"private-lending/internal/transport"
	"private-lending/internal/utils"
)

const (
	ingressDomain uint32 = config.DomainMantleSepolia
	coreDomain    uint32 = config.DomainSapphireTestnet
)

var (
	ownerAddr     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	aliceAddr     = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bobAddr       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	tokenA        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	ingressRouter = common.HexToHash("0x0000000000000000000000001111111111111111111111111111111111111111")
	coreRouter    = common.HexToHash("0x0000000000000000000000002222222222222222222222222222222222222222")
	// 1.00 with 8 decimals
	onePrice = big.NewInt(100000000)
)

type fakeRofl struct {
	mu    sync.Mutex
	obs   map[common.Address]*RoflObservation
	block uint64
	err   error
}

func (f *fakeRofl) GetLastObservation(ctx context.Context, oracle common.Address) (*RoflObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	obs, ok := f.obs[oracle]
	if !ok {
		return &RoflObservation{Value: new(big.Int)}, nil
	}
	return obs, nil
}

func (f *fakeRofl) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.block, nil
}

type fakeChainlink struct {
	rounds map[common.Address]*ChainlinkRound
}

func (f *fakeChainlink) LatestRound(ctx context.Context, feed common.Address) (*ChainlinkRound, error) {
	round, ok := f.rounds[feed]
	if !ok {
		return nil, errNoRound
	}
	return round, nil
}

var errNoRound = errors.New("no round data")

// harness wires an ingress node and a lending core node over one in-process mailbox.
type harness struct {
	t   *testing.T
	ctx context.Context
	now time.Time

	mailbox *transport.Mailbox
	keys    *envelope.KeyPair

	ingressDB *gorm.DB
	ledger    *DepositLedgerService
	relay     *ActionRelayService
	outboxI   *OutboxService

	coreDB    *gorm.DB
	routersC  *RouterRegistryService
	prices    *PriceOracleService
	markets   *MarketService
	processor *ActionProcessorService
	outboxC   *OutboxService
	rofl      *fakeRofl
	chainlink *fakeChainlink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		ctx:       context.Background(),
		now:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		mailbox:   transport.NewMailbox(),
		rofl:      &fakeRofl{obs: map[common.Address]*RoflObservation{}},
		chainlink: &fakeChainlink{rounds: map[common.Address]*ChainlinkRound{}},
	}
	clock := Clock(func() time.Time { return h.now })
	gate := NewOwnerGate(ownerAddr.Hex())

	var err error
	h.keys, err = envelope.GenerateKeyPair()
	require.NoError(t, err)

	// ingress
	h.ingressDB, err = db.OpenInMemory(config.RoleIngress)
	require.NoError(t, err)
	routersI := NewRouterRegistryService(repository.NewRouterRepository(h.ingressDB), gate, nil)
	_, err = routersI.EnrollRemoteRouter(h.ctx, ownerAddr, coreDomain, coreRouter.Hex())
	require.NoError(t, err)
	deposits := repository.NewDepositRepository(h.ingressDB)
	h.outboxI = NewOutboxService(repository.NewOutboxRepository(h.ingressDB), h.mailbox, ingressDomain, ingressRouter, config.OutboxConfig{MaxAttempts: 3})
	h.outboxI.SetClock(clock)
	h.ledger = NewDepositLedgerService(h.ingressDB, deposits, routersI, nil, ingressDomain)
	h.ledger.SetClock(clock)
	h.relay = NewActionRelayService(h.ingressDB, deposits, repository.NewRelayedActionRepository(h.ingressDB), routersI, h.outboxI, nil)
	require.NoError(t, h.mailbox.Register(ingressDomain, ingressRouter, h.ledger))

	// lending core
	h.coreDB, err = db.OpenInMemory(config.RoleLendingCore)
	require.NoError(t, err)
	h.routersC = NewRouterRegistryService(repository.NewRouterRepository(h.coreDB), gate, nil)
	_, err = h.routersC.EnrollRemoteRouter(h.ctx, ownerAddr, ingressDomain, ingressRouter.Hex())
	require.NoError(t, err)
	h.outboxC = NewOutboxService(repository.NewOutboxRepository(h.coreDB), h.mailbox, coreDomain, coreRouter, config.OutboxConfig{MaxAttempts: 3})
	h.outboxC.SetClock(clock)
	h.prices = NewPriceOracleService(repository.NewPriceRepository(h.coreDB), gate, h.rofl, h.chainlink, nil, time.Hour, 10)
	h.prices.SetClock(clock)
	marketRepo := repository.NewMarketRepository(h.coreDB)
	h.markets = NewMarketService(h.coreDB, marketRepo, h.prices, gate, nil, 500)
	h.markets.SetClock(clock)
	h.processor = NewActionProcessorService(h.coreDB, repository.NewEncryptedActionRepository(h.coreDB), marketRepo,
		h.markets, h.prices, h.routersC, NewReleaseDispatcher(h.outboxC), h.keys, nil, 5000)
	h.processor.SetClock(clock)
	require.NoError(t, h.mailbox.Register(coreDomain, coreRouter, h.processor))

	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

// listToken configures a market with ltv 75% / lt 80% and a fresh price
func (h *harness) listToken(token common.Address, price *big.Int, borrowRate, supplyRate uint32) {
	h.t.Helper()
	_, err := h.markets.ConfigureToken(h.ctx, ownerAddr, token, TokenParams{
		LTV:                  7500,
		LiquidationThreshold: 8000,
		BorrowRate:           borrowRate,
		SupplyRate:           supplyRate,
	})
	require.NoError(h.t, err)
	h.setPrice(token, price)
}

func (h *harness) setPrice(token common.Address, price *big.Int) {
	h.t.Helper()
	_, err := h.prices.UpdatePrice(h.ctx, ownerAddr, token, price)
	require.NoError(h.t, err)
}

func (h *harness) depositErc20(user common.Address, token common.Address, amount int64) common.Hash {
	h.t.Helper()
	handle, err := h.ledger.DepositErc20(h.ctx, user, token, big.NewInt(amount))
	require.NoError(h.t, err)
	return handle
}

func (h *harness) seal(p *envelope.Payload) []byte {
	h.t.Helper()
	env, err := envelope.SealPayload(p, h.keys.PublicKey[:])
	require.NoError(h.t, err)
	data, err := env.Encode()
	require.NoError(h.t, err)
	return data
}

func (h *harness) payload(kind envelope.ActionType, token common.Address, amount int64, onBehalf common.Address, deposit common.Hash) *envelope.Payload {
	return &envelope.Payload{
		ActionType:    kind,
		Token:         token,
		Amount:        big.NewInt(amount),
		OnBehalf:      onBehalf,
		DepositHandle: deposit,
		Memo:          []byte{},
	}
}

// submit relays a payload and delivers it to the core
func (h *harness) submit(user common.Address, p *envelope.Payload) common.Hash {
	h.t.Helper()
	res, err := h.relay.SubmitAction(h.ctx, user, coreDomain, p.DepositHandle, h.seal(p))
	require.NoError(h.t, err)
	h.relayAll()
	return res.ActionHandle
}

// relayAll pumps the mailbox and fails on any rejected delivery
func (h *harness) relayAll() {
	h.t.Helper()
	for _, d := range h.mailbox.Relay(h.ctx) {
		require.NoError(h.t, d.Err, "delivery %s", d.Message.ID)
	}
}

// process runs ProcessAction and delivers any release back to the ingress
func (h *harness) process(handle common.Hash) (*ProcessResult, error) {
	res, err := h.processor.ProcessAction(h.ctx, handle)
	h.relayAll()
	return res, err
}

func (h *harness) position(account common.Address, token common.Address) (supplied, debt *big.Int) {
	h.t.Helper()
	report, err := h.markets.AccountHealth(h.ctx, account)
	require.NoError(h.t, err)
	supplied, debt = new(big.Int), new(big.Int)
	for _, p := range report.Positions {
		if p.Token == utils.AddressKey(token) {
			supplied.SetString(p.Supplied, 10)
			debt.SetString(p.Debt, 10)
		}
	}
	return supplied, debt
}

func bigInt(v int64) *big.Int {
	return big.NewInt(v)
}
