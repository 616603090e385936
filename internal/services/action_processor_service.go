package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"gorm.io/gorm"

	"private-lending/internal/envelope"
	"private-lending/internal/errs"
	"private-lending/internal/events"
	"private-lending/internal/metrics"
	"private-lending/internal/models"
	"private-lending/internal/repository"
	"private-lending/internal/transport"
	"private-lending/internal/utils"
)

// ReleaseSummary describes the release produced by an action
type ReleaseSummary struct {
	Kind      string `json:"kind"`
	Recipient string `json:"recipient"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	MessageID string `json:"message_id"`
}

// ProcessResult is returned by ProcessAction
type ProcessResult struct {
	ActionHandle string            `json:"action_handle"`
	ActionType   string            `json:"action_type"`
	Account      string            `json:"account"`
	Releases     []*ReleaseSummary `json:"releases,omitempty"`
}

// fundingActions spend the deposit's funds inside the core; consumingActions also unlock it.
var (
	fundingActions   = []int{int(envelope.ActionSupply), int(envelope.ActionRepay), int(envelope.ActionLiquidate)}
	consumingActions = []int{int(envelope.ActionRepay), int(envelope.ActionWithdraw), int(envelope.ActionLiquidate)}
)

// ActionProcessorService receives encrypted actions on the lending core, decrypts
// them with the vault key and applies them to the markets.
type ActionProcessorService struct {
	db             *gorm.DB
	actions        repository.EncryptedActionRepository
	marketRepo     repository.MarketRepository
	markets        *MarketService
	prices         *PriceOracleService
	routers        *RouterRegistryService
	releases       *ReleaseDispatcher
	keys           *envelope.KeyPair
	events         events.Publisher
	closeFactorBps uint32
	clock          Clock
}

// NewActionProcessorService creates a new action processor
func NewActionProcessorService(db *gorm.DB, actions repository.EncryptedActionRepository, marketRepo repository.MarketRepository,
	markets *MarketService, prices *PriceOracleService, routers *RouterRegistryService, releases *ReleaseDispatcher,
	keys *envelope.KeyPair, publisher events.Publisher, closeFactorBps uint32) *ActionProcessorService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ActionProcessorService{
		db:             db,
		actions:        actions,
		marketRepo:     marketRepo,
		markets:        markets,
		prices:         prices,
		routers:        routers,
		releases:       releases,
		keys:           keys,
		events:         publisher,
		closeFactorBps: closeFactorBps,
	}
}

// SetClock replaces the time source
func (s *ActionProcessorService) SetClock(c Clock) {
	s.clock = c
}

// PublicKey returns the vault public key depositors encrypt to
func (s *ActionProcessorService) PublicKey() string {
	return s.keys.PublicKeyHex()
}

// HandleMessage stores an action delivered by an enrolled origin router.
// A redelivery of a stored action is a no-op.
func (s *ActionProcessorService) HandleMessage(ctx context.Context, origin uint32, sender common.Hash, body []byte) error {
	err := s.receive(ctx, origin, sender, body)
	result := "ok"
	if err != nil {
		result = errs.Code(err)
	}
	metrics.TransportMessagesReceived.WithLabelValues(strconv.FormatUint(uint64(origin), 10), result).Inc()
	return err
}

func (s *ActionProcessorService) receive(ctx context.Context, origin uint32, sender common.Hash, body []byte) error {
	if err := s.routers.Authenticate(ctx, origin, sender); err != nil {
		return err
	}
	msg, err := transport.DecodeActionMessage(body)
	if err != nil {
		return err
	}
	env, err := envelope.DecodeEnvelope(msg.Envelope)
	if err != nil {
		return err
	}

	ciphertextHash := crypto.Keccak256Hash(env.Ciphertext)
	handle := ActionHandle(origin, sender, ciphertextHash)
	exists, err := s.actions.Exists(ctx, handle.Hex())
	if err != nil {
		return err
	}
	if exists {
		log.Printf("⏭️ [Processor] Action %s already received", handle.Hex())
		return nil
	}

	action := &models.EncryptedAction{
		ActionHandle:    handle.Hex(),
		CiphertextHash:  ciphertextHash.Hex(),
		SenderPublicKey: hexutil.Encode(env.SenderPublicKey[:]),
		Nonce:           hexutil.Encode(env.Nonce[:]),
		Ciphertext:      hexutil.Encode(env.Ciphertext),
		OriginDomain:    origin,
		OriginRouter:    sender.Hex(),
		DepositHandle:   msg.DepositHandle.Hex(),
		Depositor:       utils.AddressKey(msg.Depositor),
		DepositToken:    utils.AddressKey(msg.Token),
		DepositAmount:   msg.Amount.String(),
		DepositIsNative: msg.IsNative,
	}
	if err := s.actions.Create(ctx, action); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ciphertext %s already stored", errs.ErrValidation, ciphertextHash.Hex())
		}
		return fmt.Errorf("failed to store action: %w", err)
	}

	log.Printf("📥 [Processor] Action %s received from domain %d", handle.Hex(), origin)
	s.events.Publish(events.ActionReceived, map[string]interface{}{
		"action_handle":  handle.Hex(),
		"origin_domain":  origin,
		"deposit_handle": action.DepositHandle,
	})
	return nil
}

// GetAction returns a received action
func (s *ActionProcessorService) GetAction(ctx context.Context, handle common.Hash) (*models.EncryptedAction, error) {
	return s.actions.Get(ctx, handle.Hex())
}

// GetPayload returns the snapshot of a processed action
func (s *ActionProcessorService) GetPayload(ctx context.Context, handle common.Hash) (*models.ProcessedPayload, error) {
	return s.actions.GetPayload(ctx, handle.Hex())
}

// PendingActions lists received actions not yet processed
func (s *ActionProcessorService) PendingActions(ctx context.Context, limit int) ([]*models.EncryptedAction, error) {
	return s.actions.FindPending(ctx, limit)
}

// ProcessAction decrypts and executes a received action. Any failure leaves no state behind
// and the action stays pending.
func (s *ActionProcessorService) ProcessAction(ctx context.Context, handle common.Hash) (*ProcessResult, error) {
	start := time.Now()
	actionLabel := "unknown"
	result, err := s.process(ctx, handle, &actionLabel)

	outcome := "ok"
	if err != nil {
		outcome = errs.Code(err)
		log.Printf("❌ [Processor] Action %s failed: %v", handle.Hex(), err)
	}
	metrics.ActionsProcessed.WithLabelValues(actionLabel, outcome).Inc()
	metrics.ActionProcessingDuration.WithLabelValues(actionLabel).Observe(time.Since(start).Seconds())
	return result, err
}

func (s *ActionProcessorService) process(ctx context.Context, handle common.Hash, actionLabel *string) (*ProcessResult, error) {
	s.markets.mu.Lock()
	defer s.markets.mu.Unlock()

	action, err := s.actions.Get(ctx, handle.Hex())
	if err != nil {
		return nil, err
	}
	if action.Ciphertext == "" || action.Ciphertext == "0x" {
		return nil, fmt.Errorf("%w: action %s has no ciphertext", errs.ErrNotFound, action.ActionHandle)
	}
	if action.Processed {
		return nil, fmt.Errorf("%w: action %s already processed", errs.ErrState, action.ActionHandle)
	}

	payload, err := s.open(action)
	if err != nil {
		return nil, err
	}
	*actionLabel = payload.ActionType.String()
	if err := validatePayload(action, payload); err != nil {
		return nil, err
	}

	now := s.clock.now()
	var (
		releases []*transport.ReleaseMessage
		outbound []*models.OutboundMessage
		account  string
	)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		marketRepo := s.marketRepo.WithTx(tx)
		actions := s.actions.WithTx(tx)
		tokenKey := utils.AddressKey(payload.Token)

		cfg, err := requireEnabled(marketRepo.GetTokenConfig(ctx, tokenKey))
		if err != nil {
			return err
		}
		prices := map[string]*big.Int{}
		price, err := s.prices.GetFreshPrice(ctx, tx, tokenKey)
		if err != nil {
			return err
		}
		prices[tokenKey] = price

		if err := s.checkDepositUse(ctx, actions, action, payload.ActionType); err != nil {
			return err
		}

		market := MarketFromModel(cfg)
		market.Accrue(now.Unix())
		exec := &execution{
			s:       s,
			ctx:     ctx,
			tx:      tx,
			repo:    marketRepo,
			action:  action,
			payload: payload,
			market:  market,
			prices:  prices,
			now:     now.Unix(),
		}
		releases, err = exec.run()
		if err != nil {
			return err
		}
		account = exec.account

		flipped, err := actions.MarkProcessed(ctx, action.ActionHandle, now)
		if err != nil {
			return err
		}
		if !flipped {
			return fmt.Errorf("%w: action %s already processed", errs.ErrState, action.ActionHandle)
		}

		snapshot := &models.ProcessedPayload{
			ActionHandle:  action.ActionHandle,
			ActionType:    uint8(payload.ActionType),
			ActionName:    payload.ActionType.String(),
			Token:         tokenKey,
			Amount:        payload.Amount.String(),
			OnBehalf:      utils.AddressKey(payload.OnBehalf),
			DepositHandle: payload.DepositHandle.Hex(),
			IsNative:      payload.IsNative,
			Memo:          hexutil.Encode(payload.Memo),
			Price:         price.String(),
		}
		for i, release := range releases {
			if i == 0 {
				snapshot.ReleaseKind = release.Kind.String()
				snapshot.ReleaseRecipient = utils.AddressKey(release.Recipient)
				snapshot.ReleaseAmount = release.Amount.String()
			} else {
				snapshot.SeizedToken = utils.AddressKey(release.Token)
				snapshot.SeizedAmount = release.Amount.String()
			}
			msg, err := s.releases.Enqueue(ctx, tx, action, release)
			if err != nil {
				return err
			}
			outbound = append(outbound, msg)
		}
		return actions.CreatePayload(ctx, snapshot)
	})
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{
		ActionHandle: action.ActionHandle,
		ActionType:   payload.ActionType.String(),
		Account:      account,
	}
	for i, release := range releases {
		result.Releases = append(result.Releases, &ReleaseSummary{
			Kind:      release.Kind.String(),
			Recipient: utils.AddressKey(release.Recipient),
			Token:     utils.AddressKey(release.Token),
			Amount:    release.Amount.String(),
			MessageID: outbound[i].ID,
		})
	}

	log.Printf("✅ [Processor] %s %s processed for %s", payload.ActionType, action.ActionHandle, account)
	s.events.Publish(events.ActionProcessed, result)

	for _, msg := range outbound {
		if err := s.releases.Deliver(ctx, msg.ID); err != nil {
			log.Printf("⚠️ [Processor] Immediate delivery of release %s failed, will retry: %v", msg.ID, err)
		}
	}
	return result, nil
}

func (s *ActionProcessorService) open(action *models.EncryptedAction) (*envelope.Payload, error) {
	senderPub, err := hexutil.Decode(action.SenderPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: stored sender key: %v", errs.ErrDecryption, err)
	}
	nonce, err := hexutil.Decode(action.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: stored nonce: %v", errs.ErrDecryption, err)
	}
	ciphertext, err := hexutil.Decode(action.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: stored ciphertext: %v", errs.ErrDecryption, err)
	}
	env, err := envelope.NewEnvelope(senderPub, nonce, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecryption, err)
	}
	return envelope.OpenPayload(env, s.keys.PrivateKey[:])
}

// validatePayload binds the decrypted payload to the deposit the origin ledger attested
func validatePayload(action *models.EncryptedAction, payload *envelope.Payload) error {
	if payload.DepositHandle.Hex() != action.DepositHandle {
		return fmt.Errorf("%w: payload deposit %s does not match message deposit %s", errs.ErrValidation, payload.DepositHandle.Hex(), action.DepositHandle)
	}
	if utils.AddressKey(payload.Token) != action.DepositToken {
		return fmt.Errorf("%w: payload token %s does not match deposit token %s", errs.ErrValidation, utils.AddressKey(payload.Token), action.DepositToken)
	}
	if payload.IsNative != action.DepositIsNative {
		return fmt.Errorf("%w: payload native flag does not match deposit", errs.ErrValidation)
	}
	if payload.Amount == nil || payload.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", errs.ErrValidation)
	}
	if payload.OnBehalf == (common.Address{}) {
		return fmt.Errorf("%w: onBehalf must be non-zero", errs.ErrValidation)
	}
	return nil
}

// checkDepositUse rejects a second use of the same deposit's funds
func (s *ActionProcessorService) checkDepositUse(ctx context.Context, actions repository.EncryptedActionRepository, action *models.EncryptedAction, actionType envelope.ActionType) error {
	consumed, err := actions.CountPayloadsByDeposit(ctx, action.DepositHandle, consumingActions)
	if err != nil {
		return err
	}
	if consumed > 0 {
		return fmt.Errorf("%w: deposit %s already consumed", errs.ErrState, action.DepositHandle)
	}
	switch actionType {
	case envelope.ActionSupply, envelope.ActionRepay, envelope.ActionLiquidate:
		funded, err := actions.CountPayloadsByDeposit(ctx, action.DepositHandle, fundingActions)
		if err != nil {
			return err
		}
		if funded > 0 {
			return fmt.Errorf("%w: deposit %s already spent", errs.ErrState, action.DepositHandle)
		}
	}
	return nil
}

// execution applies one decrypted action inside the processing transaction
type execution struct {
	s       *ActionProcessorService
	ctx     context.Context
	tx      *gorm.DB
	repo    repository.MarketRepository
	action  *models.EncryptedAction
	payload *envelope.Payload
	market  *Market
	prices  map[string]*big.Int
	now     int64
	account string
}

func (e *execution) run() ([]*transport.ReleaseMessage, error) {
	switch e.payload.ActionType {
	case envelope.ActionSupply:
		return nil, e.supply()
	case envelope.ActionBorrow:
		return single(e.borrow())
	case envelope.ActionRepay:
		return single(e.repay())
	case envelope.ActionWithdraw:
		return single(e.withdraw())
	case envelope.ActionLiquidate:
		return e.liquidate()
	default:
		return nil, fmt.Errorf("%w: unknown action type %d", errs.ErrValidation, e.payload.ActionType)
	}
}

func (e *execution) depositAmount() *big.Int {
	return utils.StoredBig(e.action.DepositAmount)
}

func (e *execution) position(account string) (*models.Position, *big.Int, *big.Int, error) {
	position, err := e.repo.GetPosition(e.ctx, account, e.market.Token)
	if err != nil {
		return nil, nil, nil, err
	}
	return position, utils.StoredBig(position.ScaledSupply), utils.StoredBig(position.ScaledDebt), nil
}

func (e *execution) save(position *models.Position, scaledSupply, scaledDebt *big.Int) error {
	position.ScaledSupply = scaledSupply.String()
	position.ScaledDebt = scaledDebt.String()
	if err := e.repo.SavePosition(e.ctx, position); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	cfg := &models.TokenConfig{}
	stored, err := e.repo.GetTokenConfig(e.ctx, e.market.Token)
	if err != nil {
		return err
	}
	*cfg = *stored
	e.market.ToModel(cfg)
	if err := e.repo.SaveTokenConfig(e.ctx, cfg); err != nil {
		return fmt.Errorf("failed to save market: %w", err)
	}
	recordMarketGauges(e.market)
	return nil
}

func (e *execution) requireHealthy(account string) error {
	health, err := e.s.markets.health(e.ctx, e.tx, account, e.now, e.prices)
	if err != nil {
		return err
	}
	if !health.Healthy() {
		return fmt.Errorf("%w: health factor %s below 1.0", errs.ErrInsufficientCollateral, health.HealthFactor.String())
	}
	return nil
}

func (e *execution) unlock(recipient common.Address, amount *big.Int) *transport.ReleaseMessage {
	return &transport.ReleaseMessage{
		Kind:          transport.ReleaseUnlock,
		DepositHandle: common.HexToHash(e.action.DepositHandle),
		ActionHandle:  common.HexToHash(e.action.ActionHandle),
		Recipient:     recipient,
		Token:         common.HexToAddress(e.action.DepositToken),
		Amount:        amount,
		IsNative:      e.action.DepositIsNative,
	}
}

func (e *execution) supply() error {
	amount := e.payload.Amount
	if amount.Cmp(e.depositAmount()) > 0 {
		return fmt.Errorf("%w: supply %s exceeds deposit %s", errs.ErrValidation, amount, e.depositAmount())
	}
	e.account = utils.AddressKey(e.payload.OnBehalf)
	position, scaledSupply, scaledDebt, err := e.position(e.account)
	if err != nil {
		return err
	}
	scaled := ScaleDown(amount, e.market.SupplyIndex)
	scaledSupply.Add(scaledSupply, scaled)
	e.market.TotalSupply.Add(e.market.TotalSupply, scaled)
	return e.save(position, scaledSupply, scaledDebt)
}

func (e *execution) borrow() (*transport.ReleaseMessage, error) {
	amount := e.payload.Amount
	e.account = e.action.Depositor
	position, scaledSupply, scaledDebt, err := e.position(e.account)
	if err != nil {
		return nil, err
	}
	scaled := ScaleUp(amount, e.market.BorrowIndex)
	scaledDebt.Add(scaledDebt, scaled)
	e.market.TotalBorrow.Add(e.market.TotalBorrow, scaled)
	if err := e.save(position, scaledSupply, scaledDebt); err != nil {
		return nil, err
	}
	if err := e.requireHealthy(e.account); err != nil {
		return nil, err
	}
	return &transport.ReleaseMessage{
		Kind:          transport.ReleasePayout,
		DepositHandle: common.HexToHash(e.action.DepositHandle),
		ActionHandle:  common.HexToHash(e.action.ActionHandle),
		Recipient:     e.payload.OnBehalf,
		Token:         e.payload.Token,
		Amount:        new(big.Int).Set(amount),
		IsNative:      e.payload.IsNative,
	}, nil
}

func (e *execution) repay() (*transport.ReleaseMessage, error) {
	amount := e.payload.Amount
	deposit := e.depositAmount()
	if amount.Cmp(deposit) > 0 {
		return nil, fmt.Errorf("%w: repay %s exceeds deposit %s", errs.ErrValidation, amount, deposit)
	}
	e.account = utils.AddressKey(e.payload.OnBehalf)
	position, scaledSupply, scaledDebt, err := e.position(e.account)
	if err != nil {
		return nil, err
	}
	debt := UnderlyingUp(scaledDebt, e.market.BorrowIndex)
	if amount.Cmp(debt) > 0 {
		return nil, fmt.Errorf("%w: repay %s exceeds debt %s", errs.ErrValidation, amount, debt)
	}
	scaled := ScaleUp(amount, e.market.BorrowIndex)
	e.market.TotalBorrow = subFloor(e.market.TotalBorrow, utils.MinBig(scaled, scaledDebt))
	scaledDebt = subFloor(scaledDebt, scaled)
	if err := e.save(position, scaledSupply, scaledDebt); err != nil {
		return nil, err
	}
	return e.unlock(common.HexToAddress(e.action.Depositor), new(big.Int).Sub(deposit, amount)), nil
}

func (e *execution) withdraw() (*transport.ReleaseMessage, error) {
	amount := e.payload.Amount
	e.account = e.action.Depositor
	position, scaledSupply, scaledDebt, err := e.position(e.account)
	if err != nil {
		return nil, err
	}
	supplied := Underlying(scaledSupply, e.market.SupplyIndex)
	if amount.Cmp(supplied) > 0 {
		return nil, fmt.Errorf("%w: withdraw %s exceeds supplied %s", errs.ErrValidation, amount, supplied)
	}
	scaled := utils.MinBig(ScaleUp(amount, e.market.SupplyIndex), scaledSupply)
	e.market.TotalSupply = subFloor(e.market.TotalSupply, scaled)
	scaledSupply = subFloor(scaledSupply, scaled)
	if err := e.save(position, scaledSupply, scaledDebt); err != nil {
		return nil, err
	}
	if err := e.requireHealthy(e.account); err != nil {
		return nil, err
	}
	return e.unlock(e.payload.OnBehalf, new(big.Int).Set(amount)), nil
}

// liquidate repays part of onBehalf's debt in the deposit token and seizes collateral from
// the market named by the memo, or from the debt market when the memo names none.
func (e *execution) liquidate() ([]*transport.ReleaseMessage, error) {
	offered := e.payload.Amount
	deposit := e.depositAmount()
	if offered.Cmp(deposit) > 0 {
		return nil, fmt.Errorf("%w: repay %s exceeds deposit %s", errs.ErrValidation, offered, deposit)
	}
	borrower := utils.AddressKey(e.payload.OnBehalf)
	e.account = borrower

	health, err := e.s.markets.health(e.ctx, e.tx, borrower, e.now, e.prices)
	if err != nil {
		return nil, err
	}
	if health.Healthy() {
		return nil, fmt.Errorf("%w: borrower %s is healthy", errs.ErrValidation, borrower)
	}

	debtPosition, _, scaledDebt, err := e.position(borrower)
	if err != nil {
		return nil, err
	}

	collateral := e.market
	if token, ok := e.payload.CollateralToken(); ok && utils.AddressKey(token) != e.market.Token {
		cfg, err := e.repo.GetTokenConfig(e.ctx, utils.AddressKey(token))
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return nil, fmt.Errorf("%w: collateral token %s not configured", errs.ErrConfig, token.Hex())
			}
			return nil, err
		}
		collateral = MarketFromModel(cfg)
		collateral.Accrue(e.now)
	}
	sameMarket := collateral == e.market

	collateralPosition, err := e.repo.GetPosition(e.ctx, borrower, collateral.Token)
	if err != nil {
		return nil, err
	}
	if sameMarket {
		collateralPosition = debtPosition
	}
	scaledSupply := utils.StoredBig(collateralPosition.ScaledSupply)

	collateralPrice, ok := e.prices[collateral.Token]
	if !ok {
		if collateralPrice, err = e.s.prices.GetFreshPrice(e.ctx, e.tx, collateral.Token); err != nil {
			return nil, err
		}
		e.prices[collateral.Token] = collateralPrice
	}

	plan, err := PlanLiquidation(offered,
		UnderlyingUp(scaledDebt, e.market.BorrowIndex),
		Underlying(scaledSupply, collateral.SupplyIndex),
		e.prices[e.market.Token], collateralPrice,
		e.s.closeFactorBps, collateral.LiquidationBonus)
	if err != nil {
		return nil, err
	}

	repaidScaled := utils.MinBig(ScaleUp(plan.Repaid, e.market.BorrowIndex), scaledDebt)
	seizedScaled := utils.MinBig(ScaleUp(plan.Seized, collateral.SupplyIndex), scaledSupply)
	e.market.TotalBorrow = subFloor(e.market.TotalBorrow, repaidScaled)
	collateral.TotalSupply = subFloor(collateral.TotalSupply, seizedScaled)

	if sameMarket {
		if err := e.save(debtPosition, subFloor(scaledSupply, seizedScaled), subFloor(scaledDebt, repaidScaled)); err != nil {
			return nil, err
		}
	} else {
		if err := e.save(debtPosition, utils.StoredBig(debtPosition.ScaledSupply), subFloor(scaledDebt, repaidScaled)); err != nil {
			return nil, err
		}
		collateralPosition.ScaledSupply = subFloor(scaledSupply, seizedScaled).String()
		if err := e.repo.SavePosition(e.ctx, collateralPosition); err != nil {
			return nil, fmt.Errorf("failed to save position: %w", err)
		}
		cfg, err := e.repo.GetTokenConfig(e.ctx, collateral.Token)
		if err != nil {
			return nil, err
		}
		collateral.ToModel(cfg)
		if err := e.repo.SaveTokenConfig(e.ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to save market: %w", err)
		}
		recordMarketGauges(collateral)
	}

	log.Printf("⚡ [Processor] Liquidated %s: repaid %s seized %s of %s", borrower, plan.Repaid, plan.Seized, collateral.Token)
	liquidator := common.HexToAddress(e.action.Depositor)
	// the part of the deposit not used to repay goes back with the deposit
	refund := new(big.Int).Sub(deposit, plan.Repaid)
	if sameMarket {
		return []*transport.ReleaseMessage{e.unlock(liquidator, refund.Add(refund, plan.Seized))}, nil
	}
	releases := []*transport.ReleaseMessage{e.unlock(liquidator, refund)}
	if plan.Seized.Sign() > 0 {
		releases = append(releases, &transport.ReleaseMessage{
			Kind:          transport.ReleasePayout,
			DepositHandle: common.HexToHash(e.action.DepositHandle),
			ActionHandle:  common.HexToHash(e.action.ActionHandle),
			Recipient:     liquidator,
			Token:         common.HexToAddress(collateral.Token),
			Amount:        plan.Seized,
			IsNative:      collateral.Token == utils.AddressKey(NativeToken),
		})
	}
	return releases, nil
}

func single(release *transport.ReleaseMessage, err error) ([]*transport.ReleaseMessage, error) {
	if err != nil {
		return nil, err
	}
	return []*transport.ReleaseMessage{release}, nil
}
