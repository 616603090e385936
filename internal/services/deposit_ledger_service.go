package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
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

// NativeToken is the token address recorded for native deposits
var NativeToken = common.Address{}

var depositHandleArgs = abi.Arguments{
	{Type: envelope.MustNewType("uint32")},
	{Type: envelope.MustNewType("address")},
	{Type: envelope.MustNewType("address")},
	{Type: envelope.MustNewType("uint256")},
	{Type: envelope.MustNewType("uint256")},
}

// DepositHandle = keccak256(abi.encode(originDomain, depositor, token, amount, nonce))
func DepositHandle(originDomain uint32, depositor, token common.Address, amount *big.Int, nonce uint64) (common.Hash, error) {
	packed, err := depositHandleArgs.Pack(originDomain, depositor, token, amount, new(big.Int).SetUint64(nonce))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode deposit handle: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// DepositLedgerService holds deposits in custody on the origin domain and applies
// release instructions coming back from the lending core.
type DepositLedgerService struct {
	db          *gorm.DB
	repo        repository.DepositRepository
	routers     *RouterRegistryService
	events      events.Publisher
	localDomain uint32
	clock       Clock
	mu          sync.Mutex
}

// NewDepositLedgerService creates a new deposit ledger
func NewDepositLedgerService(db *gorm.DB, repo repository.DepositRepository, routers *RouterRegistryService, publisher events.Publisher, localDomain uint32) *DepositLedgerService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &DepositLedgerService{
		db:          db,
		repo:        repo,
		routers:     routers,
		events:      publisher,
		localDomain: localDomain,
	}
}

// SetClock replaces the time source
func (s *DepositLedgerService) SetClock(c Clock) {
	s.clock = c
}

// DepositNative locks a native deposit and returns its handle
func (s *DepositLedgerService) DepositNative(ctx context.Context, caller common.Address, amount *big.Int) (common.Hash, error) {
	return s.deposit(ctx, caller, NativeToken, amount, true)
}

// DepositErc20 locks a token deposit and returns its handle
func (s *DepositLedgerService) DepositErc20(ctx context.Context, caller, token common.Address, amount *big.Int) (common.Hash, error) {
	if token == NativeToken {
		return common.Hash{}, fmt.Errorf("%w: token address must be non-zero", errs.ErrValidation)
	}
	return s.deposit(ctx, caller, token, amount, false)
}

func (s *DepositLedgerService) deposit(ctx context.Context, caller, token common.Address, amount *big.Int, isNative bool) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("%w: deposit amount must be greater than zero", errs.ErrValidation)
	}
	if amount.Cmp(utils.MaxUint256) > 0 {
		return common.Hash{}, fmt.Errorf("%w: deposit amount exceeds uint256", errs.ErrValidation)
	}
	if caller == (common.Address{}) {
		return common.Hash{}, fmt.Errorf("%w: depositor must be non-zero", errs.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var handle common.Hash
	tokenKey := utils.AddressKey(token)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		nonce, err := repo.NextNonce(ctx)
		if err != nil {
			return fmt.Errorf("failed to allocate deposit nonce: %w", err)
		}
		handle, err = DepositHandle(s.localDomain, caller, token, amount, nonce)
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, &models.Deposit{
			Handle:    handle.Hex(),
			Depositor: utils.AddressKey(caller),
			Token:     tokenKey,
			Amount:    amount.String(),
			IsNative:  isNative,
			Nonce:     nonce,
		}); err != nil {
			return fmt.Errorf("failed to store deposit: %w", err)
		}

		balance, err := repo.GetBalance(ctx, tokenKey)
		if err != nil {
			return err
		}
		newBalance := new(big.Int).Add(utils.StoredBig(balance), amount)
		return repo.SaveBalance(ctx, tokenKey, newBalance.String())
	})
	if err != nil {
		return common.Hash{}, err
	}

	kind := "erc20"
	if isNative {
		kind = "native"
	}
	metrics.DepositsCreated.WithLabelValues(kind).Inc()
	log.Printf("💰 [Ledger] Deposit %s locked: %s %s of %s", handle.Hex(), amount.String(), kind, caller.Hex())
	s.events.Publish(events.DepositCreated, map[string]interface{}{
		"handle":    handle.Hex(),
		"depositor": utils.AddressKey(caller),
		"token":     tokenKey,
		"amount":    amount.String(),
		"is_native": isNative,
	})
	return handle, nil
}

// GetDeposit returns a deposit by handle
func (s *DepositLedgerService) GetDeposit(ctx context.Context, handle common.Hash) (*models.Deposit, error) {
	return s.repo.GetByHandle(ctx, handle.Hex())
}

// ListDepositsByDepositor pages through a depositor's deposits
func (s *DepositLedgerService) ListDepositsByDepositor(ctx context.Context, depositor common.Address, page, limit int) ([]*models.Deposit, int64, error) {
	return s.repo.FindByDepositor(ctx, utils.AddressKey(depositor), page, limit)
}

// TransfersForDeposit lists custody transfers that referenced a deposit
func (s *DepositLedgerService) TransfersForDeposit(ctx context.Context, handle common.Hash) ([]*models.CustodyTransfer, error) {
	return s.repo.FindTransfersByDeposit(ctx, handle.Hex())
}

// CustodyBalance returns the amount of token held in custody
func (s *DepositLedgerService) CustodyBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	balance, err := s.repo.GetBalance(ctx, utils.AddressKey(token))
	if err != nil {
		return nil, err
	}
	return utils.StoredBig(balance), nil
}

// Release unlocks a deposit to recipient. The flag flip, the transfer row and the
// custody debit commit together, so a deposit releases at most once.
func (s *DepositLedgerService) Release(ctx context.Context, handle, actionHandle common.Hash, recipient common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: release amount must be non-negative", errs.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deposit, err := repo.GetByHandle(ctx, handle.Hex())
		if err != nil {
			return err
		}
		if deposit.Released {
			return fmt.Errorf("%w: deposit %s already released", errs.ErrState, handle.Hex())
		}

		if err := s.debitCustody(ctx, repo, deposit.Token, amount); err != nil {
			return err
		}
		flipped, err := repo.MarkReleased(ctx, deposit.Handle, utils.AddressKey(recipient), amount.String(), s.clock.now())
		if err != nil {
			return fmt.Errorf("failed to mark deposit released: %w", err)
		}
		if !flipped {
			return fmt.Errorf("%w: deposit %s already released", errs.ErrState, handle.Hex())
		}
		return repo.CreateTransfer(ctx, &models.CustodyTransfer{
			DedupKey:      "unlock:" + deposit.Handle,
			Kind:          models.TransferKindUnlock,
			DepositHandle: deposit.Handle,
			ActionHandle:  actionHandle.Hex(),
			Recipient:     utils.AddressKey(recipient),
			Token:         deposit.Token,
			Amount:        amount.String(),
		})
	})
	if err != nil {
		return err
	}

	metrics.CustodyTransfers.WithLabelValues(models.TransferKindUnlock).Inc()
	log.Printf("🔓 [Ledger] Deposit %s released: %s to %s", handle.Hex(), amount.String(), recipient.Hex())
	s.events.Publish(events.ReleaseApplied, map[string]interface{}{
		"kind":           models.TransferKindUnlock,
		"deposit_handle": handle.Hex(),
		"action_handle":  actionHandle.Hex(),
		"recipient":      utils.AddressKey(recipient),
		"amount":         amount.String(),
	})
	return nil
}

// Payout disburses a borrow from custody. At most one payout per action handle;
// a repeated payout for the same action is a no-op.
func (s *DepositLedgerService) Payout(ctx context.Context, handle, actionHandle common.Hash, recipient, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: payout amount must be greater than zero", errs.ErrValidation)
	}
	dedupKey := "payout:" + actionHandle.Hex()
	tokenKey := utils.AddressKey(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	duplicate := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindTransferByDedupKey(ctx, dedupKey); err == nil {
			duplicate = true
			return nil
		} else if !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		if _, err := repo.GetByHandle(ctx, handle.Hex()); err != nil {
			return err
		}
		if err := s.debitCustody(ctx, repo, tokenKey, amount); err != nil {
			return err
		}
		return repo.CreateTransfer(ctx, &models.CustodyTransfer{
			DedupKey:      dedupKey,
			Kind:          models.TransferKindPayout,
			DepositHandle: handle.Hex(),
			ActionHandle:  actionHandle.Hex(),
			Recipient:     utils.AddressKey(recipient),
			Token:         tokenKey,
			Amount:        amount.String(),
		})
	})
	if err != nil {
		return err
	}
	if duplicate {
		log.Printf("⏭️ [Ledger] Payout for action %s already applied", actionHandle.Hex())
		return nil
	}

	metrics.CustodyTransfers.WithLabelValues(models.TransferKindPayout).Inc()
	log.Printf("💸 [Ledger] Payout for action %s: %s of %s to %s", actionHandle.Hex(), amount.String(), tokenKey, recipient.Hex())
	s.events.Publish(events.ReleaseApplied, map[string]interface{}{
		"kind":           models.TransferKindPayout,
		"deposit_handle": handle.Hex(),
		"action_handle":  actionHandle.Hex(),
		"recipient":      utils.AddressKey(recipient),
		"token":          tokenKey,
		"amount":         amount.String(),
	})
	return nil
}

func (s *DepositLedgerService) debitCustody(ctx context.Context, repo repository.DepositRepository, token string, amount *big.Int) error {
	balance, err := repo.GetBalance(ctx, token)
	if err != nil {
		return err
	}
	current := utils.StoredBig(balance)
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: custody holds %s of %s, need %s", errs.ErrValidation, current.String(), token, amount.String())
	}
	return repo.SaveBalance(ctx, token, new(big.Int).Sub(current, amount).String())
}

// HandleMessage receives release instructions from the enrolled lending core router
func (s *DepositLedgerService) HandleMessage(ctx context.Context, origin uint32, sender common.Hash, body []byte) error {
	err := s.handleMessage(ctx, origin, sender, body)
	result := "ok"
	if err != nil {
		result = errs.Code(err)
	}
	metrics.TransportMessagesReceived.WithLabelValues(strconv.FormatUint(uint64(origin), 10), result).Inc()
	return err
}

func (s *DepositLedgerService) handleMessage(ctx context.Context, origin uint32, sender common.Hash, body []byte) error {
	if err := s.routers.Authenticate(ctx, origin, sender); err != nil {
		return err
	}
	msg, err := transport.DecodeReleaseMessage(body)
	if err != nil {
		return err
	}

	deposit, err := s.repo.GetByHandle(ctx, msg.DepositHandle.Hex())
	if err != nil {
		return err
	}

	switch msg.Kind {
	case transport.ReleaseUnlock:
		if deposit.Token != utils.AddressKey(msg.Token) || deposit.IsNative != msg.IsNative {
			return fmt.Errorf("%w: release token does not match deposit %s", errs.ErrValidation, deposit.Handle)
		}
		if deposit.Released {
			// redelivery of an applied unlock
			transfer, err := s.repo.FindTransferByDedupKey(ctx, "unlock:"+deposit.Handle)
			if err == nil && transfer.ActionHandle == msg.ActionHandle.Hex() {
				log.Printf("⏭️ [Ledger] Unlock of %s already applied", deposit.Handle)
				return nil
			}
		}
		return s.Release(ctx, msg.DepositHandle, msg.ActionHandle, msg.Recipient, msg.Amount)
	case transport.ReleasePayout:
		return s.Payout(ctx, msg.DepositHandle, msg.ActionHandle, msg.Recipient, msg.Token, msg.Amount)
	default:
		return fmt.Errorf("%w: unknown release kind %d", errs.ErrValidation, msg.Kind)
	}
}
