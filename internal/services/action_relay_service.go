package services

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

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

// ActionHandle = keccak256(uint32 originDomain ‖ bytes32 originRouter ‖ ciphertextHash).
// Both domains derive it from data they already hold, so the origin can return it synchronously.
func ActionHandle(originDomain uint32, originRouter, ciphertextHash common.Hash) common.Hash {
	var domain [4]byte
	binary.BigEndian.PutUint32(domain[:], originDomain)
	return crypto.Keccak256Hash(domain[:], originRouter.Bytes(), ciphertextHash.Bytes())
}

// SubmitResult is returned by SubmitAction
type SubmitResult struct {
	ActionHandle      common.Hash `json:"action_handle"`
	CiphertextHash    common.Hash `json:"ciphertext_hash"`
	DestinationDomain uint32      `json:"destination_domain"`
	MessageID         string      `json:"message_id"`
}

// ActionRelayService forwards encrypted actions from depositors to the lending core.
// It never sees plaintext; it indexes the ciphertext hash against the action handle.
type ActionRelayService struct {
	db       *gorm.DB
	deposits repository.DepositRepository
	relayed  repository.RelayedActionRepository
	routers  *RouterRegistryService
	outbox   *OutboxService
	events   events.Publisher
	mu       sync.Mutex
}

// NewActionRelayService creates a new action relay
func NewActionRelayService(db *gorm.DB, deposits repository.DepositRepository, relayed repository.RelayedActionRepository,
	routers *RouterRegistryService, outbox *OutboxService, publisher events.Publisher) *ActionRelayService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ActionRelayService{
		db:       db,
		deposits: deposits,
		relayed:  relayed,
		routers:  routers,
		outbox:   outbox,
		events:   publisher,
	}
}

// SubmitAction relays an encrypted action bound to a deposit and returns its handle.
func (s *ActionRelayService) SubmitAction(ctx context.Context, caller common.Address, destinationDomain uint32, depositHandle common.Hash, envelopeBytes []byte) (*SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deposit, err := s.deposits.GetByHandle(ctx, depositHandle.Hex())
	if err != nil {
		return nil, err
	}
	if deposit.Released {
		return nil, fmt.Errorf("%w: deposit %s already released", errs.ErrState, deposit.Handle)
	}
	if deposit.Depositor != utils.AddressKey(caller) {
		return nil, fmt.Errorf("%w: only the depositor may act on deposit %s", errs.ErrAuthorization, deposit.Handle)
	}
	destinationRouter, err := s.routers.RemoteRouter(ctx, destinationDomain)
	if err != nil {
		return nil, err
	}
	env, err := envelope.DecodeEnvelope(envelopeBytes)
	if err != nil {
		return nil, err
	}
	if len(env.Ciphertext) == 0 {
		return nil, fmt.Errorf("%w: empty ciphertext", errs.ErrFraming)
	}

	ciphertextHash := crypto.Keccak256Hash(env.Ciphertext)
	exists, err := s.relayed.ExistsByCiphertextHash(ctx, ciphertextHash.Hex())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: ciphertext %s already relayed", errs.ErrValidation, ciphertextHash.Hex())
	}

	actionHandle := ActionHandle(s.outbox.LocalDomain(), s.outbox.LocalRouter(), ciphertextHash)
	body, err := (&transport.ActionMessage{
		DepositHandle: depositHandle,
		Depositor:     common.HexToAddress(deposit.Depositor),
		Token:         common.HexToAddress(deposit.Token),
		Amount:        utils.StoredBig(deposit.Amount),
		IsNative:      deposit.IsNative,
		Envelope:      envelopeBytes,
	}).Encode()
	if err != nil {
		return nil, err
	}

	var outbound *models.OutboundMessage
	err = s.db.Transaction(func(tx *gorm.DB) error {
		outbound, err = s.outbox.Enqueue(ctx, tx, destinationDomain, destinationRouter, body)
		if err != nil {
			return err
		}
		return s.relayed.WithTx(tx).Create(ctx, &models.RelayedAction{
			CiphertextHash:    ciphertextHash.Hex(),
			ActionHandle:      actionHandle.Hex(),
			DepositHandle:     deposit.Handle,
			DestinationDomain: destinationDomain,
			Submitter:         utils.AddressKey(caller),
			MessageID:         outbound.ID,
		})
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: ciphertext %s already relayed", errs.ErrValidation, ciphertextHash.Hex())
		}
		return nil, fmt.Errorf("failed to record relayed action: %w", err)
	}

	metrics.ActionsRelayed.Inc()
	log.Printf("📨 [Relay] Action %s relayed to domain %d (ciphertext %s)", actionHandle.Hex(), destinationDomain, ciphertextHash.Hex())
	s.events.Publish(events.ActionRelayed, map[string]interface{}{
		"ciphertext_hash":    ciphertextHash.Hex(),
		"action_handle":      actionHandle.Hex(),
		"deposit_handle":     deposit.Handle,
		"destination_domain": destinationDomain,
	})

	// committed; the retry loop picks it up if this attempt fails
	if err := s.outbox.Deliver(ctx, outbound.ID); err != nil {
		log.Printf("⚠️ [Relay] Immediate delivery of %s failed, will retry: %v", outbound.ID, err)
	}

	return &SubmitResult{
		ActionHandle:      actionHandle,
		CiphertextHash:    ciphertextHash,
		DestinationDomain: destinationDomain,
		MessageID:         outbound.ID,
	}, nil
}

// LookupAction returns the relayed action indexed by ciphertext hash
func (s *ActionRelayService) LookupAction(ctx context.Context, ciphertextHash common.Hash) (*models.RelayedAction, error) {
	return s.relayed.GetByCiphertextHash(ctx, ciphertextHash.Hex())
}

// ActionsForDeposit lists actions relayed against a deposit
func (s *ActionRelayService) ActionsForDeposit(ctx context.Context, depositHandle common.Hash) ([]*models.RelayedAction, error) {
	return s.relayed.FindByDeposit(ctx, depositHandle.Hex())
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
