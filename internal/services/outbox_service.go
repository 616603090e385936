package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"private-lending/internal/config"
	"private-lending/internal/metrics"
	"private-lending/internal/models"
	"private-lending/internal/repository"
	"private-lending/internal/transport"
)

// OutboxService delivers transport messages that were committed together with the
// state change that produced them. Enqueue runs inside the caller's transaction;
// Deliver and the retry loop hand messages to the transport after commit.
type OutboxService struct {
	repo        repository.OutboxRepository
	transport   transport.Transport
	localDomain uint32
	localRouter common.Hash
	cfg         config.OutboxConfig
	clock       Clock

	ticker    *time.Ticker
	done      chan bool
	mu        sync.Mutex
	deliverMu sync.Mutex
	isRunning bool
}

// NewOutboxService creates a new outbox for the local router
func NewOutboxService(repo repository.OutboxRepository, t transport.Transport, localDomain uint32, localRouter common.Hash, cfg config.OutboxConfig) *OutboxService {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 20
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &OutboxService{
		repo:        repo,
		transport:   t,
		localDomain: localDomain,
		localRouter: localRouter,
		cfg:         cfg,
		done:        make(chan bool),
	}
}

// LocalRouter returns the router id messages are sent from
func (s *OutboxService) LocalRouter() common.Hash {
	return s.localRouter
}

// LocalDomain returns the domain messages are sent from
func (s *OutboxService) LocalDomain() uint32 {
	return s.localDomain
}

// Enqueue stores a pending message using tx
func (s *OutboxService) Enqueue(ctx context.Context, tx *gorm.DB, destination uint32, recipient common.Hash, body []byte) (*models.OutboundMessage, error) {
	msg := &models.OutboundMessage{
		ID:                uuid.New().String(),
		DestinationDomain: destination,
		Recipient:         recipient.Hex(),
		Body:              hex.EncodeToString(body),
		Status:            models.OutboundStatusPending,
	}
	if err := s.repo.WithTx(tx).Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to enqueue outbound message: %w", err)
	}
	return msg, nil
}

// Deliver hands one pending message to the transport. Already delivered or failed
// messages are left alone.
func (s *OutboxService) Deliver(ctx context.Context, id string) error {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	msg, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if msg.Status != models.OutboundStatusPending {
		return nil
	}
	return s.deliver(ctx, msg)
}

func (s *OutboxService) deliver(ctx context.Context, msg *models.OutboundMessage) error {
	body, err := hex.DecodeString(msg.Body)
	if err != nil {
		// a body that cannot be decoded will never deliver
		_ = s.repo.RecordFailure(ctx, msg.ID, err.Error(), true)
		return fmt.Errorf("outbound message %s has a corrupt body: %w", msg.ID, err)
	}

	dispatchErr := s.transport.Dispatch(ctx, &transport.Message{
		ID:                msg.ID,
		OriginDomain:      s.localDomain,
		Sender:            s.localRouter,
		DestinationDomain: msg.DestinationDomain,
		Recipient:         common.HexToHash(msg.Recipient),
		Body:              body,
	})
	if dispatchErr != nil {
		metrics.OutboxDeliveryFailures.Inc()
		failed := msg.Attempts+1 >= s.cfg.MaxAttempts
		if err := s.repo.RecordFailure(ctx, msg.ID, dispatchErr.Error(), failed); err != nil {
			log.Printf("❌ [Outbox] Failed to record failure of %s: %v", msg.ID, err)
		}
		if failed {
			log.Printf("❌ [Outbox] Message %s to domain %d gave up after %d attempts: %v", msg.ID, msg.DestinationDomain, msg.Attempts+1, dispatchErr)
		} else {
			log.Printf("⚠️ [Outbox] Message %s to domain %d attempt %d failed: %v", msg.ID, msg.DestinationDomain, msg.Attempts+1, dispatchErr)
		}
		return dispatchErr
	}

	if err := s.repo.MarkDelivered(ctx, msg.ID, s.clock.now()); err != nil {
		return fmt.Errorf("failed to mark %s delivered: %w", msg.ID, err)
	}
	metrics.TransportMessagesSent.WithLabelValues(strconv.FormatUint(uint64(msg.DestinationDomain), 10)).Inc()
	log.Printf("📤 [Outbox] Delivered %s to domain %d", msg.ID, msg.DestinationDomain)
	return nil
}

// Flush tries every pending message once and returns how many were delivered
func (s *OutboxService) Flush(ctx context.Context) (int, error) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	pending, err := s.repo.FindPending(ctx, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending messages: %w", err)
	}
	delivered := 0
	for _, msg := range pending {
		if err := s.deliver(ctx, msg); err == nil {
			delivered++
		}
	}
	s.refreshPendingGauge(ctx)
	return delivered, nil
}

func (s *OutboxService) refreshPendingGauge(ctx context.Context) {
	if count, err := s.repo.CountByStatus(ctx, models.OutboundStatusPending); err == nil {
		metrics.OutboxPending.Set(float64(count))
	}
}

// Start begins the redelivery loop
func (s *OutboxService) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.ticker = time.NewTicker(s.cfg.Interval)

	go func() {
		for {
			select {
			case <-s.done:
				s.ticker.Stop()
				return
			case <-s.ticker.C:
				if n, err := s.Flush(context.Background()); err != nil {
					log.Printf("❌ [Outbox] Flush failed: %v", err)
				} else if n > 0 {
					log.Printf("📤 [Outbox] Redelivered %d message(s)", n)
				}
			}
		}
	}()

	log.Printf("✅ Outbox Service started (%s interval, max %d attempts)", s.cfg.Interval, s.cfg.MaxAttempts)
}

// Stop stops the redelivery loop
func (s *OutboxService) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	s.done <- true
	log.Println("🛑 Outbox Service stopped")
}

// SetClock replaces the time source
func (s *OutboxService) SetClock(c Clock) {
	s.clock = c
}
