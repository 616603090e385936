package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"private-lending/internal/config"
	"private-lending/internal/errs"
	"private-lending/internal/events"
	"private-lending/internal/models"
	"private-lending/internal/repository"
	"private-lending/internal/transport"
)

// RouterRegistryService keeps the enrolled counterpart router per domain.
// Inbound messages are accepted only from (domain, router) pairs enrolled here.
type RouterRegistryService struct {
	repo   repository.RouterRepository
	owner  OwnerGate
	events events.Publisher
	mu     sync.Mutex
}

// NewRouterRegistryService creates a new router registry
func NewRouterRegistryService(repo repository.RouterRepository, owner OwnerGate, publisher events.Publisher) *RouterRegistryService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &RouterRegistryService{repo: repo, owner: owner, events: publisher}
}

// EnrollRemoteRouter sets the router for a domain, replacing any previous one. Owner only.
func (s *RouterRegistryService) EnrollRemoteRouter(ctx context.Context, caller common.Address, domain uint32, router string) (common.Hash, error) {
	if err := s.owner.Check(caller); err != nil {
		return common.Hash{}, err
	}
	return s.enroll(ctx, domain, router)
}

// EnrollConfigured enrolls the domains listed in the config file at startup.
func (s *RouterRegistryService) EnrollConfigured(ctx context.Context, domains []config.DomainConfig) error {
	for _, d := range domains {
		if _, err := s.enroll(ctx, d.Domain, d.Router); err != nil {
			return fmt.Errorf("domain %s: %w", d.Name, err)
		}
	}
	return nil
}

func (s *RouterRegistryService) enroll(ctx context.Context, domain uint32, router string) (common.Hash, error) {
	if domain == 0 {
		return common.Hash{}, fmt.Errorf("%w: domain must be non-zero", errs.ErrValidation)
	}
	router32, err := transport.RouterToBytes32(router)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	if router32 == (common.Hash{}) {
		return common.Hash{}, fmt.Errorf("%w: router must be non-zero", errs.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Upsert(ctx, domain, router32.Hex()); err != nil {
		return common.Hash{}, fmt.Errorf("failed to enroll router: %w", err)
	}

	log.Printf("🔗 [Routers] Enrolled domain %d -> %s", domain, router32.Hex())
	s.events.Publish(events.RouterEnrolled, map[string]interface{}{"domain": domain, "router": router32.Hex()})
	return router32, nil
}

// RemoteRouter returns the enrolled router for domain, ErrConfig when none is enrolled
func (s *RouterRegistryService) RemoteRouter(ctx context.Context, domain uint32) (common.Hash, error) {
	rr, err := s.repo.Get(ctx, domain)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return common.Hash{}, fmt.Errorf("%w: no router enrolled for domain %d", errs.ErrConfig, domain)
		}
		return common.Hash{}, err
	}
	return common.HexToHash(rr.Router), nil
}

// IsEnrolled reports whether sender is the enrolled router of domain
func (s *RouterRegistryService) IsEnrolled(ctx context.Context, domain uint32, sender common.Hash) (bool, error) {
	router, err := s.RemoteRouter(ctx, domain)
	if err != nil {
		if errors.Is(err, errs.ErrConfig) {
			return false, nil
		}
		return false, err
	}
	return router == sender, nil
}

// Authenticate returns ErrAuthorization unless (domain, sender) is enrolled
func (s *RouterRegistryService) Authenticate(ctx context.Context, domain uint32, sender common.Hash) error {
	ok, err := s.IsEnrolled(ctx, domain, sender)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: sender %s is not the enrolled router of domain %d", errs.ErrAuthorization, sender.Hex(), domain)
	}
	return nil
}

// List returns every enrolled router
func (s *RouterRegistryService) List(ctx context.Context) ([]*models.RemoteRouter, error) {
	return s.repo.List(ctx)
}
