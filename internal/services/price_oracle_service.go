package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	"private-lending/internal/errs"
	"private-lending/internal/events"
	"private-lending/internal/metrics"
	"private-lending/internal/models"
	"private-lending/internal/repository"
	"private-lending/internal/utils"
)

// PriceDecimals is the fixed point precision of stored prices
const PriceDecimals = 8

// RoflObservation is the last value reported by a ROFL oracle
type RoflObservation struct {
	Value *big.Int
	Block uint64
}

// RoflOracleReader reads getLastObservation() from a ROFL oracle contract
type RoflOracleReader interface {
	GetLastObservation(ctx context.Context, oracle common.Address) (*RoflObservation, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// ChainlinkRound is the latest answer of a Chainlink aggregator
type ChainlinkRound struct {
	Answer    *big.Int
	UpdatedAt time.Time
	Decimals  uint8
}

// ChainlinkFeedReader reads latestRoundData() and decimals() from an aggregator
type ChainlinkFeedReader interface {
	LatestRound(ctx context.Context, feed common.Address) (*ChainlinkRound, error)
}

// PriceOracleService keeps the latest price per token, pushed by the owner or pulled
// from a ROFL oracle or a Chainlink feed.
type PriceOracleService struct {
	repo            repository.PriceRepository
	owner           OwnerGate
	rofl            RoflOracleReader
	chainlink       ChainlinkFeedReader
	events          events.Publisher
	maxAge          time.Duration
	stalenessBlocks uint64
	clock           Clock
	mu              sync.Mutex
}

// NewPriceOracleService creates a new price oracle. Readers may be nil when no chain endpoint is configured.
func NewPriceOracleService(repo repository.PriceRepository, owner OwnerGate, rofl RoflOracleReader, chainlink ChainlinkFeedReader,
	publisher events.Publisher, maxAge time.Duration, stalenessBlocks uint64) *PriceOracleService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &PriceOracleService{
		repo:            repo,
		owner:           owner,
		rofl:            rofl,
		chainlink:       chainlink,
		events:          publisher,
		maxAge:          maxAge,
		stalenessBlocks: stalenessBlocks,
	}
}

// SetClock replaces the time source
func (s *PriceOracleService) SetClock(c Clock) {
	s.clock = c
}

// UpdatePrice records an owner-supplied price
func (s *PriceOracleService) UpdatePrice(ctx context.Context, caller, token common.Address, price *big.Int) (*models.PriceRecord, error) {
	if err := s.owner.Check(caller); err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		metrics.PriceUpdates.WithLabelValues(models.PriceSourceManual, "rejected").Inc()
		return nil, fmt.Errorf("%w: price must be greater than zero", errs.ErrValidation)
	}
	return s.save(ctx, &models.PriceRecord{
		Token:     utils.AddressKey(token),
		Price:     price.String(),
		Timestamp: s.clock.now(),
		Valid:     true,
		Source:    models.PriceSourceManual,
	})
}

// UpdatePriceFromRoflOracle pulls the last observation of the token's ROFL oracle
func (s *PriceOracleService) UpdatePriceFromRoflOracle(ctx context.Context, token common.Address) (*models.PriceRecord, error) {
	record, err := s.readRofl(ctx, token)
	if err != nil {
		metrics.PriceUpdates.WithLabelValues(models.PriceSourceRofl, "rejected").Inc()
		return nil, err
	}
	return s.save(ctx, record)
}

func (s *PriceOracleService) readRofl(ctx context.Context, token common.Address) (*models.PriceRecord, error) {
	source, err := s.repo.GetSource(ctx, utils.AddressKey(token))
	if err != nil {
		return nil, err
	}
	if source.RoflOracle == "" {
		return nil, fmt.Errorf("%w: no ROFL oracle configured for %s", errs.ErrOracle, token.Hex())
	}
	if s.rofl == nil {
		return nil, fmt.Errorf("%w: no chain reader for ROFL oracles", errs.ErrOracle)
	}

	obs, err := s.rofl.GetLastObservation(ctx, common.HexToAddress(source.RoflOracle))
	if err != nil {
		return nil, fmt.Errorf("%w: ROFL oracle read failed: %v", errs.ErrOracle, err)
	}
	current, err := s.rofl.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: block number read failed: %v", errs.ErrOracle, err)
	}
	if current > obs.Block && current-obs.Block > s.stalenessBlocks {
		return nil, fmt.Errorf("%w: ROFL observation from block %d is stale at block %d", errs.ErrOracle, obs.Block, current)
	}
	if obs.Value == nil || obs.Value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: ROFL oracle reported no value", errs.ErrOracle)
	}
	return &models.PriceRecord{
		Token:         utils.AddressKey(token),
		Price:         obs.Value.String(),
		Timestamp:     s.clock.now(),
		Valid:         true,
		Source:        models.PriceSourceRofl,
		ObservedBlock: obs.Block,
	}, nil
}

// UpdatePriceFromChainlink pulls the latest round of the token's Chainlink feed
func (s *PriceOracleService) UpdatePriceFromChainlink(ctx context.Context, token common.Address) (*models.PriceRecord, error) {
	record, err := s.readChainlink(ctx, token)
	if err != nil {
		metrics.PriceUpdates.WithLabelValues(models.PriceSourceChainlink, "rejected").Inc()
		return nil, err
	}
	return s.save(ctx, record)
}

func (s *PriceOracleService) readChainlink(ctx context.Context, token common.Address) (*models.PriceRecord, error) {
	source, err := s.repo.GetSource(ctx, utils.AddressKey(token))
	if err != nil {
		return nil, err
	}
	if source.ChainlinkFeed == "" {
		return nil, fmt.Errorf("%w: no Chainlink feed configured for %s", errs.ErrOracle, token.Hex())
	}
	if s.chainlink == nil {
		return nil, fmt.Errorf("%w: no chain reader for Chainlink feeds", errs.ErrOracle)
	}

	round, err := s.chainlink.LatestRound(ctx, common.HexToAddress(source.ChainlinkFeed))
	if err != nil {
		return nil, fmt.Errorf("%w: Chainlink read failed: %v", errs.ErrOracle, err)
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, fmt.Errorf("%w: Chainlink answer is not positive", errs.ErrOracle)
	}
	if s.clock.now().Sub(round.UpdatedAt) > s.maxAge {
		return nil, fmt.Errorf("%w: Chainlink round updated at %s is stale", errs.ErrOracle, round.UpdatedAt.UTC().Format(time.RFC3339))
	}
	price := NormalizeDecimals(round.Answer, round.Decimals, PriceDecimals)
	if price.Sign() == 0 {
		return nil, fmt.Errorf("%w: Chainlink answer rounds to zero", errs.ErrOracle)
	}
	return &models.PriceRecord{
		Token:     utils.AddressKey(token),
		Price:     price.String(),
		Timestamp: round.UpdatedAt,
		Valid:     true,
		Source:    models.PriceSourceChainlink,
	}, nil
}

// NormalizeDecimals rescales value from one fixed point precision to another
func NormalizeDecimals(value *big.Int, from, to uint8) *big.Int {
	switch {
	case from == to:
		return new(big.Int).Set(value)
	case from > to:
		return new(big.Int).Quo(value, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(from-to)), nil))
	default:
		return new(big.Int).Mul(value, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(to-from)), nil))
	}
}

func (s *PriceOracleService) save(ctx context.Context, record *models.PriceRecord) (*models.PriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SavePrice(ctx, record); err != nil {
		metrics.PriceUpdates.WithLabelValues(record.Source, "error").Inc()
		return nil, fmt.Errorf("failed to save price: %w", err)
	}
	metrics.PriceUpdates.WithLabelValues(record.Source, "ok").Inc()
	log.Printf("📈 [Oracle] %s price of %s = %s", record.Source, record.Token, record.Price)
	s.events.Publish(events.PriceUpdated, record)
	return record, nil
}

// SetChainlinkFeed configures the Chainlink feed of a token. Owner only.
func (s *PriceOracleService) SetChainlinkFeed(ctx context.Context, caller, token, feed common.Address) error {
	return s.setSource(ctx, caller, token, func(src *models.PriceSource) { src.ChainlinkFeed = utils.AddressKey(feed) })
}

// SetRoflOracle configures the ROFL oracle of a token. Owner only.
func (s *PriceOracleService) SetRoflOracle(ctx context.Context, caller, token, oracle common.Address) error {
	return s.setSource(ctx, caller, token, func(src *models.PriceSource) { src.RoflOracle = utils.AddressKey(oracle) })
}

func (s *PriceOracleService) setSource(ctx context.Context, caller, token common.Address, apply func(*models.PriceSource)) error {
	if err := s.owner.Check(caller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	source, err := s.repo.GetSource(ctx, utils.AddressKey(token))
	if err != nil {
		return err
	}
	apply(source)
	if err := s.repo.SaveSource(ctx, source); err != nil {
		return fmt.Errorf("failed to save price source: %w", err)
	}
	log.Printf("🔧 [Oracle] Sources of %s: chainlink=%q rofl=%q", source.Token, source.ChainlinkFeed, source.RoflOracle)
	s.events.Publish(events.FeedConfigured, source)
	return nil
}

// GetPrice returns the stored price record, ErrNotFound when none
func (s *PriceOracleService) GetPrice(ctx context.Context, token common.Address) (*models.PriceRecord, error) {
	return s.repo.GetPrice(ctx, utils.AddressKey(token))
}

// GetSource returns the configured feeds of a token
func (s *PriceOracleService) GetSource(ctx context.Context, token common.Address) (*models.PriceSource, error) {
	return s.repo.GetSource(ctx, utils.AddressKey(token))
}

// GetFreshPrice reads the price through tx (nil for the service's own handle) and
// returns ErrOracle when it is missing, invalid or older than the max age.
func (s *PriceOracleService) GetFreshPrice(ctx context.Context, tx *gorm.DB, token string) (*big.Int, error) {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	record, err := repo.GetPrice(ctx, token)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: no price for %s", errs.ErrOracle, token)
		}
		return nil, err
	}
	if !record.Valid {
		return nil, fmt.Errorf("%w: price of %s is invalid", errs.ErrOracle, token)
	}
	if s.clock.now().Sub(record.Timestamp) > s.maxAge {
		return nil, fmt.Errorf("%w: price of %s from %s is stale", errs.ErrOracle, token, record.Timestamp.UTC().Format(time.RFC3339))
	}
	price := utils.StoredBig(record.Price)
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price of %s is zero", errs.ErrOracle, token)
	}
	return price, nil
}

// RefreshAll pulls every configured feed once. Chainlink is preferred when both are set.
func (s *PriceOracleService) RefreshAll(ctx context.Context, tokens []string) {
	for _, token := range tokens {
		source, err := s.repo.GetSource(ctx, token)
		if err != nil {
			log.Printf("❌ [Oracle] Error loading sources of %s: %v", token, err)
			continue
		}
		addr := common.HexToAddress(token)
		switch {
		case source.ChainlinkFeed != "":
			_, err = s.UpdatePriceFromChainlink(ctx, addr)
		case source.RoflOracle != "":
			_, err = s.UpdatePriceFromRoflOracle(ctx, addr)
		default:
			continue
		}
		if err != nil {
			log.Printf("⚠️ [Oracle] Refresh of %s failed: %v", token, err)
		}
	}
}
