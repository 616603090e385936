package services

import (
	"context"
	"log"
	"sync"
	"time"
)

// PriceUpdateService periodically pulls prices from the configured Chainlink feeds
// and ROFL oracles of every market
type PriceUpdateService struct {
	oracle    *PriceOracleService
	markets   *MarketService
	interval  time.Duration
	ticker    *time.Ticker
	done      chan bool
	mu        sync.Mutex
	isRunning bool
}

// NewPriceUpdateService creates a new price update service
func NewPriceUpdateService(oracle *PriceOracleService, markets *MarketService, interval time.Duration) *PriceUpdateService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PriceUpdateService{
		oracle:   oracle,
		markets:  markets,
		interval: interval,
		done:     make(chan bool),
	}
}

// Start begins the price update loop
func (s *PriceUpdateService) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.ticker = time.NewTicker(s.interval)

	go func() {
		// Update prices immediately on start
		s.UpdatePrices(context.Background())

		for {
			select {
			case <-s.done:
				s.ticker.Stop()
				return
			case <-s.ticker.C:
				s.UpdatePrices(context.Background())
			}
		}
	}()

	log.Printf("✅ Price Update Service started (%s interval)", s.interval)
}

// Stop stops the price update loop
func (s *PriceUpdateService) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	s.done <- true
	log.Println("🛑 Price Update Service stopped")
}

// UpdatePrices refreshes every market that has a feed configured
func (s *PriceUpdateService) UpdatePrices(ctx context.Context) {
	tokens, err := s.markets.Tokens(ctx)
	if err != nil {
		log.Printf("❌ Error fetching tokens: %v", err)
		return
	}
	s.oracle.RefreshAll(ctx, tokens)
}
