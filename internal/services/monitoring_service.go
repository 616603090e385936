package services

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"private-lending/internal/metrics"
	"private-lending/internal/models"
	"private-lending/internal/repository"
)

// MonitoringService periodically refreshes the gauges that are not updated inline
type MonitoringService struct {
	db       *gorm.DB
	outbox   repository.OutboxRepository
	markets  *MarketService // nil on the ingress node
	natsUp   func() bool    // nil when running on the in-process mailbox
	stopCh   chan struct{}
	wg       sync.WaitGroup
	interval time.Duration
}

// NewMonitoringService creates the monitoring service
func NewMonitoringService(db *gorm.DB, outbox repository.OutboxRepository, markets *MarketService, natsUp func() bool) *MonitoringService {
	return &MonitoringService{
		db:       db,
		outbox:   outbox,
		markets:  markets,
		natsUp:   natsUp,
		stopCh:   make(chan struct{}),
		interval: 10 * time.Second,
	}
}

// Start starts the monitoring loop
func (m *MonitoringService) Start() {
	log.Println("🚀 Starting monitoring service...")
	m.wg.Add(1)
	go m.run()
	log.Println("✅ Monitoring service started")
}

// Stop stops the monitoring loop
func (m *MonitoringService) Stop() {
	log.Println("🛑 Stopping monitoring service...")
	close(m.stopCh)
	m.wg.Wait()
	log.Println("✅ Monitoring service stopped")
}

func (m *MonitoringService) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Collect(context.Background())
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Collect(context.Background())
		}
	}
}

// Collect refreshes every gauge once
func (m *MonitoringService) Collect(ctx context.Context) {
	m.updateDatabaseMetrics()

	if count, err := m.outbox.CountByStatus(ctx, models.OutboundStatusPending); err == nil {
		metrics.OutboxPending.Set(float64(count))
	} else {
		log.Printf("⚠️ Failed to count pending outbox messages: %v", err)
	}

	if m.natsUp != nil {
		if m.natsUp() {
			metrics.NATSConnectionStatus.Set(1)
		} else {
			metrics.NATSConnectionStatus.Set(0)
		}
	}

	if m.markets != nil {
		cfgs, err := m.markets.repo.ListTokenConfigs(ctx)
		if err != nil {
			log.Printf("⚠️ Failed to load markets for metrics: %v", err)
			return
		}
		for _, cfg := range cfgs {
			recordMarketGauges(MarketFromModel(cfg))
		}
	}
}

func (m *MonitoringService) updateDatabaseMetrics() {
	sqlDB, err := m.db.DB()
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		return
	}

	stats := sqlDB.Stats()
	metrics.DBConnectionPoolSize.Set(float64(stats.MaxOpenConnections))
	metrics.DBConnectionActive.Set(float64(stats.OpenConnections - stats.Idle))
	metrics.DBConnectionIdle.Set(float64(stats.Idle))

	if err := sqlDB.Ping(); err != nil {
		metrics.DBConnectionStatus.Set(0)
	} else {
		metrics.DBConnectionStatus.Set(1)
	}
}
