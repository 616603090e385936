package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	"private-lending/internal/clients"
	"private-lending/internal/config"
	"private-lending/internal/envelope"
	"private-lending/internal/events"
	"private-lending/internal/handlers"
	"private-lending/internal/repository"
	"private-lending/internal/services"
	"private-lending/internal/transport"
)

// ServiceContainer holds every service of one node role
type ServiceContainer struct {
	Config *config.Config

	// Database
	DB *gorm.DB

	// Transport & events
	NATSClient *clients.NATSClient
	Transport  transport.Transport
	Mailbox    *transport.Mailbox // set when no NATS url is configured
	Bus        *events.Bus

	// Shared
	Owner   services.OwnerGate
	Routers *services.RouterRegistryService
	Outbox  *services.OutboxService
	Tokens  *handlers.TokenIssuer

	// Ingress
	Ledger *services.DepositLedgerService
	Relay  *services.ActionRelayService

	// Lending core
	Keys      *envelope.KeyPair
	Prices    *services.PriceOracleService
	Markets   *services.MarketService
	Processor *services.ActionProcessorService

	// Background services
	MonitoringService  *services.MonitoringService
	PriceUpdateService *services.PriceUpdateService

	localRouter common.Hash
}

// Global service container instance
var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the global container once
func InitializeContainer(cfg *config.Config, db *gorm.DB) (*ServiceContainer, error) {
	var initErr error
	containerOnce.Do(func() {
		Container, initErr = NewServiceContainer(cfg, db)
	})
	return Container, initErr
}

// NewServiceContainer wires the services of cfg.Node.Role on top of a migrated database
func NewServiceContainer(cfg *config.Config, db *gorm.DB) (*ServiceContainer, error) {
	log.Printf("🚀 Initializing Service Container (%s)...", cfg.Node.Role)

	localRouter, err := transport.RouterToBytes32(cfg.Node.LocalRouter)
	if err != nil {
		return nil, fmt.Errorf("node.local_router: %w", err)
	}

	c := &ServiceContainer{
		Config:      cfg,
		DB:          db,
		Owner:       services.NewOwnerGate(cfg.Node.OwnerAddress),
		Bus:         events.NewBus(),
		localRouter: localRouter,
	}

	c.Tokens, err = handlers.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, "private-lending-"+cfg.Node.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	// 1. Transport
	if err := c.initTransport(); err != nil {
		return nil, fmt.Errorf("failed to initialize transport: %w", err)
	}

	// 2. Shared services
	c.Routers = services.NewRouterRegistryService(repository.NewRouterRepository(db), c.Owner, c.Bus)
	if err := c.Routers.EnrollConfigured(context.Background(), cfg.Domains); err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("failed to enroll configured routers: %w", err)
	}
	c.Outbox = services.NewOutboxService(repository.NewOutboxRepository(db), c.Transport, cfg.Node.LocalDomain, localRouter, cfg.Outbox)

	// 3. Role services
	switch cfg.Node.Role {
	case config.RoleIngress:
		err = c.initIngressServices()
	case config.RoleLendingCore:
		err = c.initLendingCoreServices()
	default:
		err = fmt.Errorf("unknown node role %q", cfg.Node.Role)
	}
	if err != nil {
		c.Cleanup()
		return nil, err
	}

	c.MonitoringService = services.NewMonitoringService(db, repository.NewOutboxRepository(db), c.Markets, c.NATSConnected())

	log.Println("✅ Service Container initialized successfully")
	return c, nil
}

// initTransport connects NATS, or falls back to the in-process mailbox
func (c *ServiceContainer) initTransport() error {
	if c.Config.NATS.URL == "" {
		// single-process runs only: nothing reaches the counterpart node
		log.Println("⚠️ NATS not configured, using in-process mailbox")
		c.Mailbox = transport.NewMailbox()
		c.Transport = c.Mailbox
		return nil
	}

	log.Println("🔌 Connecting to NATS...")
	natsClient, err := clients.NewNATSClient(c.Config.NATS, "private-lending-"+c.Config.Node.Role)
	if err != nil {
		log.Printf("❌ Failed to connect to NATS at %s: %v", c.Config.NATS.URL, err)
		log.Printf("   → Please ensure NATS server is running on port 4222 (or configured port)")
		return err
	}
	c.NATSClient = natsClient
	c.Transport = transport.NewNATSTransport(natsClient.Conn(), c.Config.NATS.SubjectPrefix, time.Duration(c.Config.NATS.Timeout)*time.Second)
	c.Bus.AddSink(events.NATSSink(natsClient.Conn(), ""))
	return nil
}

func (c *ServiceContainer) initIngressServices() error {
	log.Println("🔧 Initializing ingress services...")

	deposits := repository.NewDepositRepository(c.DB)
	c.Ledger = services.NewDepositLedgerService(c.DB, deposits, c.Routers, c.Bus, c.Config.Node.LocalDomain)
	c.Relay = services.NewActionRelayService(c.DB, deposits, repository.NewRelayedActionRepository(c.DB), c.Routers, c.Outbox, c.Bus)

	// releases from the lending core land on the ledger
	if err := c.Transport.Register(c.Config.Node.LocalDomain, c.localRouter, c.Ledger); err != nil {
		return fmt.Errorf("failed to register ledger handler: %w", err)
	}

	log.Println("✅ Ingress services initialized")
	return nil
}

func (c *ServiceContainer) initLendingCoreServices() error {
	log.Println("🔧 Initializing lending core services...")

	keys, err := envelope.KeyPairFromHex(c.Config.Vault.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to load vault key: %w", err)
	}
	c.Keys = keys
	log.Printf("🔑 Vault public key: %s", keys.PublicKeyHex())

	var rofl services.RoflOracleReader
	var chainlink services.ChainlinkFeedReader
	if c.Config.Chain.RPCURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.Config.Chain.Timeout)*time.Second)
		chain, err := clients.DialChain(ctx, c.Config.Chain.RPCURL, time.Duration(c.Config.Chain.Timeout)*time.Second)
		cancel()
		if err != nil {
			log.Printf("⚠️ Failed to dial chain RPC %s: %v", c.Config.Chain.RPCURL, err)
			log.Printf("   → Oracle and feed refreshes will fail until the endpoint is reachable")
		} else {
			rofl = clients.NewRoflOracleClient(chain)
			chainlink = clients.NewChainlinkFeedClient(chain)
			log.Printf("✅ Chain client connected: %s", c.Config.Chain.RPCURL)
		}
	}

	lending := c.Config.Lending
	c.Prices = services.NewPriceOracleService(repository.NewPriceRepository(c.DB), c.Owner, rofl, chainlink, c.Bus,
		lending.PriceMaxAge, lending.StalenessBlocks)

	marketRepo := repository.NewMarketRepository(c.DB)
	c.Markets = services.NewMarketService(c.DB, marketRepo, c.Prices, c.Owner, c.Bus, lending.DefaultLiquidationBonus)
	c.Processor = services.NewActionProcessorService(c.DB, repository.NewEncryptedActionRepository(c.DB), marketRepo,
		c.Markets, c.Prices, c.Routers, services.NewReleaseDispatcher(c.Outbox), keys, c.Bus, lending.CloseFactorBps)

	if err := c.Transport.Register(c.Config.Node.LocalDomain, c.localRouter, c.Processor); err != nil {
		return fmt.Errorf("failed to register processor handler: %w", err)
	}

	if rofl != nil {
		c.PriceUpdateService = services.NewPriceUpdateService(c.Prices, c.Markets, lending.PriceRefreshInterval)
	}

	log.Println("✅ Lending core services initialized")
	return nil
}

// NATSConnected returns the NATS link probe, nil when running on the mailbox
func (c *ServiceContainer) NATSConnected() func() bool {
	if c.NATSClient == nil {
		return nil
	}
	return c.NATSClient.IsConnected
}

// Start launches the background loops
func (c *ServiceContainer) Start() {
	c.Outbox.Start()
	c.MonitoringService.Start()
	if c.PriceUpdateService != nil {
		c.PriceUpdateService.Start()
	}
}

// Cleanup stops background loops and closes connections
func (c *ServiceContainer) Cleanup() {
	log.Println("🧹 Cleaning up Service Container...")

	if c.PriceUpdateService != nil {
		c.PriceUpdateService.Stop()
	}
	if c.MonitoringService != nil {
		c.MonitoringService.Stop()
	}
	if c.Outbox != nil {
		c.Outbox.Stop()
	}
	if c.Transport != nil {
		if err := c.Transport.Close(); err != nil {
			log.Printf("⚠️ Failed to close transport: %v", err)
		}
	}
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}

	log.Println("✅ Service Container cleaned up")
}
