package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Database connection
	// ============================================
	DBConnectionPoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lending_db_connection_pool_size",
		Help: "Database connection pool size",
	})

	DBConnectionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lending_db_connection_active",
		Help: "Number of active database connections",
	})

	DBConnectionIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lending_db_connection_idle",
		Help: "Number of idle database connections",
	})

	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lending_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	// ============================================
	// Transport
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lending_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	TransportMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_transport_messages_sent_total",
			Help: "Total number of transport messages dispatched",
		},
		[]string{"destination_domain"},
	)

	TransportMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_transport_messages_received_total",
			Help: "Total number of transport messages received",
		},
		[]string{"origin_domain", "result"},
	)

	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lending_outbox_pending",
		Help: "Outbound messages waiting for delivery",
	})

	OutboxDeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lending_outbox_delivery_failures_total",
		Help: "Total number of failed outbox delivery attempts",
	})

	// ============================================
	// Origin ledger
	// ============================================
	DepositsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_deposits_created_total",
			Help: "Total number of deposits locked",
		},
		[]string{"kind"},
	)

	CustodyTransfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_custody_transfers_total",
			Help: "Total number of transfers out of custody",
		},
		[]string{"kind"},
	)

	ActionsRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lending_actions_relayed_total",
		Help: "Total number of encrypted actions relayed",
	})

	// ============================================
	// Lending core
	// ============================================
	ActionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_actions_processed_total",
			Help: "Total number of processAction calls by action type and result",
		},
		[]string{"action_type", "result"},
	)

	ActionProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lending_action_processing_duration_seconds",
			Help:    "processAction duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action_type"},
	)

	PriceUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_price_updates_total",
			Help: "Total number of price updates by source and result",
		},
		[]string{"source", "result"},
	)

	MarketTotalSupply = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lending_market_total_supply_scaled",
			Help: "Scaled total supply per token (float approximation)",
		},
		[]string{"token"},
	)

	MarketTotalBorrow = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lending_market_total_borrow_scaled",
			Help: "Scaled total borrow per token (float approximation)",
		},
		[]string{"token"},
	)
)
