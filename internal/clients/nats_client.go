package clients

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"private-lending/internal/config"
	"private-lending/internal/metrics"
)

// NATSClient owns the NATS connection shared by the transport and the event bridge
type NATSClient struct {
	conn *nats.Conn
}

// NewNATSClient connects to NATS with reconnect handling
func NewNATSClient(cfg config.NATSConfig, name string) (*NATSClient, error) {
	connectTimeout := time.Duration(cfg.Timeout) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	log.Printf("🔌 Using NATS timeout: %v", connectTimeout)

	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(time.Duration(cfg.ReconnectWait)*time.Second),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️ NATS disconnected: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("✅ NATS reconnected to %s", nc.ConnectedUrl())
			metrics.NATSConnectionStatus.Set(1)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			metrics.NATSConnectionStatus.Set(0)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)
	log.Printf("✅ Connected to NATS at %s", conn.ConnectedUrl())
	return &NATSClient{conn: conn}, nil
}

// Conn returns the underlying connection
func (c *NATSClient) Conn() *nats.Conn {
	return c.conn
}

// IsConnected reports whether the connection is currently up
func (c *NATSClient) IsConnected() bool {
	return c != nil && c.conn != nil && c.conn.IsConnected()
}

// Close drains subscriptions and closes the connection
func (c *NATSClient) Close() {
	if c == nil || c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}
