package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Node roles
const (
	RoleIngress     = "ingress"
	RoleLendingCore = "lending-core"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Node     NodeConfig     `yaml:"node"`
	Lending  LendingConfig  `yaml:"lending"`
	Chain    ChainConfig    `yaml:"chain"`
	Vault    VaultConfig    `yaml:"vault"`
	Admin    AdminConfig    `yaml:"admin"`
	Auth     AuthConfig     `yaml:"auth"`
	Outbox   OutboxConfig   `yaml:"outbox"`
	Domains  []DomainConfig `yaml:"domains"` // known counterpart domains, enrolled on start
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig Database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"` // postgres (default) or sqlite
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`        // seconds
	ReconnectWait int    `yaml:"reconnect_wait"` // seconds
	MaxReconnects int    `yaml:"max_reconnects"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// NodeConfig identifies this node on the transport
type NodeConfig struct {
	Role         string `yaml:"role"`
	LocalDomain  uint32 `yaml:"local_domain"`
	LocalRouter  string `yaml:"local_router"`  // address or bytes32
	OwnerAddress string `yaml:"owner_address"` // address allowed to call owner-gated operations
}

// LendingConfig risk and oracle parameters of the lending core
type LendingConfig struct {
	PriceMaxAge             time.Duration `yaml:"price_max_age"`
	StalenessBlocks         uint64        `yaml:"staleness_blocks"`
	CloseFactorBps          uint32        `yaml:"close_factor_bps"`
	DefaultLiquidationBonus uint32        `yaml:"default_liquidation_bonus"`
	PriceRefreshInterval    time.Duration `yaml:"price_refresh_interval"` // feed polling period
}

// ChainConfig RPC endpoint used for oracle and feed reads
type ChainConfig struct {
	RPCURL  string `yaml:"rpc_url"`
	Timeout int    `yaml:"timeout"` // seconds
}

// VaultConfig X25519 key of the lending core
type VaultConfig struct {
	PrivateKey string `yaml:"private_key"` // hex, 32 bytes
}

// AdminConfig owner login
type AdminConfig struct {
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	TOTPSecret string   `yaml:"totp_secret"`
	AllowedIPs []string `yaml:"allowedIPs"`
}

// AuthConfig JWT settings
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// OutboxConfig retry loop of the transactional outbox
type OutboxConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
	BatchSize   int           `yaml:"batch_size"`
}

var AppConfig *Config

// LoadConfig Load configuration file
func LoadConfig(configPath string) error {
	return LoadConfigForRole(configPath, "")
}

// LoadConfigForRole loads the configuration and pins node.role when role is set
func LoadConfigForRole(configPath, role string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return err
	}
	fmt.Printf("✅ [%s] Loading configuration from config file: %s\n", time.Now().Format("2006-01-02 15:04:05"), configPath)

	overrideFromEnv(config)
	if role != "" {
		config.Node.Role = role
	}
	applyDefaults(config)
	if err := config.Validate(); err != nil {
		return err
	}

	fmt.Printf("📋 [Config] Node role=%s domain=%d router=%s\n", config.Node.Role, config.Node.LocalDomain, config.Node.LocalRouter)
	fmt.Printf("📋 [Config] Lending price_max_age=%s staleness_blocks=%d close_factor=%dbps\n",
		config.Lending.PriceMaxAge, config.Lending.StalenessBlocks, config.Lending.CloseFactorBps)

	AppConfig = config
	return nil
}

// Parse decodes YAML configuration without touching the environment
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

// Default returns a configuration with defaults applied, used by tests and tools
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.Server.Port == 0 {
		config.Server.Port = 3001
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "postgres"
	}
	if config.NATS.SubjectPrefix == "" {
		config.NATS.SubjectPrefix = "lending.mailbox"
	}
	if config.NATS.Timeout == 0 {
		config.NATS.Timeout = 10
	}
	if config.NATS.ReconnectWait == 0 {
		config.NATS.ReconnectWait = 2
	}
	if config.NATS.MaxReconnects == 0 {
		config.NATS.MaxReconnects = 10
	}
	if config.Lending.PriceMaxAge == 0 {
		config.Lending.PriceMaxAge = time.Hour
	}
	if config.Lending.StalenessBlocks == 0 {
		config.Lending.StalenessBlocks = 10
	}
	if config.Lending.CloseFactorBps == 0 {
		config.Lending.CloseFactorBps = 5000
	}
	if config.Lending.DefaultLiquidationBonus == 0 {
		config.Lending.DefaultLiquidationBonus = 500
	}
	if config.Lending.PriceRefreshInterval == 0 {
		config.Lending.PriceRefreshInterval = time.Minute
	}
	if config.Chain.Timeout == 0 {
		config.Chain.Timeout = 15
	}
	if config.Auth.TokenTTL == 0 {
		config.Auth.TokenTTL = 24 * time.Hour
	}
	if config.Outbox.Interval == 0 {
		config.Outbox.Interval = 5 * time.Second
	}
	if config.Outbox.MaxAttempts == 0 {
		config.Outbox.MaxAttempts = 20
	}
	if config.Outbox.BatchSize == 0 {
		config.Outbox.BatchSize = 100
	}
}

// Validate checks the fields every node needs
func (c *Config) Validate() error {
	switch c.Node.Role {
	case RoleIngress, RoleLendingCore:
	default:
		return fmt.Errorf("node.role must be %q or %q, got %q", RoleIngress, RoleLendingCore, c.Node.Role)
	}
	if c.Node.LocalDomain == 0 {
		return fmt.Errorf("node.local_domain is required")
	}
	if c.Node.LocalRouter == "" {
		return fmt.Errorf("node.local_router is required")
	}
	if c.Node.Role == RoleLendingCore && c.Vault.PrivateKey == "" {
		return fmt.Errorf("vault.private_key is required for %s", RoleLendingCore)
	}
	if c.Lending.CloseFactorBps > 10000 {
		return fmt.Errorf("lending.close_factor_bps must be <= 10000")
	}
	for _, d := range c.Domains {
		if d.Domain == 0 || d.Router == "" {
			return fmt.Errorf("domains entry %q needs domain and router", d.Name)
		}
	}
	return nil
}

// overrideFromEnv Override configuration from environment variables
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if role := os.Getenv("NODE_ROLE"); role != "" {
		config.Node.Role = role
	}
	if domain := os.Getenv("LOCAL_DOMAIN"); domain != "" {
		if d, err := strconv.ParseUint(domain, 10, 32); err == nil {
			config.Node.LocalDomain = uint32(d)
		}
	}
	if router := os.Getenv("LOCAL_ROUTER"); router != "" {
		config.Node.LocalRouter = router
	}
	if owner := os.Getenv("OWNER_ADDRESS"); owner != "" {
		config.Node.OwnerAddress = owner
	}

	if maxAge := os.Getenv("PRICE_MAX_AGE"); maxAge != "" {
		if d, err := time.ParseDuration(maxAge); err == nil {
			config.Lending.PriceMaxAge = d
		}
	}
	if blocks := os.Getenv("STALENESS_BLOCKS"); blocks != "" {
		if b, err := strconv.ParseUint(blocks, 10, 64); err == nil {
			config.Lending.StalenessBlocks = b
		}
	}

	if rpcURL := os.Getenv("RPC_URL"); rpcURL != "" {
		config.Chain.RPCURL = rpcURL
	}
	if vaultKey := os.Getenv("VAULT_PRIVATE_KEY"); vaultKey != "" {
		config.Vault.PrivateKey = vaultKey
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if password := os.Getenv("ADMIN_PASSWORD"); password != "" {
		config.Admin.Password = password
	}
	if totp := os.Getenv("ADMIN_TOTP_SECRET"); totp != "" {
		config.Admin.TOTPSecret = totp
	}
	if ips := os.Getenv("ADMIN_ALLOWED_IPS"); ips != "" {
		config.Admin.AllowedIPs = nil
		for _, ip := range strings.Split(ips, ",") {
			if trimmed := strings.TrimSpace(ip); trimmed != "" {
				config.Admin.AllowedIPs = append(config.Admin.AllowedIPs, trimmed)
			}
		}
	}
}
