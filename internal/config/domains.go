package config

import "fmt"

// DomainConfig a counterpart domain and its router
type DomainConfig struct {
	Name   string `yaml:"name" json:"name"`
	Domain uint32 `yaml:"domain" json:"domain"`
	Router string `yaml:"router" json:"router"` // address or bytes32
}

// Well-known domain identifiers
const (
	DomainMantleSepolia   uint32 = 5003
	DomainSapphireTestnet uint32 = 23295
)

// GetDomain returns the configured counterpart for a domain id
func (c *Config) GetDomain(domain uint32) (*DomainConfig, error) {
	for i := range c.Domains {
		if c.Domains[i].Domain == domain {
			return &c.Domains[i], nil
		}
	}
	return nil, fmt.Errorf("domain %d not found in config", domain)
}
