package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TLSConfig holds the PEM file paths for mutual-TLS P2P links.
type TLSConfig struct {
	CACert   string `yaml:"ca_cert"`
	NodeCert string `yaml:"node_cert"`
	NodeKey  string `yaml:"node_key"`
}

// SeedPeer is a peer the node dials on startup.
type SeedPeer struct {
	ID   string `yaml:"id"`
	Addr string `yaml:"addr"`
}

// MarketConfig sets the marketplace parameters written into the genesis
// market record. Percentages are whole numbers.
type MarketConfig struct {
	Admin              string `yaml:"admin"` // 40-hex address
	PlatformFeePercent uint64 `yaml:"platform_fee_percent"`
	MintPrice          uint64 `yaml:"mint_price"`
	MinSalePrice       uint64 `yaml:"min_sale_price"`
	MaxMetadataLength  int    `yaml:"max_metadata_length"`
	MaxSupply          uint64 `yaml:"max_supply"` // 0 → unlimited
}

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID string            `yaml:"chain_id"`
	Alloc   map[string]uint64 `yaml:"alloc"` // address → initial balance
	Market  MarketConfig      `yaml:"market"`
}

// Config holds all node configuration.
type Config struct {
	NodeID       string        `yaml:"node_id"`
	DataDir      string        `yaml:"data_dir"`
	RPCPort      int           `yaml:"rpc_port"`
	P2PPort      int           `yaml:"p2p_port"`
	MetricsPort  int           `yaml:"metrics_port"`  // 0 → metrics disabled
	MaxBlockTxs  int           `yaml:"max_block_txs"` // max transactions per block; 0 → 500
	Validators   []string      `yaml:"validators"`    // authorised proposer pubkey hexes
	RPCAuthToken string        `yaml:"rpc_auth_token"`
	RPCRateLimit float64       `yaml:"rpc_rate_limit"` // requests/sec per client; 0 → 50
	TLS          *TLSConfig    `yaml:"tls"`
	SeedPeers    []SeedPeer    `yaml:"seed_peers"`
	Genesis      GenesisConfig `yaml:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:      "node0",
		DataDir:     "./data",
		RPCPort:     8545,
		P2PPort:     30303,
		MaxBlockTxs: 500,
		Genesis: GenesisConfig{
			ChainID: "bazaar-dev",
			Alloc:   map[string]uint64{},
			Market: MarketConfig{
				PlatformFeePercent: 5,
				MintPrice:          1_000_000,
				MinSalePrice:       100_000,
				MaxMetadataLength:  500,
			},
		},
	}
}

// Load reads a YAML config file from path and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the bounds the state machine assumes at genesis.
func (c *Config) Validate() error {
	m := c.Genesis.Market
	if m.PlatformFeePercent > 20 {
		return fmt.Errorf("platform_fee_percent %d exceeds maximum 20", m.PlatformFeePercent)
	}
	if m.MaxMetadataLength < 10 {
		return fmt.Errorf("max_metadata_length %d below minimum 10", m.MaxMetadataLength)
	}
	return nil
}

// Save writes the config to path as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
