package config

import (
	"fmt"
	"strings"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/crypto"
)

// GenesisHash is a canonical all-zeros previous hash for the genesis block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// CreateGenesisBlock builds and signs block #0. It credits the Alloc
// accounts, writes the initial market record and commits state.
func CreateGenesisBlock(cfg *Config, state core.State, proposerPriv crypto.PrivateKey) (*core.Block, error) {
	proposerPub := proposerPriv.Public()

	mc := cfg.Genesis.Market
	if mc.Admin == "" {
		return nil, fmt.Errorf("genesis market admin is required")
	}
	if mc.PlatformFeePercent > core.MaxPlatformFeePercent {
		return nil, fmt.Errorf("genesis platform fee %d exceeds maximum %d",
			mc.PlatformFeePercent, core.MaxPlatformFeePercent)
	}
	if mc.MaxMetadataLength < core.MinMetadataLength {
		return nil, fmt.Errorf("genesis max metadata length %d below minimum %d",
			mc.MaxMetadataLength, core.MinMetadataLength)
	}

	market := &core.Market{
		Admin:              mc.Admin,
		PlatformFeePercent: mc.PlatformFeePercent,
		MintPrice:          mc.MintPrice,
		MinSalePrice:       mc.MinSalePrice,
		MaxMetadataLength:  mc.MaxMetadataLength,
		MaxSupply:          mc.MaxSupply,
	}
	if err := state.SetMarket(market); err != nil {
		return nil, err
	}

	// Credit all alloc accounts
	for addr, balance := range cfg.Genesis.Alloc {
		acc := &core.Account{
			Address: addr,
			Balance: balance,
			Nonce:   0,
		}
		if err := state.SetAccount(acc); err != nil {
			return nil, err
		}
	}

	stateRoot := state.ComputeRoot()
	if err := state.Commit(); err != nil {
		return nil, err
	}

	block := core.NewBlock(0, GenesisHash, proposerPub.Hex(), nil)
	block.Header.StateRoot = stateRoot
	// Embed chain ID via TxRoot for identification
	block.Header.TxRoot = crypto.Hash([]byte(cfg.Genesis.ChainID))
	block.Sign(proposerPriv)
	return block, nil
}

// IsGenesisHash returns true if the hash is the canonical genesis prev-hash.
func IsGenesisHash(h string) bool {
	return strings.Count(h, "0") == len(h) && len(h) == 64
}
