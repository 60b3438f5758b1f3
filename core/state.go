package core

// Account holds a participant's native balance and replay-protection nonce.
// Address is the 40-char hex form derived from the ed25519 public key.
type Account struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// BurnAddress is the reserved sentinel address. No public key hashes to it
// in practice, so assets sent there would be frozen forever; transfers to it
// are rejected outright instead.
const BurnAddress = "0000000000000000000000000000000000000000"

// Asset is a uniquely identified digital item tracked by the registry.
// IDs are dense from 0 and never reused; Author never changes after mint.
type Asset struct {
	ID             uint64 `json:"id"`
	Metadata       string `json:"metadata"` // content reference: URI or inline JSON
	Author         string `json:"author"`
	Owner          string `json:"owner"`
	Price          uint64 `json:"price"` // meaningful only while ForSale
	ForSale        bool   `json:"for_sale"`
	RoyaltyPercent uint64 `json:"royalty_percent"` // 0-50
	CreatedAt      int64  `json:"created_at"`      // block timestamp, unix nanos
}

// Offer is a funded, time-bounded bid on an asset. The amount is held by the
// market until the offer is accepted, cancelled, or the asset is burned.
// At most one live offer per (asset, bidder) pair.
type Offer struct {
	AssetID   uint64 `json:"asset_id"`
	Bidder    string `json:"bidder"`
	Amount    uint64 `json:"amount"`
	ExpiresAt int64  `json:"expires_at"` // unix nanos
}

// Market is the singleton marketplace record: admin state, tunable
// configuration, the asset id counter and the platform fee accumulator.
// Created at genesis, mutated only through admin and trade transactions.
type Market struct {
	Admin        string `json:"admin"`
	PendingAdmin string `json:"pending_admin,omitempty"` // empty → no handover in progress
	Paused       bool   `json:"paused"`

	PlatformFeePercent uint64 `json:"platform_fee_percent"` // 0-20
	MintPrice          uint64 `json:"mint_price"`
	MinSalePrice       uint64 `json:"min_sale_price"`
	MaxMetadataLength  int    `json:"max_metadata_length"` // >= 10
	MaxSupply          uint64 `json:"max_supply"`          // 0 → unbounded

	NextAssetID   uint64 `json:"next_asset_id"`
	CollectedFees uint64 `json:"collected_fees"`
}

// Caps enforced at genesis and at every admin mutation, never only once.
const (
	MaxPlatformFeePercent = 20
	MaxRoyaltyPercent     = 50
	MinMetadataLength     = 10
)

// State is the full ledger state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Market singleton
	GetMarket() (*Market, error)
	SetMarket(m *Market) error

	// Assets
	GetAsset(id uint64) (*Asset, error)
	SetAsset(asset *Asset) error
	DeleteAsset(id uint64) error

	// Offers, keyed by (asset id, bidder)
	GetOffer(assetID uint64, bidder string) (*Offer, error)
	SetOffer(o *Offer) error
	DeleteOffer(assetID uint64, bidder string) error
	// OffersByAsset returns all live offers on an asset, ordered by bidder
	// address for deterministic iteration.
	OffersByAsset(assetID uint64) ([]*Offer, error)

	// Pending withdrawable balances. GetPending returns 0 for absent entries.
	GetPending(address string) (uint64, error)
	SetPending(address string, amount uint64) error
	DeletePending(address string) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the root for the block header.
	Commit() error
}
