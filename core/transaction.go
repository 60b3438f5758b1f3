package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bazaarchain/bazaar/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	// Native funds
	TxPay TxType = "pay"

	// Asset registry
	TxMint     TxType = "mint"
	TxTransfer TxType = "transfer"
	TxBurn     TxType = "burn"

	// Listing and purchase
	TxListForSale TxType = "list_for_sale"
	TxUpdatePrice TxType = "update_price"
	TxCancelSale  TxType = "cancel_sale"
	TxBuy         TxType = "buy"

	// Offer book
	TxMakeOffer   TxType = "make_offer"
	TxCancelOffer TxType = "cancel_offer"
	TxAcceptOffer TxType = "accept_offer"

	// Pull payments
	TxWithdraw     TxType = "withdraw"
	TxWithdrawFees TxType = "withdraw_fees"

	// Administration
	TxSetPause           TxType = "set_pause"
	TxProposeAdmin       TxType = "propose_admin"
	TxAcceptAdmin        TxType = "accept_admin"
	TxCancelAdminChange  TxType = "cancel_admin_change"
	TxUpdatePlatformFee  TxType = "update_platform_fee"
	TxUpdateMintPrice    TxType = "update_mint_price"
	TxUpdateMinSalePrice TxType = "update_min_sale_price"
)

// Transaction is the atomic unit of work on the chain.
// From is the sender's 40-char hex address; PubKey is the full ed25519
// public key it derives from. Amount is the native value attached to the
// call; the executor debits it from the sender before dispatch and the
// rollback on abort returns it. Signature covers all fields except
// Signature itself.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	PubKey    string          `json:"pub_key"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Amount    uint64          `json:"amount"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	PubKey    string          `json:"pub_key"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Amount    uint64          `json:"amount"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		PubKey:    tx.PubKey,
		Nonce:     tx.Nonce,
		Fee:       tx.Fee,
		Amount:    tx.Amount,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks that From matches PubKey and that the signature is valid.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(tx.PubKey)
	if err != nil {
		return fmt.Errorf("invalid pub_key: %w", err)
	}
	if pub.Address() != tx.From {
		return fmt.Errorf("from %s does not match pub_key address %s", tx.From, pub.Address())
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
// From is derived from pub.
func NewTransaction(chainID string, typ TxType, pub crypto.PublicKey, nonce, fee, amount uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      pub.Address(),
		PubKey:    pub.Hex(),
		Nonce:     nonce,
		Fee:       fee,
		Amount:    amount,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// PayPayload names the recipient of a native funds transfer. The amount
// moved is the value attached to the transaction.
type PayPayload struct {
	To string `json:"to"`
}

// MintPayload creates a new asset; the attached amount must equal the
// configured mint price.
type MintPayload struct {
	Metadata       string `json:"metadata"`
	RoyaltyPercent uint64 `json:"royalty_percent"`
}

// TransferPayload moves an asset to a new owner, free of charge.
type TransferPayload struct {
	AssetID uint64 `json:"asset_id"`
	To      string `json:"to"`
}

// BurnPayload permanently destroys an asset and refunds its live offers.
type BurnPayload struct {
	AssetID uint64 `json:"asset_id"`
}

// ListForSalePayload marks an asset for sale at a price.
type ListForSalePayload struct {
	AssetID uint64 `json:"asset_id"`
	Price   uint64 `json:"price"`
}

// UpdatePricePayload changes the price of a listed asset.
type UpdatePricePayload struct {
	AssetID  uint64 `json:"asset_id"`
	NewPrice uint64 `json:"new_price"`
}

// CancelSalePayload delists an asset.
type CancelSalePayload struct {
	AssetID uint64 `json:"asset_id"`
}

// BuyPayload purchases a listed asset; the attached amount must equal the
// listed price.
type BuyPayload struct {
	AssetID uint64 `json:"asset_id"`
}

// MakeOfferPayload places a funded bid on an asset; the attached amount is
// the offer.
type MakeOfferPayload struct {
	AssetID         uint64 `json:"asset_id"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// CancelOfferPayload withdraws the caller's offer on an asset.
type CancelOfferPayload struct {
	AssetID uint64 `json:"asset_id"`
}

// AcceptOfferPayload sells an asset to one of its bidders.
type AcceptOfferPayload struct {
	AssetID uint64 `json:"asset_id"`
	Bidder  string `json:"bidder"`
}

// SetPausePayload toggles the global pause gate.
type SetPausePayload struct {
	Paused bool `json:"paused"`
}

// ProposeAdminPayload starts a two-step admin handover.
type ProposeAdminPayload struct {
	NewAdmin string `json:"new_admin"`
}

// UpdatePlatformFeePayload sets the platform fee percentage.
type UpdatePlatformFeePayload struct {
	NewFeePercent uint64 `json:"new_fee_percent"`
}

// UpdateMintPricePayload sets the mint price.
type UpdateMintPricePayload struct {
	NewPrice uint64 `json:"new_price"`
}

// UpdateMinSalePricePayload sets the listing/offer price floor.
type UpdateMinSalePricePayload struct {
	NewPrice uint64 `json:"new_price"`
}
