package wallet

import (
	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/crypto"
)

// Wallet holds a key pair and provides transaction-building helpers.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key.
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// Address returns the account address (first 20 bytes of SHA-256(pubkey)).
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// NewTx creates a signed transaction. chainID must match the target network,
// nonce the account's current nonce. amount is the value attached to the
// transaction on top of the fee.
func (w *Wallet) NewTx(chainID string, typ core.TxType, nonce, fee, amount uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(chainID, typ, w.pub, nonce, fee, amount, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

// Pay creates a signed native funds transfer.
func (w *Wallet) Pay(chainID, to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxPay, nonce, fee, amount, core.PayPayload{To: to})
}

// Mint creates a signed mint transaction. price must equal the market's
// current mint price.
func (w *Wallet) Mint(chainID, metadata string, royaltyPercent, price, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxMint, nonce, fee, price, core.MintPayload{
		Metadata:       metadata,
		RoyaltyPercent: royaltyPercent,
	})
}

// Buy creates a signed purchase of a listed asset at the given price.
func (w *Wallet) Buy(chainID string, assetID, price, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBuy, nonce, fee, price, core.BuyPayload{AssetID: assetID})
}

// MakeOffer creates a signed offer escrowing amount for durationSeconds.
func (w *Wallet) MakeOffer(chainID string, assetID, amount uint64, durationSeconds int64, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxMakeOffer, nonce, fee, amount, core.MakeOfferPayload{
		AssetID:         assetID,
		DurationSeconds: durationSeconds,
	})
}

// Withdraw creates a signed pull-payment withdrawal of the caller's full
// pending balance.
func (w *Wallet) Withdraw(chainID string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxWithdraw, nonce, fee, 0, struct{}{})
}
