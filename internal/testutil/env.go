package testutil

import (
	"testing"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/events"
	"github.com/bazaarchain/bazaar/vm"
	"github.com/bazaarchain/bazaar/wallet"
)

// ChainID is the network identifier used by test transactions.
const ChainID = "bazaar-test"

// Env wires an in-memory state, an executor and a funded admin wallet for
// handler tests. Transactions run inside a single synthetic block whose
// timestamp can be moved with SetTime.
type Env struct {
	t       *testing.T
	State   core.State
	Emitter *events.Emitter
	Exec    *vm.Executor
	Admin   *wallet.Wallet
	Block   *core.Block

	nonces map[string]uint64
}

// NewEnv builds an Env with a genesis market record owned by a fresh admin
// wallet. Market parameters follow the common test fixture: 5% platform
// fee, mint price 100, floor 10, metadata cap 500, unlimited supply.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	state := NewStateDB()
	admin, err := wallet.Generate()
	if err != nil {
		t.Fatalf("generate admin wallet: %v", err)
	}

	market := &core.Market{
		Admin:              admin.Address(),
		PlatformFeePercent: 5,
		MintPrice:          100,
		MinSalePrice:       10,
		MaxMetadataLength:  500,
	}
	if err := state.SetMarket(market); err != nil {
		t.Fatalf("set genesis market: %v", err)
	}

	emitter := events.NewEmitter()
	env := &Env{
		t:       t,
		State:   state,
		Emitter: emitter,
		Exec:    vm.NewExecutor(state, emitter),
		Admin:   admin,
		Block:   core.NewBlock(1, "0000", admin.PubKey(), nil),
		nonces:  make(map[string]uint64),
	}
	env.Fund(admin, 1_000_000)
	return env
}

// NewWallet generates a wallet funded with balance.
func (e *Env) NewWallet(balance uint64) *wallet.Wallet {
	e.t.Helper()
	w, err := wallet.Generate()
	if err != nil {
		e.t.Fatalf("generate wallet: %v", err)
	}
	e.Fund(w, balance)
	return w
}

// Fund sets the wallet's account balance.
func (e *Env) Fund(w *wallet.Wallet, balance uint64) {
	e.t.Helper()
	acc, err := e.State.GetAccount(w.Address())
	if err != nil {
		e.t.Fatalf("get account: %v", err)
	}
	acc.Address = w.Address()
	acc.Balance = balance
	if err := e.State.SetAccount(acc); err != nil {
		e.t.Fatalf("set account: %v", err)
	}
}

// Balance returns the wallet's current account balance.
func (e *Env) Balance(w *wallet.Wallet) uint64 {
	e.t.Helper()
	acc, err := e.State.GetAccount(w.Address())
	if err != nil {
		e.t.Fatalf("get account: %v", err)
	}
	return acc.Balance
}

// SetTime moves the synthetic block timestamp (unix nanos).
func (e *Env) SetTime(ts int64) {
	e.Block.Header.Timestamp = ts
}

// ExecTx signs a transaction with the wallet's next nonce and executes it,
// returning the handler error.
func (e *Env) ExecTx(w *wallet.Wallet, typ core.TxType, amount uint64, payload any) error {
	e.t.Helper()
	nonce := e.nonces[w.Address()]
	tx, err := w.NewTx(ChainID, typ, nonce, 0, amount, payload)
	if err != nil {
		e.t.Fatalf("build tx: %v", err)
	}
	if err := e.Exec.ExecuteTx(e.Block, tx); err != nil {
		return err
	}
	e.nonces[w.Address()] = nonce + 1
	return nil
}

// MustExec executes a transaction and fails the test on error.
func (e *Env) MustExec(w *wallet.Wallet, typ core.TxType, amount uint64, payload any) {
	e.t.Helper()
	if err := e.ExecTx(w, typ, amount, payload); err != nil {
		e.t.Fatalf("exec %s: %v", typ, err)
	}
}

// Mint creates an asset owned by w and returns its ID.
func (e *Env) Mint(w *wallet.Wallet, metadata string, royaltyPercent uint64) uint64 {
	e.t.Helper()
	m, err := e.State.GetMarket()
	if err != nil {
		e.t.Fatalf("get market: %v", err)
	}
	id := m.NextAssetID
	e.MustExec(w, core.TxMint, m.MintPrice, core.MintPayload{
		Metadata:       metadata,
		RoyaltyPercent: royaltyPercent,
	})
	return id
}

// Market returns the current market record.
func (e *Env) Market() *core.Market {
	e.t.Helper()
	m, err := e.State.GetMarket()
	if err != nil {
		e.t.Fatalf("get market: %v", err)
	}
	return m
}

// Pending returns the pull-payment balance owed to the wallet.
func (e *Env) Pending(w *wallet.Wallet) uint64 {
	e.t.Helper()
	amount, err := e.State.GetPending(w.Address())
	if err != nil {
		e.t.Fatalf("get pending: %v", err)
	}
	return amount
}
