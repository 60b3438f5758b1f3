package vm

import (
	"fmt"
	"math"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/events"
)

// Payer is the external value-transfer primitive used only by withdrawal
// paths. Handlers must clear the ledger entry being paid out BEFORE calling
// Pay, so that a reentrant call observes no balance and fails harmlessly.
type Payer interface {
	Pay(s core.State, to string, amount uint64) error
}

// AccountPayer settles payouts by crediting the recipient's account balance.
type AccountPayer struct{}

func (AccountPayer) Pay(s core.State, to string, amount uint64) error {
	acc, err := s.GetAccount(to)
	if err != nil {
		return err
	}
	acc.Balance += amount
	return s.SetAccount(acc)
}

// Context is passed to every Handler and provides access to the ledger
// state, the current block, the triggering transaction, the payout
// primitive, and the event emitter.
type Context struct {
	State   core.State
	Block   *core.Block
	Tx      *core.Transaction
	Payer   Payer
	Emitter *events.Emitter
}

// Now returns the current time as seen by the state machine: the timestamp
// of the block being executed, in unix nanos.
func (ctx *Context) Now() int64 {
	return ctx.Block.Header.Timestamp
}

// Emit publishes ev tagged with the triggering transaction and block.
func (ctx *Context) Emit(typ events.EventType, data map[string]any) {
	if ctx.Emitter == nil {
		return
	}
	ctx.Emitter.Emit(events.Event{
		Type:        typ,
		TxID:        ctx.Tx.ID,
		BlockHeight: ctx.Block.Header.Height,
		Data:        data,
	})
}

// Executor applies transactions to the state using the global Handler registry.
type Executor struct {
	state   core.State
	emitter *events.Emitter
	payer   Payer
}

// NewExecutor creates an Executor with the given state and event emitter.
// Payouts credit account balances unless SetPayer overrides the primitive.
func NewExecutor(state core.State, emitter *events.Emitter) *Executor {
	return &Executor{state: state, emitter: emitter, payer: AccountPayer{}}
}

// SetPayer replaces the payout primitive.
func (e *Executor) SetPayer(p Payer) {
	e.payer = p
}

// ExecuteBlock applies all transactions in block sequentially.
// A failing transaction causes the whole block to be rejected.
// EventBlockCommit is emitted by the caller (consensus) after signing so
// the event carries the correct block hash.
func (e *Executor) ExecuteBlock(block *core.Block) error {
	for _, tx := range block.Transactions {
		if err := e.ExecuteTx(block, tx); err != nil {
			return fmt.Errorf("tx %s failed: %w", tx.ID, err)
		}
	}
	return nil
}

// ExecuteTx verifies and executes a single transaction with snapshot/rollback.
// On any handler failure every mutation is discarded, including the debit of
// the attached amount; the sender gets the value back with the rollback.
func (e *Executor) ExecuteTx(block *core.Block, tx *core.Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("signature: %w", err)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	if err := e.applyTx(block, tx); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		return err
	}

	if e.emitter != nil {
		e.emitter.Emit(events.Event{
			Type:        events.EventTxExecuted,
			TxID:        tx.ID,
			BlockHeight: block.Header.Height,
			Data:        map[string]any{"type": string(tx.Type), "from": tx.From},
		})
	}
	return nil
}

// applyTx deducts the fee and the attached amount, increments the nonce,
// then dispatches to the handler. The attached amount is held by the market
// from here on: handlers route it into offers, pending balances or the fee
// accumulator, and an abort rolls the debit back.
func (e *Executor) applyTx(block *core.Block, tx *core.Transaction) error {
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	}
	if tx.Fee > math.MaxUint64-tx.Amount {
		return fmt.Errorf("fee+amount overflow for tx %s", tx.ID)
	}
	if acc.Balance < tx.Fee+tx.Amount {
		return fmt.Errorf("insufficient balance: have %d need %d", acc.Balance, tx.Fee+tx.Amount)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Balance -= tx.Fee + tx.Amount
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return err
	}

	ctx := &Context{
		State:   e.state,
		Block:   block,
		Tx:      tx,
		Payer:   e.payer,
		Emitter: e.emitter,
	}
	return globalRegistry.Execute(tx.Type, ctx, tx.Payload)
}
