package vm_test

import (
	"errors"
	"testing"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/internal/testutil"

	_ "github.com/bazaarchain/bazaar/vm/modules/asset"
	_ "github.com/bazaarchain/bazaar/vm/modules/economy"
)

func TestPayMovesFunds(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.NewWallet(1000)
	bob := env.NewWallet(0)

	env.MustExec(alice, core.TxPay, 300, core.PayPayload{To: bob.Address()})

	if got := env.Balance(alice); got != 700 {
		t.Errorf("alice balance: got %d want 700", got)
	}
	if got := env.Balance(bob); got != 300 {
		t.Errorf("bob balance: got %d want 300", got)
	}
}

func TestPayRejects(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.NewWallet(1000)

	if err := env.ExecTx(alice, core.TxPay, 0, core.PayPayload{To: "someone"}); !errors.Is(err, core.ErrWrongPayment) {
		t.Errorf("zero pay: got %v", err)
	}
	if err := env.ExecTx(alice, core.TxPay, 10, core.PayPayload{To: alice.Address()}); !errors.Is(err, core.ErrSelfTransfer) {
		t.Errorf("self pay: got %v", err)
	}
	if err := env.ExecTx(alice, core.TxPay, 10, core.PayPayload{To: core.BurnAddress}); !errors.Is(err, core.ErrBurnAddressBlocked) {
		t.Errorf("pay to burn address: got %v", err)
	}
}

func TestNonceReplayFails(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.NewWallet(1000)
	bob := env.NewWallet(0)

	tx, err := alice.Pay(testutil.ChainID, bob.Address(), 100, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Exec.ExecuteTx(env.Block, tx); err != nil {
		t.Fatalf("first execution: %v", err)
	}
	if err := env.Exec.ExecuteTx(env.Block, tx); err == nil {
		t.Fatal("replayed transaction should fail")
	}
	if got := env.Balance(bob); got != 100 {
		t.Errorf("bob balance after replay attempt: got %d want 100", got)
	}
}

func TestInsufficientBalanceCoversAttachedAmount(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.NewWallet(50)
	bob := env.NewWallet(0)

	// Amount alone fits but fee pushes the total over the balance.
	tx, err := alice.NewTx(testutil.ChainID, core.TxPay, 0, 10, 45, core.PayPayload{To: bob.Address()})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Exec.ExecuteTx(env.Block, tx); err == nil {
		t.Fatal("overdraft should fail")
	}
	if got := env.Balance(alice); got != 50 {
		t.Errorf("alice balance after overdraft: got %d want 50", got)
	}
}

// A handler abort rolls back everything including the attached-amount debit.
func TestAbortRefundsAttachedAmount(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.NewWallet(1000)

	// Mint price is 100; attaching 50 aborts in the handler after the
	// executor has already debited the 50.
	err := env.ExecTx(alice, core.TxMint, 50, core.MintPayload{Metadata: "ipfs://QmAbort"})
	if !errors.Is(err, core.ErrWrongPayment) {
		t.Fatalf("got %v, want ErrWrongPayment", err)
	}
	if got := env.Balance(alice); got != 1000 {
		t.Errorf("balance after abort: got %d want 1000", got)
	}

	acc, _ := env.State.GetAccount(alice.Address())
	if acc.Nonce != 0 {
		t.Errorf("nonce after abort: got %d want 0", acc.Nonce)
	}
}

func TestUnknownTxTypeFails(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.NewWallet(1000)

	tx, err := alice.NewTx(testutil.ChainID, core.TxType("teleport"), 0, 0, 0, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Exec.ExecuteTx(env.Block, tx); err == nil {
		t.Fatal("unknown transaction type should fail")
	}
}
