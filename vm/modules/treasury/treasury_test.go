package treasury_test

import (
	"errors"
	"testing"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/internal/testutil"
	"github.com/bazaarchain/bazaar/vm"

	_ "github.com/bazaarchain/bazaar/vm/modules/asset"
	_ "github.com/bazaarchain/bazaar/vm/modules/market"
	_ "github.com/bazaarchain/bazaar/vm/modules/treasury"
)

func TestWithdraw(t *testing.T) {
	env := testutil.NewEnv(t)
	seller := env.NewWallet(1000)
	buyer := env.NewWallet(1000)
	id := env.Mint(seller, "ipfs://QmWithdraw", 0)
	env.MustExec(seller, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 100})
	env.MustExec(buyer, core.TxBuy, 100, core.BuyPayload{AssetID: id})

	// 5% platform fee, no royalty split since seller is the author, so a
	// single 95 pending entry.
	if got := env.Pending(seller); got != 95 {
		t.Fatalf("pending before withdraw: got %d want 95", got)
	}
	balanceBefore := env.Balance(seller)

	env.MustExec(seller, core.TxWithdraw, 0, struct{}{})

	if got := env.Pending(seller); got != 0 {
		t.Errorf("pending after withdraw: got %d want 0", got)
	}
	if got := env.Balance(seller); got != balanceBefore+95 {
		t.Errorf("balance after withdraw: got %d want %d", got, balanceBefore+95)
	}

	// Withdrawing again finds nothing.
	if err := env.ExecTx(seller, core.TxWithdraw, 0, struct{}{}); !errors.Is(err, core.ErrNothingPending) {
		t.Errorf("second withdraw: got %v, want ErrNothingPending", err)
	}
}

// probePayer records the pending balance visible at payout time.
type probePayer struct {
	seenPending []uint64
	inner       vm.Payer
}

func (p *probePayer) Pay(s core.State, to string, amount uint64) error {
	pending, err := s.GetPending(to)
	if err != nil {
		return err
	}
	p.seenPending = append(p.seenPending, pending)
	return p.inner.Pay(s, to, amount)
}

// The ledger entry must be cleared before the payout primitive runs, so a
// reentrant withdrawal during the payout would find nothing.
func TestWithdrawClearsEntryBeforePayout(t *testing.T) {
	env := testutil.NewEnv(t)
	probe := &probePayer{inner: vm.AccountPayer{}}
	env.Exec.SetPayer(probe)

	seller := env.NewWallet(1000)
	buyer := env.NewWallet(1000)
	id := env.Mint(seller, "ipfs://QmReentry", 0)
	env.MustExec(seller, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 100})
	env.MustExec(buyer, core.TxBuy, 100, core.BuyPayload{AssetID: id})

	env.MustExec(seller, core.TxWithdraw, 0, struct{}{})

	if len(probe.seenPending) != 1 {
		t.Fatalf("payer calls: got %d want 1", len(probe.seenPending))
	}
	if probe.seenPending[0] != 0 {
		t.Errorf("pending visible during payout: got %d want 0", probe.seenPending[0])
	}
}

type failingPayer struct{}

func (failingPayer) Pay(core.State, string, uint64) error {
	return errors.New("transfer backend unavailable")
}

// A failed payout aborts the transaction and the rollback restores the
// pending entry: the funds are never lost.
func TestWithdrawPayoutFailureRollsBack(t *testing.T) {
	env := testutil.NewEnv(t)
	seller := env.NewWallet(1000)
	buyer := env.NewWallet(1000)
	id := env.Mint(seller, "ipfs://QmRollback", 0)
	env.MustExec(seller, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 100})
	env.MustExec(buyer, core.TxBuy, 100, core.BuyPayload{AssetID: id})

	env.Exec.SetPayer(failingPayer{})
	balanceBefore := env.Balance(seller)

	if err := env.ExecTx(seller, core.TxWithdraw, 0, struct{}{}); err == nil {
		t.Fatal("withdraw should fail when the payout fails")
	}

	if got := env.Pending(seller); got != 95 {
		t.Errorf("pending after failed payout: got %d want 95", got)
	}
	if got := env.Balance(seller); got != balanceBefore {
		t.Errorf("balance after failed payout: got %d want %d", got, balanceBefore)
	}
}

func TestWithdrawFees(t *testing.T) {
	env := testutil.NewEnv(t)
	seller := env.NewWallet(1000)
	buyer := env.NewWallet(1000)
	id := env.Mint(seller, "ipfs://QmFees", 0)
	env.MustExec(seller, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 100})
	env.MustExec(buyer, core.TxBuy, 100, core.BuyPayload{AssetID: id})

	// Mint price 100 plus 5 sale fee.
	if got := env.Market().CollectedFees; got != 105 {
		t.Fatalf("collected fees: got %d want 105", got)
	}

	if err := env.ExecTx(seller, core.TxWithdrawFees, 0, struct{}{}); !errors.Is(err, core.ErrNotAdmin) {
		t.Errorf("non-admin fee withdrawal: got %v", err)
	}

	adminBefore := env.Balance(env.Admin)
	env.MustExec(env.Admin, core.TxWithdrawFees, 0, struct{}{})

	if got := env.Market().CollectedFees; got != 0 {
		t.Errorf("fees after withdrawal: got %d want 0", got)
	}
	if got := env.Balance(env.Admin); got != adminBefore+105 {
		t.Errorf("admin balance: got %d want %d", got, adminBefore+105)
	}

	if err := env.ExecTx(env.Admin, core.TxWithdrawFees, 0, struct{}{}); !errors.Is(err, core.ErrNothingPending) {
		t.Errorf("empty fee withdrawal: got %v", err)
	}
}
