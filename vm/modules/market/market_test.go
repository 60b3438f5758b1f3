package market_test

import (
	"errors"
	"testing"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/internal/testutil"

	_ "github.com/bazaarchain/bazaar/vm/modules/admin"
	_ "github.com/bazaarchain/bazaar/vm/modules/asset"
	_ "github.com/bazaarchain/bazaar/vm/modules/market"
)

func TestListAndCancelRoundTrip(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.NewWallet(1000)
	id := env.Mint(alice, "ipfs://QmListing", 0)

	env.MustExec(alice, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 200})
	a, _ := env.State.GetAsset(id)
	if !a.ForSale || a.Price != 200 {
		t.Fatalf("after list: for_sale=%v price=%d", a.ForSale, a.Price)
	}

	env.MustExec(alice, core.TxCancelSale, 0, core.CancelSalePayload{AssetID: id})
	a, _ = env.State.GetAsset(id)
	if a.ForSale || a.Price != 0 {
		t.Errorf("after cancel: for_sale=%v price=%d", a.ForSale, a.Price)
	}
}

func TestListRejects(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.NewWallet(1000)
	bob := env.NewWallet(1000)
	id := env.Mint(alice, "ipfs://QmListGuard", 0)

	if err := env.ExecTx(alice, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 9}); !errors.Is(err, core.ErrBelowFloor) {
		t.Errorf("below floor: got %v", err)
	}
	if err := env.ExecTx(bob, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 100}); !errors.Is(err, core.ErrNotOwner) {
		t.Errorf("non-owner: got %v", err)
	}
	if err := env.ExecTx(alice, core.TxListForSale, 0, core.ListForSalePayload{AssetID: 404, Price: 100}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing asset: got %v", err)
	}

	env.MustExec(alice, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 100})
	if err := env.ExecTx(alice, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 150}); !errors.Is(err, core.ErrAlreadyListed) {
		t.Errorf("double list: got %v", err)
	}
}

func TestUpdatePrice(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.NewWallet(1000)
	id := env.Mint(alice, "ipfs://QmReprice", 0)

	if err := env.ExecTx(alice, core.TxUpdatePrice, 0, core.UpdatePricePayload{AssetID: id, NewPrice: 300}); !errors.Is(err, core.ErrNotListed) {
		t.Errorf("update unlisted: got %v", err)
	}

	env.MustExec(alice, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 200})
	env.MustExec(alice, core.TxUpdatePrice, 0, core.UpdatePricePayload{AssetID: id, NewPrice: 300})

	a, _ := env.State.GetAsset(id)
	if a.Price != 300 {
		t.Errorf("price after update: got %d want 300", a.Price)
	}

	if err := env.ExecTx(alice, core.TxUpdatePrice, 0, core.UpdatePricePayload{AssetID: id, NewPrice: 5}); !errors.Is(err, core.ErrBelowFloor) {
		t.Errorf("update below floor: got %v", err)
	}
}

func TestBuySettles(t *testing.T) {
	env := testutil.NewEnv(t)
	author := env.NewWallet(1000)
	seller := env.NewWallet(1000)
	buyer := env.NewWallet(1000)

	id := env.Mint(author, "ipfs://QmSale", 10)
	env.MustExec(author, core.TxTransfer, 0, core.TransferPayload{AssetID: id, To: seller.Address()})
	env.MustExec(seller, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 100})

	feesBefore := env.Market().CollectedFees
	env.MustExec(buyer, core.TxBuy, 100, core.BuyPayload{AssetID: id})

	a, _ := env.State.GetAsset(id)
	if a.Owner != buyer.Address() || a.ForSale {
		t.Errorf("asset after buy: owner=%s for_sale=%v", a.Owner, a.ForSale)
	}
	if env.Balance(buyer) != 900 {
		t.Errorf("buyer balance: got %d want 900", env.Balance(buyer))
	}
	// 10% royalty to the author, 5% fee to the market, 85 to the seller.
	if got := env.Pending(author); got != 10 {
		t.Errorf("author royalty: got %d want 10", got)
	}
	if got := env.Pending(seller); got != 85 {
		t.Errorf("seller proceeds: got %d want 85", got)
	}
	if got := env.Market().CollectedFees - feesBefore; got != 5 {
		t.Errorf("platform fee: got %d want 5", got)
	}
}

func TestBuyRejects(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.NewWallet(1000)
	bob := env.NewWallet(1000)
	id := env.Mint(alice, "ipfs://QmBuyGuard", 0)

	if err := env.ExecTx(bob, core.TxBuy, 100, core.BuyPayload{AssetID: id}); !errors.Is(err, core.ErrNotListed) {
		t.Errorf("buy unlisted: got %v", err)
	}

	env.MustExec(alice, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 100})

	if err := env.ExecTx(alice, core.TxBuy, 100, core.BuyPayload{AssetID: id}); !errors.Is(err, core.ErrOwnAsset) {
		t.Errorf("buy own asset: got %v", err)
	}
	if err := env.ExecTx(bob, core.TxBuy, 99, core.BuyPayload{AssetID: id}); !errors.Is(err, core.ErrWrongPayment) {
		t.Errorf("underpayment: got %v", err)
	}
	if err := env.ExecTx(bob, core.TxBuy, 101, core.BuyPayload{AssetID: id}); !errors.Is(err, core.ErrWrongPayment) {
		t.Errorf("overpayment: got %v", err)
	}

	// Failed purchases leave the buyer's funds untouched.
	if env.Balance(bob) != 1000 {
		t.Errorf("bob balance after failed buys: got %d want 1000", env.Balance(bob))
	}
}

func TestPauseGatesTradingButNotExits(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.NewWallet(1000)
	bob := env.NewWallet(1000)
	id := env.Mint(alice, "ipfs://QmPaused", 0)
	env.MustExec(alice, core.TxListForSale, 0, core.ListForSalePayload{AssetID: id, Price: 100})

	env.MustExec(env.Admin, core.TxSetPause, 0, core.SetPausePayload{Paused: true})

	if err := env.ExecTx(bob, core.TxBuy, 100, core.BuyPayload{AssetID: id}); !errors.Is(err, core.ErrPaused) {
		t.Errorf("buy while paused: got %v", err)
	}
	if err := env.ExecTx(alice, core.TxUpdatePrice, 0, core.UpdatePricePayload{AssetID: id, NewPrice: 150}); !errors.Is(err, core.ErrPaused) {
		t.Errorf("update while paused: got %v", err)
	}
	// Delisting stays available.
	if err := env.ExecTx(alice, core.TxCancelSale, 0, core.CancelSalePayload{AssetID: id}); err != nil {
		t.Errorf("cancel while paused: %v", err)
	}
}
