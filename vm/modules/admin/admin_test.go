package admin_test

import (
	"errors"
	"testing"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/internal/testutil"

	_ "github.com/bazaarchain/bazaar/vm/modules/admin"
	_ "github.com/bazaarchain/bazaar/vm/modules/asset"
)

func TestSetPause(t *testing.T) {
	env := testutil.NewEnv(t)
	creator := env.NewWallet(1000)

	env.MustExec(env.Admin, core.TxSetPause, 0, core.SetPausePayload{Paused: true})
	if !env.Market().Paused {
		t.Fatal("market should be paused")
	}

	err := env.ExecTx(creator, core.TxMint, env.Market().MintPrice, core.MintPayload{Metadata: "ipfs://QmGated"})
	if !errors.Is(err, core.ErrPaused) {
		t.Errorf("mint while paused: got %v", err)
	}

	env.MustExec(env.Admin, core.TxSetPause, 0, core.SetPausePayload{Paused: false})
	if err := env.ExecTx(creator, core.TxMint, env.Market().MintPrice, core.MintPayload{Metadata: "ipfs://QmGated"}); err != nil {
		t.Errorf("mint after unpause: %v", err)
	}
}

func TestAdminGating(t *testing.T) {
	env := testutil.NewEnv(t)
	stranger := env.NewWallet(1000)

	cases := []struct {
		name    string
		typ     core.TxType
		payload any
	}{
		{"set_pause", core.TxSetPause, core.SetPausePayload{Paused: true}},
		{"propose_admin", core.TxProposeAdmin, core.ProposeAdminPayload{NewAdmin: stranger.Address()}},
		{"cancel_admin_change", core.TxCancelAdminChange, struct{}{}},
		{"update_platform_fee", core.TxUpdatePlatformFee, core.UpdatePlatformFeePayload{NewFeePercent: 10}},
		{"update_mint_price", core.TxUpdateMintPrice, core.UpdateMintPricePayload{NewPrice: 1}},
		{"update_min_sale_price", core.TxUpdateMinSalePrice, core.UpdateMinSalePricePayload{NewPrice: 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := env.ExecTx(stranger, c.typ, 0, c.payload); !errors.Is(err, core.ErrNotAdmin) {
				t.Errorf("got %v, want ErrNotAdmin", err)
			}
		})
	}
}

func TestAdminHandover(t *testing.T) {
	env := testutil.NewEnv(t)
	successor := env.NewWallet(1000)
	impostor := env.NewWallet(1000)

	// No handover in progress yet.
	if err := env.ExecTx(successor, core.TxAcceptAdmin, 0, struct{}{}); !errors.Is(err, core.ErrNoPendingAdmin) {
		t.Errorf("accept without proposal: got %v", err)
	}

	if err := env.ExecTx(env.Admin, core.TxProposeAdmin, 0, core.ProposeAdminPayload{NewAdmin: env.Admin.Address()}); !errors.Is(err, core.ErrSameAdmin) {
		t.Errorf("propose self: got %v", err)
	}

	env.MustExec(env.Admin, core.TxProposeAdmin, 0, core.ProposeAdminPayload{NewAdmin: successor.Address()})
	if env.Market().PendingAdmin != successor.Address() {
		t.Fatal("pending admin not recorded")
	}
	// The proposal changes nothing until accepted.
	if env.Market().Admin != env.Admin.Address() {
		t.Fatal("admin changed before acceptance")
	}

	if err := env.ExecTx(impostor, core.TxAcceptAdmin, 0, struct{}{}); !errors.Is(err, core.ErrNotProposedAdmin) {
		t.Errorf("impostor accept: got %v", err)
	}

	env.MustExec(successor, core.TxAcceptAdmin, 0, struct{}{})
	m := env.Market()
	if m.Admin != successor.Address() {
		t.Errorf("admin after handover: got %s want %s", m.Admin, successor.Address())
	}
	if m.PendingAdmin != "" {
		t.Error("pending admin should be cleared")
	}

	// The old admin has lost its powers.
	if err := env.ExecTx(env.Admin, core.TxSetPause, 0, core.SetPausePayload{Paused: true}); !errors.Is(err, core.ErrNotAdmin) {
		t.Errorf("old admin after handover: got %v", err)
	}
}

func TestCancelAdminChange(t *testing.T) {
	env := testutil.NewEnv(t)
	successor := env.NewWallet(1000)

	env.MustExec(env.Admin, core.TxProposeAdmin, 0, core.ProposeAdminPayload{NewAdmin: successor.Address()})
	env.MustExec(env.Admin, core.TxCancelAdminChange, 0, struct{}{})

	if env.Market().PendingAdmin != "" {
		t.Error("pending admin should be cleared")
	}
	if err := env.ExecTx(successor, core.TxAcceptAdmin, 0, struct{}{}); !errors.Is(err, core.ErrNoPendingAdmin) {
		t.Errorf("accept after cancel: got %v", err)
	}
}

func TestUpdatePlatformFee(t *testing.T) {
	env := testutil.NewEnv(t)

	if err := env.ExecTx(env.Admin, core.TxUpdatePlatformFee, 0, core.UpdatePlatformFeePayload{NewFeePercent: 21}); !errors.Is(err, core.ErrFeeTooHigh) {
		t.Errorf("fee above cap: got %v", err)
	}

	env.MustExec(env.Admin, core.TxUpdatePlatformFee, 0, core.UpdatePlatformFeePayload{NewFeePercent: 20})
	if got := env.Market().PlatformFeePercent; got != 20 {
		t.Errorf("fee: got %d want 20", got)
	}
}

func TestUpdatePrices(t *testing.T) {
	env := testutil.NewEnv(t)
	creator := env.NewWallet(1000)

	env.MustExec(env.Admin, core.TxUpdateMintPrice, 0, core.UpdateMintPricePayload{NewPrice: 250})
	env.MustExec(env.Admin, core.TxUpdateMinSalePrice, 0, core.UpdateMinSalePricePayload{NewPrice: 40})

	m := env.Market()
	if m.MintPrice != 250 || m.MinSalePrice != 40 {
		t.Fatalf("prices: mint=%d floor=%d", m.MintPrice, m.MinSalePrice)
	}

	// The old mint price no longer settles.
	if err := env.ExecTx(creator, core.TxMint, 100, core.MintPayload{Metadata: "ipfs://QmRepriced"}); !errors.Is(err, core.ErrWrongPayment) {
		t.Errorf("mint at stale price: got %v", err)
	}
	if err := env.ExecTx(creator, core.TxMint, 250, core.MintPayload{Metadata: "ipfs://QmRepriced"}); err != nil {
		t.Errorf("mint at new price: %v", err)
	}
}
