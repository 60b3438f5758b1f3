// Package treasury implements the pull-payment withdrawals. Value only ever
// leaves the market through these two entry points, and the ledger entry
// being paid out is always cleared before the payout primitive runs, so a
// reentrant call during the payout observes nothing to withdraw.
package treasury

import (
	"encoding/json"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/events"
	"github.com/bazaarchain/bazaar/vm"
)

const (
	opWithdraw = "WITHDRAW"
	opFees     = "FEES"
)

func init() {
	vm.Register(core.TxWithdraw, handleWithdraw)
	vm.Register(core.TxWithdrawFees, handleWithdrawFees)
}

func handleWithdraw(ctx *vm.Context, _ json.RawMessage) error {
	if ctx.Tx.Amount != 0 {
		return core.Reject(opWithdraw, core.ErrPaymentNotAccepted).In("amount").Expected(0, ctx.Tx.Amount)
	}

	amount, err := ctx.State.GetPending(ctx.Tx.From)
	if err != nil {
		return err
	}
	if amount == 0 {
		return core.Reject(opWithdraw, core.ErrNothingPending)
	}

	// Delete BEFORE paying out.
	if err := ctx.State.DeletePending(ctx.Tx.From); err != nil {
		return err
	}
	if err := ctx.Payer.Pay(ctx.State, ctx.Tx.From, amount); err != nil {
		return err
	}

	ctx.Emit(events.EventWithdrawal, map[string]any{
		"recipient": ctx.Tx.From,
		"amount":    amount,
	})
	return nil
}

func handleWithdrawFees(ctx *vm.Context, _ json.RawMessage) error {
	if ctx.Tx.Amount != 0 {
		return core.Reject(opFees, core.ErrPaymentNotAccepted).In("amount").Expected(0, ctx.Tx.Amount)
	}

	m, err := ctx.State.GetMarket()
	if err != nil {
		return err
	}
	if ctx.Tx.From != m.Admin {
		return core.Reject(opFees, core.ErrNotAdmin)
	}
	if m.CollectedFees == 0 {
		return core.Reject(opFees, core.ErrNothingPending)
	}

	amount := m.CollectedFees
	m.CollectedFees = 0
	if err := ctx.State.SetMarket(m); err != nil {
		return err
	}
	if err := ctx.Payer.Pay(ctx.State, m.Admin, amount); err != nil {
		return err
	}

	ctx.Emit(events.EventFeesWithdrawn, map[string]any{
		"admin":  m.Admin,
		"amount": amount,
	})
	return nil
}
