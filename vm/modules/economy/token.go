// Package economy implements the native funds transfer. The executor has
// already debited the attached amount from the sender before dispatch, so
// the handler only needs to credit the recipient.
package economy

import (
	"encoding/json"
	"fmt"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/events"
	"github.com/bazaarchain/bazaar/vm"
)

const opPay = "PAY"

func init() {
	vm.Register(core.TxPay, handlePay)
}

func handlePay(ctx *vm.Context, payload json.RawMessage) error {
	var p core.PayPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode pay payload: %w", err)
	}
	if ctx.Tx.Amount == 0 {
		return core.Reject(opPay, core.ErrWrongPayment).In("amount").Expected("> 0", 0)
	}
	if p.To == ctx.Tx.From {
		return core.Reject(opPay, core.ErrSelfTransfer).In("to")
	}
	if p.To == core.BurnAddress {
		return core.Reject(opPay, core.ErrBurnAddressBlocked).In("to")
	}

	to, err := ctx.State.GetAccount(p.To)
	if err != nil {
		return err
	}
	to.Address = p.To
	to.Balance += ctx.Tx.Amount
	if err := ctx.State.SetAccount(to); err != nil {
		return err
	}

	ctx.Emit(events.EventPay, map[string]any{
		"from":   ctx.Tx.From,
		"to":     p.To,
		"amount": ctx.Tx.Amount,
	})
	return nil
}
