// Package admin implements the privileged operations: the pause gate, the
// two-step admin handover and configuration updates. Every setter takes
// effect for subsequent transactions only, never retroactively.
package admin

import (
	"encoding/json"
	"fmt"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/events"
	"github.com/bazaarchain/bazaar/vm"
)

const (
	opPause = "PAUSE"
	opAdmin = "ADMIN"
	opFee   = "FEE"
	opPrice = "PRICE"
)

func init() {
	vm.Register(core.TxSetPause, handleSetPause)
	vm.Register(core.TxProposeAdmin, handleProposeAdmin)
	vm.Register(core.TxAcceptAdmin, handleAcceptAdmin)
	vm.Register(core.TxCancelAdminChange, handleCancelAdminChange)
	vm.Register(core.TxUpdatePlatformFee, handleUpdatePlatformFee)
	vm.Register(core.TxUpdateMintPrice, handleUpdateMintPrice)
	vm.Register(core.TxUpdateMinSalePrice, handleUpdateMinSalePrice)
}

// adminOnly loads the market and verifies the caller. Shared guard for every
// handler below except accept_admin, whose caller is the proposed admin.
func adminOnly(ctx *vm.Context, op string) (*core.Market, error) {
	if ctx.Tx.Amount != 0 {
		return nil, core.Reject(op, core.ErrPaymentNotAccepted).In("amount").Expected(0, ctx.Tx.Amount)
	}
	m, err := ctx.State.GetMarket()
	if err != nil {
		return nil, fmt.Errorf("market state: %w", err)
	}
	if ctx.Tx.From != m.Admin {
		return nil, core.Reject(op, core.ErrNotAdmin)
	}
	return m, nil
}

func handleSetPause(ctx *vm.Context, payload json.RawMessage) error {
	var p core.SetPausePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode set_pause payload: %w", err)
	}
	m, err := adminOnly(ctx, opPause)
	if err != nil {
		return err
	}
	m.Paused = p.Paused
	if err := ctx.State.SetMarket(m); err != nil {
		return err
	}
	ctx.Emit(events.EventPauseChanged, map[string]any{"paused": p.Paused})
	return nil
}

func handleProposeAdmin(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ProposeAdminPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode propose_admin payload: %w", err)
	}
	m, err := adminOnly(ctx, opAdmin)
	if err != nil {
		return err
	}
	if p.NewAdmin == m.Admin {
		return core.Reject(opAdmin, core.ErrSameAdmin).In("new_admin")
	}
	m.PendingAdmin = p.NewAdmin
	if err := ctx.State.SetMarket(m); err != nil {
		return err
	}
	ctx.Emit(events.EventAdminProposed, map[string]any{"proposed": p.NewAdmin})
	return nil
}

func handleAcceptAdmin(ctx *vm.Context, _ json.RawMessage) error {
	if ctx.Tx.Amount != 0 {
		return core.Reject(opAdmin, core.ErrPaymentNotAccepted).In("amount").Expected(0, ctx.Tx.Amount)
	}
	m, err := ctx.State.GetMarket()
	if err != nil {
		return fmt.Errorf("market state: %w", err)
	}
	if m.PendingAdmin == "" {
		return core.Reject(opAdmin, core.ErrNoPendingAdmin)
	}
	if ctx.Tx.From != m.PendingAdmin {
		return core.Reject(opAdmin, core.ErrNotProposedAdmin)
	}

	oldAdmin := m.Admin
	m.Admin = m.PendingAdmin
	m.PendingAdmin = ""
	if err := ctx.State.SetMarket(m); err != nil {
		return err
	}
	ctx.Emit(events.EventAdminChanged, map[string]any{
		"old_admin": oldAdmin,
		"new_admin": m.Admin,
	})
	return nil
}

func handleCancelAdminChange(ctx *vm.Context, _ json.RawMessage) error {
	m, err := adminOnly(ctx, opAdmin)
	if err != nil {
		return err
	}
	m.PendingAdmin = ""
	if err := ctx.State.SetMarket(m); err != nil {
		return err
	}
	ctx.Emit(events.EventAdminChangeCancel, map[string]any{"cancelled": true})
	return nil
}

func handleUpdatePlatformFee(ctx *vm.Context, payload json.RawMessage) error {
	var p core.UpdatePlatformFeePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode update_platform_fee payload: %w", err)
	}
	m, err := adminOnly(ctx, opFee)
	if err != nil {
		return err
	}
	if p.NewFeePercent > core.MaxPlatformFeePercent {
		return core.Reject(opFee, core.ErrFeeTooHigh).In("new_fee_percent").Expected(core.MaxPlatformFeePercent, p.NewFeePercent)
	}
	m.PlatformFeePercent = p.NewFeePercent
	if err := ctx.State.SetMarket(m); err != nil {
		return err
	}
	ctx.Emit(events.EventFeeUpdated, map[string]any{"new_fee_percent": p.NewFeePercent})
	return nil
}

func handleUpdateMintPrice(ctx *vm.Context, payload json.RawMessage) error {
	var p core.UpdateMintPricePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode update_mint_price payload: %w", err)
	}
	m, err := adminOnly(ctx, opPrice)
	if err != nil {
		return err
	}
	m.MintPrice = p.NewPrice
	if err := ctx.State.SetMarket(m); err != nil {
		return err
	}
	ctx.Emit(events.EventMintPriceUpdated, map[string]any{"new_price": p.NewPrice})
	return nil
}

func handleUpdateMinSalePrice(ctx *vm.Context, payload json.RawMessage) error {
	var p core.UpdateMinSalePricePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode update_min_sale_price payload: %w", err)
	}
	m, err := adminOnly(ctx, opPrice)
	if err != nil {
		return err
	}
	m.MinSalePrice = p.NewPrice
	if err := ctx.State.SetMarket(m); err != nil {
		return err
	}
	ctx.Emit(events.EventMinSalePriceUpdate, map[string]any{"new_price": p.NewPrice})
	return nil
}
