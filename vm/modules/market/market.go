// Package market implements the listing workflow and direct purchase:
// list_for_sale, update_price, cancel_sale, buy.
package market

import (
	"encoding/json"
	"fmt"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/events"
	"github.com/bazaarchain/bazaar/vm"
)

const (
	opList   = "LIST"
	opUpdate = "UPDATE"
	opCancel = "CANCEL"
	opBuy    = "BUY"
)

func init() {
	vm.Register(core.TxListForSale, handleListForSale)
	vm.Register(core.TxUpdatePrice, handleUpdatePrice)
	vm.Register(core.TxCancelSale, handleCancelSale)
	vm.Register(core.TxBuy, handleBuy)
}

func handleListForSale(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ListForSalePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode list_for_sale payload: %w", err)
	}

	m, err := ctx.State.GetMarket()
	if err != nil {
		return fmt.Errorf("market state: %w", err)
	}
	if m.Paused {
		return core.Reject(opList, core.ErrPaused)
	}
	if ctx.Tx.Amount != 0 {
		return core.Reject(opList, core.ErrPaymentNotAccepted).In("amount").Expected(0, ctx.Tx.Amount)
	}
	if p.Price < m.MinSalePrice {
		return core.Reject(opList, core.ErrBelowFloor).In("price").Expected(m.MinSalePrice, p.Price)
	}

	a, err := ctx.State.GetAsset(p.AssetID)
	if err != nil {
		return core.Reject(opList, core.ErrNotFound).In("asset_id").Expected("asset", p.AssetID)
	}
	if a.Owner != ctx.Tx.From {
		return core.Reject(opList, core.ErrNotOwner)
	}
	if a.ForSale {
		return core.Reject(opList, core.ErrAlreadyListed)
	}

	a.Price = p.Price
	a.ForSale = true
	if err := ctx.State.SetAsset(a); err != nil {
		return err
	}

	ctx.Emit(events.EventListed, map[string]any{
		"asset_id": p.AssetID,
		"seller":   ctx.Tx.From,
		"price":    p.Price,
	})
	return nil
}

func handleUpdatePrice(ctx *vm.Context, payload json.RawMessage) error {
	var p core.UpdatePricePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode update_price payload: %w", err)
	}

	m, err := ctx.State.GetMarket()
	if err != nil {
		return fmt.Errorf("market state: %w", err)
	}
	if m.Paused {
		return core.Reject(opUpdate, core.ErrPaused)
	}
	if ctx.Tx.Amount != 0 {
		return core.Reject(opUpdate, core.ErrPaymentNotAccepted).In("amount").Expected(0, ctx.Tx.Amount)
	}
	if p.NewPrice < m.MinSalePrice {
		return core.Reject(opUpdate, core.ErrBelowFloor).In("new_price").Expected(m.MinSalePrice, p.NewPrice)
	}

	a, err := ctx.State.GetAsset(p.AssetID)
	if err != nil {
		return core.Reject(opUpdate, core.ErrNotFound).In("asset_id").Expected("asset", p.AssetID)
	}
	if a.Owner != ctx.Tx.From {
		return core.Reject(opUpdate, core.ErrNotOwner)
	}
	if !a.ForSale {
		return core.Reject(opUpdate, core.ErrNotListed)
	}

	oldPrice := a.Price
	a.Price = p.NewPrice
	if err := ctx.State.SetAsset(a); err != nil {
		return err
	}

	ctx.Emit(events.EventPriceUpdated, map[string]any{
		"asset_id":  p.AssetID,
		"old_price": oldPrice,
		"new_price": p.NewPrice,
	})
	return nil
}

// handleCancelSale is not paused-gated: owners may always delist.
func handleCancelSale(ctx *vm.Context, payload json.RawMessage) error {
	var p core.CancelSalePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode cancel_sale payload: %w", err)
	}

	if ctx.Tx.Amount != 0 {
		return core.Reject(opCancel, core.ErrPaymentNotAccepted).In("amount").Expected(0, ctx.Tx.Amount)
	}

	a, err := ctx.State.GetAsset(p.AssetID)
	if err != nil {
		return core.Reject(opCancel, core.ErrNotFound).In("asset_id").Expected("asset", p.AssetID)
	}
	if a.Owner != ctx.Tx.From {
		return core.Reject(opCancel, core.ErrNotOwner)
	}
	if !a.ForSale {
		return core.Reject(opCancel, core.ErrNotListed)
	}

	a.ForSale = false
	a.Price = 0
	if err := ctx.State.SetAsset(a); err != nil {
		return err
	}

	ctx.Emit(events.EventSaleCanceled, map[string]any{
		"asset_id": p.AssetID,
		"seller":   ctx.Tx.From,
	})
	return nil
}

func handleBuy(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BuyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode buy payload: %w", err)
	}

	m, err := ctx.State.GetMarket()
	if err != nil {
		return fmt.Errorf("market state: %w", err)
	}
	if m.Paused {
		return core.Reject(opBuy, core.ErrPaused)
	}

	a, err := ctx.State.GetAsset(p.AssetID)
	if err != nil {
		return core.Reject(opBuy, core.ErrNotFound).In("asset_id").Expected("asset", p.AssetID)
	}
	if !a.ForSale {
		return core.Reject(opBuy, core.ErrNotListed)
	}
	if ctx.Tx.From == a.Owner {
		return core.Reject(opBuy, core.ErrOwnAsset)
	}
	if ctx.Tx.Amount != a.Price {
		return core.Reject(opBuy, core.ErrWrongPayment).In("amount").Expected(a.Price, ctx.Tx.Amount)
	}

	seller, price := a.Owner, a.Price
	royalty, fee, sellerAmount, err := core.Settle(ctx.State, m, a, ctx.Tx.From, price)
	if err != nil {
		return err
	}

	ctx.Emit(events.EventSale, map[string]any{
		"asset_id":      p.AssetID,
		"seller":        seller,
		"buyer":         ctx.Tx.From,
		"price":         price,
		"royalty":       royalty,
		"fee":           fee,
		"seller_amount": sellerAmount,
	})
	return nil
}
