// Package asset implements the registry transactions: mint, transfer, burn.
package asset

import (
	"encoding/json"
	"fmt"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/events"
	"github.com/bazaarchain/bazaar/vm"
)

const (
	opMint     = "MINT"
	opTransfer = "TRANSFER"
	opBurn     = "BURN"
)

func init() {
	vm.Register(core.TxMint, handleMint)
	vm.Register(core.TxTransfer, handleTransfer)
	vm.Register(core.TxBurn, handleBurn)
}

func handleMint(ctx *vm.Context, payload json.RawMessage) error {
	var p core.MintPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode mint payload: %w", err)
	}

	m, err := ctx.State.GetMarket()
	if err != nil {
		return fmt.Errorf("market state: %w", err)
	}
	if m.Paused {
		return core.Reject(opMint, core.ErrPaused)
	}
	if ctx.Tx.Amount != m.MintPrice {
		return core.Reject(opMint, core.ErrWrongPayment).In("amount").Expected(m.MintPrice, ctx.Tx.Amount)
	}
	if len(p.Metadata) == 0 {
		return core.Reject(opMint, core.ErrEmptyMetadata).In("metadata")
	}
	if len(p.Metadata) > m.MaxMetadataLength {
		return core.Reject(opMint, core.ErrMetadataTooLong).In("metadata").Expected(m.MaxMetadataLength, len(p.Metadata))
	}
	if p.RoyaltyPercent > core.MaxRoyaltyPercent {
		return core.Reject(opMint, core.ErrRoyaltyTooHigh).In("royalty_percent").Expected(core.MaxRoyaltyPercent, p.RoyaltyPercent)
	}
	if m.MaxSupply > 0 && m.NextAssetID >= m.MaxSupply {
		return core.Reject(opMint, core.ErrSupplyCap).In("max_supply").Expected(m.MaxSupply, m.NextAssetID)
	}

	id := m.NextAssetID
	a := &core.Asset{
		ID:             id,
		Metadata:       p.Metadata,
		Author:         ctx.Tx.From,
		Owner:          ctx.Tx.From,
		Price:          0,
		ForSale:        false,
		RoyaltyPercent: p.RoyaltyPercent,
		CreatedAt:      ctx.Now(),
	}
	if err := ctx.State.SetAsset(a); err != nil {
		return err
	}

	// Mint proceeds are platform revenue.
	m.NextAssetID++
	m.CollectedFees += ctx.Tx.Amount
	if err := ctx.State.SetMarket(m); err != nil {
		return err
	}

	ctx.Emit(events.EventMint, map[string]any{
		"asset_id": id,
		"author":   ctx.Tx.From,
		"metadata": p.Metadata,
		"royalty":  p.RoyaltyPercent,
	})
	return nil
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer payload: %w", err)
	}

	m, err := ctx.State.GetMarket()
	if err != nil {
		return fmt.Errorf("market state: %w", err)
	}
	if m.Paused {
		return core.Reject(opTransfer, core.ErrPaused)
	}
	if ctx.Tx.Amount != 0 {
		return core.Reject(opTransfer, core.ErrPaymentNotAccepted).In("amount").Expected(0, ctx.Tx.Amount)
	}
	if p.To == core.BurnAddress {
		return core.Reject(opTransfer, core.ErrBurnAddressBlocked).In("to")
	}
	if p.To == ctx.Tx.From {
		return core.Reject(opTransfer, core.ErrSelfTransfer).In("to")
	}

	a, err := ctx.State.GetAsset(p.AssetID)
	if err != nil {
		return core.Reject(opTransfer, core.ErrNotFound).In("asset_id").Expected("asset", p.AssetID)
	}
	if a.Owner != ctx.Tx.From {
		return core.Reject(opTransfer, core.ErrNotOwner)
	}
	if a.ForSale {
		return core.Reject(opTransfer, core.ErrAlreadyListed)
	}

	from := a.Owner
	a.Owner = p.To
	if err := ctx.State.SetAsset(a); err != nil {
		return err
	}

	ctx.Emit(events.EventTransfer, map[string]any{
		"asset_id": p.AssetID,
		"from":     from,
		"to":       p.To,
	})
	return nil
}

// handleBurn stays available while paused so owners can always exit. Every
// live offer on the asset is refunded to its bidder's pending balance before
// the offer set is cleared.
func handleBurn(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BurnPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode burn payload: %w", err)
	}

	if ctx.Tx.Amount != 0 {
		return core.Reject(opBurn, core.ErrPaymentNotAccepted).In("amount").Expected(0, ctx.Tx.Amount)
	}

	a, err := ctx.State.GetAsset(p.AssetID)
	if err != nil {
		return core.Reject(opBurn, core.ErrNotFound).In("asset_id").Expected("asset", p.AssetID)
	}
	if a.Owner != ctx.Tx.From {
		return core.Reject(opBurn, core.ErrNotOwner)
	}
	if a.ForSale {
		return core.Reject(opBurn, core.ErrAlreadyListed)
	}

	if err := ctx.State.DeleteAsset(p.AssetID); err != nil {
		return err
	}

	offers, err := ctx.State.OffersByAsset(p.AssetID)
	if err != nil {
		return err
	}
	for _, o := range offers {
		if err := core.CreditPending(ctx.State, o.Bidder, o.Amount); err != nil {
			return err
		}
		if err := ctx.State.DeleteOffer(o.AssetID, o.Bidder); err != nil {
			return err
		}
	}

	ctx.Emit(events.EventBurn, map[string]any{
		"asset_id":        p.AssetID,
		"owner":           ctx.Tx.From,
		"offers_refunded": len(offers),
	})
	return nil
}
