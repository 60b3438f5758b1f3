// Package offer implements the offer book: make_offer, cancel_offer,
// accept_offer. Offers are independent of listing state and are funded by
// the attached amount, which the market holds until the offer resolves.
package offer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/events"
	"github.com/bazaarchain/bazaar/vm"
)

const (
	opOffer       = "OFFER"
	opCancelOffer = "CANCEL_OFFER"
	opAccept      = "ACCEPT"

	// maxOfferDurationSeconds caps offers at ten years, keeping expires_at
	// well inside int64 unix nanos.
	maxOfferDurationSeconds int64 = 10 * 365 * 24 * 60 * 60
)

func init() {
	vm.Register(core.TxMakeOffer, handleMakeOffer)
	vm.Register(core.TxCancelOffer, handleCancelOffer)
	vm.Register(core.TxAcceptOffer, handleAcceptOffer)
}

func handleMakeOffer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.MakeOfferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode make_offer payload: %w", err)
	}

	m, err := ctx.State.GetMarket()
	if err != nil {
		return fmt.Errorf("market state: %w", err)
	}
	if m.Paused {
		return core.Reject(opOffer, core.ErrPaused)
	}
	if p.DurationSeconds <= 0 {
		return core.Reject(opOffer, core.ErrInvalidDuration).In("duration_seconds").Expected("> 0", p.DurationSeconds)
	}
	if p.DurationSeconds > maxOfferDurationSeconds {
		return core.Reject(opOffer, core.ErrInvalidDuration).In("duration_seconds").Expected(maxOfferDurationSeconds, p.DurationSeconds)
	}
	if ctx.Tx.Amount < m.MinSalePrice {
		return core.Reject(opOffer, core.ErrBelowFloor).In("amount").Expected(m.MinSalePrice, ctx.Tx.Amount)
	}

	a, err := ctx.State.GetAsset(p.AssetID)
	if err != nil {
		return core.Reject(opOffer, core.ErrNotFound).In("asset_id").Expected("asset", p.AssetID)
	}
	if ctx.Tx.From == a.Owner {
		return core.Reject(opOffer, core.ErrOwnAsset)
	}

	// A prior live offer from the same bidder is refunded before the new
	// one overwrites it: no silent loss, no stale entries.
	if prev, err := ctx.State.GetOffer(p.AssetID, ctx.Tx.From); err == nil {
		if err := core.CreditPending(ctx.State, ctx.Tx.From, prev.Amount); err != nil {
			return err
		}
	} else if !errors.Is(err, core.ErrNotFound) {
		return err
	}

	o := &core.Offer{
		AssetID:   p.AssetID,
		Bidder:    ctx.Tx.From,
		Amount:    ctx.Tx.Amount,
		ExpiresAt: ctx.Now() + p.DurationSeconds*int64(time.Second),
	}
	if err := ctx.State.SetOffer(o); err != nil {
		return err
	}

	ctx.Emit(events.EventOfferMade, map[string]any{
		"asset_id":   p.AssetID,
		"bidder":     ctx.Tx.From,
		"amount":     ctx.Tx.Amount,
		"expires_at": o.ExpiresAt,
	})
	return nil
}

// handleCancelOffer is not paused-gated: bidders may always recover funds.
func handleCancelOffer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.CancelOfferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode cancel_offer payload: %w", err)
	}

	if ctx.Tx.Amount != 0 {
		return core.Reject(opCancelOffer, core.ErrPaymentNotAccepted).In("amount").Expected(0, ctx.Tx.Amount)
	}

	o, err := ctx.State.GetOffer(p.AssetID, ctx.Tx.From)
	if err != nil {
		return core.Reject(opCancelOffer, core.ErrNoOffer).In("asset_id").Expected("offer", p.AssetID)
	}
	if err := ctx.State.DeleteOffer(p.AssetID, ctx.Tx.From); err != nil {
		return err
	}
	if err := core.CreditPending(ctx.State, ctx.Tx.From, o.Amount); err != nil {
		return err
	}

	ctx.Emit(events.EventOfferCancelled, map[string]any{
		"asset_id": p.AssetID,
		"bidder":   ctx.Tx.From,
		"refunded": o.Amount,
	})
	return nil
}

// handleAcceptOffer settles exactly like a direct purchase with the offer
// amount as the price. The listing state is cleared regardless of whether
// the asset was listed; other bidders' offers stay live.
//
// The offer amount is deliberately NOT rechecked against the current
// min_sale_price: the floor binds at offer creation only.
func handleAcceptOffer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.AcceptOfferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode accept_offer payload: %w", err)
	}

	m, err := ctx.State.GetMarket()
	if err != nil {
		return fmt.Errorf("market state: %w", err)
	}
	if m.Paused {
		return core.Reject(opAccept, core.ErrPaused)
	}
	if ctx.Tx.Amount != 0 {
		return core.Reject(opAccept, core.ErrPaymentNotAccepted).In("amount").Expected(0, ctx.Tx.Amount)
	}

	a, err := ctx.State.GetAsset(p.AssetID)
	if err != nil {
		return core.Reject(opAccept, core.ErrNotFound).In("asset_id").Expected("asset", p.AssetID)
	}
	if a.Owner != ctx.Tx.From {
		return core.Reject(opAccept, core.ErrNotOwner)
	}

	o, err := ctx.State.GetOffer(p.AssetID, p.Bidder)
	if err != nil {
		return core.Reject(opAccept, core.ErrNoOffer).In("bidder").Expected("offer", p.Bidder)
	}
	if ctx.Now() >= o.ExpiresAt {
		return core.Reject(opAccept, core.ErrOfferExpired).In("expires_at").Expected(o.ExpiresAt, ctx.Now())
	}

	seller := a.Owner
	royalty, fee, sellerAmount, err := core.Settle(ctx.State, m, a, p.Bidder, o.Amount)
	if err != nil {
		return err
	}
	if err := ctx.State.DeleteOffer(p.AssetID, p.Bidder); err != nil {
		return err
	}

	ctx.Emit(events.EventOfferAccepted, map[string]any{
		"asset_id":      p.AssetID,
		"seller":        seller,
		"buyer":         p.Bidder,
		"price":         o.Amount,
		"royalty":       royalty,
		"fee":           fee,
		"seller_amount": sellerAmount,
	})
	return nil
}
