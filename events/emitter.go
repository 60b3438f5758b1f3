// Package events delivers structured notifications about committed state
// changes to off-chain observers: indexers, the event archive, metrics.
package events

import (
	"log/slog"
	"sync"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockCommit EventType = "block_commit"
	EventTxExecuted  EventType = "tx_executed"
	EventPay         EventType = "pay"

	EventMint     EventType = "mint"
	EventTransfer EventType = "transfer"
	EventBurn     EventType = "burn"

	EventListed       EventType = "listed"
	EventPriceUpdated EventType = "price_updated"
	EventSaleCanceled EventType = "sale_canceled"
	EventSale         EventType = "sale"

	EventOfferMade      EventType = "offer_made"
	EventOfferCancelled EventType = "offer_cancelled"
	EventOfferAccepted  EventType = "offer_accepted"

	EventWithdrawal    EventType = "withdrawal"
	EventFeesWithdrawn EventType = "fees_withdrawn"

	EventPauseChanged       EventType = "pause_changed"
	EventAdminProposed      EventType = "admin_proposed"
	EventAdminChanged       EventType = "admin_changed"
	EventAdminChangeCancel  EventType = "admin_change_cancelled"
	EventFeeUpdated         EventType = "fee_updated"
	EventMintPriceUpdated   EventType = "mint_price_updated"
	EventMinSalePriceUpdate EventType = "min_sale_price_updated"
)

// Event carries a typed payload emitted after a state change.
type Event struct {
	Type        EventType      `json:"type"`
	TxID        string         `json:"tx_id"`
	BlockHeight int64          `json:"block_height"`
	Data        map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every event type. Used by subscribers that
// mirror the whole stream, like the archive and the metrics collector.
func (e *Emitter) SubscribeAll(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, h)
}

// Emit delivers ev synchronously to all matching subscribers.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the node or halt block production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.handlers[ev.Type])+len(e.all))
	handlers = append(handlers, e.handlers[ev.Type]...)
	handlers = append(handlers, e.all...)
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event handler panicked", "type", ev.Type, "panic", r)
				}
			}()
			h(ev)
		}()
	}
}
