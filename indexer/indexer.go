// Package indexer maintains secondary indexes over committed blocks so
// clients can query assets by owner without scanning full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/events"
	"github.com/bazaarchain/bazaar/storage"
)

const prefixOwnerAssets = "idx:owner:asset:"

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Indexer backed by db and subscribes to the events that
// change asset ownership.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, emitter: emitter}
	emitter.Subscribe(events.EventMint, idx.onMint)
	emitter.Subscribe(events.EventTransfer, idx.onOwnerChange)
	emitter.Subscribe(events.EventBurn, idx.onBurn)
	emitter.Subscribe(events.EventSale, idx.onSale)
	emitter.Subscribe(events.EventOfferAccepted, idx.onSale)
	return idx
}

// GetAssetsByOwner returns all asset IDs owned by the given address.
func (idx *Indexer) GetAssetsByOwner(owner string) ([]uint64, error) {
	return idx.getList(prefixOwnerAssets + owner)
}

// ---- event handlers ----

func (idx *Indexer) onMint(ev events.Event) {
	author, _ := ev.Data["author"].(string)
	id, ok := ev.Data["asset_id"].(uint64)
	if author == "" || !ok {
		return
	}
	_ = idx.addToList(prefixOwnerAssets+author, id)
}

func (idx *Indexer) onOwnerChange(ev events.Event) {
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	id, ok := ev.Data["asset_id"].(uint64)
	if !ok || from == "" || to == "" {
		return
	}
	if err := idx.removeFromList(prefixOwnerAssets+from, id); err != nil {
		return
	}
	_ = idx.addToList(prefixOwnerAssets+to, id)
}

func (idx *Indexer) onBurn(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	id, ok := ev.Data["asset_id"].(uint64)
	if owner == "" || !ok {
		return
	}
	_ = idx.removeFromList(prefixOwnerAssets+owner, id)
}

func (idx *Indexer) onSale(ev events.Event) {
	seller, _ := ev.Data["seller"].(string)
	buyer, _ := ev.Data["buyer"].(string)
	id, ok := ev.Data["asset_id"].(uint64)
	if !ok || seller == "" || buyer == "" {
		return
	}
	if err := idx.removeFromList(prefixOwnerAssets+seller, id); err != nil {
		return
	}
	_ = idx.addToList(prefixOwnerAssets+buyer, id)
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]uint64, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key string, value uint64) error {
	ids, _ := idx.getList(key)
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) removeFromList(key string, value uint64) error {
	ids, _ := idx.getList(key)
	filtered := ids[:0]
	for _, id := range ids {
		if id != value {
			filtered = append(filtered, id)
		}
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
