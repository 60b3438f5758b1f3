package indexer_test

import (
	"testing"

	"github.com/bazaarchain/bazaar/events"
	"github.com/bazaarchain/bazaar/indexer"
	"github.com/bazaarchain/bazaar/internal/testutil"
)

const (
	alice = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob   = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func newIndexer(t *testing.T) (*indexer.Indexer, *events.Emitter) {
	t.Helper()
	em := events.NewEmitter()
	return indexer.New(testutil.NewMemDB(), em), em
}

func ownedBy(t *testing.T, idx *indexer.Indexer, owner string) []uint64 {
	t.Helper()
	ids, err := idx.GetAssetsByOwner(owner)
	if err != nil {
		t.Fatalf("GetAssetsByOwner(%s): %v", owner, err)
	}
	return ids
}

func TestMintAddsToOwnerIndex(t *testing.T) {
	idx, em := newIndexer(t)

	em.Emit(events.Event{Type: events.EventMint, Data: map[string]any{
		"author": alice, "asset_id": uint64(1),
	}})
	em.Emit(events.Event{Type: events.EventMint, Data: map[string]any{
		"author": alice, "asset_id": uint64(2),
	}})

	ids := ownedBy(t, idx, alice)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("alice assets: got %v want [1 2]", ids)
	}
	if ids := ownedBy(t, idx, bob); len(ids) != 0 {
		t.Errorf("bob assets: got %v want empty", ids)
	}
}

func TestTransferMovesBetweenOwners(t *testing.T) {
	idx, em := newIndexer(t)

	em.Emit(events.Event{Type: events.EventMint, Data: map[string]any{
		"author": alice, "asset_id": uint64(7),
	}})
	em.Emit(events.Event{Type: events.EventTransfer, Data: map[string]any{
		"from": alice, "to": bob, "asset_id": uint64(7),
	}})

	if ids := ownedBy(t, idx, alice); len(ids) != 0 {
		t.Errorf("alice assets after transfer: got %v want empty", ids)
	}
	if ids := ownedBy(t, idx, bob); len(ids) != 1 || ids[0] != 7 {
		t.Errorf("bob assets after transfer: got %v want [7]", ids)
	}
}

func TestSaleAndOfferAcceptMoveOwnership(t *testing.T) {
	idx, em := newIndexer(t)

	em.Emit(events.Event{Type: events.EventMint, Data: map[string]any{
		"author": alice, "asset_id": uint64(3),
	}})
	em.Emit(events.Event{Type: events.EventMint, Data: map[string]any{
		"author": alice, "asset_id": uint64(4),
	}})
	em.Emit(events.Event{Type: events.EventSale, Data: map[string]any{
		"seller": alice, "buyer": bob, "asset_id": uint64(3),
	}})
	em.Emit(events.Event{Type: events.EventOfferAccepted, Data: map[string]any{
		"seller": alice, "buyer": bob, "asset_id": uint64(4),
	}})

	if ids := ownedBy(t, idx, alice); len(ids) != 0 {
		t.Errorf("alice assets: got %v want empty", ids)
	}
	if ids := ownedBy(t, idx, bob); len(ids) != 2 {
		t.Errorf("bob assets: got %v want two entries", ids)
	}
}

func TestBurnRemovesFromIndex(t *testing.T) {
	idx, em := newIndexer(t)

	em.Emit(events.Event{Type: events.EventMint, Data: map[string]any{
		"author": alice, "asset_id": uint64(9),
	}})
	em.Emit(events.Event{Type: events.EventBurn, Data: map[string]any{
		"owner": alice, "asset_id": uint64(9),
	}})

	if ids := ownedBy(t, idx, alice); len(ids) != 0 {
		t.Errorf("alice assets after burn: got %v want empty", ids)
	}
}

func TestMalformedEventIgnored(t *testing.T) {
	idx, em := newIndexer(t)

	// asset_id of the wrong type and a missing author must both be dropped.
	em.Emit(events.Event{Type: events.EventMint, Data: map[string]any{
		"author": alice, "asset_id": "not-a-number",
	}})
	em.Emit(events.Event{Type: events.EventMint, Data: map[string]any{
		"asset_id": uint64(5),
	}})

	if ids := ownedBy(t, idx, alice); len(ids) != 0 {
		t.Errorf("alice assets: got %v want empty", ids)
	}
}
