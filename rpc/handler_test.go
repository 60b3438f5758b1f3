package rpc_test

import (
	"encoding/json"
	"testing"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/events"
	"github.com/bazaarchain/bazaar/indexer"
	"github.com/bazaarchain/bazaar/internal/testutil"
	"github.com/bazaarchain/bazaar/rpc"
	"github.com/bazaarchain/bazaar/wallet"
)

const chainID = "bazaar-test"

type fixture struct {
	handler *rpc.Handler
	mempool *core.Mempool
	state   core.State
	emitter *events.Emitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := testutil.NewStateDB()
	if err := state.SetMarket(&core.Market{
		Admin:              "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		PlatformFeePercent: 5,
		MintPrice:          100,
		MinSalePrice:       10,
		MaxMetadataLength:  500,
		NextAssetID:        2,
		CollectedFees:      42,
	}); err != nil {
		t.Fatal(err)
	}
	em := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), em)
	bc := core.NewBlockchain(testutil.NewMemBlockStore())
	mp := core.NewMempool()
	return &fixture{
		handler: rpc.NewHandler(bc, mp, state, idx, chainID),
		mempool: mp,
		state:   state,
		emitter: em,
	}
}

func call(t *testing.T, h *rpc.Handler, method string, params any) rpc.Response {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	return h.Dispatch(rpc.Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

func resultMap(t *testing.T, resp rpc.Response) map[string]any {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("rpc error: %d %s", resp.Error.Code, resp.Error.Message)
	}
	m, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("result is %T, want map", resp.Result)
	}
	return m
}

func TestGetAsset(t *testing.T) {
	f := newFixture(t)
	asset := &core.Asset{
		ID:       1,
		Metadata: "ipfs://QmExample",
		Author:   "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Owner:    "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}
	if err := f.state.SetAsset(asset); err != nil {
		t.Fatal(err)
	}

	resp := call(t, f.handler, "getAsset", map[string]any{"id": 1})
	if resp.Error != nil {
		t.Fatalf("getAsset: %v", resp.Error)
	}
	got, ok := resp.Result.(*core.Asset)
	if !ok {
		t.Fatalf("result is %T, want *core.Asset", resp.Result)
	}
	if got.Metadata != asset.Metadata || got.Owner != asset.Owner {
		t.Errorf("asset: got %+v", got)
	}
}

func TestGetAssetNotFound(t *testing.T) {
	f := newFixture(t)
	resp := call(t, f.handler, "getAsset", map[string]any{"id": 99})
	if resp.Error == nil || resp.Error.Code != rpc.CodeInvalidParams {
		t.Fatalf("expected invalid params error, got %+v", resp)
	}
}

func TestGetAssetRequiresID(t *testing.T) {
	f := newFixture(t)
	resp := call(t, f.handler, "getAsset", map[string]any{})
	if resp.Error == nil || resp.Error.Code != rpc.CodeInvalidParams {
		t.Fatalf("expected invalid params error, got %+v", resp)
	}
}

func TestGetPriceZeroWhenNotListed(t *testing.T) {
	f := newFixture(t)
	if err := f.state.SetAsset(&core.Asset{ID: 1, Owner: "bb", Price: 500, ForSale: false}); err != nil {
		t.Fatal(err)
	}
	m := resultMap(t, call(t, f.handler, "getPrice", map[string]any{"id": 1}))
	if price, _ := m["price"].(uint64); price != 0 {
		t.Errorf("price: got %v want 0 for unlisted asset", m["price"])
	}

	if err := f.state.SetAsset(&core.Asset{ID: 1, Owner: "bb", Price: 500, ForSale: true}); err != nil {
		t.Fatal(err)
	}
	m = resultMap(t, call(t, f.handler, "getPrice", map[string]any{"id": 1}))
	if price, _ := m["price"].(uint64); price != 500 {
		t.Errorf("price: got %v want 500 for listed asset", m["price"])
	}
}

func TestSaleViewsDefaultForUnknownAsset(t *testing.T) {
	f := newFixture(t)
	m := resultMap(t, call(t, f.handler, "isForSale", map[string]any{"id": 999}))
	if forSale, _ := m["for_sale"].(bool); forSale {
		t.Errorf("for_sale: got %v want false for unknown asset", m["for_sale"])
	}
	m = resultMap(t, call(t, f.handler, "getPrice", map[string]any{"id": 999}))
	if price, _ := m["price"].(uint64); price != 0 {
		t.Errorf("price: got %v want 0 for unknown asset", m["price"])
	}
}

func TestGetMarketConfig(t *testing.T) {
	f := newFixture(t)
	m := resultMap(t, call(t, f.handler, "getMarketConfig", nil))
	if fee, _ := m["platform_fee_percent"].(uint64); fee != 5 {
		t.Errorf("platform_fee_percent: got %v", m["platform_fee_percent"])
	}
	if fees, _ := m["collected_fees"].(uint64); fees != 42 {
		t.Errorf("collected_fees: got %v", m["collected_fees"])
	}
}

func TestGetAdminAndPaused(t *testing.T) {
	f := newFixture(t)
	m := resultMap(t, call(t, f.handler, "getAdmin", nil))
	if admin, _ := m["admin"].(string); admin != "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Errorf("admin: got %v", m["admin"])
	}
	m = resultMap(t, call(t, f.handler, "isPaused", nil))
	if paused, _ := m["paused"].(bool); paused {
		t.Error("paused: got true want false")
	}
}

func TestGetBalanceDefaultsToZero(t *testing.T) {
	f := newFixture(t)
	m := resultMap(t, call(t, f.handler, "getBalance", map[string]any{
		"address": "cccccccccccccccccccccccccccccccccccccccc",
	}))
	if bal, _ := m["balance"].(uint64); bal != 0 {
		t.Errorf("balance: got %v want 0", m["balance"])
	}
}

func TestSendTxAddsToMempool(t *testing.T) {
	f := newFixture(t)
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}
	tx, err := w.Pay(chainID, "dddddddddddddddddddddddddddddddddddddddd", 10, 0, 1)
	if err != nil {
		t.Fatal(err)
	}

	resp := call(t, f.handler, "sendTx", tx)
	if resp.Error != nil {
		t.Fatalf("sendTx: %v", resp.Error)
	}
	if f.mempool.Size() != 1 {
		t.Errorf("mempool size: got %d want 1", f.mempool.Size())
	}
	m, ok := resp.Result.(map[string]string)
	if !ok {
		t.Fatalf("result is %T", resp.Result)
	}
	if m["tx_id"] != tx.Hash() {
		t.Errorf("tx_id: got %s want %s", m["tx_id"], tx.Hash())
	}
}

func TestSendTxRejectsWrongChain(t *testing.T) {
	f := newFixture(t)
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}
	tx, err := w.Pay("other-chain", "dddddddddddddddddddddddddddddddddddddddd", 10, 0, 1)
	if err != nil {
		t.Fatal(err)
	}

	resp := call(t, f.handler, "sendTx", tx)
	if resp.Error == nil || resp.Error.Code != rpc.CodeInvalidParams {
		t.Fatalf("expected chain ID rejection, got %+v", resp)
	}
	if f.mempool.Size() != 0 {
		t.Errorf("mempool size: got %d want 0", f.mempool.Size())
	}
}

func TestSendTxRejectsTamperedSignature(t *testing.T) {
	f := newFixture(t)
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}
	tx, err := w.Pay(chainID, "dddddddddddddddddddddddddddddddddddddddd", 10, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	tx.Amount = 9999 // invalidates the signature

	resp := call(t, f.handler, "sendTx", tx)
	if resp.Error == nil {
		t.Fatal("expected error for tampered transaction")
	}
	if f.mempool.Size() != 0 {
		t.Errorf("mempool size: got %d want 0", f.mempool.Size())
	}
}

func TestUnknownMethod(t *testing.T) {
	f := newFixture(t)
	resp := call(t, f.handler, "teleport", nil)
	if resp.Error == nil || resp.Error.Code != rpc.CodeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp)
	}
}

func TestGetAssetsByOwnerUsesIndex(t *testing.T) {
	f := newFixture(t)
	owner := "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	f.emitter.Emit(events.Event{Type: events.EventMint, Data: map[string]any{
		"author": owner, "asset_id": uint64(0),
	}})

	resp := call(t, f.handler, "getAssetsByOwner", map[string]any{"owner": owner})
	if resp.Error != nil {
		t.Fatalf("getAssetsByOwner: %v", resp.Error)
	}
	ids, ok := resp.Result.([]uint64)
	if !ok {
		t.Fatalf("result is %T", resp.Result)
	}
	if len(ids) != 1 || ids[0] != 0 {
		t.Errorf("ids: got %v want [0]", ids)
	}
}
