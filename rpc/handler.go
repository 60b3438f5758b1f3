package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/indexer"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	bc      *core.Blockchain
	mempool *core.Mempool
	state   core.State
	indexer *indexer.Indexer
	chainID string // expected chain_id; used to reject cross-chain replay transactions
}

// NewHandler creates an RPC Handler.
func NewHandler(bc *core.Blockchain, mempool *core.Mempool, state core.State, idx *indexer.Indexer, chainID string) *Handler {
	return &Handler{bc: bc, mempool: mempool, state: state, indexer: idx, chainID: chainID}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getBlockHeight":
		return okResponse(req.ID, h.bc.Height())

	case "getBlock":
		return h.getBlock(req)

	case "getBalance":
		return h.getBalance(req)

	case "getAsset":
		return h.getAsset(req)

	case "getOwner":
		return h.getOwner(req)

	case "isForSale":
		return h.isForSale(req)

	case "getPrice":
		return h.getPrice(req)

	case "getOffers":
		return h.getOffers(req)

	case "getPending":
		return h.getPending(req)

	case "getTotalMinted":
		return h.getTotalMinted(req)

	case "getAdmin":
		return h.getAdmin(req)

	case "isPaused":
		return h.isPaused(req)

	case "getMarketConfig":
		return h.getMarketConfig(req)

	case "getAssetsByOwner":
		return h.getAssetsByOwner(req)

	case "sendTx":
		return h.sendTx(req)

	case "getMempoolSize":
		return okResponse(req.ID, h.mempool.Size())

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

type assetParams struct {
	ID *uint64 `json:"id"`
}

func (h *Handler) assetParam(req Request) (uint64, *Response) {
	var params assetParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		r := errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
		return 0, &r
	}
	if params.ID == nil {
		r := errResponse(req.ID, CodeInvalidParams, "id is required")
		return 0, &r
	}
	return *params.ID, nil
}

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		Hash   string `json:"hash"`
		Height *int64 `json:"height"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}

	var block *core.Block
	var err error
	if params.Hash != "" {
		block, err = h.bc.GetBlock(params.Hash)
	} else if params.Height != nil {
		block, err = h.bc.GetBlockByHeight(*params.Height)
	} else {
		block = h.bc.Tip()
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if block == nil {
		return errResponse(req.ID, CodeInternalError, "no block found")
	}
	return okResponse(req.ID, block)
}

func (h *Handler) getBalance(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	acc, err := h.state.GetAccount(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"address": params.Address, "balance": acc.Balance, "nonce": acc.Nonce})
}

func (h *Handler) getAsset(req Request) Response {
	id, errResp := h.assetParam(req)
	if errResp != nil {
		return *errResp
	}
	asset, err := h.state.GetAsset(id)
	if errors.Is(err, core.ErrNotFound) {
		return errResponse(req.ID, CodeInvalidParams, fmt.Sprintf("asset %d not found", id))
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, asset)
}

func (h *Handler) getOwner(req Request) Response {
	id, errResp := h.assetParam(req)
	if errResp != nil {
		return *errResp
	}
	asset, err := h.state.GetAsset(id)
	if errors.Is(err, core.ErrNotFound) {
		return errResponse(req.ID, CodeInvalidParams, fmt.Sprintf("asset %d not found", id))
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"id": id, "owner": asset.Owner})
}

// isForSale reports whether the asset is listed. Unknown or burned assets
// read as not for sale rather than erroring.
func (h *Handler) isForSale(req Request) Response {
	id, errResp := h.assetParam(req)
	if errResp != nil {
		return *errResp
	}
	asset, err := h.state.GetAsset(id)
	if errors.Is(err, core.ErrNotFound) {
		return okResponse(req.ID, map[string]any{"id": id, "for_sale": false})
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"id": id, "for_sale": asset.ForSale})
}

// getPrice reports the listed price of an asset; 0 when the asset does not
// exist or is not for sale.
func (h *Handler) getPrice(req Request) Response {
	id, errResp := h.assetParam(req)
	if errResp != nil {
		return *errResp
	}
	asset, err := h.state.GetAsset(id)
	if errors.Is(err, core.ErrNotFound) {
		return okResponse(req.ID, map[string]any{"id": id, "price": uint64(0)})
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	price := uint64(0)
	if asset.ForSale {
		price = asset.Price
	}
	return okResponse(req.ID, map[string]any{"id": id, "price": price})
}

func (h *Handler) getOffers(req Request) Response {
	id, errResp := h.assetParam(req)
	if errResp != nil {
		return *errResp
	}
	offers, err := h.state.OffersByAsset(id)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, offers)
}

func (h *Handler) getPending(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	amount, err := h.state.GetPending(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"address": params.Address, "pending": amount})
}

func (h *Handler) getTotalMinted(req Request) Response {
	m, err := h.state.GetMarket()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"total_minted": m.NextAssetID})
}

func (h *Handler) getAdmin(req Request) Response {
	m, err := h.state.GetMarket()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"admin": m.Admin, "pending_admin": m.PendingAdmin})
}

func (h *Handler) isPaused(req Request) Response {
	m, err := h.state.GetMarket()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"paused": m.Paused})
}

func (h *Handler) getMarketConfig(req Request) Response {
	m, err := h.state.GetMarket()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{
		"platform_fee_percent": m.PlatformFeePercent,
		"mint_price":           m.MintPrice,
		"min_sale_price":       m.MinSalePrice,
		"max_metadata_length":  m.MaxMetadataLength,
		"max_supply":           m.MaxSupply,
		"collected_fees":       m.CollectedFees,
	})
}

func (h *Handler) getAssetsByOwner(req Request) Response {
	var params struct {
		Owner string `json:"owner"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Owner == "" {
		return errResponse(req.ID, CodeInvalidParams, "owner is required")
	}
	ids, err := h.indexer.GetAssetsByOwner(params.Owner)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, ids)
}

func (h *Handler) sendTx(req Request) Response {
	var tx core.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	// Reject transactions destined for a different network to prevent
	// cross-chain replay attacks.
	if tx.ChainID != h.chainID {
		return errResponse(req.ID, CodeInvalidParams,
			fmt.Sprintf("chain ID mismatch: got %q want %q", tx.ChainID, h.chainID))
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	tx.ID = tx.Hash()
	if err := h.mempool.Add(&tx); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"tx_id": tx.ID})
}
