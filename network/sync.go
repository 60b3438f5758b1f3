package network

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/bazaarchain/bazaar/core"
)

// GetBlocksRequest asks a peer for blocks starting at FromHeight.
type GetBlocksRequest struct {
	FromHeight int64 `json:"from_height"`
	Limit      int   `json:"limit"`
}

// BlocksResponse carries a batch of blocks.
type BlocksResponse struct {
	Blocks []*core.Block `json:"blocks"`
}

// BlockValidator validates a block before it is accepted into the chain.
type BlockValidator interface {
	ValidateBlock(block *core.Block) error
}

// BlockExecutor applies all transactions in a block against the state.
type BlockExecutor interface {
	ExecuteBlock(block *core.Block) error
}

// Syncer handles block synchronisation between nodes.
type Syncer struct {
	node      *Node
	bc        *core.Blockchain
	validator BlockValidator
	exec      BlockExecutor // may be nil; if set, state is also required
	state     core.State    // may be nil; used with exec to commit after each block
}

// NewSyncer creates a Syncer that requests missing blocks from peers.
// Pass non-nil exec and state so that synced blocks are fully applied to the
// local state; without them the node will have blocks but no account/asset state.
func NewSyncer(node *Node, bc *core.Blockchain, validator BlockValidator, exec BlockExecutor, state core.State) *Syncer {
	s := &Syncer{node: node, bc: bc, validator: validator, exec: exec, state: state}
	node.Handle(MsgHello, s.handleHello)
	node.Handle(MsgGetBlocks, s.handleGetBlocks)
	node.Handle(MsgBlocks, s.handleBlocks)
	return s
}

// handleHello triggers an initial block sync when a peer announces itself.
func (s *Syncer) handleHello(peer *Peer, _ Message) {
	fromHeight := s.bc.Height() + 1
	if err := s.RequestBlocks(peer, fromHeight); err != nil {
		slog.Error("request blocks", "peer", peer.ID, "err", err)
	}
}

// SyncWithPeer requests missing blocks from the given peer.
// Call this after AddPeer to initiate an outbound sync.
func (s *Syncer) SyncWithPeer(peer *Peer) {
	fromHeight := s.bc.Height() + 1
	if err := s.RequestBlocks(peer, fromHeight); err != nil {
		slog.Error("request blocks", "peer", peer.ID, "err", err)
	}
}

// RequestBlocks asks peer for blocks starting at fromHeight.
func (s *Syncer) RequestBlocks(peer *Peer, fromHeight int64) error {
	req, err := json.Marshal(GetBlocksRequest{FromHeight: fromHeight, Limit: 50})
	if err != nil {
		return err
	}
	return peer.Send(Message{Type: MsgGetBlocks, Payload: req})
}

func (s *Syncer) handleGetBlocks(peer *Peer, msg Message) {
	var req GetBlocksRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	blocks := make([]*core.Block, 0, req.Limit)
	for h := req.FromHeight; h < req.FromHeight+int64(req.Limit); h++ {
		b, err := s.bc.GetBlockByHeight(h)
		if err != nil {
			break
		}
		blocks = append(blocks, b)
	}
	data, err := json.Marshal(BlocksResponse{Blocks: blocks})
	if err != nil {
		slog.Error("marshal blocks response", "err", err)
		return
	}
	if err := peer.Send(Message{Type: MsgBlocks, Payload: data}); err != nil {
		slog.Error("send blocks", "peer", peer.ID, "err", err)
	}
}

func (s *Syncer) handleBlocks(peer *Peer, msg Message) {
	var resp BlocksResponse
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		return
	}
	for _, b := range resp.Blocks {
		if s.validator != nil {
			if err := s.validator.ValidateBlock(b); err != nil {
				slog.Warn("block validation failed", "height", b.Header.Height, "err", err)
				return // stop processing blocks from this peer
			}
		}

		// Take a snapshot so we can revert if AddBlock fails.
		var snapID int
		if s.exec != nil && s.state != nil {
			var err error
			snapID, err = s.state.Snapshot()
			if err != nil {
				slog.Error("block snapshot failed", "height", b.Header.Height, "err", err)
				continue
			}
			if err := s.exec.ExecuteBlock(b); err != nil {
				if revErr := s.state.RevertToSnapshot(snapID); revErr != nil {
					slog.Error("revert failed after exec error, halting", "height", b.Header.Height, "revert_err", revErr, "exec_err", err)
					os.Exit(1)
				}
				slog.Warn("block execution failed", "height", b.Header.Height, "err", err)
				continue
			}
		}

		// Verify the state root matches after execution.
		if s.exec != nil && s.state != nil {
			computedRoot := s.state.ComputeRoot()
			if b.Header.StateRoot != "" && computedRoot != b.Header.StateRoot {
				if revErr := s.state.RevertToSnapshot(snapID); revErr != nil {
					slog.Error("revert failed after state root mismatch, halting", "height", b.Header.Height, "err", revErr)
					os.Exit(1)
				}
				slog.Warn("state root mismatch", "height", b.Header.Height, "computed", computedRoot, "want", b.Header.StateRoot)
				return
			}
		}

		if err := s.bc.AddBlock(b); err != nil {
			if s.exec != nil && s.state != nil {
				if revErr := s.state.RevertToSnapshot(snapID); revErr != nil {
					slog.Error("revert failed after add error, halting", "height", b.Header.Height, "revert_err", revErr, "add_err", err)
					os.Exit(1)
				}
			}
			slog.Warn("block add failed", "height", b.Header.Height, "err", err)
			continue
		}

		if s.exec != nil && s.state != nil {
			if err := s.state.Commit(); err != nil {
				slog.Error("state commit failed, halting", "height", b.Header.Height, "err", err)
				os.Exit(1)
			}
		}
	}

	// If we received a full batch, there may be more blocks, keep requesting.
	if len(resp.Blocks) >= 50 {
		nextHeight := s.bc.Height() + 1
		if err := s.RequestBlocks(peer, nextHeight); err != nil {
			slog.Error("follow-up block request failed", "peer", peer.ID, "err", err)
		}
	}
}
