package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it.  All prefix constants must be declared
// via this function; manually editing statePrefixes is not required.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
// ComputeRoot() iterates these prefixes to build the full world-state view.
var statePrefixes []string

var (
	prefixAccount = registerPrefix("acct:")
	prefixAsset   = registerPrefix("asset:")
	prefixOffer   = registerPrefix("offer:")
	prefixPending = registerPrefix("pend:")
	prefixMarket  = registerPrefix("mkt:")
)

// keyMarket is the singleton market record.
const keyMarket = "mkt:state"

func assetKey(id uint64) string {
	return prefixAsset + strconv.FormatUint(id, 10)
}

func offerKey(assetID uint64, bidder string) string {
	return prefixOffer + strconv.FormatUint(assetID, 10) + ":" + bidder
}

// offerScanPrefix covers every bidder's offer on one asset. The trailing
// colon keeps asset 1 from matching asset 12.
func offerScanPrefix(assetID uint64) string {
	return prefixOffer + strconv.FormatUint(assetID, 10) + ":"
}

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with in-memory write buffer,
// snapshot/rollback, and deterministic state-root computation.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *StateDB) del(key string) {
	delete(s.dirty, key)
	s.deleted[key] = true
}

// scanPrefix merges persisted entries under prefix with the write buffer,
// returning key-sorted pairs. Used where handlers must see uncommitted
// writes from earlier in the same block.
func (s *StateDB) scanPrefix(prefix string) ([]kvPair, error) {
	merged := make(map[string][]byte)
	it := s.db.NewIterator([]byte(prefix))
	for it.Next() {
		v := make([]byte, len(it.Value()))
		copy(v, it.Value())
		merged[string(it.Key())] = v
	}
	it.Release()
	if err := it.Error(); err != nil {
		return nil, err
	}

	for k, v := range s.dirty {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			merged[k] = v
		}
	}
	for k := range s.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]kvPair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, kvPair{k: k, v: merged[k]})
	}
	return pairs, nil
}

type kvPair struct {
	k string
	v []byte
}

// ---- Account ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	data, err := s.get(prefixAccount + address)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil // zero-value account
	}
	if err != nil {
		return nil, err
	}
	var acc core.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	s.set(prefixAccount+acc.Address, data)
	return nil
}

// ---- Market ----

func (s *StateDB) GetMarket() (*core.Market, error) {
	data, err := s.get(keyMarket)
	if err != nil {
		return nil, err
	}
	var m core.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *StateDB) SetMarket(m *core.Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.set(keyMarket, data)
	return nil
}

// ---- Asset ----

func (s *StateDB) GetAsset(id uint64) (*core.Asset, error) {
	data, err := s.get(assetKey(id))
	if err != nil {
		return nil, err
	}
	var asset core.Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *StateDB) SetAsset(asset *core.Asset) error {
	data, err := json.Marshal(asset)
	if err != nil {
		return err
	}
	s.set(assetKey(asset.ID), data)
	return nil
}

func (s *StateDB) DeleteAsset(id uint64) error {
	s.del(assetKey(id))
	return nil
}

// ---- Offers ----

func (s *StateDB) GetOffer(assetID uint64, bidder string) (*core.Offer, error) {
	data, err := s.get(offerKey(assetID, bidder))
	if err != nil {
		return nil, err
	}
	var o core.Offer
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *StateDB) SetOffer(o *core.Offer) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	s.set(offerKey(o.AssetID, o.Bidder), data)
	return nil
}

func (s *StateDB) DeleteOffer(assetID uint64, bidder string) error {
	s.del(offerKey(assetID, bidder))
	return nil
}

func (s *StateDB) OffersByAsset(assetID uint64) ([]*core.Offer, error) {
	pairs, err := s.scanPrefix(offerScanPrefix(assetID))
	if err != nil {
		return nil, err
	}
	offers := make([]*core.Offer, 0, len(pairs))
	for _, p := range pairs {
		var o core.Offer
		if err := json.Unmarshal(p.v, &o); err != nil {
			return nil, fmt.Errorf("decode offer %s: %w", p.k, err)
		}
		offers = append(offers, &o)
	}
	return offers, nil
}

// ---- Pending balances ----

func (s *StateDB) GetPending(address string) (uint64, error) {
	data, err := s.get(prefixPending + address)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var amount uint64
	if err := json.Unmarshal(data, &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

func (s *StateDB) SetPending(address string, amount uint64) error {
	data, err := json.Marshal(amount)
	if err != nil {
		return err
	}
	s.set(prefixPending+address, data)
	return nil
}

func (s *StateDB) DeletePending(address string) error {
	s.del(prefixPending + address)
	return nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
// The snapshot maps are deep-copied so that subsequent writes cannot corrupt them.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world state.
// It merges all persisted state entries (scanned from DB by the known state
// prefixes) with the current write buffer, then hashes the sorted key-value
// pairs using length-prefix encoding.  It does NOT flush or modify state,
// so it is safe to call before signing a block.
func (s *StateDB) ComputeRoot() string {
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}

	// Apply in-memory write buffer (uncommitted changes this block).
	for k, v := range s.dirty {
		merged[k] = v
	}
	for k := range s.deleted {
		delete(merged, k)
	}

	// Sort keys for determinism.
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Length-prefix encode each key-value pair and hash.
	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// WriteBatch and then clears it. Call ComputeRoot() before signing the block,
// then call Commit() after the block is safely stored.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
