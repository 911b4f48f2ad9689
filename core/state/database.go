// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gofrs/flock"
	"github.com/golang/snappy"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	// Number of reconstructed snapshots to keep.
	snapshotCacheSize = 32

	// How far back to look for a cached snapshot before folding from genesis.
	snapshotSearchDepth = 128

	// Size of the raw changeset cache in bytes.
	changesetCacheSize = 16 * 1024 * 1024
)

var (
	headKey         = []byte("LastCommitted")
	changesetPrefix = []byte("c") // changesetPrefix + num (uint64 big endian) -> snappy(rlp(changeset))
	canonicalPrefix = []byte("h") // canonicalPrefix + num (uint64 big endian) -> hash
	codePrefix      = []byte("C") // codePrefix + code hash -> contract code
)

var (
	// ErrHistoryUnavailable is returned when asking for the state of a block
	// that was not committed.
	ErrHistoryUnavailable = errors.New("state history not available")

	// ErrDatabaseLocked is returned if another process holds the database.
	ErrDatabaseLocked = errors.New("history database already in use")

	errNonSequentialCommit = errors.New("non-sequential history commit")
)

// Backends supported by OpenDatabase.
const (
	BackendLevelDB = "leveldb"
	BackendPebble  = "pebble"
)

// KeyValueStore is the part of ethdb.KeyValueStore the history store uses.
type KeyValueStore interface {
	ethdb.KeyValueReader
	ethdb.KeyValueWriter
	ethdb.Batcher
	io.Closer
}

// Database is a HistoryProvider keeping one changeset per canonical block.
// The state at block n is reconstructed by folding the changesets of blocks
// 0..n; reconstructed states are cached.
type Database struct {
	db    KeyValueStore
	flock *flock.Flock // nil unless opened from a directory

	changesets *fastcache.Cache // compressed changesets by key
	snapshots  *lru.Cache       // block number -> *snapshot

	lock    sync.RWMutex
	head    uint64
	hasHead bool

	log log.Logger
}

// NewDatabase creates a history store on top of an existing key-value store.
func NewDatabase(db KeyValueStore) (*Database, error) {
	snapshots, err := lru.New(snapshotCacheSize)
	if err != nil {
		return nil, err
	}
	hdb := &Database{
		db:         db,
		changesets: fastcache.New(changesetCacheSize),
		snapshots:  snapshots,
		log:        log.New("database", "history"),
	}
	if err := hdb.loadHead(); err != nil {
		return nil, err
	}
	return hdb, nil
}

// NewMemoryDatabase creates an ephemeral history store.
func NewMemoryDatabase() *Database {
	db, err := NewDatabase(memorydb.New())
	if err != nil {
		panic(err) // empty memory database cannot fail to load
	}
	return db
}

// OpenDatabase opens a persistent history store in dir using the given
// backend. The directory is locked for the lifetime of the database.
func OpenDatabase(dir string, backend string, cache int, handles int) (*Database, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, "LOCK.history"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrDatabaseLocked
	}
	var kv KeyValueStore
	switch backend {
	case BackendLevelDB, "":
		kv, err = leveldb.New(filepath.Join(dir, BackendLevelDB), cache, handles, "history/", false)
	case BackendPebble:
		kv, err = newPebbleStore(filepath.Join(dir, BackendPebble))
	default:
		err = fmt.Errorf("unknown history backend %q", backend)
	}
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	db, err := NewDatabase(kv)
	if err != nil {
		kv.Close()
		lock.Unlock()
		return nil, err
	}
	db.flock = lock

	head, ok := db.Head()
	db.log.Info("Opened state history", "dir", dir, "backend", backend, "head", head, "empty", !ok)
	return db, nil
}

// Close releases the underlying store and the directory lock.
func (db *Database) Close() error {
	db.changesets.Reset()
	db.snapshots.Purge()

	err := db.db.Close()
	if db.flock != nil {
		if uerr := db.flock.Unlock(); err == nil {
			err = uerr
		}
	}
	return err
}

// Head returns the last committed block number.
func (db *Database) Head() (uint64, bool) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return db.head, db.hasHead
}

func (db *Database) loadHead() error {
	has, err := db.db.Has(headKey)
	if err != nil || !has {
		return err
	}
	blob, err := db.db.Get(headKey)
	if err != nil {
		return err
	}
	if len(blob) != 8 {
		return fmt.Errorf("corrupt history head: %x", blob)
	}
	db.head, db.hasHead = binary.BigEndian.Uint64(blob), true
	return nil
}

// Commit writes the changes of the next canonical block. Blocks have to be
// committed in order, starting at genesis.
func (db *Database) Commit(number uint64, hash common.Hash, changes *Delta) error {
	var block *blockChanges
	switch {
	case changes == nil || changes.Empty():
		block = newBlockChanges(number)
	case changes.Len() == 1 && changes.blocks[0].number == number:
		block = changes.blocks[0]
	default:
		return fmt.Errorf("history commit of block %d with changes of %v", number, changes)
	}
	return db.commit([]*blockChanges{block}, map[uint64]common.Hash{number: hash})
}

// CommitDelta commits every block of delta in order. hashes must contain the
// hash of each block. Either all blocks are written or none is.
func (db *Database) CommitDelta(delta *Delta, hashes map[uint64]common.Hash) error {
	return db.commit(delta.blocks, hashes)
}

func (db *Database) commit(blocks []*blockChanges, hashes map[uint64]common.Hash) error {
	defer func(start time.Time) { historyCommitTimer.UpdateSince(start) }(time.Now())

	db.lock.Lock()
	defer db.lock.Unlock()

	batch := db.db.NewBatch()
	next := db.nextNumber()
	for _, block := range blocks {
		if block.number != next {
			return fmt.Errorf("%w: have %d, want %d", errNonSequentialCommit, block.number, next)
		}
		hash, ok := hashes[block.number]
		if !ok {
			return fmt.Errorf("missing hash of block %d", block.number)
		}
		if err := writeBlockChanges(batch, block, hash); err != nil {
			return err
		}
		next++
	}
	if len(blocks) == 0 {
		return nil
	}
	head := next - 1
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], head)
	if err := batch.Put(headKey, enc[:]); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	db.head, db.hasHead = head, true
	return nil
}

// writeBlockChanges stages the code, the changeset and the canonical hash of
// a block.
func writeBlockChanges(w ethdb.KeyValueWriter, block *blockChanges, hash common.Hash) error {
	for codeHash, code := range block.codes {
		if err := w.Put(codeKey(codeHash), code); err != nil {
			return err
		}
	}
	blob, err := rlp.EncodeToBytes(encodeChangeset(block))
	if err != nil {
		return err
	}
	if err := w.Put(changesetKey(block.number), snappy.Encode(nil, blob)); err != nil {
		return err
	}
	return w.Put(canonicalKey(block.number), hash.Bytes())
}

func (db *Database) nextNumber() uint64 {
	if !db.hasHead {
		return 0
	}
	return db.head + 1
}

// HistoryByBlockNumber implements HistoryProvider.
func (db *Database) HistoryByBlockNumber(number uint64) (StateProvider, error) {
	db.lock.RLock()
	head, ok := db.head, db.hasHead
	db.lock.RUnlock()

	if !ok || number > head {
		return nil, fmt.Errorf("%w: block %d", ErrHistoryUnavailable, number)
	}
	snap, err := db.snapshot(number)
	if err != nil {
		return nil, err
	}
	return &historyReader{db: db, snap: snap}, nil
}

// snapshot reconstructs the state after block number.
func (db *Database) snapshot(number uint64) (*snapshot, error) {
	if cached, ok := db.snapshots.Get(number); ok {
		snapshotHitMeter.Mark(1)
		return cached.(*snapshot), nil
	}
	snapshotMissMeter.Mark(1)

	// Start from the closest cached ancestor, or from scratch
	var (
		base  *snapshot
		start uint64
	)
	for depth := uint64(1); depth <= snapshotSearchDepth && depth <= number; depth++ {
		if cached, ok := db.snapshots.Get(number - depth); ok {
			base, start = cached.(*snapshot).copy(), number-depth+1
			break
		}
	}
	if base == nil {
		base = newSnapshot()
	}
	for n := start; n <= number; n++ {
		cs, err := db.readChangeset(n)
		if err != nil {
			return nil, err
		}
		base.apply(cs)
	}
	base.number = number
	db.snapshots.Add(number, base)
	return base, nil
}

func (db *Database) readChangeset(number uint64) (*changeset, error) {
	key := changesetKey(number)
	blob, ok := db.changesets.HasGet(nil, key)
	if !ok {
		var err error
		if blob, err = db.db.Get(key); err != nil {
			return nil, fmt.Errorf("changeset %d: %w", number, err)
		}
		db.changesets.Set(key, blob)
	}
	blob, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("changeset %d: %w", number, err)
	}
	cs := new(changeset)
	if err := rlp.DecodeBytes(blob, cs); err != nil {
		return nil, fmt.Errorf("changeset %d: %w", number, err)
	}
	return cs, nil
}

func (db *Database) readCode(hash common.Hash) ([]byte, error) {
	has, err := db.db.Has(codeKey(hash))
	if err != nil || !has {
		return nil, err
	}
	return db.db.Get(codeKey(hash))
}

func (db *Database) readCanonicalHash(number uint64) (common.Hash, error) {
	has, err := db.db.Has(canonicalKey(number))
	if err != nil || !has {
		return common.Hash{}, err
	}
	blob, err := db.db.Get(canonicalKey(number))
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(blob), nil
}

// encodeNumber encodes a block number as big endian uint64
func encodeNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

func changesetKey(number uint64) []byte {
	return append(append([]byte{}, changesetPrefix...), encodeNumber(number)...)
}

func canonicalKey(number uint64) []byte {
	return append(append([]byte{}, canonicalPrefix...), encodeNumber(number)...)
}

func codeKey(hash common.Hash) []byte {
	return append(append([]byte{}, codePrefix...), hash.Bytes()...)
}

// changeset is the storage encoding of the changes of one block.
type changeset struct {
	Accounts []accountChange
	Storage  []storageChange
}

type accountChange struct {
	Address   common.Address
	Destroyed bool
	Nonce     uint64
	Balance   *uint256.Int
	CodeHash  common.Hash
}

type storageChange struct {
	Address common.Address
	Wiped   bool
	Keys    []common.Hash
	Values  []common.Hash
}

func encodeChangeset(b *blockChanges) *changeset {
	cs := new(changeset)

	addrs := maps.Keys(b.accounts)
	slices.SortFunc(addrs, common.Address.Cmp)
	for _, addr := range addrs {
		acc := b.accounts[addr]
		if acc == nil {
			cs.Accounts = append(cs.Accounts, accountChange{Address: addr, Destroyed: true, Balance: new(uint256.Int)})
			continue
		}
		balance := acc.Balance
		if balance == nil {
			balance = new(uint256.Int)
		}
		cs.Accounts = append(cs.Accounts, accountChange{
			Address:  addr,
			Nonce:    acc.Nonce,
			Balance:  balance,
			CodeHash: acc.CodeHash,
		})
	}
	addrs = maps.Keys(b.storage)
	slices.SortFunc(addrs, common.Address.Cmp)
	for _, addr := range addrs {
		st := b.storage[addr]
		keys := maps.Keys(st.Slots)
		slices.SortFunc(keys, common.Hash.Cmp)

		change := storageChange{Address: addr, Wiped: st.Wiped, Keys: keys, Values: make([]common.Hash, len(keys))}
		for i, key := range keys {
			change.Values[i] = st.Slots[key]
		}
		cs.Storage = append(cs.Storage, change)
	}
	return cs
}

// snapshot is the flattened state after some block.
type snapshot struct {
	number   uint64
	accounts map[common.Address]*Account
	storage  map[common.Address]map[common.Hash]common.Hash
}

func newSnapshot() *snapshot {
	return &snapshot{
		accounts: make(map[common.Address]*Account),
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
	}
}

func (s *snapshot) copy() *snapshot {
	cpy := &snapshot{
		number:   s.number,
		accounts: maps.Clone(s.accounts),
		storage:  make(map[common.Address]map[common.Hash]common.Hash, len(s.storage)),
	}
	for addr, slots := range s.storage {
		cpy.storage[addr] = maps.Clone(slots)
	}
	return cpy
}

// apply folds a changeset into the snapshot. Accounts are replaced, never
// mutated, so sharing them between snapshot copies is fine.
func (s *snapshot) apply(cs *changeset) {
	for _, acc := range cs.Accounts {
		if acc.Destroyed {
			delete(s.accounts, acc.Address)
			continue
		}
		s.accounts[acc.Address] = &Account{Nonce: acc.Nonce, Balance: acc.Balance, CodeHash: acc.CodeHash}
	}
	for _, st := range cs.Storage {
		slots, ok := s.storage[st.Address]
		if st.Wiped || !ok {
			slots = make(map[common.Hash]common.Hash)
			s.storage[st.Address] = slots
		}
		for i, key := range st.Keys {
			if st.Values[i] == (common.Hash{}) {
				delete(slots, key)
			} else {
				slots[key] = st.Values[i]
			}
		}
	}
}

// historyReader serves a reconstructed snapshot.
type historyReader struct {
	db   *Database
	snap *snapshot
}

func (r *historyReader) Account(addr common.Address) (*Account, error) {
	return r.snap.accounts[addr].Copy(), nil
}

func (r *historyReader) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	return r.snap.storage[addr][slot], nil
}

func (r *historyReader) Code(codeHash common.Hash) ([]byte, error) {
	return r.db.readCode(codeHash)
}

func (r *historyReader) BlockHash(number uint64) (common.Hash, error) {
	if number > r.snap.number {
		return common.Hash{}, nil
	}
	return r.db.readCanonicalHash(number)
}
