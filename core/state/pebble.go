// Copyright 2023 The go-ethereum Authors
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
	"errors"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
)

var errPebbleNotFound = errors.New("not found")

// pebbleStore is a KeyValueStore on a pebble database. Every write is synced.
type pebbleStore struct {
	db *pebble.DB
}

func newPebbleStore(dir string) (*pebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &pebbleStore{db: db}, nil
}

// Has retrieves if a key is present in the key-value store.
func (s *pebbleStore) Has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

// Get retrieves the given key if it's present in the key-value store.
func (s *pebbleStore) Get(key []byte) ([]byte, error) {
	dat, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, errPebbleNotFound
	} else if err != nil {
		return nil, err
	}
	ret := common.CopyBytes(dat)
	closer.Close()
	return ret, nil
}

// Put inserts the given value into the key-value store.
func (s *pebbleStore) Put(key []byte, value []byte) error {
	return s.db.Set(key, value, pebble.Sync)
}

// Delete removes the key from the key-value store.
func (s *pebbleStore) Delete(key []byte) error {
	return s.db.Delete(key, pebble.Sync)
}

func (s *pebbleStore) Close() error {
	return s.db.Close()
}

// NewBatch creates a write-only batch that is committed with a single sync.
func (s *pebbleStore) NewBatch() ethdb.Batch {
	return &pebbleBatch{b: s.db.NewBatch()}
}

// NewBatchWithSize creates a batch. Pebble pools its batch buffers, so the
// size hint is ignored.
func (s *pebbleStore) NewBatchWithSize(_ int) ethdb.Batch {
	return s.NewBatch()
}

// pebbleBatch buffers writes until Write. It cannot be used concurrently.
type pebbleBatch struct {
	b    *pebble.Batch
	size int
}

func (b *pebbleBatch) Put(key, value []byte) error {
	b.b.Set(key, value, nil)
	b.size += len(value)
	return nil
}

func (b *pebbleBatch) Delete(key []byte) error {
	b.b.Delete(key, nil)
	b.size++
	return nil
}

// ValueSize retrieves the amount of data queued up for writing.
func (b *pebbleBatch) ValueSize() int {
	return b.size
}

// Write commits the batch atomically.
func (b *pebbleBatch) Write() error {
	return b.b.Commit(pebble.Sync)
}

func (b *pebbleBatch) Reset() {
	b.b.Reset()
	b.size = 0
}

// Replay replays the batch contents.
func (b *pebbleBatch) Replay(w ethdb.KeyValueWriter) error {
	reader := b.b.Reader()
	for {
		kind, k, v, ok := reader.Next()
		if !ok {
			return nil
		}
		switch kind {
		case pebble.InternalKeyKindSet:
			if err := w.Put(common.CopyBytes(k), common.CopyBytes(v)); err != nil {
				return err
			}
		case pebble.InternalKeyKindDelete:
			if err := w.Delete(common.CopyBytes(k)); err != nil {
				return err
			}
		default:
			return errors.New("invalid batch operation")
		}
	}
}
