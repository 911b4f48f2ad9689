// Copyright 2024 The go-ethereum Authors
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
	"github.com/ethereum/go-ethereum/common"
)

// Reader defines the interface for accessing accounts, storage slots and
// contract code associated with a specific state.
type Reader interface {
	// Account retrieves the account associated with a particular address.
	//
	// - Returns a nil account if it does not exist
	// - Returns an error only if an unexpected issue occurs
	// - The returned account is safe to modify after the call
	Account(addr common.Address) (*Account, error)

	// Storage retrieves the storage slot associated with a particular account
	// address and slot key.
	//
	// - Returns an empty slot if it does not exist
	// - Returns an error only if an unexpected issue occurs
	Storage(addr common.Address, slot common.Hash) (common.Hash, error)

	// Code retrieves a particular contract's code.
	//
	// - Returns nil code along with nil error if the requested contract code
	//   doesn't exist
	// - Returns an error only if an unexpected issue occurs
	Code(codeHash common.Hash) ([]byte, error)
}

// BlockHashReader resolves block numbers to hashes, as needed by the
// BLOCKHASH opcode.
type BlockHashReader interface {
	// BlockHash returns the hash of the block with the given number, or the
	// zero hash if it is not known.
	BlockHash(number uint64) (common.Hash, error)
}

// StateProvider is a read-only view on the state at a specific block.
type StateProvider interface {
	Reader
	BlockHashReader
}

// HistoryProvider gives access to the state of the canonical chain at past
// blocks.
type HistoryProvider interface {
	// HistoryByBlockNumber returns the state right after the given canonical
	// block was executed.
	HistoryByBlockNumber(number uint64) (StateProvider, error)
}

// ForkBlock is a block on the canonical chain a side chain branches off from.
type ForkBlock struct {
	Number uint64
	Hash   common.Hash
}

// PostStateData is the uncommitted side chain data layered on top of a
// canonical state.
type PostStateData interface {
	// State returns the changes of the side chain since the canonical fork.
	State() *Delta

	// BlockHash resolves a block number through the side chain first and the
	// canonical chain second.
	BlockHash(number uint64) (common.Hash, bool)

	// CanonicalFork returns the canonical block the side chain branches off.
	CanonicalFork() ForkBlock
}

// PostStateDataRef is a PostStateData backed by borrowed maps. None of the
// referenced values are modified.
type PostStateDataRef struct {
	Delta                *Delta
	SidechainBlockHashes map[uint64]common.Hash
	CanonicalBlockHashes map[uint64]common.Hash
	Fork                 ForkBlock
}

func (p *PostStateDataRef) State() *Delta { return p.Delta }

func (p *PostStateDataRef) BlockHash(number uint64) (common.Hash, bool) {
	if hash, ok := p.SidechainBlockHashes[number]; ok {
		return hash, true
	}
	hash, ok := p.CanonicalBlockHashes[number]
	return hash, ok
}

func (p *PostStateDataRef) CanonicalFork() ForkBlock { return p.Fork }

// PostStateReader layers side chain changes over a historical canonical
// state. Reads resolve through the delta first and fall back to the history.
type PostStateReader struct {
	history StateProvider
	post    PostStateData
}

// NewPostStateReader creates a reader serving post's changes on top of
// history.
func NewPostStateReader(history StateProvider, post PostStateData) *PostStateReader {
	return &PostStateReader{history: history, post: post}
}

// Account implements Reader.
func (r *PostStateReader) Account(addr common.Address) (*Account, error) {
	if acc, ok := r.post.State().Account(addr); ok {
		return acc, nil
	}
	return r.history.Account(addr)
}

// Storage implements Reader.
func (r *PostStateReader) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	if value, ok := r.post.State().Storage(addr, slot); ok {
		return value, nil
	}
	return r.history.Storage(addr, slot)
}

// Code implements Reader.
func (r *PostStateReader) Code(codeHash common.Hash) ([]byte, error) {
	if code, ok := r.post.State().Code(codeHash); ok {
		return code, nil
	}
	return r.history.Code(codeHash)
}

// BlockHash implements BlockHashReader. Numbers at or above the canonical fork
// that the side chain does not know resolve to the zero hash; the canonical
// history past the fork belongs to a different chain.
func (r *PostStateReader) BlockHash(number uint64) (common.Hash, error) {
	if hash, ok := r.post.BlockHash(number); ok {
		return hash, nil
	}
	if number >= r.post.CanonicalFork().Number {
		return common.Hash{}, nil
	}
	return r.history.BlockHash(number)
}
