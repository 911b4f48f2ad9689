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
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

// ErrNonContiguousDelta is returned when extending a delta with changes that
// do not start right after its last block.
var ErrNonContiguousDelta = errors.New("non-contiguous state delta")

// Account is the state of an account as seen by a Delta.
type Account struct {
	Nonce    uint64
	Balance  *uint256.Int
	CodeHash common.Hash
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	cpy := *a
	if a.Balance != nil {
		cpy.Balance = new(uint256.Int).Set(a.Balance)
	}
	return &cpy
}

// StorageChange holds the storage modifications of a single account. Wiped
// means all slots not listed in Slots were cleared.
type StorageChange struct {
	Wiped bool
	Slots map[common.Hash]common.Hash
}

func (s *StorageChange) copy() *StorageChange {
	return &StorageChange{Wiped: s.Wiped, Slots: maps.Clone(s.Slots)}
}

// blockChanges is the state transition caused by executing a single block.
type blockChanges struct {
	number   uint64
	accounts map[common.Address]*Account // nil marks a destroyed account
	storage  map[common.Address]*StorageChange
	codes    map[common.Hash][]byte
	receipts types.Receipts
}

func newBlockChanges(number uint64) *blockChanges {
	return &blockChanges{
		number:   number,
		accounts: make(map[common.Address]*Account),
		storage:  make(map[common.Address]*StorageChange),
		codes:    make(map[common.Hash][]byte),
	}
}

func (b *blockChanges) copy() *blockChanges {
	cpy := newBlockChanges(b.number)
	for addr, acc := range b.accounts {
		cpy.accounts[addr] = acc.Copy()
	}
	for addr, st := range b.storage {
		cpy.storage[addr] = st.copy()
	}
	for hash, code := range b.codes {
		cpy.codes[hash] = common.CopyBytes(code)
	}
	if b.receipts != nil {
		cpy.receipts = append(types.Receipts{}, b.receipts...)
	}
	return cpy
}

// Delta is the accumulated state change of a contiguous range of blocks,
// recorded block by block so it can be cut back to any block in the range.
//
// A Delta is not safe for concurrent mutation.
type Delta struct {
	blocks []*blockChanges // ascending, contiguous block numbers
}

// NewDelta creates an empty delta covering no blocks.
func NewDelta() *Delta {
	return &Delta{}
}

// NewBlockDelta creates a delta for the changes of block number. It is
// populated with the Set*, Destroy*, Wipe* and AddReceipt methods.
func NewBlockDelta(number uint64) *Delta {
	return &Delta{blocks: []*blockChanges{newBlockChanges(number)}}
}

// Empty reports whether the delta covers no blocks.
func (d *Delta) Empty() bool { return len(d.blocks) == 0 }

// Len returns the number of blocks covered by the delta.
func (d *Delta) Len() int { return len(d.blocks) }

// First returns the first block covered by the delta.
func (d *Delta) First() (uint64, bool) {
	if d.Empty() {
		return 0, false
	}
	return d.blocks[0].number, true
}

// Last returns the last block covered by the delta.
func (d *Delta) Last() (uint64, bool) {
	if d.Empty() {
		return 0, false
	}
	return d.blocks[len(d.blocks)-1].number, true
}

// tip returns the changes of the last block, the target of all mutators.
func (d *Delta) tip() *blockChanges {
	if d.Empty() {
		panic("state: mutating an empty delta")
	}
	return d.blocks[len(d.blocks)-1]
}

// SetAccount records the new state of an account in the last block.
func (d *Delta) SetAccount(addr common.Address, account *Account) {
	d.tip().accounts[addr] = account.Copy()
}

// DestroyAccount records the removal of an account together with its storage
// in the last block.
func (d *Delta) DestroyAccount(addr common.Address) {
	tip := d.tip()
	tip.accounts[addr] = nil
	tip.storage[addr] = &StorageChange{Wiped: true, Slots: make(map[common.Hash]common.Hash)}
}

// SetStorage records a storage slot write in the last block.
func (d *Delta) SetStorage(addr common.Address, slot, value common.Hash) {
	tip := d.tip()
	st, ok := tip.storage[addr]
	if !ok {
		st = &StorageChange{Slots: make(map[common.Hash]common.Hash)}
		tip.storage[addr] = st
	}
	st.Slots[slot] = value
}

// WipeStorage records the clearing of an account's whole storage in the last
// block. Slots written earlier in the same block are dropped.
func (d *Delta) WipeStorage(addr common.Address) {
	d.tip().storage[addr] = &StorageChange{Wiped: true, Slots: make(map[common.Hash]common.Hash)}
}

// SetCode records a deployed contract bytecode in the last block.
func (d *Delta) SetCode(hash common.Hash, code []byte) {
	d.tip().codes[hash] = common.CopyBytes(code)
}

// AddReceipts appends receipts to the last block.
func (d *Delta) AddReceipts(receipts ...*types.Receipt) {
	tip := d.tip()
	tip.receipts = append(tip.receipts, receipts...)
}

// Extend appends the changes of next, which must start at the block right
// after the last block of d. The delta is left untouched on error.
func (d *Delta) Extend(next *Delta) error {
	if next.Empty() {
		return nil
	}
	if last, ok := d.Last(); ok && next.blocks[0].number != last+1 {
		return fmt.Errorf("%w: have block %d, want %d", ErrNonContiguousDelta, next.blocks[0].number, last+1)
	}
	for _, b := range next.blocks {
		d.blocks = append(d.blocks, b.copy())
	}
	return nil
}

// RevertTo drops the changes of every block above number. Reverting below
// the first block empties the delta.
func (d *Delta) RevertTo(number uint64) {
	keep := len(d.blocks)
	for keep > 0 && d.blocks[keep-1].number > number {
		d.blocks[keep-1] = nil
		keep--
	}
	d.blocks = d.blocks[:keep]
}

// SplitAt splits the delta into the changes up to and including number and
// the changes after it. Either half may be empty.
func (d *Delta) SplitAt(number uint64) (*Delta, *Delta) {
	idx := len(d.blocks)
	for i, b := range d.blocks {
		if b.number > number {
			idx = i
			break
		}
	}
	head, tail := NewDelta(), NewDelta()
	for _, b := range d.blocks[:idx] {
		head.blocks = append(head.blocks, b.copy())
	}
	for _, b := range d.blocks[idx:] {
		tail.blocks = append(tail.blocks, b.copy())
	}
	return head, tail
}

// Copy returns a deep copy of the delta.
func (d *Delta) Copy() *Delta {
	cpy := &Delta{blocks: make([]*blockChanges, len(d.blocks))}
	for i, b := range d.blocks {
		cpy.blocks[i] = b.copy()
	}
	return cpy
}

// Account returns the latest recorded state of an account. The bool is false
// if the delta does not touch the account; a nil account with true means the
// account was destroyed.
func (d *Delta) Account(addr common.Address) (*Account, bool) {
	for i := len(d.blocks) - 1; i >= 0; i-- {
		if acc, ok := d.blocks[i].accounts[addr]; ok {
			return acc.Copy(), true
		}
	}
	return nil, false
}

// Storage returns the latest recorded value of a storage slot. The bool is
// false if the value has to be looked up below the delta.
func (d *Delta) Storage(addr common.Address, slot common.Hash) (common.Hash, bool) {
	for i := len(d.blocks) - 1; i >= 0; i-- {
		st, ok := d.blocks[i].storage[addr]
		if !ok {
			continue
		}
		if value, ok := st.Slots[slot]; ok {
			return value, true
		}
		if st.Wiped {
			return common.Hash{}, true
		}
	}
	return common.Hash{}, false
}

// Code returns a bytecode deployed within the delta.
func (d *Delta) Code(hash common.Hash) ([]byte, bool) {
	for i := len(d.blocks) - 1; i >= 0; i-- {
		if code, ok := d.blocks[i].codes[hash]; ok {
			return common.CopyBytes(code), true
		}
	}
	return nil, false
}

// Accounts returns the final state of every account touched by the delta.
func (d *Delta) Accounts() map[common.Address]*Account {
	accounts := make(map[common.Address]*Account)
	for _, b := range d.blocks {
		for addr, acc := range b.accounts {
			accounts[addr] = acc.Copy()
		}
	}
	return accounts
}

// StorageChanges returns the combined storage change of every account touched
// by the delta.
func (d *Delta) StorageChanges() map[common.Address]*StorageChange {
	changes := make(map[common.Address]*StorageChange)
	for _, b := range d.blocks {
		for addr, st := range b.storage {
			if st.Wiped {
				changes[addr] = st.copy()
				continue
			}
			merged, ok := changes[addr]
			if !ok {
				changes[addr] = st.copy()
				continue
			}
			maps.Copy(merged.Slots, st.Slots)
		}
	}
	return changes
}

// Receipts returns the receipts of all blocks in block order.
func (d *Delta) Receipts() types.Receipts {
	var receipts types.Receipts
	for _, b := range d.blocks {
		receipts = append(receipts, b.receipts...)
	}
	return receipts
}

// ReceiptsAt returns the receipts of a single block.
func (d *Delta) ReceiptsAt(number uint64) (types.Receipts, bool) {
	for _, b := range d.blocks {
		if b.number == number {
			return append(types.Receipts{}, b.receipts...), true
		}
	}
	return nil, false
}

// Equal reports whether two deltas record exactly the same changes.
func (d *Delta) Equal(other *Delta) bool {
	if len(d.blocks) != len(other.blocks) {
		return false
	}
	for i := range d.blocks {
		if !reflect.DeepEqual(d.blocks[i], other.blocks[i]) {
			return false
		}
	}
	return true
}

func (d *Delta) String() string {
	if d.Empty() {
		return "delta{}"
	}
	first, _ := d.First()
	last, _ := d.Last()
	return fmt.Sprintf("delta{%d..%d}", first, last)
}
