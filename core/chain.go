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

package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/symphonyorg/go-symphony/core/state"
)

// AppendableChain is a side chain: a contiguous run of blocks on top of a
// canonical block, together with the state changes of executing them.
//
// The state is always relative to the canonical fork point. A chain forked
// off another side chain therefore carries the changes of the source's blocks
// up to the fork, while listing only its own blocks.
//
// An AppendableChain is not safe for concurrent mutation.
type AppendableChain struct {
	blocks []*BlockWithSenders // ascending, contiguous block numbers
	state  *state.Delta
}

// NewCanonicalFork creates a single block chain on top of the canonical
// block parent.
func NewCanonicalFork(block *BlockWithSenders, parent *types.Header, canonicalHashes map[uint64]common.Hash, canonicalFork ForkBlock, ext *Externals) (*AppendableChain, error) {
	post := &state.PostStateDataRef{
		Delta:                state.NewDelta(),
		SidechainBlockHashes: make(map[uint64]common.Hash),
		CanonicalBlockHashes: canonicalHashes,
		Fork:                 canonicalFork,
	}
	changes, err := ValidateAndExecute(block, parent, canonicalFork, post, ext)
	if err != nil {
		return nil, err
	}
	delta := state.NewDelta()
	if err := delta.Extend(changes); err != nil {
		return nil, err
	}
	return &AppendableChain{blocks: []*BlockWithSenders{block}, state: delta}, nil
}

// NewChainFork creates a new chain holding block, whose parent is one of the
// blocks of c. The state of c up to the parent is reused; c is not modified.
func (c *AppendableChain) NewChainFork(block *BlockWithSenders, sidechainHashes map[uint64]common.Hash, canonicalHashes map[uint64]common.Hash, canonicalFork ForkBlock, ext *Externals) (*AppendableChain, error) {
	number := block.NumberU64()
	if number == 0 {
		return nil, &BlockNumberNotFoundError{Number: 0}
	}
	parent := c.Block(number - 1)
	if parent == nil {
		return nil, &BlockNumberNotFoundError{Number: number - 1}
	}
	delta := c.state.Copy()
	delta.RevertTo(number - 1)

	post := &state.PostStateDataRef{
		Delta:                delta,
		SidechainBlockHashes: sidechainHashes,
		CanonicalBlockHashes: canonicalHashes,
		Fork:                 canonicalFork,
	}
	changes, err := ValidateAndExecute(block, parent.Header(), canonicalFork, post, ext)
	if err != nil {
		return nil, err
	}
	if err := delta.Extend(changes); err != nil {
		return nil, err
	}
	return &AppendableChain{blocks: []*BlockWithSenders{block}, state: delta}, nil
}

// AppendBlock validates and executes block on top of the tip of c and appends
// it. On error c is left unchanged.
func (c *AppendableChain) AppendBlock(block *BlockWithSenders, sidechainHashes map[uint64]common.Hash, canonicalHashes map[uint64]common.Hash, canonicalFork ForkBlock, ext *Externals) error {
	post := &state.PostStateDataRef{
		Delta:                c.state,
		SidechainBlockHashes: sidechainHashes,
		CanonicalBlockHashes: canonicalHashes,
		Fork:                 canonicalFork,
	}
	changes, err := ValidateAndExecute(block, c.Tip().Header(), canonicalFork, post, ext)
	if err != nil {
		return err
	}
	if err := c.state.Extend(changes); err != nil {
		return err
	}
	c.blocks = append(c.blocks, block)
	return nil
}

// Blocks returns the blocks of the chain in ascending order.
func (c *AppendableChain) Blocks() []*BlockWithSenders {
	return append([]*BlockWithSenders(nil), c.blocks...)
}

// Block returns the block with the given number, or nil if the chain does not
// contain it.
func (c *AppendableChain) Block(number uint64) *BlockWithSenders {
	first := c.blocks[0].NumberU64()
	if number < first || number-first >= uint64(len(c.blocks)) {
		return nil
	}
	return c.blocks[number-first]
}

// Tip returns the highest block of the chain.
func (c *AppendableChain) Tip() *BlockWithSenders { return c.blocks[len(c.blocks)-1] }

// First returns the lowest block of the chain.
func (c *AppendableChain) First() *BlockWithSenders { return c.blocks[0] }

// Len returns the number of blocks in the chain.
func (c *AppendableChain) Len() int { return len(c.blocks) }

// State returns the accumulated state changes of the chain. The returned delta
// must not be modified.
func (c *AppendableChain) State() *state.Delta { return c.state }

// BlockHashes maps the numbers of the chain's blocks to their hashes.
func (c *AppendableChain) BlockHashes() map[uint64]common.Hash {
	hashes := make(map[uint64]common.Hash, len(c.blocks))
	for _, block := range c.blocks {
		hashes[block.NumberU64()] = block.Hash()
	}
	return hashes
}

// Receipts returns the receipts of the chain's own blocks.
func (c *AppendableChain) Receipts() types.Receipts {
	var receipts types.Receipts
	for _, block := range c.blocks {
		r, _ := c.state.ReceiptsAt(block.NumberU64())
		receipts = append(receipts, r...)
	}
	return receipts
}

// SplitAt splits the chain into the blocks up to and including number and the
// blocks above it. The state of the upper part becomes relative to block
// number. A half without blocks is returned as nil.
func (c *AppendableChain) SplitAt(number uint64) (*AppendableChain, *AppendableChain) {
	idx := len(c.blocks)
	for i, block := range c.blocks {
		if block.NumberU64() > number {
			idx = i
			break
		}
	}
	head, tail := c.state.SplitAt(number)

	var lower, upper *AppendableChain
	if idx > 0 {
		lower = &AppendableChain{blocks: append([]*BlockWithSenders(nil), c.blocks[:idx]...), state: head}
	}
	if idx < len(c.blocks) {
		upper = &AppendableChain{blocks: append([]*BlockWithSenders(nil), c.blocks[idx:]...), state: tail}
	}
	return lower, upper
}
