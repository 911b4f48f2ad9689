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
	"errors"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/symphonyorg/go-symphony/core/state"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var (
	sidechainAppendMeter    = metrics.NewRegisteredMeter("chain/sidechain/append", nil)
	sidechainForkMeter      = metrics.NewRegisteredMeter("chain/sidechain/fork", nil)
	sidechainCanonicalMeter = metrics.NewRegisteredMeter("chain/sidechain/canonical", nil)
	sidechainDropMeter      = metrics.NewRegisteredMeter("chain/sidechain/drop", nil)
)

var errNotOnCanonicalTip = errors.New("chain does not extend the canonical head")

// ChainID identifies a side chain within a BlockchainTree.
type ChainID uint64

// historyCommitter is implemented by history providers that accept newly
// canonical blocks.
type historyCommitter interface {
	CommitDelta(delta *state.Delta, hashes map[uint64]common.Hash) error
}

// treeChain is a side chain together with where it is anchored.
type treeChain struct {
	chain *AppendableChain
	fork  ForkBlock

	// Hashes of the side chain blocks below the first block of the chain,
	// inherited from the chain it was forked off.
	inherited map[uint64]common.Hash
}

// sidechainHashes returns the hashes of all side chain blocks visible from
// the tip of c.
func (c *treeChain) sidechainHashes() map[uint64]common.Hash {
	hashes := maps.Clone(c.inherited)
	maps.Copy(hashes, c.chain.BlockHashes())
	return hashes
}

// BlockchainTree tracks the side chains built on top of a window of canonical
// blocks. Side chains are kept in an arena keyed by ChainID; forking a side
// chain adds a new entry and never modifies the source.
type BlockchainTree struct {
	ext *Externals

	chains     map[ChainID]*treeChain
	nextID     ChainID
	blockIndex map[common.Hash]ChainID                 // side chain block -> owning chain
	children   map[common.Hash]mapset.Set[common.Hash] // parent -> side chain children

	canonical        map[uint64]common.Hash        // canonical window by number
	canonicalHeaders map[common.Hash]*types.Header // canonical window by hash

	lock sync.RWMutex
	log  log.Logger
}

// NewBlockchainTree creates an empty tree. The canonical window has to be set
// with SetCanonicalHeaders before blocks can be inserted.
func NewBlockchainTree(ext *Externals) *BlockchainTree {
	return &BlockchainTree{
		ext:              ext,
		chains:           make(map[ChainID]*treeChain),
		blockIndex:       make(map[common.Hash]ChainID),
		children:         make(map[common.Hash]mapset.Set[common.Hash]),
		canonical:        make(map[uint64]common.Hash),
		canonicalHeaders: make(map[common.Hash]*types.Header),
		log:              log.New("module", "tree"),
	}
}

// SetCanonicalHeaders replaces the window of canonical blocks side chains may
// fork off from.
func (bt *BlockchainTree) SetCanonicalHeaders(headers []*types.Header) {
	bt.lock.Lock()
	defer bt.lock.Unlock()

	bt.canonical = make(map[uint64]common.Hash, len(headers))
	bt.canonicalHeaders = make(map[common.Hash]*types.Header, len(headers))
	for _, header := range headers {
		bt.addCanonical(header)
	}
}

func (bt *BlockchainTree) addCanonical(header *types.Header) {
	hash := header.Hash()
	bt.canonical[header.Number.Uint64()] = hash
	bt.canonicalHeaders[hash] = types.CopyHeader(header)
}

// canonicalHead returns the highest block of the canonical window.
func (bt *BlockchainTree) canonicalHead() (ForkBlock, bool) {
	if len(bt.canonical) == 0 {
		return ForkBlock{}, false
	}
	numbers := maps.Keys(bt.canonical)
	slices.Sort(numbers)
	number := numbers[len(numbers)-1]
	return ForkBlock{Number: number, Hash: bt.canonical[number]}, true
}

// InsertBlock adds block to the tree. Depending on where its parent is, the
// block starts a new chain off the canonical window, extends the tip of a side
// chain, or forks a side chain at an interior block. The id of the chain now
// holding the block is returned.
func (bt *BlockchainTree) InsertBlock(block *BlockWithSenders) (ChainID, error) {
	bt.lock.Lock()
	defer bt.lock.Unlock()

	hash, number := block.Hash(), block.NumberU64()
	if _, ok := bt.blockIndex[hash]; ok {
		return 0, ErrKnownBlock
	}
	if _, ok := bt.canonicalHeaders[hash]; ok {
		return 0, ErrKnownBlock
	}
	parentHash := block.ParentHash()
	canonicalHashes := maps.Clone(bt.canonical)

	var (
		id  ChainID
		err error
	)
	switch {
	case bt.canonicalHeaders[parentHash] != nil:
		id, err = bt.insertCanonicalFork(block, bt.canonicalHeaders[parentHash], canonicalHashes)

	case bt.hasSidechainBlock(parentHash):
		source := bt.chains[bt.blockIndex[parentHash]]
		if source.chain.Tip().Hash() == parentHash {
			id = bt.blockIndex[parentHash]
			err = source.chain.AppendBlock(block, source.sidechainHashes(), canonicalHashes, source.fork, bt.ext)
			if err == nil {
				sidechainAppendMeter.Mark(1)
				bt.log.Debug("Extended side chain", "chain", id, "number", number, "hash", hash)
			}
		} else {
			id, err = bt.insertChainFork(block, source, canonicalHashes)
		}

	default:
		return 0, fmt.Errorf("%w: block #%d [%x…] parent %x", ErrUnknownAncestor, number, hash[:4], parentHash)
	}
	if err != nil {
		bt.log.Debug("Rejected side chain block", "number", number, "hash", hash, "err", err)
		return 0, err
	}
	bt.blockIndex[hash] = id
	bt.addChild(parentHash, hash)
	return id, nil
}

func (bt *BlockchainTree) hasSidechainBlock(hash common.Hash) bool {
	_, ok := bt.blockIndex[hash]
	return ok
}

func (bt *BlockchainTree) insertCanonicalFork(block *BlockWithSenders, parent *types.Header, canonicalHashes map[uint64]common.Hash) (ChainID, error) {
	fork := ForkBlock{Number: parent.Number.Uint64(), Hash: parent.Hash()}
	chain, err := NewCanonicalFork(block, parent, canonicalHashes, fork, bt.ext)
	if err != nil {
		return 0, err
	}
	id := bt.addChain(&treeChain{chain: chain, fork: fork, inherited: make(map[uint64]common.Hash)})
	bt.log.Debug("Started side chain", "chain", id, "number", block.NumberU64(), "hash", block.Hash(), "fork", fork.Number)
	return id, nil
}

func (bt *BlockchainTree) insertChainFork(block *BlockWithSenders, source *treeChain, canonicalHashes map[uint64]common.Hash) (ChainID, error) {
	parentNumber := block.NumberU64() - 1

	inherited := source.sidechainHashes()
	for number := range inherited {
		if number > parentNumber {
			delete(inherited, number)
		}
	}
	chain, err := source.chain.NewChainFork(block, inherited, canonicalHashes, source.fork, bt.ext)
	if err != nil {
		return 0, err
	}
	id := bt.addChain(&treeChain{chain: chain, fork: source.fork, inherited: inherited})
	sidechainForkMeter.Mark(1)
	bt.log.Debug("Forked side chain", "chain", id, "number", block.NumberU64(), "hash", block.Hash(), "parent", parentNumber)
	return id, nil
}

func (bt *BlockchainTree) addChain(chain *treeChain) ChainID {
	id := bt.nextID
	bt.nextID++
	bt.chains[id] = chain
	return id
}

func (bt *BlockchainTree) addChild(parent, child common.Hash) {
	set, ok := bt.children[parent]
	if !ok {
		set = mapset.NewThreadUnsafeSet[common.Hash]()
		bt.children[parent] = set
	}
	set.Add(child)
}

// Chain returns the side chain with the given id.
func (bt *BlockchainTree) Chain(id ChainID) (*AppendableChain, bool) {
	bt.lock.RLock()
	defer bt.lock.RUnlock()

	c, ok := bt.chains[id]
	if !ok {
		return nil, false
	}
	return c.chain, true
}

// ChainIDs returns the ids of all side chains in ascending order.
func (bt *BlockchainTree) ChainIDs() []ChainID {
	bt.lock.RLock()
	defer bt.lock.RUnlock()

	ids := maps.Keys(bt.chains)
	slices.Sort(ids)
	return ids
}

// FindCanonicalFork returns the canonical block the block with the given hash
// descends from. A canonical block is its own fork point.
func (bt *BlockchainTree) FindCanonicalFork(hash common.Hash) (ForkBlock, bool) {
	bt.lock.RLock()
	defer bt.lock.RUnlock()

	if id, ok := bt.blockIndex[hash]; ok {
		return bt.chains[id].fork, true
	}
	if header, ok := bt.canonicalHeaders[hash]; ok {
		return ForkBlock{Number: header.Number.Uint64(), Hash: hash}, true
	}
	return ForkBlock{}, false
}

// RemoveChain drops a side chain together with every chain built on top of
// one of its blocks.
func (bt *BlockchainTree) RemoveChain(id ChainID) error {
	bt.lock.Lock()
	defer bt.lock.Unlock()

	if _, ok := bt.chains[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChain, id)
	}
	bt.removeChain(id)
	return nil
}

// removeChain drops chain id and its descendants. Descendant chains are found
// through the child index of the removed blocks.
func (bt *BlockchainTree) removeChain(id ChainID) {
	c, ok := bt.chains[id]
	if !ok {
		return
	}
	delete(bt.chains, id)
	sidechainDropMeter.Mark(1)

	for _, block := range c.chain.Blocks() {
		hash := block.Hash()
		delete(bt.blockIndex, hash)
		bt.unlinkChild(block.ParentHash(), hash)

		children, ok := bt.children[hash]
		if !ok {
			continue
		}
		for _, child := range children.ToSlice() {
			if childID, ok := bt.blockIndex[child]; ok && childID != id {
				bt.removeChain(childID)
			}
		}
		delete(bt.children, hash)
	}
	bt.log.Debug("Removed side chain", "chain", id, "blocks", c.chain.Len())
}

func (bt *BlockchainTree) unlinkChild(parent, child common.Hash) {
	if set, ok := bt.children[parent]; ok {
		set.Remove(child)
		if set.Cardinality() == 0 {
			delete(bt.children, parent)
		}
	}
}

// CanonicalizeChain makes the side chain id canonical. The chain has to
// branch off the head of the canonical window. Its blocks join the window,
// chains built on top of it are dropped, and if the history provider accepts
// commits its state is committed. The removed chain is returned.
//
// The commit happens first and in a single write. If it fails, neither the
// history nor the tree changes.
func (bt *BlockchainTree) CanonicalizeChain(id ChainID) (*AppendableChain, error) {
	bt.lock.Lock()
	defer bt.lock.Unlock()

	c, ok := bt.chains[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChain, id)
	}
	head, ok := bt.canonicalHead()
	if !ok || head != c.fork || len(c.inherited) != 0 {
		return nil, fmt.Errorf("%w: chain %d forks at #%d", errNotOnCanonicalTip, id, c.fork.Number)
	}
	if committer, ok := bt.ext.Database.(historyCommitter); ok {
		if err := committer.CommitDelta(c.chain.State(), c.chain.BlockHashes()); err != nil {
			return nil, err
		}
	}
	bt.removeChain(id)
	for _, block := range c.chain.Blocks() {
		bt.addCanonical(block.Header())
	}
	sidechainCanonicalMeter.Mark(int64(c.chain.Len()))

	tip := c.chain.Tip()
	bt.log.Info("Side chain became canonical", "chain", id, "blocks", c.chain.Len(), "number", tip.NumberU64(), "hash", tip.Hash())
	return c.chain, nil
}
