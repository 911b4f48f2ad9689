// Copyright 2016 The go-ethereum Authors
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

package params

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ForkTimestamps caches the activation times of timestamp based forks that
// are looked up on hot paths.
type ForkTimestamps struct {
	Shanghai *uint64
}

func forkTimestampsFrom(hardforks map[Hardfork]ForkCondition) ForkTimestamps {
	var ts ForkTimestamps
	if time, ok := hardforks[Shanghai].AsTimestamp(); ok {
		ts.Shanghai = &time
	}
	return ts
}

// HardforkCondition pairs a hardfork with its activation condition.
type HardforkCondition struct {
	Fork      Hardfork
	Condition ForkCondition
}

// ChainSpec is the core config which determines the blockchain settings.
//
// A ChainSpec is immutable once built and is meant to be shared by pointer
// between every component that consults the protocol rules.
type ChainSpec struct {
	chain          Chain
	genesis        Genesis
	genesisHash    *common.Hash // overrides the derived genesis hash if set
	hardforks      map[Hardfork]ForkCondition
	forkTimestamps ForkTimestamps

	// Block at which Paris activated and the difficulty the chain
	// finished with. Only known for networks that went through the merge.
	parisBlock           *uint64
	parisFinalDifficulty *uint256.Int

	// Skip the pre-merge extra-data size check. Set for networks whose
	// history carries oversized extra-data before the merge.
	legacyExtraData bool
}

// Chain returns the chain identifier of the spec.
func (c *ChainSpec) Chain() Chain { return c.chain }

// Genesis returns the genesis parameters. The caller must not modify them.
func (c *ChainSpec) Genesis() *Genesis { return &c.genesis }

// ForkTimestamps returns the cached activation times of timestamp forks.
func (c *ChainSpec) ForkTimestamps() ForkTimestamps { return c.forkTimestamps }

// Fork returns the activation condition of the given hardfork, Never if the
// spec does not schedule it.
func (c *ChainSpec) Fork(fork Hardfork) ForkCondition {
	if cond, ok := c.hardforks[fork]; ok {
		return cond
	}
	return Never
}

// Forks returns the scheduled hardforks in activation order.
func (c *ChainSpec) Forks() []HardforkCondition {
	keys := maps.Keys(c.hardforks)
	slices.Sort(keys)

	forks := make([]HardforkCondition, 0, len(keys))
	for _, fork := range keys {
		forks = append(forks, HardforkCondition{Fork: fork, Condition: c.hardforks[fork]})
	}
	return forks
}

// IsForkActiveAtBlock checks whether the fork is active at the given block.
func (c *ChainSpec) IsForkActiveAtBlock(fork Hardfork, number uint64) bool {
	return c.Fork(fork).ActiveAtBlock(number)
}

// IsForkActiveAtTimestamp checks whether the fork is active at the given time.
func (c *ChainSpec) IsForkActiveAtTimestamp(fork Hardfork, time uint64) bool {
	return c.Fork(fork).ActiveAtTimestamp(time)
}

// IsShanghaiActiveAtTimestamp checks whether Shanghai is active at the given
// time.
func (c *ChainSpec) IsShanghaiActiveAtTimestamp(time uint64) bool {
	return c.forkTimestamps.Shanghai != nil && time >= *c.forkTimestamps.Shanghai
}

// FinalParisDifficulty returns the final difficulty of the chain if number is
// at or after the Paris activation block.
func (c *ChainSpec) FinalParisDifficulty(number uint64) (*uint256.Int, bool) {
	if c.parisBlock == nil || number < *c.parisBlock {
		return nil, false
	}
	return new(uint256.Int).Set(c.parisFinalDifficulty), true
}

// InitialBaseFee returns the base fee of the genesis block, which is only set
// if London is active at genesis.
func (c *ChainSpec) InitialBaseFee() (uint64, bool) {
	if c.Fork(London).ActiveAtBlock(0) {
		return InitialBaseFee, true
	}
	return 0, false
}

// SkipsPreMergeExtraDataCheck reports whether pre-merge headers are exempt
// from the extra-data size limit.
func (c *ChainSpec) SkipsPreMergeExtraDataCheck() bool { return c.legacyExtraData }

// GenesisHeader assembles the header of the genesis block.
func (c *ChainSpec) GenesisHeader() *types.Header {
	g := &c.genesis
	head := &types.Header{
		Number:      new(big.Int),
		Nonce:       types.EncodeNonce(g.Nonce),
		Time:        g.Timestamp,
		Extra:       common.CopyBytes(g.ExtraData),
		GasLimit:    g.GasLimit,
		Difficulty:  new(big.Int),
		MixDigest:   g.Mixhash,
		Coinbase:    g.Coinbase,
		Root:        g.Alloc.StateRoot(),
		UncleHash:   types.EmptyUncleHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
	}
	if g.Difficulty != nil {
		head.Difficulty.Set(g.Difficulty)
	}
	if fee, ok := c.InitialBaseFee(); ok {
		head.BaseFee = new(big.Int).SetUint64(fee)
	}
	if c.Fork(Shanghai).ActiveAtTimestamp(g.Timestamp) {
		root := types.EmptyWithdrawalsHash
		head.WithdrawalsHash = &root
	}
	return head
}

// GenesisHash returns the hash of the genesis block.
func (c *ChainSpec) GenesisHash() common.Hash {
	if c.genesisHash != nil {
		return *c.genesisHash
	}
	return c.GenesisHeader().Hash()
}

// CheckForkOrder checks that the scheduled forks activate in order: block
// numbers never decrease and no block based fork follows a timestamp based
// one.
func (c *ChainSpec) CheckForkOrder() error {
	var (
		last      HardforkCondition
		seenBlock bool
		seenTime  bool
	)
	for _, cur := range c.Forks() {
		switch cur.Condition.Kind() {
		case ForkBlock, ForkTTD:
			number, ok := cur.Condition.ForkBlock()
			if seenTime && (ok || cur.Condition.Kind() == ForkBlock) {
				return fmt.Errorf("unsupported fork ordering: %v enabled by block after timestamp fork %v", cur.Fork, last.Fork)
			}
			if !ok {
				continue
			}
			if prev, prevOK := last.Condition.ForkBlock(); seenBlock && prevOK && prev > number {
				return fmt.Errorf("unsupported fork ordering: %v enabled at block %d, but %v enabled at block %d", last.Fork, prev, cur.Fork, number)
			}
			seenBlock = true
		case ForkTimestamp:
			time, _ := cur.Condition.AsTimestamp()
			if prev, ok := last.Condition.AsTimestamp(); ok && prev > time {
				return fmt.Errorf("unsupported fork ordering: %v enabled at timestamp %d, but %v enabled at timestamp %d", last.Fork, prev, cur.Fork, time)
			}
			seenTime = true
		default:
			continue
		}
		last = cur
	}
	return nil
}

func (c *ChainSpec) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{Chain: %v", c.chain)
	for _, f := range c.Forks() {
		fmt.Fprintf(&b, " %v: %v", f.Fork, f.Condition)
	}
	b.WriteString("}")
	return b.String()
}
