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

package params

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ForkKind tags the axis a ForkCondition activates on.
type ForkKind uint8

const (
	ForkNever ForkKind = iota
	ForkBlock
	ForkTTD
	ForkTimestamp
)

// ForkCondition is the condition at which a hardfork activates. The zero
// value never activates.
//
// The struct is comparable, two conditions are equal if they activate at the
// same point on the same axis.
type ForkCondition struct {
	kind      ForkKind
	block     uint64      // activation block, or the known TTD block if hasBlock
	hasBlock  bool        // TTD only: whether the activation block is known
	ttd       uint256.Int // TTD only: total difficulty threshold
	timestamp uint64
}

// Never is the condition of a fork that is not scheduled.
var Never = ForkCondition{}

// BlockCondition activates a fork at the given block number.
func BlockCondition(number uint64) ForkCondition {
	return ForkCondition{kind: ForkBlock, block: number}
}

// TTDCondition activates a fork once the total difficulty of the parent block
// reaches ttd. The activation block should only be supplied if it is meant to
// be advertised as a fork id threshold.
func TTDCondition(ttd *uint256.Int, forkBlock *uint64) ForkCondition {
	c := ForkCondition{kind: ForkTTD}
	if ttd != nil {
		c.ttd = *ttd
	}
	if forkBlock != nil {
		c.block, c.hasBlock = *forkBlock, true
	}
	return c
}

// TimestampCondition activates a fork at the given unix time.
func TimestampCondition(time uint64) ForkCondition {
	return ForkCondition{kind: ForkTimestamp, timestamp: time}
}

// Kind returns the axis the condition activates on.
func (c ForkCondition) Kind() ForkKind { return c.kind }

// IsTimestamp reports whether the fork activates by timestamp.
func (c ForkCondition) IsTimestamp() bool { return c.kind == ForkTimestamp }

// ActiveAtBlock checks whether the condition is satisfied at the given block.
//
// TTD conditions only ever match if their activation block is already known.
// Timestamp conditions never match.
func (c ForkCondition) ActiveAtBlock(number uint64) bool {
	switch c.kind {
	case ForkBlock:
		return number >= c.block
	case ForkTTD:
		return c.hasBlock && number >= c.block
	}
	return false
}

// TransitionsAtBlock reports whether number is the first block satisfying a
// block based condition. Any other condition never transitions by number.
func (c ForkCondition) TransitionsAtBlock(number uint64) bool {
	return c.kind == ForkBlock && number == c.block
}

// ActiveAtTTD checks whether a TTD condition is satisfied for a block with the
// given total difficulty and own difficulty.
//
// The fork is active if the parent's total difficulty (td - difficulty,
// saturating at zero) is at or above the threshold.
func (c ForkCondition) ActiveAtTTD(td, difficulty *uint256.Int) bool {
	if c.kind != ForkTTD {
		return false
	}
	return saturatingSub(td, difficulty).Cmp(&c.ttd) >= 0
}

// ActiveAtTimestamp checks whether a timestamp condition is satisfied.
func (c ForkCondition) ActiveAtTimestamp(time uint64) bool {
	return c.kind == ForkTimestamp && time >= c.timestamp
}

// ActiveAtHead checks the condition against the block number, the timestamp
// and the total difficulty of head.
func (c ForkCondition) ActiveAtHead(head *Head) bool {
	return c.ActiveAtBlock(head.Number) ||
		c.ActiveAtTimestamp(head.Timestamp) ||
		c.ActiveAtTTD(head.TotalDifficulty, head.Difficulty)
}

// TTD returns the total difficulty threshold of a TTD condition.
func (c ForkCondition) TTD() (*uint256.Int, bool) {
	if c.kind != ForkTTD {
		return nil, false
	}
	return new(uint256.Int).Set(&c.ttd), true
}

// ForkBlock returns the activation block of a block condition, or the known
// activation block of a TTD condition.
func (c ForkCondition) ForkBlock() (uint64, bool) {
	switch c.kind {
	case ForkBlock:
		return c.block, true
	case ForkTTD:
		return c.block, c.hasBlock
	}
	return 0, false
}

// AsTimestamp returns the activation time of a timestamp condition.
func (c ForkCondition) AsTimestamp() (uint64, bool) {
	if c.kind != ForkTimestamp {
		return 0, false
	}
	return c.timestamp, true
}

// Threshold returns the value this condition contributes to a fork id: the
// block number for block conditions and TTD conditions with a known block,
// the time for timestamp conditions. Other conditions have none.
func (c ForkCondition) Threshold() (uint64, bool) {
	switch c.kind {
	case ForkBlock:
		return c.block, true
	case ForkTTD:
		return c.block, c.hasBlock
	case ForkTimestamp:
		return c.timestamp, true
	}
	return 0, false
}

// Satisfy returns a head at which the condition is active. It returns false
// for Never.
func (c ForkCondition) Satisfy() (Head, bool) {
	switch c.kind {
	case ForkBlock:
		return Head{Number: c.block}, true
	case ForkTimestamp:
		return Head{Timestamp: c.timestamp}, true
	case ForkTTD:
		return Head{TotalDifficulty: new(uint256.Int).Set(&c.ttd)}, true
	}
	return Head{}, false
}

func (c ForkCondition) String() string {
	switch c.kind {
	case ForkBlock:
		return fmt.Sprintf("block(%d)", c.block)
	case ForkTTD:
		if c.hasBlock {
			return fmt.Sprintf("ttd(%s, block %d)", c.ttd.Dec(), c.block)
		}
		return fmt.Sprintf("ttd(%s)", c.ttd.Dec())
	case ForkTimestamp:
		return fmt.Sprintf("timestamp(%d)", c.timestamp)
	}
	return "never"
}

// Head describes the tip of a chain as far as fork activation is concerned.
type Head struct {
	Hash            common.Hash
	Number          uint64
	Timestamp       uint64
	Difficulty      *uint256.Int
	TotalDifficulty *uint256.Int
}

func saturatingSub(a, b *uint256.Int) *uint256.Int {
	if a == nil {
		return new(uint256.Int)
	}
	if b == nil {
		return new(uint256.Int).Set(a)
	}
	if a.Lt(b) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}
