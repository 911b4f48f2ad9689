// Copyright 2015 The go-ethereum Authors
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
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
	"github.com/symphonyorg/go-symphony/consensus"
	"github.com/symphonyorg/go-symphony/consensus/misc"
	"github.com/symphonyorg/go-symphony/core/state"
	"github.com/symphonyorg/go-symphony/params"
)

var (
	blockValidationTimer = metrics.NewRegisteredTimer("chain/validation", nil)
	blockExecutionTimer  = metrics.NewRegisteredTimer("chain/execution", nil)
	invalidBlockMeter    = metrics.NewRegisteredMeter("chain/invalid", nil)
)

// timeNow is the clock future blocks are checked against.
var timeNow = time.Now

// ValidateAndExecute checks block against the consensus rules and its parent,
// then executes it on top of the canonical state at canonicalFork overlaid
// with the uncommitted side chain data of post. It returns the state changes
// of block.
//
// Checks run in a fixed order and the first failure is returned. Nothing is
// written anywhere.
func ValidateAndExecute(block *BlockWithSenders, parent *types.Header, canonicalFork ForkBlock, post state.PostStateData, ext *Externals) (*state.Delta, error) {
	start := time.Now()
	spec := ext.ChainSpec

	if err := validateHeaderStandalone(spec, block.Header()); err != nil {
		invalidBlockMeter.Mark(1)
		return nil, err
	}
	if err := validateHeaderAgainstParent(spec, block.Header(), parent); err != nil {
		invalidBlockMeter.Mark(1)
		return nil, err
	}
	if err := validateBody(spec, block.Block); err != nil {
		invalidBlockMeter.Mark(1)
		return nil, err
	}
	blockValidationTimer.UpdateSince(start)

	start = time.Now()
	history, err := ext.Database.HistoryByBlockNumber(canonicalFork.Number)
	if err != nil {
		return nil, fmt.Errorf("state of canonical block #%d: %w", canonicalFork.Number, err)
	}
	executor := ext.ExecutorFactory.WithStateProvider(state.NewPostStateReader(history, post))
	delta, err := executor.ExecuteAndVerifyReceipt(block.Block, params.MaxTotalDifficulty, block.Senders)
	if err != nil {
		invalidBlockMeter.Mark(1)
		return nil, &ExecutionError{Number: block.NumberU64(), Hash: block.Hash(), Err: err}
	}
	if delta == nil {
		delta = state.NewBlockDelta(block.NumberU64())
	}
	blockExecutionTimer.UpdateSince(start)
	return delta, nil
}

// validateHeaderStandalone checks the header fields that do not depend on
// the parent: the merge rules first, then well-formedness.
func validateHeaderStandalone(spec *params.ChainSpec, header *types.Header) error {
	// Every block handled here is executed with the maximum total difficulty,
	// so a TTD based merge is active for all of them.
	difficulty := new(uint256.Int)
	if header.Difficulty != nil {
		var overflow bool
		if difficulty, overflow = uint256.FromBig(header.Difficulty); overflow {
			difficulty.SetAllOne()
		}
	}
	if spec.Fork(params.Paris).ActiveAtTTD(params.MaxTotalDifficulty, difficulty) {
		if header.Difficulty != nil && header.Difficulty.Sign() != 0 {
			return consensus.NewError(consensus.ErrTheMergeDifficultyIsNotZero, header.Difficulty, 0)
		}
		if header.Nonce != (types.BlockNonce{}) {
			return consensus.NewError(consensus.ErrTheMergeNonceIsNotZero, header.Nonce.Uint64(), 0)
		}
		if header.UncleHash != types.EmptyUncleHash {
			return consensus.NewError(consensus.ErrTheMergeOmmerRootIsNotEmpty, header.UncleHash, types.EmptyUncleHash)
		}
		if err := verifyExtraData(header); err != nil {
			return err
		}
	} else if !spec.SkipsPreMergeExtraDataCheck() {
		if err := verifyExtraData(header); err != nil {
			return err
		}
	}

	if header.GasUsed > header.GasLimit {
		return consensus.NewError(consensus.ErrGasUsedExceedsGasLimit, header.GasUsed, header.GasLimit)
	}
	if now := uint64(timeNow().Unix()); header.Time > now {
		return consensus.NewError(consensus.ErrTimestampIsInFuture, header.Time, now)
	}

	number := header.Number.Uint64()
	london := spec.Fork(params.London).ActiveAtBlock(number)
	if london && header.BaseFee == nil {
		return consensus.ErrBaseFeeMissing
	}
	if !london && header.BaseFee != nil {
		return consensus.ErrBaseFeeUnexpected
	}

	shanghai := spec.IsShanghaiActiveAtTimestamp(header.Time)
	if shanghai && header.WithdrawalsHash == nil {
		return consensus.ErrWithdrawalsRootMissing
	}
	if !shanghai && header.WithdrawalsHash != nil {
		return consensus.ErrWithdrawalsRootUnexpected
	}
	return nil
}

func verifyExtraData(header *types.Header) error {
	if uint64(len(header.Extra)) > params.MaximumExtraDataSize {
		return consensus.NewError(consensus.ErrExtraDataExceedsMax, len(header.Extra), params.MaximumExtraDataSize)
	}
	return nil
}

// validateHeaderAgainstParent checks the header fields that are derived from
// the parent.
func validateHeaderAgainstParent(spec *params.ChainSpec, header, parent *types.Header) error {
	number := header.Number.Uint64()
	if want := parent.Number.Uint64() + 1; number != want {
		return consensus.NewError(consensus.ErrParentBlockNumberMismatch, number, want)
	}
	if header.Time < parent.Time {
		return consensus.NewError(consensus.ErrTimestampIsInPast, header.Time, parent.Time)
	}
	parentGasLimit := misc.ParentGasLimit(spec, parent.GasLimit, number)
	if err := misc.VerifyGaslimit(parentGasLimit, header.GasLimit); err != nil {
		return err
	}
	return misc.VerifyEip1559Header(spec, parent, header)
}

// validateBody checks the body of block against the commitments of its
// header.
func validateBody(spec *params.ChainSpec, block *types.Block) error {
	header := block.Header()
	if hash := types.CalcUncleHash(block.Uncles()); hash != header.UncleHash {
		return consensus.NewError(consensus.ErrBodyOmmersHashDiff, hash, header.UncleHash)
	}
	if hash := types.DeriveSha(block.Transactions(), trie.NewStackTrie(nil)); hash != header.TxHash {
		return consensus.NewError(consensus.ErrBodyTransactionRootDiff, hash, header.TxHash)
	}
	if !spec.IsShanghaiActiveAtTimestamp(header.Time) {
		return nil
	}
	withdrawals := block.Withdrawals()
	if withdrawals == nil {
		return consensus.ErrBodyWithdrawalsMissing
	}
	if header.WithdrawalsHash == nil {
		return consensus.ErrWithdrawalsRootMissing
	}
	if hash := types.DeriveSha(withdrawals, trie.NewStackTrie(nil)); hash != *header.WithdrawalsHash {
		return consensus.NewError(consensus.ErrBodyWithdrawalsRootDiff, hash, *header.WithdrawalsHash)
	}
	// Indices are consecutive starting at the first withdrawal's own index.
	if len(withdrawals) > 0 {
		want := withdrawals[0].Index
		for _, w := range withdrawals {
			if w.Index != want {
				return consensus.NewError(consensus.ErrWithdrawalIndexInvalid, w.Index, want)
			}
			want++
		}
	}
	return nil
}
