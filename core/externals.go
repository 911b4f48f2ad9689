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
	"github.com/holiman/uint256"
	"github.com/symphonyorg/go-symphony/core/state"
	"github.com/symphonyorg/go-symphony/params"
)

// ForkBlock is the canonical block a side chain branches off from.
type ForkBlock = state.ForkBlock

// BlockExecutor runs the transactions of a block on top of a fixed state.
type BlockExecutor interface {
	// ExecuteAndVerifyReceipt executes block and checks the computed receipts
	// against the ones committed to by the header. td is the total difficulty
	// the block is executed with. The returned delta holds the changes of
	// block only.
	ExecuteAndVerifyReceipt(block *types.Block, td *uint256.Int, senders []common.Address) (*state.Delta, error)
}

// ExecutorFactory creates executors bound to a state.
type ExecutorFactory interface {
	WithStateProvider(provider state.StateProvider) BlockExecutor
}

// Externals are the collaborators side chains are validated and executed
// with.
type Externals struct {
	ChainSpec       *params.ChainSpec
	ExecutorFactory ExecutorFactory
	Database        state.HistoryProvider
}
