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
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrBlockNumberNotFound is returned when a side chain is forked off at a
	// block the chain does not contain.
	ErrBlockNumberNotFound = errors.New("block number not found in chain")

	// ErrUnknownAncestor is returned when a block's parent is neither in the
	// canonical window nor in any side chain.
	ErrUnknownAncestor = errors.New("unknown ancestor")

	// ErrKnownBlock is returned when inserting a block that is already tracked.
	ErrKnownBlock = errors.New("block already known")

	// ErrUnknownChain is returned for chain ids the tree does not hold.
	ErrUnknownChain = errors.New("unknown chain")

	errEmptyChain = errors.New("chain has no blocks")
)

// ExecutionError is returned when the block executor rejects a block. The
// executor's error is carried unchanged.
type ExecutionError struct {
	Number uint64
	Hash   common.Hash
	Err    error
}

func (err *ExecutionError) Error() string {
	return fmt.Sprintf("execution of block #%d [%x…] failed: %v", err.Number, err.Hash[:4], err.Err)
}

func (err *ExecutionError) Unwrap() error { return err.Err }

func IsExecutionErr(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}

// BlockNumberNotFoundError is returned when a block's parent number is not part
// of the chain it is forked from.
type BlockNumberNotFoundError struct {
	Number uint64
}

func (err *BlockNumberNotFoundError) Error() string {
	return fmt.Sprintf("%v: #%d", ErrBlockNumberNotFound, err.Number)
}

func (err *BlockNumberNotFoundError) Unwrap() error { return ErrBlockNumberNotFound }
