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
	"fmt"
	"runtime"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// BlockWithSenders is a block together with the recovered senders of its
// transactions, in transaction order.
type BlockWithSenders struct {
	*types.Block
	Senders []common.Address
}

// NewBlockWithSenders pairs a block with already known senders. It returns nil
// if the number of senders does not match the number of transactions.
func NewBlockWithSenders(block *types.Block, senders []common.Address) *BlockWithSenders {
	if len(senders) != len(block.Transactions()) {
		return nil
	}
	return &BlockWithSenders{Block: block, Senders: senders}
}

// RecoverSenders derives the sender of every transaction in block. Signatures
// are recovered concurrently on up to GOMAXPROCS goroutines.
func RecoverSenders(block *types.Block, signer types.Signer) (*BlockWithSenders, error) {
	var (
		txs     = block.Transactions()
		senders = make([]common.Address, len(txs))
		g       errgroup.Group
	)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, tx := range txs {
		i, tx := i, tx
		g.Go(func() error {
			from, err := types.Sender(signer, tx)
			if err != nil {
				return fmt.Errorf("transaction %d (%x): %w", i, tx.Hash(), err)
			}
			senders[i] = from
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &BlockWithSenders{Block: block, Senders: senders}, nil
}
