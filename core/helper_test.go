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
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
	"github.com/symphonyorg/go-symphony/consensus/misc"
	"github.com/symphonyorg/go-symphony/core/state"
	"github.com/symphonyorg/go-symphony/params"
)

var (
	testCoinbase     = common.HexToAddress("0xc0ffee")
	errTestExecution = errors.New("execution failed")
)

// testExecutorFactory creates executors that credit the coinbase one wei per
// block and record the block hash in the coinbase storage. Blocks with extra
// data "fail" are rejected. The executor checks that the parent hash is
// visible through the state.
type testExecutorFactory struct{}

func (testExecutorFactory) WithStateProvider(provider state.StateProvider) BlockExecutor {
	return &testExecutor{state: provider}
}

type testExecutor struct {
	state state.StateProvider
}

func (e *testExecutor) ExecuteAndVerifyReceipt(block *types.Block, td *uint256.Int, senders []common.Address) (*state.Delta, error) {
	if string(block.Extra()) == "fail" {
		return nil, errTestExecution
	}
	if !td.Eq(params.MaxTotalDifficulty) {
		return nil, fmt.Errorf("unexpected total difficulty %v", td)
	}
	number := block.NumberU64()
	parent, err := e.state.BlockHash(number - 1)
	if err != nil {
		return nil, err
	}
	if parent != block.ParentHash() {
		return nil, fmt.Errorf("parent of #%d resolved to %x, want %x", number, parent, block.ParentHash())
	}
	acc, err := e.state.Account(block.Coinbase())
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &state.Account{Balance: new(uint256.Int)}
	}
	acc.Balance = new(uint256.Int).AddUint64(acc.Balance, 1)

	delta := state.NewBlockDelta(number)
	delta.SetAccount(block.Coinbase(), acc)
	delta.SetStorage(block.Coinbase(), common.BigToHash(block.Number()), block.Hash())
	delta.AddReceipts(&types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockHash:   block.Hash(),
		BlockNumber: block.Number(),
	})
	return delta, nil
}

type testEnv struct {
	spec    *params.ChainSpec
	db      *state.Database
	ext     *Externals
	genesis *types.Header
}

func testGenesis() params.Genesis {
	return params.Genesis{
		Timestamp:  1600000000,
		GasLimit:   1024000,
		Difficulty: new(big.Int),
	}
}

// mergedSpec is a post-merge chain with London active from genesis.
func mergedSpec() *params.ChainSpec {
	return params.NewChainSpecBuilder().Chain(params.Devnet).Genesis(testGenesis()).ParisActivated().MustBuild()
}

// newTestEnv sets up a history holding only the genesis block, at which the
// coinbase owns 100 wei.
func newTestEnv(t *testing.T, spec *params.ChainSpec) *testEnv {
	t.Helper()

	db := state.NewMemoryDatabase()
	genesis := spec.GenesisHeader()
	alloc := state.NewBlockDelta(0)
	alloc.SetAccount(testCoinbase, &state.Account{Balance: uint256.NewInt(100)})
	if err := db.Commit(0, genesis.Hash(), alloc); err != nil {
		t.Fatalf("failed to commit genesis: %v", err)
	}
	return &testEnv{
		spec:    spec,
		db:      db,
		genesis: genesis,
		ext: &Externals{
			ChainSpec:       spec,
			ExecutorFactory: testExecutorFactory{},
			Database:        db,
		},
	}
}

func (env *testEnv) genesisFork() ForkBlock {
	return ForkBlock{Number: 0, Hash: env.genesis.Hash()}
}

func (env *testEnv) canonicalHashes() map[uint64]common.Hash {
	return map[uint64]common.Hash{0: env.genesis.Hash()}
}

// genesisPost is the post state of a chain forking off genesis without any
// blocks yet.
func (env *testEnv) genesisPost() *state.PostStateDataRef {
	return &state.PostStateDataRef{
		Delta:                state.NewDelta(),
		SidechainBlockHashes: make(map[uint64]common.Hash),
		CanonicalBlockHashes: env.canonicalHashes(),
		Fork:                 env.genesisFork(),
	}
}

// makeHeader creates a valid child header of parent.
func makeHeader(spec *params.ChainSpec, parent *types.Header) *types.Header {
	number := new(big.Int).Add(parent.Number, common.Big1)
	header := &types.Header{
		ParentHash: parent.Hash(),
		Coinbase:   testCoinbase,
		Number:     number,
		GasLimit:   misc.ParentGasLimit(spec, parent.GasLimit, number.Uint64()),
		Time:       parent.Time + 12,
		Difficulty: new(big.Int),
	}
	london := spec.Fork(params.London)
	switch {
	case london.TransitionsAtBlock(number.Uint64()):
		header.BaseFee = big.NewInt(params.InitialBaseFee)
	case london.ActiveAtBlock(number.Uint64()):
		header.BaseFee = misc.CalcBaseFee(parent)
	}
	return header
}

// makeBlock creates a valid child of parent, after applying modify to its
// header.
func makeBlock(spec *params.ChainSpec, parent *types.Header, modify func(*types.Header)) *BlockWithSenders {
	header := makeHeader(spec, parent)
	if modify != nil {
		modify(header)
	}
	var block *types.Block
	if spec.IsShanghaiActiveAtTimestamp(header.Time) {
		block = types.NewBlockWithWithdrawals(header, nil, nil, nil, []*types.Withdrawal{}, trie.NewStackTrie(nil))
	} else {
		block = types.NewBlock(header, nil, nil, nil, trie.NewStackTrie(nil))
	}
	return &BlockWithSenders{Block: block}
}

// makeChain creates n consecutive blocks on top of parent. tag is written into
// the extra data to tell apart chains with the same parent.
func makeChain(spec *params.ChainSpec, parent *types.Header, n int, tag string) []*BlockWithSenders {
	blocks := make([]*BlockWithSenders, n)
	for i := range blocks {
		blocks[i] = makeBlock(spec, parent, func(h *types.Header) { h.Extra = []byte(tag) })
		parent = blocks[i].Header()
	}
	return blocks
}

// coinbaseBalance returns the balance the chain state records for the test
// coinbase.
func coinbaseBalance(t *testing.T, delta *state.Delta) uint64 {
	t.Helper()
	acc, ok := delta.Account(testCoinbase)
	if !ok || acc == nil {
		t.Fatalf("coinbase not in %v", delta)
	}
	return acc.Balance.Uint64()
}
