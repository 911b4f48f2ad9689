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
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func testGenesis() Genesis {
	return Genesis{
		GasLimit:   5000,
		Difficulty: big.NewInt(0x400),
		ExtraData:  []byte("symphony"),
		Alloc: GenesisAlloc{
			common.HexToAddress("0x1000"): {Balance: big.NewInt(1)},
		},
	}
}

func TestChainSpecFork(t *testing.T) {
	spec := NewChainSpecBuilder().Chain(Devnet).Genesis(testGenesis()).LondonActivated().MustBuild()

	require.Equal(t, BlockCondition(0), spec.Fork(London))
	require.Equal(t, Never, spec.Fork(Paris))
	require.Equal(t, Never, spec.Fork(Shanghai))
	require.True(t, spec.IsForkActiveAtBlock(Berlin, 0))
	require.False(t, spec.IsForkActiveAtTimestamp(Shanghai, 1<<40))
}

func TestChainSpecForksOrdered(t *testing.T) {
	spec := NewChainSpecBuilder().Chain(Devnet).Genesis(testGenesis()).ShanghaiActivated().MustBuild()

	forks := spec.Forks()
	require.Len(t, forks, 11)
	for i := 1; i < len(forks); i++ {
		require.Less(t, forks[i-1].Fork, forks[i].Fork)
	}
	require.Equal(t, Frontier, forks[0].Fork)
	require.Equal(t, Shanghai, forks[len(forks)-1].Fork)
}

func TestChainSpecBuildRequiresChainAndGenesis(t *testing.T) {
	_, err := NewChainSpecBuilder().Genesis(testGenesis()).Build()
	require.ErrorIs(t, err, errMissingChain)

	_, err = NewChainSpecBuilder().Chain(Mainnet).Build()
	require.ErrorIs(t, err, errMissingGenesis)
}

func TestChainSpecShanghaiTimestampCache(t *testing.T) {
	spec := NewChainSpecBuilder().
		Chain(Testnet).
		Genesis(testGenesis()).
		ParisActivated().
		WithFork(Shanghai, TimestampCondition(1000)).
		MustBuild()

	require.NotNil(t, spec.ForkTimestamps().Shanghai)
	require.EqualValues(t, 1000, *spec.ForkTimestamps().Shanghai)
	require.False(t, spec.IsShanghaiActiveAtTimestamp(999))
	require.True(t, spec.IsShanghaiActiveAtTimestamp(1000))

	nonShanghai := NewChainSpecBuilder().Chain(Testnet).Genesis(testGenesis()).ParisActivated().MustBuild()
	require.Nil(t, nonShanghai.ForkTimestamps().Shanghai)
	require.False(t, nonShanghai.IsShanghaiActiveAtTimestamp(1<<62))
}

func TestChainSpecGenesisHeader(t *testing.T) {
	legacy := NewChainSpecBuilder().Chain(Devnet).Genesis(testGenesis()).BerlinActivated().MustBuild()
	head := legacy.GenesisHeader()
	require.Nil(t, head.BaseFee)
	require.Nil(t, head.WithdrawalsHash)
	require.Equal(t, uint64(5000), head.GasLimit)
	require.Equal(t, big.NewInt(0x400), head.Difficulty)
	require.Equal(t, []byte("symphony"), head.Extra)
	require.NotEqual(t, types.EmptyRootHash, head.Root)
	require.Equal(t, head.Hash(), legacy.GenesisHash())

	_, ok := legacy.InitialBaseFee()
	require.False(t, ok)

	modern := BuilderFrom(legacy).ShanghaiActivated().MustBuild()
	head = modern.GenesisHeader()
	require.Equal(t, new(big.Int).SetUint64(InitialBaseFee), head.BaseFee)
	require.NotNil(t, head.WithdrawalsHash)
	require.Equal(t, types.EmptyWithdrawalsHash, *head.WithdrawalsHash)
	require.NotEqual(t, legacy.GenesisHash(), modern.GenesisHash())

	fee, ok := modern.InitialBaseFee()
	require.True(t, ok)
	require.EqualValues(t, InitialBaseFee, fee)
}

func TestChainSpecGenesisHashOverride(t *testing.T) {
	pinned := common.HexToHash("0xd4e56740f876aef8c010b86a40d5f56745a118d0906a34e69aec8c0db1cb8fa3")
	spec := NewChainSpecBuilder().Chain(Mainnet).Genesis(testGenesis()).GenesisHash(pinned).MustBuild()
	require.Equal(t, pinned, spec.GenesisHash())
}

func TestGenesisAllocStateRoot(t *testing.T) {
	require.Equal(t, types.EmptyRootHash, GenesisAlloc{}.StateRoot())

	alloc := GenesisAlloc{
		common.HexToAddress("0x01"): {Balance: big.NewInt(10)},
		common.HexToAddress("0x02"): {
			Balance: big.NewInt(20),
			Code:    []byte{0x60, 0x00},
			Storage: map[common.Hash]common.Hash{{0x01}: {0x02}},
		},
	}
	root := alloc.StateRoot()
	require.NotEqual(t, types.EmptyRootHash, root)
	require.Equal(t, root, alloc.StateRoot(), "root must not depend on map iteration order")

	// Zero storage values are not part of the trie.
	alloc[common.HexToAddress("0x01")] = GenesisAccount{
		Balance: big.NewInt(10),
		Storage: map[common.Hash]common.Hash{{0x05}: {}},
	}
	require.Equal(t, root, alloc.StateRoot())
}

func TestChainSpecFinalParisDifficulty(t *testing.T) {
	spec := NewChainSpecBuilder().
		Chain(Mainnet).
		Genesis(testGenesis()).
		ParisAtTTD(uint256.NewInt(1000)).
		ParisFinalDifficulty(100, uint256.NewInt(1100)).
		MustBuild()

	_, ok := spec.FinalParisDifficulty(99)
	require.False(t, ok)
	difficulty, ok := spec.FinalParisDifficulty(100)
	require.True(t, ok)
	require.Equal(t, uint256.NewInt(1100), difficulty)

	ttd, ok := spec.Fork(Paris).TTD()
	require.True(t, ok)
	require.Equal(t, uint256.NewInt(1000), ttd)
	_, known := spec.Fork(Paris).ForkBlock()
	require.False(t, known)
}

func TestCheckForkOrder(t *testing.T) {
	type test struct {
		forks   map[Hardfork]ForkCondition
		wantErr bool
	}
	tests := []test{
		{forks: map[Hardfork]ForkCondition{Frontier: BlockCondition(0), Homestead: BlockCondition(5)}},
		{forks: map[Hardfork]ForkCondition{Frontier: BlockCondition(0), Homestead: Never, Byzantium: BlockCondition(5)}},
		{forks: map[Hardfork]ForkCondition{London: BlockCondition(10), Paris: TTDCondition(uint256.NewInt(1), nil), Shanghai: TimestampCondition(100)}},
		{forks: map[Hardfork]ForkCondition{Frontier: BlockCondition(10), Homestead: BlockCondition(5)}, wantErr: true},
		{forks: map[Hardfork]ForkCondition{Shanghai: TimestampCondition(100), Acapella: TimestampCondition(50)}, wantErr: true},
		{forks: map[Hardfork]ForkCondition{Berlin: TimestampCondition(100), London: BlockCondition(50)}, wantErr: true},
	}
	for i, tt := range tests {
		b := NewChainSpecBuilder().Chain(Devnet).Genesis(testGenesis())
		for fork, cond := range tt.forks {
			b.WithFork(fork, cond)
		}
		_, err := b.Build()
		if tt.wantErr && err == nil {
			t.Errorf("test %d: expected fork ordering error", i)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("test %d: unexpected error: %v", i, err)
		}
	}
}

func TestLegacyExtraData(t *testing.T) {
	spec := NewChainSpecBuilder().Chain(Testnet).Genesis(testGenesis()).MustBuild()
	require.False(t, spec.SkipsPreMergeExtraDataCheck())

	spec = BuilderFrom(spec).LegacyExtraData().MustBuild()
	require.True(t, spec.SkipsPreMergeExtraDataCheck())
}
