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
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

var (
	errMissingChain   = errors.New("chain spec: chain is required")
	errMissingGenesis = errors.New("chain spec: genesis is required")
)

// ChainSpecBuilder assembles a ChainSpec. The zero value is an empty builder,
// every method returns the builder itself so calls can be chained.
type ChainSpecBuilder struct {
	chain       *Chain
	genesis     *Genesis
	genesisHash *common.Hash
	hardforks   map[Hardfork]ForkCondition

	parisBlock           *uint64
	parisFinalDifficulty *uint256.Int
	legacyExtraData      bool
}

// NewChainSpecBuilder creates an empty builder.
func NewChainSpecBuilder() *ChainSpecBuilder {
	return &ChainSpecBuilder{hardforks: make(map[Hardfork]ForkCondition)}
}

// BuilderFrom creates a builder pre-populated with the contents of spec.
func BuilderFrom(spec *ChainSpec) *ChainSpecBuilder {
	b := NewChainSpecBuilder().Chain(spec.chain).Genesis(spec.genesis)
	maps.Copy(b.hardforks, spec.hardforks)
	b.genesisHash = spec.genesisHash
	b.parisBlock, b.parisFinalDifficulty = spec.parisBlock, spec.parisFinalDifficulty
	b.legacyExtraData = spec.legacyExtraData
	return b
}

// Chain sets the chain identifier.
func (b *ChainSpecBuilder) Chain(chain Chain) *ChainSpecBuilder {
	b.chain = &chain
	return b
}

// Genesis sets the genesis parameters.
func (b *ChainSpecBuilder) Genesis(genesis Genesis) *ChainSpecBuilder {
	b.genesis = &genesis
	return b
}

// GenesisHash pins the genesis hash instead of deriving it from the header.
func (b *ChainSpecBuilder) GenesisHash(hash common.Hash) *ChainSpecBuilder {
	b.genesisHash = &hash
	return b
}

// WithFork schedules fork at the given condition, replacing any previous one.
func (b *ChainSpecBuilder) WithFork(fork Hardfork, cond ForkCondition) *ChainSpecBuilder {
	if b.hardforks == nil {
		b.hardforks = make(map[Hardfork]ForkCondition)
	}
	b.hardforks[fork] = cond
	return b
}

// ParisAtTTD enables Paris at the given total difficulty without a known
// merge block.
func (b *ChainSpecBuilder) ParisAtTTD(ttd *uint256.Int) *ChainSpecBuilder {
	return b.WithFork(Paris, TTDCondition(ttd, nil))
}

// ParisFinalDifficulty records the block Paris activated at and the final
// difficulty of the chain.
func (b *ChainSpecBuilder) ParisFinalDifficulty(block uint64, difficulty *uint256.Int) *ChainSpecBuilder {
	b.parisBlock = &block
	b.parisFinalDifficulty = new(uint256.Int).Set(difficulty)
	return b
}

// LegacyExtraData exempts pre-merge headers from the extra-data size limit.
func (b *ChainSpecBuilder) LegacyExtraData() *ChainSpecBuilder {
	b.legacyExtraData = true
	return b
}

// FrontierActivated enables Frontier at genesis.
func (b *ChainSpecBuilder) FrontierActivated() *ChainSpecBuilder {
	return b.WithFork(Frontier, BlockCondition(0))
}

// HomesteadActivated enables Homestead and everything before at genesis.
func (b *ChainSpecBuilder) HomesteadActivated() *ChainSpecBuilder {
	return b.FrontierActivated().WithFork(Homestead, BlockCondition(0))
}

func (b *ChainSpecBuilder) TangerineActivated() *ChainSpecBuilder {
	return b.HomesteadActivated().WithFork(Tangerine, BlockCondition(0))
}

func (b *ChainSpecBuilder) SpuriousDragonActivated() *ChainSpecBuilder {
	return b.TangerineActivated().WithFork(SpuriousDragon, BlockCondition(0))
}

func (b *ChainSpecBuilder) ByzantiumActivated() *ChainSpecBuilder {
	return b.SpuriousDragonActivated().WithFork(Byzantium, BlockCondition(0))
}

func (b *ChainSpecBuilder) PetersburgActivated() *ChainSpecBuilder {
	return b.ByzantiumActivated().WithFork(Petersburg, BlockCondition(0))
}

func (b *ChainSpecBuilder) IstanbulActivated() *ChainSpecBuilder {
	return b.PetersburgActivated().WithFork(Istanbul, BlockCondition(0))
}

func (b *ChainSpecBuilder) BerlinActivated() *ChainSpecBuilder {
	return b.IstanbulActivated().WithFork(Berlin, BlockCondition(0))
}

// LondonActivated enables London and everything before at genesis. The
// genesis block then carries the initial base fee.
func (b *ChainSpecBuilder) LondonActivated() *ChainSpecBuilder {
	return b.BerlinActivated().WithFork(London, BlockCondition(0))
}

// ParisActivated enables the merge at genesis with a zero TTD.
func (b *ChainSpecBuilder) ParisActivated() *ChainSpecBuilder {
	zero := uint64(0)
	return b.LondonActivated().WithFork(Paris, TTDCondition(new(uint256.Int), &zero))
}

// ShanghaiActivated enables Shanghai and everything before at genesis.
func (b *ChainSpecBuilder) ShanghaiActivated() *ChainSpecBuilder {
	return b.ParisActivated().WithFork(Shanghai, TimestampCondition(0))
}

// Build assembles the chain spec. Chain and genesis must have been set.
func (b *ChainSpecBuilder) Build() (*ChainSpec, error) {
	if b.chain == nil {
		return nil, errMissingChain
	}
	if b.genesis == nil {
		return nil, errMissingGenesis
	}
	hardforks := maps.Clone(b.hardforks)
	if hardforks == nil {
		hardforks = make(map[Hardfork]ForkCondition)
	}
	spec := &ChainSpec{
		chain:           *b.chain,
		genesis:         *b.genesis,
		hardforks:       hardforks,
		forkTimestamps:  forkTimestampsFrom(hardforks),
		legacyExtraData: b.legacyExtraData,
	}
	if b.genesisHash != nil {
		hash := *b.genesisHash
		spec.genesisHash = &hash
	}
	if b.parisBlock != nil {
		block := *b.parisBlock
		spec.parisBlock = &block
		spec.parisFinalDifficulty = new(uint256.Int).Set(b.parisFinalDifficulty)
	}
	if err := spec.CheckForkOrder(); err != nil {
		return nil, err
	}
	return spec, nil
}

// MustBuild is like Build but panics on error. It is intended for tests and
// static definitions.
func (b *ChainSpecBuilder) MustBuild() *ChainSpec {
	spec, err := b.Build()
	if err != nil {
		panic(err)
	}
	return spec
}
