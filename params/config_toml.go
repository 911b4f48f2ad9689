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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
	"github.com/naoina/toml"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// chainSpecTOML is the file representation of a ChainSpec.
type chainSpecTOML struct {
	Chain           Chain
	GenesisHash     *common.Hash `toml:",omitempty"`
	LegacyExtraData bool         `toml:",omitempty"`
	Genesis         genesisTOML
	Forks           map[string]forkTOML
	Paris           *parisTOML `toml:",omitempty"`
}

type genesisTOML struct {
	Nonce      uint64
	Timestamp  uint64
	ExtraData  hexutil.Bytes `toml:",omitempty"`
	GasLimit   uint64
	Difficulty *math.HexOrDecimal256  `toml:",omitempty"`
	Mixhash    common.Hash            `toml:",omitempty"`
	Coinbase   common.Address         `toml:",omitempty"`
	Alloc      map[string]accountTOML `toml:",omitempty"`
}

type accountTOML struct {
	Balance *math.HexOrDecimal256
	Nonce   uint64            `toml:",omitempty"`
	Code    hexutil.Bytes     `toml:",omitempty"`
	Storage map[string]string `toml:",omitempty"`
}

// forkTOML holds exactly one of Block, Timestamp or TTD. Block may accompany
// TTD to name the known merge block.
type forkTOML struct {
	Block     *uint64               `toml:",omitempty"`
	Timestamp *uint64               `toml:",omitempty"`
	TTD       *math.HexOrDecimal256 `toml:",omitempty"`
}

type parisTOML struct {
	Block           uint64
	FinalDifficulty *math.HexOrDecimal256
}

var errInvalidForkCondition = errors.New("fork condition needs exactly one of Block, Timestamp or TTD")

func (f forkTOML) condition() (ForkCondition, error) {
	switch {
	case f.TTD != nil && f.Timestamp == nil:
		ttd, overflow := uint256.FromBig((*big.Int)(f.TTD))
		if overflow {
			return Never, fmt.Errorf("terminal total difficulty %v overflows 256 bits", (*big.Int)(f.TTD))
		}
		return TTDCondition(ttd, f.Block), nil
	case f.Block != nil && f.Timestamp == nil:
		return BlockCondition(*f.Block), nil
	case f.Timestamp != nil && f.Block == nil:
		return TimestampCondition(*f.Timestamp), nil
	}
	return Never, errInvalidForkCondition
}

// LoadChainSpec reads a chain spec from a TOML file.
func LoadChainSpec(file string) (*ChainSpec, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	spec, err := decodeChainSpec(bufio.NewReader(f))
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return spec, err
}

// DecodeChainSpec parses a chain spec from TOML data.
func DecodeChainSpec(data []byte) (*ChainSpec, error) {
	return decodeChainSpec(bytes.NewReader(data))
}

func decodeChainSpec(r io.Reader) (*ChainSpec, error) {
	var cfg chainSpecTOML
	if err := tomlSettings.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, err
	}
	genesis, err := cfg.Genesis.genesis()
	if err != nil {
		return nil, err
	}
	b := NewChainSpecBuilder().Chain(cfg.Chain).Genesis(genesis)
	for name, f := range cfg.Forks {
		fork, err := ParseHardfork(name)
		if err != nil {
			return nil, err
		}
		cond, err := f.condition()
		if err != nil {
			return nil, fmt.Errorf("fork %v: %w", fork, err)
		}
		b.WithFork(fork, cond)
	}
	if cfg.GenesisHash != nil {
		b.GenesisHash(*cfg.GenesisHash)
	}
	if cfg.LegacyExtraData {
		b.LegacyExtraData()
	}
	if cfg.Paris != nil {
		if cfg.Paris.FinalDifficulty == nil {
			return nil, errors.New("paris: final difficulty is required")
		}
		difficulty, overflow := uint256.FromBig((*big.Int)(cfg.Paris.FinalDifficulty))
		if overflow {
			return nil, errors.New("paris: final difficulty overflows 256 bits")
		}
		b.ParisFinalDifficulty(cfg.Paris.Block, difficulty)
	}
	return b.Build()
}

func (g *genesisTOML) genesis() (Genesis, error) {
	genesis := Genesis{
		Nonce:     g.Nonce,
		Timestamp: g.Timestamp,
		ExtraData: g.ExtraData,
		GasLimit:  g.GasLimit,
		Mixhash:   g.Mixhash,
		Coinbase:  g.Coinbase,
		Alloc:     make(GenesisAlloc, len(g.Alloc)),
	}
	if g.Difficulty != nil {
		genesis.Difficulty = (*big.Int)(g.Difficulty)
	}
	for hex, acc := range g.Alloc {
		if !common.IsHexAddress(hex) {
			return Genesis{}, fmt.Errorf("genesis alloc: invalid address %q", hex)
		}
		account := GenesisAccount{Nonce: acc.Nonce, Code: acc.Code}
		if acc.Balance != nil {
			account.Balance = (*big.Int)(acc.Balance)
		}
		if len(acc.Storage) > 0 {
			account.Storage = make(map[common.Hash]common.Hash, len(acc.Storage))
			for k, v := range acc.Storage {
				account.Storage[common.HexToHash(k)] = common.HexToHash(v)
			}
		}
		genesis.Alloc[common.HexToAddress(hex)] = account
	}
	return genesis, nil
}
