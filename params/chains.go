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
	"strconv"
	"strings"
)

// Well-known chain ids of the symphony networks.
const (
	MainnetChainID uint64 = 70047
	DevnetChainID  uint64 = 70048
	TestnetChainID uint64 = 70049
)

var namedChains = map[uint64]string{
	MainnetChainID: "mainnet",
	DevnetChainID:  "devnet",
	TestnetChainID: "testnet",
}

// Chain identifies a network, either one of the named symphony networks or
// an arbitrary chain id.
type Chain struct {
	id uint64
}

// Mainnet, Devnet and Testnet are the named networks.
var (
	Mainnet = Chain{MainnetChainID}
	Devnet  = Chain{DevnetChainID}
	Testnet = Chain{TestnetChainID}
)

// ChainFromID wraps a raw chain id.
func ChainFromID(id uint64) Chain { return Chain{id} }

// ParseChain resolves a chain by name (case-insensitive) or by decimal id.
func ParseChain(s string) (Chain, error) {
	lower := strings.TrimPrefix(strings.ToLower(s), "symphony-")
	for id, name := range namedChains {
		if name == lower {
			return Chain{id}, nil
		}
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Chain{}, fmt.Errorf("expected known chain or integer, found: %s", s)
	}
	return Chain{id}, nil
}

// ID returns the numeric chain id.
func (c Chain) ID() uint64 { return c.id }

// Named reports whether the chain is one of the well-known networks.
func (c Chain) Named() bool {
	_, ok := namedChains[c.id]
	return ok
}

func (c Chain) String() string {
	if name, ok := namedChains[c.id]; ok {
		return "symphony-" + name
	}
	return strconv.FormatUint(c.id, 10)
}

// MarshalText implements encoding.TextMarshaler.
func (c Chain) MarshalText() ([]byte, error) {
	if name, ok := namedChains[c.id]; ok {
		return []byte(name), nil
	}
	return []byte(strconv.FormatUint(c.id, 10)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Chain) UnmarshalText(input []byte) error {
	chain, err := ParseChain(string(input))
	if err != nil {
		return err
	}
	*c = chain
	return nil
}
