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
	"strings"
)

// Hardfork is the name of a protocol upgrade. The numeric order of the
// constants is the activation order of the upgrades.
type Hardfork int

const (
	Frontier Hardfork = iota
	Homestead
	Dao
	Tangerine
	SpuriousDragon
	Byzantium
	Constantinople
	Petersburg
	Istanbul
	MuirGlacier
	Berlin
	London
	ArrowGlacier
	GrayGlacier
	Paris
	Shanghai
	Acapella
)

var hardforkNames = [...]string{
	Frontier:       "frontier",
	Homestead:      "homestead",
	Dao:            "dao",
	Tangerine:      "tangerine",
	SpuriousDragon: "spuriousdragon",
	Byzantium:      "byzantium",
	Constantinople: "constantinople",
	Petersburg:     "petersburg",
	Istanbul:       "istanbul",
	MuirGlacier:    "muirglacier",
	Berlin:         "berlin",
	London:         "london",
	ArrowGlacier:   "arrowglacier",
	GrayGlacier:    "grayglacier",
	Paris:          "paris",
	Shanghai:       "shanghai",
	Acapella:       "acapella",
}

// AllHardforks lists every known hardfork in activation order.
var AllHardforks = []Hardfork{
	Frontier, Homestead, Dao, Tangerine, SpuriousDragon, Byzantium,
	Constantinople, Petersburg, Istanbul, MuirGlacier, Berlin, London,
	ArrowGlacier, GrayGlacier, Paris, Shanghai, Acapella,
}

func (h Hardfork) String() string {
	if h < 0 || int(h) >= len(hardforkNames) {
		return fmt.Sprintf("hardfork(%d)", int(h))
	}
	return hardforkNames[h]
}

// ParseHardfork resolves a hardfork by its case-insensitive name.
func ParseHardfork(name string) (Hardfork, error) {
	lower := strings.ToLower(name)
	for i, n := range hardforkNames {
		if n == lower {
			return Hardfork(i), nil
		}
	}
	return 0, fmt.Errorf("unknown hardfork: %s", lower)
}

// MarshalText implements encoding.TextMarshaler.
func (h Hardfork) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hardfork) UnmarshalText(input []byte) error {
	fork, err := ParseHardfork(string(input))
	if err != nil {
		return err
	}
	*h = fork
	return nil
}
