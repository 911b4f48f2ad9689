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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseChain(t *testing.T) {
	tests := []struct {
		input string
		want  Chain
	}{
		{"mainnet", Mainnet},
		{"MAINNET", Mainnet},
		{"devnet", Devnet},
		{"Testnet", Testnet},
		{"symphony-testnet", Testnet},
		{"70047", Mainnet},
		{"1337", ChainFromID(1337)},
	}
	for _, tt := range tests {
		have, err := ParseChain(tt.input)
		require.NoError(t, err, tt.input)
		require.Equal(t, tt.want, have, tt.input)
	}
	_, err := ParseChain("goerli")
	require.EqualError(t, err, "expected known chain or integer, found: goerli")
}

func TestChainString(t *testing.T) {
	require.Equal(t, "symphony-mainnet", Mainnet.String())
	require.Equal(t, "symphony-devnet", Devnet.String())
	require.Equal(t, "symphony-testnet", Testnet.String())
	require.Equal(t, "1337", ChainFromID(1337).String())
	require.EqualValues(t, 70049, Testnet.ID())
	require.True(t, Devnet.Named())
	require.False(t, ChainFromID(1).Named())
}

func TestChainText(t *testing.T) {
	for _, chain := range []Chain{Mainnet, Testnet, ChainFromID(42)} {
		text, err := chain.MarshalText()
		require.NoError(t, err)

		var decoded Chain
		require.NoError(t, decoded.UnmarshalText(text))
		require.Equal(t, chain, decoded)
	}
}

func TestParseHardfork(t *testing.T) {
	names := []string{
		"frOntier", "homEstead", "dao", "tAngerIne", "spurIousdrAgon", "byzAntium",
		"constantinople", "petersburg", "istanbul", "muirglacier", "bErlin", "lonDon",
		"arrowglacier", "grayglacier", "PARIS", "ShAnGhAI", "acapella",
	}
	require.Len(t, names, len(AllHardforks))
	for i, name := range names {
		fork, err := ParseHardfork(name)
		require.NoError(t, err)
		require.Equal(t, AllHardforks[i], fork)
	}
	_, err := ParseHardfork("not a hardfork")
	require.Error(t, err)
}

func TestHardforkOrder(t *testing.T) {
	for i := 1; i < len(AllHardforks); i++ {
		require.Less(t, AllHardforks[i-1], AllHardforks[i])
	}
	require.Equal(t, "paris", Paris.String())
}

func TestVersionWithCommit(t *testing.T) {
	if have, want := VersionWithCommit("0123456789abcdef"), VersionWithMeta+"-01234567"; have != want {
		t.Fatalf("version mismatch: have %s, want %s", have, want)
	}
	if have := VersionWithCommit(""); have != VersionWithMeta {
		t.Fatalf("version without commit mismatch: have %s", have)
	}
}
