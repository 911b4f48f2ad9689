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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Genesis specifies the header fields and the initial state of a genesis
// block.
type Genesis struct {
	Nonce      uint64
	Timestamp  uint64
	ExtraData  []byte
	GasLimit   uint64
	Difficulty *big.Int
	Mixhash    common.Hash
	Coinbase   common.Address
	Alloc      GenesisAlloc
}

// GenesisAlloc specifies the initial state that is part of the genesis block.
type GenesisAlloc map[common.Address]GenesisAccount

// GenesisAccount is an account in the state of the genesis block.
type GenesisAccount struct {
	Code    []byte
	Storage map[common.Hash]common.Hash
	Balance *big.Int
	Nonce   uint64
}

// genesisAccountRLP is the consensus encoding of an account in the state trie.
type genesisAccountRLP struct {
	Nonce    uint64
	Balance  *big.Int
	Root     common.Hash
	CodeHash []byte
}

// StateRoot computes the root of the state trie holding the allocation.
func (ga GenesisAlloc) StateRoot() common.Hash {
	if len(ga) == 0 {
		return types.EmptyRootHash
	}
	accounts := make(map[string][]byte, len(ga))
	for addr, account := range ga {
		balance := account.Balance
		if balance == nil {
			balance = new(big.Int)
		}
		codeHash := types.EmptyCodeHash.Bytes()
		if len(account.Code) > 0 {
			codeHash = crypto.Keccak256(account.Code)
		}
		blob, err := rlp.EncodeToBytes(&genesisAccountRLP{
			Nonce:    account.Nonce,
			Balance:  balance,
			Root:     storageRoot(account.Storage),
			CodeHash: codeHash,
		})
		if err != nil {
			panic(err) // encoding of fixed fields cannot fail
		}
		accounts[string(crypto.Keccak256(addr.Bytes()))] = blob
	}
	return sortedRoot(accounts)
}

func storageRoot(storage map[common.Hash]common.Hash) common.Hash {
	slots := make(map[string][]byte, len(storage))
	for key, value := range storage {
		if value == (common.Hash{}) {
			continue
		}
		blob, err := rlp.EncodeToBytes(common.TrimLeftZeroes(value[:]))
		if err != nil {
			panic(err)
		}
		slots[string(crypto.Keccak256(key.Bytes()))] = blob
	}
	if len(slots) == 0 {
		return types.EmptyRootHash
	}
	return sortedRoot(slots)
}

// sortedRoot feeds the entries into a stack trie in key order.
func sortedRoot(entries map[string][]byte) common.Hash {
	keys := maps.Keys(entries)
	slices.Sort(keys)

	st := trie.NewStackTrie(nil)
	for _, key := range keys {
		st.Update([]byte(key), entries[key])
	}
	return st.Hash()
}
