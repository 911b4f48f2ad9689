// Copyright 2019 The go-ethereum Authors
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

// Package forkid implements EIP-2124 (https://eips.ethereum.org/EIPS/eip-2124).
package forkid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/symphonyorg/go-symphony/params"
)

var (
	// ErrRemoteStale is returned by the validator if a remote fork checksum is a
	// subset of our already applied forks, but the announced next fork block is
	// not on our already passed chain.
	ErrRemoteStale = errors.New("remote needs update")

	// ErrLocalIncompatibleOrStale is returned by the validator if a remote fork
	// checksum does not match any local checksum variation, signalling that the
	// two chains have diverged in the past at some point (possibly at genesis).
	ErrLocalIncompatibleOrStale = errors.New("local incompatible or needs update")
)

// timestampThreshold is the Ethereum mainnet genesis timestamp. It is used to
// differentiate if a forkid.next field is a block number or a timestamp. Whilst
// very hacky, something's needed to split the validation during the transition
// period (block forks -> time forks).
const timestampThreshold = 1438269973

var rejectedMeter = metrics.NewRegisteredMeter("forkid/rejected", nil)

// ID is a fork identifier as defined by EIP-2124.
type ID struct {
	Hash [4]byte // CRC32 checksum of the genesis block and passed fork block numbers
	Next uint64  // Block number of the next upcoming fork, or 0 if no forks are known
}

func (id ID) String() string {
	return fmt.Sprintf("%#x/%d", id.Hash, id.Next)
}

// NewID calculates the Ethereum fork ID from the chain spec and the head.
//
// Forks are walked in activation order. Forks that are never scheduled or
// that activate by total difficulty without a known block are skipped. The
// threshold of every active fork is folded into the checksum unless it equals
// the previously folded one. The first inactive fork becomes Next.
func NewID(spec *params.ChainSpec, head *params.Head) ID {
	hash := crc32.ChecksumIEEE(spec.GenesisHash().Bytes())

	var applied uint64
	for _, f := range spec.Forks() {
		threshold, ok := f.Condition.Threshold()
		if !ok {
			continue
		}
		if !f.Condition.ActiveAtHead(head) {
			return ID{Hash: checksumToBytes(hash), Next: threshold}
		}
		if threshold != applied {
			hash = checksumUpdate(hash, threshold)
			applied = threshold
		}
	}
	return ID{Hash: checksumToBytes(hash), Next: 0}
}

// HardforkID returns the fork id of the chain right after fork activated. It
// returns false if the fork is not scheduled.
func HardforkID(spec *params.ChainSpec, fork params.Hardfork) (ID, bool) {
	head, ok := spec.Fork(fork).Satisfy()
	if !ok {
		return ID{}, false
	}
	return NewID(spec, &head), true
}

// HardforkFilter returns a filter whose local head sits right at the
// activation of fork. It returns false if the fork is not scheduled.
func HardforkFilter(spec *params.ChainSpec, fork params.Hardfork) (*Filter, bool) {
	head, ok := spec.Fork(fork).Satisfy()
	if !ok {
		return nil, false
	}
	return NewFilter(spec, head), true
}

// Filter validates remote fork ids against the local chain. The local head
// can be moved with SetHead while the filter is in use.
type Filter struct {
	forks        []uint64
	forksByBlock int // number of leading entries in forks that are block numbers
	sums         [][4]byte

	lock sync.RWMutex
	head params.Head
	id   ID
	spec *params.ChainSpec
}

// NewFilter creates a filter for the chain spec with the given local head.
func NewFilter(spec *params.ChainSpec, head params.Head) *Filter {
	forksByBlock, forksByTime := gatherForks(spec)
	forks := append(append([]uint64{}, forksByBlock...), forksByTime...)

	sums := make([][4]byte, len(forks)+1) // 0th is the genesis
	hash := crc32.ChecksumIEEE(spec.GenesisHash().Bytes())
	sums[0] = checksumToBytes(hash)
	for i, fork := range forks {
		hash = checksumUpdate(hash, fork)
		sums[i+1] = checksumToBytes(hash)
	}
	// Add a sentry to simplify the fork checks and not require special casing
	// the last one.
	forks = append(forks, math.MaxUint64)
	byBlock := len(forksByBlock)
	if len(forksByTime) == 0 {
		// In purely block based forks, avoid the sentry spilling into
		// timestamp territory.
		byBlock++
	}
	return &Filter{
		forks:        forks,
		forksByBlock: byBlock,
		sums:         sums,
		head:         head,
		id:           NewID(spec, &head),
		spec:         spec,
	}
}

// ID returns the fork id of the local head.
func (f *Filter) ID() ID {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.id
}

// SetHead moves the local head and reports whether the fork id changed.
func (f *Filter) SetHead(head params.Head) bool {
	id := NewID(f.spec, &head)

	f.lock.Lock()
	defer f.lock.Unlock()

	f.head = head
	if id == f.id {
		return false
	}
	log.Debug("Fork id transitioned", "old", f.id, "new", id, "number", head.Number, "time", head.Timestamp)
	f.id = id
	return true
}

// Validate checks whether a remote fork id is compatible with the local chain.
func (f *Filter) Validate(id ID) error {
	if err := f.validate(id); err != nil {
		rejectedMeter.Mark(1)
		return err
	}
	return nil
}

func (f *Filter) validate(id ID) error {
	f.lock.RLock()
	block, time := f.head.Number, f.head.Timestamp
	f.lock.RUnlock()

	// Run the fork checksum validation ruleset:
	//   1. If local and remote FORK_CSUM matches, compare local head to FORK_NEXT.
	//        The two nodes are in the same fork state currently. They might know
	//        of differing future forks, but that's not relevant until the fork
	//        triggers (might be postponed, nodes might be updated to match).
	//      1a. A remotely announced but remotely not passed block is already passed
	//          locally, disconnect, since the chains are incompatible.
	//      1b. No remotely announced fork; or not yet passed locally, connect.
	//   2. If the remote FORK_CSUM is a subset of the local past forks and the
	//      remote FORK_NEXT matches with the locally following fork block number,
	//      connect.
	//   3. If the remote FORK_CSUM is a superset of the local past forks and can
	//      be completed with locally known future forks, connect.
	//   4. Reject in all other cases.
	for i, fork := range f.forks {
		// Pick the head comparison based on fork progression
		head := block
		if i >= f.forksByBlock {
			head = time
		}
		// If our head is beyond this fork, continue to the next (we have a dummy
		// fork of maxuint64 as the last item to always fail this check eventually).
		if head >= fork {
			continue
		}
		// Found the first unpassed fork, check if our current state matches
		// the remote checksum (rule #1).
		if f.sums[i] == id.Hash {
			// Rule #1a.
			if id.Next > 0 && (head >= id.Next || (id.Next > timestampThreshold && time >= id.Next)) {
				return ErrLocalIncompatibleOrStale
			}
			// Rule #1b.
			return nil
		}
		// Rule #2.
		for j := 0; j < i; j++ {
			if f.sums[j] == id.Hash {
				if f.forks[j] != id.Next {
					return ErrRemoteStale
				}
				return nil
			}
		}
		// Rule #3.
		for j := i + 1; j < len(f.sums); j++ {
			if f.sums[j] == id.Hash {
				return nil
			}
		}
		return ErrLocalIncompatibleOrStale
	}
	log.Error("Impossible fork ID validation", "id", id)
	return nil // Something's very wrong, accept rather than reject
}

// gatherForks collects the distinct fork thresholds of the spec, split into
// block numbers and timestamps, in the order they are folded into a fork id.
func gatherForks(spec *params.ChainSpec) ([]uint64, []uint64) {
	var (
		byBlock, byTime []uint64
		applied         uint64
	)
	for _, f := range spec.Forks() {
		threshold, ok := f.Condition.Threshold()
		if !ok || threshold == applied {
			continue
		}
		applied = threshold
		if f.Condition.IsTimestamp() {
			byTime = append(byTime, threshold)
		} else {
			byBlock = append(byBlock, threshold)
		}
	}
	return byBlock, byTime
}

// checksumUpdate calculates the next IEEE CRC32 checksum based on the previous
// one and a fork block number (equivalent to CRC32(original-blob || fork)).
func checksumUpdate(hash uint32, fork uint64) uint32 {
	var blob [8]byte
	binary.BigEndian.PutUint64(blob[:], fork)
	return crc32.Update(hash, crc32.IEEETable, blob[:])
}

// checksumToBytes converts a uint32 checksum into a [4]byte array.
func checksumToBytes(hash uint32) [4]byte {
	var blob [4]byte
	binary.BigEndian.PutUint32(blob[:], hash)
	return blob
}
