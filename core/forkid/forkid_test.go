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

package forkid

import (
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/symphonyorg/go-symphony/params"
)

// mainnetLikeSpec schedules the Ethereum mainnet forks on top of the Ethereum
// mainnet genesis, which gives well known fork id checksums.
func mainnetLikeSpec() *params.ChainSpec {
	ttd, _ := uint256.FromBig(new(big.Int).SetBytes(common.FromHex("0x0c70d815d562d3cfa955")))
	return params.NewChainSpecBuilder().
		Chain(params.Mainnet).
		Genesis(params.Genesis{GasLimit: 5000, Difficulty: big.NewInt(17179869184)}).
		GenesisHash(common.HexToHash("0xd4e56740f876aef8c010b86a40d5f56745a118d0906a34e69aec8c0db1cb8fa3")).
		WithFork(params.Frontier, params.BlockCondition(0)).
		WithFork(params.Homestead, params.BlockCondition(1150000)).
		WithFork(params.Dao, params.BlockCondition(1920000)).
		WithFork(params.Tangerine, params.BlockCondition(2463000)).
		WithFork(params.SpuriousDragon, params.BlockCondition(2675000)).
		WithFork(params.Byzantium, params.BlockCondition(4370000)).
		WithFork(params.Constantinople, params.BlockCondition(7280000)).
		WithFork(params.Petersburg, params.BlockCondition(7280000)).
		WithFork(params.Istanbul, params.BlockCondition(9069000)).
		WithFork(params.MuirGlacier, params.BlockCondition(9200000)).
		WithFork(params.Berlin, params.BlockCondition(12244000)).
		WithFork(params.London, params.BlockCondition(12965000)).
		WithFork(params.ArrowGlacier, params.BlockCondition(13773000)).
		WithFork(params.GrayGlacier, params.BlockCondition(15050000)).
		WithFork(params.Paris, params.TTDCondition(ttd, nil)).
		WithFork(params.Shanghai, params.TimestampCondition(1681338455)).
		MustBuild()
}

// TestCreation tests that different genesis and fork rule combinations result in
// the correct fork ID.
func TestCreation(t *testing.T) {
	spec := mainnetLikeSpec()
	tests := []struct {
		head uint64
		time uint64
		want ID
	}{
		{0, 0, ID{Hash: checksumToBytes(0xfc64ec04), Next: 1150000}},                    // Unsynced
		{1149999, 0, ID{Hash: checksumToBytes(0xfc64ec04), Next: 1150000}},              // Last Frontier block
		{1150000, 0, ID{Hash: checksumToBytes(0x97c2c34c), Next: 1920000}},              // First Homestead block
		{1919999, 0, ID{Hash: checksumToBytes(0x97c2c34c), Next: 1920000}},              // Last Homestead block
		{1920000, 0, ID{Hash: checksumToBytes(0x91d1f948), Next: 2463000}},              // First DAO block
		{2463000, 0, ID{Hash: checksumToBytes(0x7a64da13), Next: 2675000}},              // First Tangerine block
		{2675000, 0, ID{Hash: checksumToBytes(0x3edd5b10), Next: 4370000}},              // First Spurious block
		{4370000, 0, ID{Hash: checksumToBytes(0xa00bc324), Next: 7280000}},              // First Byzantium block
		{7279999, 0, ID{Hash: checksumToBytes(0xa00bc324), Next: 7280000}},              // Last Byzantium block
		{7280000, 0, ID{Hash: checksumToBytes(0x668db0af), Next: 9069000}},              // First and last Constantinople, first Petersburg block
		{9069000, 0, ID{Hash: checksumToBytes(0x879d6e30), Next: 9200000}},              // First Istanbul block
		{9200000, 0, ID{Hash: checksumToBytes(0xe029e991), Next: 12244000}},             // First Muir Glacier block
		{12244000, 0, ID{Hash: checksumToBytes(0x0eb440f6), Next: 12965000}},            // First Berlin block
		{12965000, 0, ID{Hash: checksumToBytes(0xb715077d), Next: 13773000}},            // First London block
		{13773000, 0, ID{Hash: checksumToBytes(0x20c327fc), Next: 15050000}},            // First Arrow Glacier block
		{15050000, 0, ID{Hash: checksumToBytes(0xf0afd0e3), Next: 1681338455}},          // First Gray Glacier block
		{20000000, 1681338454, ID{Hash: checksumToBytes(0xf0afd0e3), Next: 1681338455}}, // Last Gray Glacier block
		{20000000, 1681338455, ID{Hash: checksumToBytes(0xdce96c2d), Next: 0}},          // First Shanghai block
		{30000000, 2000000000, ID{Hash: checksumToBytes(0xdce96c2d), Next: 0}},          // Future Shanghai block
	}
	for i, tt := range tests {
		if have := NewID(spec, &params.Head{Number: tt.head, Timestamp: tt.time}); have != tt.want {
			t.Errorf("test %d: fork ID mismatch: have %v, want %v", i, have, tt.want)
		}
	}
}

func TestCreationSkipsUnknownMergeBlock(t *testing.T) {
	spec := mainnetLikeSpec()
	// Past the TTD but with the merge block unknown the id does not move.
	head := &params.Head{
		Number:          15537394,
		TotalDifficulty: params.MaxTotalDifficulty,
		Difficulty:      new(uint256.Int),
	}
	want := ID{Hash: checksumToBytes(0xf0afd0e3), Next: 1681338455}
	if have := NewID(spec, head); have != want {
		t.Fatalf("fork ID mismatch: have %v, want %v", have, want)
	}
	// Once the merge block is known it becomes part of the checksum.
	merge := uint64(15537394)
	ttd, _ := spec.Fork(params.Paris).TTD()
	known := params.BuilderFrom(spec).WithFork(params.Paris, params.TTDCondition(ttd, &merge)).MustBuild()

	before := NewID(known, &params.Head{Number: 15537393})
	if before.Next != merge {
		t.Fatalf("next fork mismatch: have %d, want %d", before.Next, merge)
	}
	after := NewID(known, &params.Head{Number: merge})
	if after.Hash == want.Hash || after.Next != 1681338455 {
		t.Fatalf("merge block not folded into the fork id: %v", after)
	}
}

func TestHardforkID(t *testing.T) {
	spec := mainnetLikeSpec()

	id, ok := HardforkID(spec, params.London)
	if !ok {
		t.Fatal("no fork id for a scheduled fork")
	}
	if want := (ID{Hash: checksumToBytes(0xb715077d), Next: 13773000}); id != want {
		t.Fatalf("fork ID mismatch: have %v, want %v", id, want)
	}
	if _, ok := HardforkID(spec, params.Acapella); ok {
		t.Fatal("fork id for an unscheduled fork")
	}
	if _, ok := HardforkFilter(spec, params.Acapella); ok {
		t.Fatal("fork filter for an unscheduled fork")
	}
	filter, ok := HardforkFilter(spec, params.Byzantium)
	if !ok {
		t.Fatal("no fork filter for a scheduled fork")
	}
	if err := filter.Validate(ID{Hash: checksumToBytes(0xa00bc324), Next: 7280000}); err != nil {
		t.Fatalf("byzantium peer rejected: %v", err)
	}
}

// TestCreationSkipsNeverFork tests that a fork explicitly disabled between two
// scheduled forks is left out of both the checksum and the next fork.
func TestCreationSkipsNeverFork(t *testing.T) {
	spec := params.BuilderFrom(mainnetLikeSpec()).WithFork(params.MuirGlacier, params.Never).MustBuild()

	tests := []struct {
		head uint64
		want ID
	}{
		{9069000, ID{Hash: checksumToBytes(0x879d6e30), Next: 12244000}},  // First Istanbul block
		{9200000, ID{Hash: checksumToBytes(0x879d6e30), Next: 12244000}},  // Disabled Muir Glacier block
		{12243999, ID{Hash: checksumToBytes(0x879d6e30), Next: 12244000}}, // Last Istanbul block
	}
	for i, tt := range tests {
		if have := NewID(spec, &params.Head{Number: tt.head}); have != tt.want {
			t.Errorf("test %d: fork ID mismatch: have %v, want %v", i, have, tt.want)
		}
	}
	if _, ok := HardforkID(spec, params.MuirGlacier); ok {
		t.Fatal("fork id for a disabled fork")
	}

	filter := NewFilter(spec, params.Head{Number: 9200000})
	if err := filter.Validate(ID{Hash: checksumToBytes(0x879d6e30), Next: 12244000}); err != nil {
		t.Fatalf("peer without the disabled fork rejected: %v", err)
	}
	if err := filter.Validate(ID{Hash: checksumToBytes(0x879d6e30), Next: 9200000}); err != ErrLocalIncompatibleOrStale {
		t.Fatalf("peer scheduling the disabled fork: have %v, want %v", err, ErrLocalIncompatibleOrStale)
	}
	if err := filter.Validate(ID{Hash: checksumToBytes(0xe029e991), Next: 12244000}); err != ErrLocalIncompatibleOrStale {
		t.Fatalf("peer past the disabled fork: have %v, want %v", err, ErrLocalIncompatibleOrStale)
	}
}

// TestValidation tests that a local peer correctly validates and accepts a remote
// fork ID.
func TestValidation(t *testing.T) {
	spec := mainnetLikeSpec()
	tests := []struct {
		head uint64
		time uint64
		id   ID
		err  error
	}{
		// Local is mainnet Gray Glacier, remote announces the same. No future fork is announced.
		{15050000, 0, ID{Hash: checksumToBytes(0xf0afd0e3), Next: 0}, nil},

		// Local is mainnet Gray Glacier, remote announces the same. Remote also announces a next fork
		// at block/time 0xffffffff, but that is uncertain.
		{15050000, 0, ID{Hash: checksumToBytes(0xf0afd0e3), Next: math.MaxUint64}, nil},

		// Local is mainnet currently in Byzantium only (so it's aware of Petersburg), remote announces
		// also Byzantium, but it's not yet aware of Petersburg (e.g. non updated node before the fork).
		// In this case we don't know if Petersburg passed yet or not.
		{7279999, 0, ID{Hash: checksumToBytes(0xa00bc324), Next: 0}, nil},

		// Local is mainnet currently in Byzantium only (so it's aware of Petersburg), remote announces
		// also Byzantium, and it's also aware of Petersburg (e.g. updated node before the fork). We
		// don't know if Petersburg passed yet (will pass) or not.
		{7279999, 0, ID{Hash: checksumToBytes(0xa00bc324), Next: 7280000}, nil},

		// Local is mainnet currently in Byzantium only (so it's aware of Petersburg), remote announces
		// also Byzantium, and it's also aware of some random fork (e.g. misconfigured Petersburg). As
		// neither forks passed at neither nodes, they may mismatch, but we still connect for now.
		{7279999, 0, ID{Hash: checksumToBytes(0xa00bc324), Next: math.MaxUint64}, nil},

		// Local is mainnet exactly on Petersburg, remote announces Byzantium + knowledge about Petersburg.
		// Remote is simply out of sync, accept.
		{7280000, 0, ID{Hash: checksumToBytes(0xa00bc324), Next: 7280000}, nil},

		// Local is mainnet Petersburg, remote announces Byzantium + knowledge about Petersburg. Remote
		// is simply out of sync, accept.
		{7987396, 0, ID{Hash: checksumToBytes(0xa00bc324), Next: 7280000}, nil},

		// Local is mainnet Petersburg, remote announces Spurious + knowledge about Byzantium. Remote
		// is definitely out of sync. It may or may not need the Petersburg update, we don't know yet.
		{7987396, 0, ID{Hash: checksumToBytes(0x3edd5b10), Next: 4370000}, nil},

		// Local is mainnet Byzantium, remote announces Petersburg. Local is out of sync, accept.
		{7279999, 0, ID{Hash: checksumToBytes(0x668db0af), Next: 0}, nil},

		// Local is mainnet Spurious, remote announces Byzantium, but is not aware of Petersburg. Local
		// out of sync. Local also knows about a future fork, but that is uncertain yet.
		{4369999, 0, ID{Hash: checksumToBytes(0xa00bc324), Next: 0}, nil},

		// Local is mainnet Petersburg. remote announces Byzantium but is not aware of further forks.
		// Remote needs software update.
		{7987396, 0, ID{Hash: checksumToBytes(0xa00bc324), Next: 0}, ErrRemoteStale},

		// Local is mainnet Petersburg, and isn't aware of more forks. Remote announces Petersburg +
		// 0xffffffff. Local needs software update, reject.
		{7987396, 0, ID{Hash: checksumToBytes(0x5cddc0e1), Next: 0}, ErrLocalIncompatibleOrStale},

		// Local is mainnet Byzantium. Remote is also in Byzantium, but announces Gopherium (non existing
		// fork) at block 7279999, before Petersburg. Local is incompatible.
		{7279999, 0, ID{Hash: checksumToBytes(0xa00bc324), Next: 7279999}, ErrLocalIncompatibleOrStale},

		// Local is mainnet Gray Glacier, remote announces Shanghai. Local is out of sync, accept.
		{20000000, 1681338454, ID{Hash: checksumToBytes(0xdce96c2d), Next: 0}, nil},

		// Local is mainnet Gray Glacier, remote announces Gray Glacier + knowledge about Shanghai.
		{20000000, 1681338454, ID{Hash: checksumToBytes(0xf0afd0e3), Next: 1681338455}, nil},

		// Local is mainnet Shanghai, remote announces Gray Glacier + knowledge about Shanghai. Remote
		// is simply out of sync, accept.
		{20000000, 1681338455, ID{Hash: checksumToBytes(0xf0afd0e3), Next: 1681338455}, nil},

		// Local is mainnet Shanghai, remote announces Gray Glacier but is not aware of Shanghai.
		// Remote needs software update.
		{20000000, 1681338455, ID{Hash: checksumToBytes(0xf0afd0e3), Next: 0}, ErrRemoteStale},

		// Local is mainnet Shanghai, remote announces Shanghai too.
		{20000000, 1681338455, ID{Hash: checksumToBytes(0xdce96c2d), Next: 0}, nil},

		// Local is mainnet Gray Glacier, remote announces the same with a time based fork that the
		// local clock already passed. Local is incompatible.
		{15050000, 1681338454, ID{Hash: checksumToBytes(0xf0afd0e3), Next: 1681338453}, ErrLocalIncompatibleOrStale},
	}
	for i, tt := range tests {
		filter := NewFilter(spec, params.Head{Number: tt.head, Timestamp: tt.time})
		if err := filter.Validate(tt.id); err != tt.err {
			t.Errorf("test %d: validation error mismatch: have %v, want %v", i, err, tt.err)
		}
	}
}

func TestFilterSetHead(t *testing.T) {
	spec := mainnetLikeSpec()
	filter := NewFilter(spec, params.Head{Number: 7279999})

	if want := (ID{Hash: checksumToBytes(0xa00bc324), Next: 7280000}); filter.ID() != want {
		t.Fatalf("fork ID mismatch: have %v, want %v", filter.ID(), want)
	}
	if filter.SetHead(params.Head{Number: 7279999}) {
		t.Fatal("transition reported without a fork")
	}
	if !filter.SetHead(params.Head{Number: 7280000}) {
		t.Fatal("transition not reported")
	}
	if want := (ID{Hash: checksumToBytes(0x668db0af), Next: 9069000}); filter.ID() != want {
		t.Fatalf("fork ID mismatch: have %v, want %v", filter.ID(), want)
	}
	// The remote Byzantium peer that has not seen Petersburg is stale now.
	if err := filter.Validate(ID{Hash: checksumToBytes(0xa00bc324), Next: 0}); err != ErrRemoteStale {
		t.Fatalf("validation error mismatch: have %v, want %v", err, ErrRemoteStale)
	}
}
