// Copyright 2021 The go-ethereum Authors
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

package misc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/symphonyorg/go-symphony/consensus"
	"github.com/symphonyorg/go-symphony/params"
)

// VerifyEip1559Header verifies the base fee of a header against its parent
// once London is active. The London transition block carries the initial
// base fee, every later block the value derived from its parent.
func VerifyEip1559Header(spec *params.ChainSpec, parent, header *types.Header) error {
	number := header.Number.Uint64()
	if !spec.Fork(params.London).ActiveAtBlock(number) {
		return nil
	}
	if header.BaseFee == nil {
		return consensus.ErrBaseFeeMissing
	}
	var expected *big.Int
	if spec.Fork(params.London).TransitionsAtBlock(number) {
		expected = new(big.Int).SetUint64(params.InitialBaseFee)
	} else {
		if parent.BaseFee == nil {
			return consensus.ErrBaseFeeMissing
		}
		expected = CalcBaseFee(parent)
	}
	if header.BaseFee.Cmp(expected) != 0 {
		return consensus.NewError(consensus.ErrBaseFeeDiff, header.BaseFee, expected)
	}
	return nil
}

// CalcBaseFee calculates the basefee of the child of a London header.
func CalcBaseFee(parent *types.Header) *big.Int {
	parentGasTarget := parent.GasLimit / params.ElasticityMultiplier
	// If the parent gasUsed is the same as the target, the baseFee remains unchanged.
	if parent.GasUsed == parentGasTarget || parentGasTarget == 0 {
		return new(big.Int).Set(parent.BaseFee)
	}

	var (
		num   = new(big.Int)
		denom = new(big.Int)
	)

	if parent.GasUsed > parentGasTarget {
		// If the parent block used more gas than its target, the baseFee should increase.
		// max(1, parentBaseFee * gasUsedDelta / parentGasTarget / baseFeeChangeDenominator)
		num.SetUint64(parent.GasUsed - parentGasTarget)
		num.Mul(num, parent.BaseFee)
		num.Div(num, denom.SetUint64(parentGasTarget))
		num.Div(num, denom.SetUint64(params.BaseFeeChangeDenominator))
		baseFeeDelta := math.BigMax(num, common1)

		return num.Add(parent.BaseFee, baseFeeDelta)
	} else {
		// Otherwise if the parent block used less gas than its target, the baseFee should decrease.
		// max(0, parentBaseFee * gasUsedDelta / parentGasTarget / baseFeeChangeDenominator)
		num.SetUint64(parentGasTarget - parent.GasUsed)
		num.Mul(num, parent.BaseFee)
		num.Div(num, denom.SetUint64(parentGasTarget))
		num.Div(num, denom.SetUint64(params.BaseFeeChangeDenominator))
		baseFee := num.Sub(parent.BaseFee, num)
		if baseFee.Sign() < 0 {
			baseFee.SetUint64(0)
		}
		return baseFee
	}
}

var common1 = big.NewInt(1)
