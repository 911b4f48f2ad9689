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
	"github.com/symphonyorg/go-symphony/consensus"
	"github.com/symphonyorg/go-symphony/params"
)

// VerifyGaslimit verifies the header gas limit according increase/decrease
// in relation to the parent gas limit. The change must stay strictly below
// parentGasLimit/1024 in either direction.
func VerifyGaslimit(parentGasLimit uint64, headerGasLimit uint64) error {
	limit := parentGasLimit / params.GasLimitBoundDivisor
	if headerGasLimit > parentGasLimit {
		if headerGasLimit-parentGasLimit >= limit {
			return consensus.NewError(consensus.ErrGasLimitInvalidIncrease, headerGasLimit, parentGasLimit)
		}
		return nil
	}
	if parentGasLimit-headerGasLimit >= limit {
		return consensus.NewError(consensus.ErrGasLimitInvalidDecrease, headerGasLimit, parentGasLimit)
	}
	return nil
}

// ParentGasLimit returns the gas limit of parent the child's limit is checked
// against. At the block London activates the target doubles, so the parent's
// limit is scaled by the elasticity multiplier, capped at MaxGasLimit.
func ParentGasLimit(spec *params.ChainSpec, parentGasLimit uint64, number uint64) uint64 {
	if spec.Fork(params.London).TransitionsAtBlock(number) {
		if parentGasLimit > params.MaxGasLimit/params.ElasticityMultiplier {
			return params.MaxGasLimit
		}
		return parentGasLimit * params.ElasticityMultiplier
	}
	return parentGasLimit
}
