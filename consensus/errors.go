// Copyright 2017 The go-ethereum Authors
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

package consensus

import (
	"errors"
	"fmt"
)

var (
	// ErrTheMergeDifficultyIsNotZero is returned if a block after the merge
	// carries a non-zero difficulty.
	ErrTheMergeDifficultyIsNotZero = errors.New("merge difficulty is not zero")

	// ErrTheMergeNonceIsNotZero is returned if a block after the merge carries
	// a non-zero nonce.
	ErrTheMergeNonceIsNotZero = errors.New("merge nonce is not zero")

	// ErrTheMergeOmmerRootIsNotEmpty is returned if a block after the merge
	// references uncles.
	ErrTheMergeOmmerRootIsNotEmpty = errors.New("merge ommer root is not empty")

	ErrExtraDataExceedsMax    = errors.New("extra-data too long")
	ErrGasUsedExceedsGasLimit = errors.New("gas used exceeds gas limit")

	// ErrTimestampIsInFuture is returned if a block's timestamp is later than
	// the local clock. The block may become valid once the clock catches up.
	ErrTimestampIsInFuture = errors.New("block in the future")

	ErrTimestampIsInPast = errors.New("timestamp older than parent")

	ErrBaseFeeMissing    = errors.New("base fee missing")
	ErrBaseFeeUnexpected = errors.New("base fee before london")
	ErrBaseFeeDiff       = errors.New("invalid base fee")

	ErrWithdrawalsRootMissing    = errors.New("withdrawals root missing")
	ErrWithdrawalsRootUnexpected = errors.New("withdrawals root before shanghai")
	ErrBodyWithdrawalsMissing    = errors.New("body withdrawals missing")
	ErrBodyWithdrawalsRootDiff   = errors.New("withdrawals root hash mismatch")
	ErrWithdrawalIndexInvalid    = errors.New("invalid withdrawal index")

	ErrGasLimitInvalidIncrease = errors.New("invalid gas limit increase")
	ErrGasLimitInvalidDecrease = errors.New("invalid gas limit decrease")

	ErrParentBlockNumberMismatch = errors.New("invalid block number")
	ErrBodyOmmersHashDiff        = errors.New("uncle root hash mismatch")
	ErrBodyTransactionRootDiff   = errors.New("transaction root hash mismatch")
)

// ConsensusError is a violation of a header or body rule. Err is one of the
// sentinel errors of this package; Have and Want hold the offending and the
// expected value for rules that compare the two.
type ConsensusError struct {
	Err  error
	Have interface{}
	Want interface{}
}

// NewError wraps a rule violation together with the offending and the
// expected value.
func NewError(err error, have, want interface{}) *ConsensusError {
	return &ConsensusError{Err: err, Have: have, Want: want}
}

func (e *ConsensusError) Error() string {
	if e.Have == nil && e.Want == nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: have %v, want %v", e.Err, e.Have, e.Want)
}

func (e *ConsensusError) Unwrap() error { return e.Err }

// IsFutureBlockErr reports whether err rejects a block only because its
// timestamp is ahead of the local clock.
func IsFutureBlockErr(err error) bool {
	return errors.Is(err, ErrTimestampIsInFuture)
}
