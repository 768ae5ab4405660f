// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package txbuilder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/blinklabs-io/trustspell/errs"
)

const (
	// DefaultDustLimit is the relay dust threshold for a P2PKH output
	DefaultDustLimit = 546
	// DefaultInputAllowance is the vsize a signer adds to the funding
	// input of the commit transaction, sized for a P2WPKH spend
	DefaultInputAllowance = 68

	witnessScaleFactor = 4
)

var ErrBelowDust = errors.New("amount after fees does not exceed dust threshold")

// FeePolicy is the caller-supplied fee accounting for a transaction pair
type FeePolicy struct {
	// FeeRate is in satoshis per virtual byte
	FeeRate uint64 `yaml:"feeRate" json:"feeRate"`
	// DustLimit is the smallest amount that may remain after fees
	DustLimit uint64 `yaml:"dustLimit" json:"dustLimit"`
	// InputAllowance is added to the unsigned commit vsize to cover the
	// funding signature
	InputAllowance uint64 `yaml:"inputAllowance" json:"inputAllowance"`
	// Change sends the remaining value back to the destination address
	// from the spell transaction instead of emitting an OP_RETURN marker.
	// The value passes through the commit output, which then carries the
	// funding amount less the commit fee.
	Change bool `yaml:"change" json:"change"`
}

func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		FeeRate:        1,
		DustLimit:      DefaultDustLimit,
		InputAllowance: DefaultInputAllowance,
	}
}

// VirtualSize returns the BIP141 virtual size of a transaction
func VirtualSize(tx *wire.MsgTx) uint64 {
	stripped := tx.SerializeSizeStripped()
	total := tx.SerializeSize()
	weight := stripped*(witnessScaleFactor-1) + total
	// #nosec G115
	return uint64((weight + witnessScaleFactor - 1) / witnessScaleFactor)
}

// Fee returns the fee owed for the pair at the policy rate
func (p FeePolicy) Fee(commit *wire.MsgTx, spell *wire.MsgTx) uint64 {
	return p.CommitFee(commit) + p.SpellFee(spell)
}

// CommitFee is the share of the pair fee paid by the commit transaction,
// including the funding input allowance
func (p FeePolicy) CommitFee(commit *wire.MsgTx) uint64 {
	return (VirtualSize(commit) + p.InputAllowance) * p.FeeRate
}

func (p FeePolicy) SpellFee(spell *wire.MsgTx) uint64 {
	return VirtualSize(spell) * p.FeeRate
}

// Remaining checks that amount covers the fee with more than the dust
// limit left over and returns that remainder
func (p FeePolicy) Remaining(amount uint64, fee uint64) (uint64, error) {
	if fee >= amount || amount-fee <= p.DustLimit {
		return 0, errs.NewValidation(
			"fee accounting",
			fmt.Errorf(
				"%w: amount %d, fee %d, dust %d",
				ErrBelowDust,
				amount,
				fee,
				p.DustLimit,
			),
		)
	}
	return amount - fee, nil
}
