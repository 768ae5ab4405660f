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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/blinklabs-io/trustspell/errs"
)

var (
	ErrMissingTxID   = errors.New("utxo txid is required")
	ErrMissingVout   = errors.New("utxo vout is required")
	ErrMissingAmount = errors.New("utxo amount is required")
	ErrBadTxID       = errors.New("utxo txid must be 64 hex characters")
)

// UTXO is a caller-owned funding output
type UTXO struct {
	TxID       string `json:"txid"`
	Vout       uint32 `json:"vout"`
	AmountSats uint64 `json:"amountSats"`
}

func (u UTXO) String() string {
	return fmt.Sprintf(
		"%s:%d (%s)",
		u.TxID,
		u.Vout,
		btcutil.Amount(u.AmountSats), // #nosec G115
	)
}

func (u UTXO) Validate() error {
	if u.TxID == "" {
		return errs.NewValidation("validate utxo", ErrMissingTxID)
	}
	if _, err := u.OutPoint(); err != nil {
		return err
	}
	if u.AmountSats == 0 {
		return errs.NewValidation("validate utxo", ErrMissingAmount)
	}
	if u.AmountSats > btcutil.MaxSatoshi {
		return errs.Validationf(
			"validate utxo",
			"amount %d exceeds total supply",
			u.AmountSats,
		)
	}
	return nil
}

// OutPoint returns the wire outpoint. The display txid is byte-reversed
// into internal order.
func (u UTXO) OutPoint() (*wire.OutPoint, error) {
	if len(u.TxID) != chainhash.MaxHashStringSize {
		return nil, errs.NewValidation("validate utxo", ErrBadTxID)
	}
	hash, err := chainhash.NewHashFromStr(u.TxID)
	if err != nil {
		return nil, errs.NewValidation(
			"validate utxo",
			fmt.Errorf("%w: %w", ErrBadTxID, err),
		)
	}
	return wire.NewOutPoint(hash, u.Vout), nil
}

// UnmarshalJSON requires all three keys to be present, since a zero vout
// is legitimate and cannot be told apart from a missing one otherwise
func (u *UTXO) UnmarshalJSON(data []byte) error {
	var tmp struct {
		TxID       *string `json:"txid"`
		Vout       *uint32 `json:"vout"`
		AmountSats *uint64 `json:"amountSats"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	switch {
	case tmp.TxID == nil:
		return errs.NewValidation("decode utxo", ErrMissingTxID)
	case tmp.Vout == nil:
		return errs.NewValidation("decode utxo", ErrMissingVout)
	case tmp.AmountSats == nil:
		return errs.NewValidation("decode utxo", ErrMissingAmount)
	}
	*u = UTXO{
		TxID:       *tmp.TxID,
		Vout:       *tmp.Vout,
		AmountSats: *tmp.AmountSats,
	}
	return nil
}

// ParseUTXO parses the txid:vout:amount form
func ParseUTXO(s string) (UTXO, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return UTXO{}, errs.Validationf(
			"parse utxo",
			"expected txid:vout:amount, got %q",
			s,
		)
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return UTXO{}, errs.NewValidation("parse utxo", err)
	}
	amount, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return UTXO{}, errs.NewValidation("parse utxo", err)
	}
	return UTXO{
		TxID:       parts[0],
		Vout:       uint32(vout),
		AmountSats: amount,
	}, nil
}
