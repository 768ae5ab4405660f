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
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/blinklabs-io/trustspell/errs"
)

var (
	ErrUnknownNetwork = errors.New("unknown network")
	ErrWrongNetwork   = errors.New("address is for a different network")
	ErrEmptyAddress   = errors.New("destination address is required")
)

// NetworkParams maps a network name to its chain parameters
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case "mainnet", "main", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3", "test":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest", "simnet":
		return &chaincfg.RegressionNetParams, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
}

// DecodeAddress checks that addr belongs to the network and returns it.
// Segwit addresses are checked against the network's human-readable part
// first so that a wrong-network address reports its prefix.
func DecodeAddress(addr string, params *chaincfg.Params) (btcutil.Address, error) {
	if addr == "" {
		return nil, errs.NewValidation("decode address", ErrEmptyAddress)
	}
	if hrp, _, _, err := bech32.DecodeGeneric(addr); err == nil {
		if hrp != params.Bech32HRPSegwit {
			return nil, errs.NewValidation(
				"decode address",
				fmt.Errorf(
					"%w: prefix %q, expected %q for %s",
					ErrWrongNetwork,
					hrp,
					params.Bech32HRPSegwit,
					params.Name,
				),
			)
		}
	}
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, errs.NewValidation("decode address", err)
	}
	if !decoded.IsForNet(params) {
		return nil, errs.NewValidation(
			"decode address",
			fmt.Errorf("%w: %s", ErrWrongNetwork, params.Name),
		)
	}
	return decoded, nil
}
