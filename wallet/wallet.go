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

// Package wallet is the boundary to the signing wallet. A Signer signs and
// broadcasts a commit and spell transaction pair, commit first.
package wallet

import (
	"context"
	"errors"
)

var (
	ErrWalletRejected = errors.New("wallet rejected transaction")
	ErrMissingTxID    = errors.New("wallet reply has no txid")
)

// Result holds the broadcast transaction IDs. CommitTxID is set even when
// the spell broadcast fails after the commit was accepted.
type Result struct {
	CommitTxID string `json:"commitTxid"`
	SpellTxID  string `json:"spellTxid"`
}

type Signer interface {
	Name() string
	SignAndBroadcast(ctx context.Context, commitTxHex string, spellTxHex string) (Result, error)
}
