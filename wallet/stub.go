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

package wallet

import (
	"context"
	"io"
	"log/slog"

	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/txbuilder"
)

// StubSigner reports the txids of the given transactions without signing
// or broadcasting anything
type StubSigner struct {
	logger *slog.Logger
}

func NewStubSigner(logger *slog.Logger) *StubSigner {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &StubSigner{
		logger: logger.With("component", "wallet", "signer", "stub"),
	}
}

func (s *StubSigner) Name() string {
	return "stub"
}

func (s *StubSigner) SignAndBroadcast(
	ctx context.Context,
	commitTxHex string,
	spellTxHex string,
) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, errs.FromContext("broadcast", err)
	}
	commitTx, err := txbuilder.DeserializeHex(commitTxHex)
	if err != nil {
		return Result{}, err
	}
	spellTx, err := txbuilder.DeserializeHex(spellTxHex)
	if err != nil {
		return Result{}, err
	}
	ret := Result{
		CommitTxID: commitTx.TxHash().String(),
		SpellTxID:  spellTx.TxHash().String(),
	}
	s.logger.Debug(
		"skipping broadcast",
		"commit_txid", ret.CommitTxID,
		"spell_txid", ret.SpellTxID,
	)
	return ret, nil
}
