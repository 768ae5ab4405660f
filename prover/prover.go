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

// Package prover is the boundary to the external proof generator.
//
// A Gateway receives the spell to anchor together with the funding UTXO
// and change address, and returns the commit and spell transactions as
// hex. The HTTP and exec gateways reach a real prover; the stub gateway
// builds the pair locally without a proof and is chosen once, at
// construction, when no prover is available.
package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/game"
	"github.com/blinklabs-io/trustspell/txbuilder"
)

var (
	ErrProverRejected   = errors.New("prover returned an error")
	ErrMalformedReply   = errors.New("prover reply is not a transaction pair")
	ErrEmptyTransaction = errors.New("prover returned an empty transaction")
)

// ProveInput is the game history the prover replays for a reputation
// anchor
type ProveInput struct {
	PlayerAddress string   `json:"player_address"`
	Moves         []uint32 `json:"moves"`
	OpponentMoves []uint32 `json:"opponent_moves"`
	// Payoffs in R, T, S, P order
	Payoffs [4]int64 `json:"payoffs"`
}

// NewProveInput converts a move history to the prover's encoding, where
// 0 is cooperate and 1 is defect
func NewProveInput(
	address string,
	moves []bool,
	opponentMoves []bool,
	matrix game.PayoffMatrix,
) *ProveInput {
	encode := func(in []bool) []uint32 {
		ret := make([]uint32, len(in))
		for i, coop := range in {
			if coop {
				ret[i] = uint32(game.Cooperate)
			} else {
				ret[i] = uint32(game.Defect)
			}
		}
		return ret
	}
	return &ProveInput{
		PlayerAddress: address,
		Moves:         encode(moves),
		OpponentMoves: encode(opponentMoves),
		Payoffs:       matrix.Array(),
	}
}

// Request is what a gateway sends to the prover
type Request struct {
	// Spell is the canonical spell JSON
	Spell         json.RawMessage `json:"spell"`
	FundingUTXO   txbuilder.UTXO  `json:"funding_utxo"`
	ChangeAddress string          `json:"change_address"`
	ProveInput    *ProveInput     `json:"prove_input,omitempty"`
}

// Response is an ordered transaction pair
type Response struct {
	CommitTxHex string
	SpellTxHex  string
	// Proven is false when the pair was built without a real proof
	Proven bool
}

type Gateway interface {
	Name() string
	Prove(ctx context.Context, req Request) (Response, error)
}

type errorReply struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ParseReply interprets a prover reply. The only accepted shapes are a
// two-element array of transaction hex strings and an error object;
// anything else is a ProtocolError.
func ParseReply(op string, data []byte) (Response, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Response{}, errs.NewProtocol(op, ErrMalformedReply)
	}
	switch data[0] {
	case '[':
		var pair []string
		if err := json.Unmarshal(data, &pair); err != nil {
			return Response{}, errs.NewProtocol(
				op,
				fmt.Errorf("%w: %w", ErrMalformedReply, err),
			)
		}
		if len(pair) != 2 {
			return Response{}, errs.Protocolf(
				op,
				"%w: %d elements",
				ErrMalformedReply,
				len(pair),
			)
		}
		if strings.TrimSpace(pair[0]) == "" || strings.TrimSpace(pair[1]) == "" {
			return Response{}, errs.NewProtocol(op, ErrEmptyTransaction)
		}
		return Response{
			CommitTxHex: pair[0],
			SpellTxHex:  pair[1],
			Proven:      true,
		}, nil
	case '{':
		var reply errorReply
		if err := json.Unmarshal(data, &reply); err != nil {
			return Response{}, errs.NewProtocol(
				op,
				fmt.Errorf("%w: %w", ErrMalformedReply, err),
			)
		}
		msg := reply.Error
		if msg == "" {
			msg = reply.Message
		}
		if msg == "" {
			return Response{}, errs.NewProtocol(op, ErrMalformedReply)
		}
		return Response{}, errs.NewProtocol(
			op,
			fmt.Errorf("%w: %s", ErrProverRejected, msg),
		)
	}
	return Response{}, errs.NewProtocol(op, ErrMalformedReply)
}
