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

package prover

import (
	"context"
	"encoding/json"

	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/spell"
	"github.com/blinklabs-io/trustspell/txbuilder"
)

// StubGateway builds the transaction pair locally without a proof
type StubGateway struct {
	builder *txbuilder.Builder
}

func NewStubGateway(builder *txbuilder.Builder) *StubGateway {
	return &StubGateway{builder: builder}
}

func (g *StubGateway) Name() string {
	return "stub"
}

func (g *StubGateway) Prove(ctx context.Context, req Request) (Response, error) {
	_, span := tracer.Start(ctx, "prover.stub.Prove")
	defer span.End()
	if err := ctx.Err(); err != nil {
		return Response{}, errs.FromContext("prove", err)
	}
	var s spell.Spell
	if err := json.Unmarshal(req.Spell, &s); err != nil {
		return Response{}, errs.NewValidation("prove", err)
	}
	pair, err := g.builder.BuildPair(s, req.ChangeAddress, req.FundingUTXO)
	if err != nil {
		return Response{}, err
	}
	return Response{
		CommitTxHex: pair.CommitHex,
		SpellTxHex:  pair.SpellHex,
	}, nil
}
