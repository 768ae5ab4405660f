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

package api

import (
	"github.com/blinklabs-io/trustspell"
	"github.com/blinklabs-io/trustspell/game"
	"github.com/blinklabs-io/trustspell/governance"
	"github.com/blinklabs-io/trustspell/reputation"
	"github.com/blinklabs-io/trustspell/spell"
	"github.com/blinklabs-io/trustspell/txbuilder"
)

type RecordMoveRequest struct {
	Cooperative *bool `json:"cooperative"`
}

type LinkAddressRequest struct {
	Address string `json:"address"`
}

type ReputationResponse struct {
	reputation.Snapshot
	Tier        string `json:"tierName"`
	OldScore    uint64 `json:"oldScore,omitempty"`
	ScoreChange int64  `json:"scoreChange,omitempty"`
}

type CastVoteRequest struct {
	ProposalID uint64            `json:"proposalId"`
	PlayerID   string            `json:"playerId"`
	Choice     governance.Choice `json:"choice"`
}

type CastVoteResponse struct {
	ProposalID  uint64            `json:"proposalId"`
	Choice      governance.Choice `json:"choice"`
	VotingPower uint64            `json:"votingPower"`
}

type CloseRoundResponse struct {
	Winner *governance.Proposal `json:"winner"`
	Matrix game.PayoffMatrix    `json:"payoffMatrix"`
}

type NextRoundResponse struct {
	Round uint64 `json:"round"`
}

type GovernanceResponse struct {
	Round     uint64                `json:"round"`
	Proposals []governance.Proposal `json:"proposals"`
	Executed  []governance.Proposal `json:"executedProposals"`
	Matrix    game.PayoffMatrix     `json:"payoffMatrix"`
}

type PlayRoundRequest struct {
	Move         *game.Move     `json:"move"`
	OpponentMove *game.Move     `json:"opponentMove,omitempty"`
	Strategy     *game.Strategy `json:"strategy,omitempty"`
}

// SpellRequest names the spell to anchor. Either a complete spell is
// given or one is derived from the session by kind.
type SpellRequest struct {
	Spell       *spell.Spell      `json:"spell,omitempty"`
	Kind        spell.Type        `json:"kind,omitempty"`
	RoundIndex  uint64            `json:"roundIndex,omitempty"`
	Cooperative bool              `json:"cooperative,omitempty"`
	ProposalID  uint64            `json:"proposalId,omitempty"`
	Choice      governance.Choice `json:"choice,omitempty"`
}

type BuildAnchorRequest struct {
	SpellRequest
	FundingUTXO   txbuilder.UTXO `json:"fundingUtxo"`
	ChangeAddress string         `json:"changeAddress"`
}

type BuildAnchorResponse struct {
	Spell       spell.Spell `json:"spell"`
	CommitTxHex string      `json:"commitTxHex"`
	SpellTxHex  string      `json:"spellTxHex"`
	CommitTxID  string      `json:"commitTxid"`
	SpellTxID   string      `json:"spellTxid"`
	Fee         uint64      `json:"fee"`
}

type AnchorRequest struct {
	BuildAnchorRequest
	Broadcast     bool `json:"broadcast"`
	AllowFallback bool `json:"allowFallback"`
}

type AnchorResponse struct {
	trustspell.AnchorResult
	Spell spell.Spell `json:"spell"`
	Error *Error      `json:"error,omitempty"`
}

type AnchorsResponse struct {
	Anchors []AnchorSummary `json:"anchors"`
}

type AnchorSummary struct {
	AttemptID  string `json:"attemptId"`
	SpellType  string `json:"spellType"`
	Outcome    string `json:"outcome"`
	Gateway    string `json:"gateway"`
	CommitTxID string `json:"commitTxid,omitempty"`
	SpellTxID  string `json:"spellTxid,omitempty"`
	Fee        uint64 `json:"fee"`
	Error      string `json:"error,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
}
