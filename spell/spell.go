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

package spell

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/trustspell/governance"
	"github.com/blinklabs-io/trustspell/reputation"
)

var (
	ErrUnknownType      = errors.New("unknown spell type")
	ErrMissingAppID     = errors.New("app id is required")
	ErrMissingAddress   = errors.New("player address is required")
	ErrScoreOutOfRange  = errors.New("reputation score out of range")
	ErrTierOutOfRange   = errors.New("reputation tier out of range")
	ErrMoveCounts       = errors.New("cooperative moves exceed total moves")
	ErrMissingProposal  = errors.New("proposal id is required")
	ErrUnexpectedFields = errors.New("fields set for another spell type")
)

// Type is the kind of event a spell anchors
type Type string

const (
	TypeMove             Type = "move"
	TypeReputationAnchor Type = "reputation_anchor"
	TypeGovernanceVote   Type = "governance_vote"
)

func (t Type) Valid() bool {
	switch t {
	case TypeMove, TypeReputationAnchor, TypeGovernanceVote:
		return true
	}
	return false
}

type MovePayload struct {
	RoundIndex  uint64
	Cooperative bool
}

type ReputationPayload struct {
	PlayerAddress    string
	ReputationScore  uint64
	ReputationTier   reputation.Tier
	VotingPower      uint64
	TotalMoves       uint64
	CooperativeMoves uint64
}

type VotePayload struct {
	ProposalID  uint64
	Vote        governance.Choice
	VotingPower uint64
}

// Spell is an application payload destined for on-chain embedding. Only
// the payload matching Type may be set. Spell is a comparable value type.
type Spell struct {
	AppID      string
	Type       Type
	Timestamp  uint64
	Move       MovePayload
	Reputation ReputationPayload
	Vote       VotePayload
}

func NewMove(appID string, timestamp uint64, roundIndex uint64, cooperative bool) Spell {
	return Spell{
		AppID:     appID,
		Type:      TypeMove,
		Timestamp: timestamp,
		Move: MovePayload{
			RoundIndex:  roundIndex,
			Cooperative: cooperative,
		},
	}
}

// NewReputationAnchor builds a spell from a ledger snapshot
func NewReputationAnchor(
	appID string,
	timestamp uint64,
	snap reputation.Snapshot,
) Spell {
	return Spell{
		AppID:     appID,
		Type:      TypeReputationAnchor,
		Timestamp: timestamp,
		Reputation: ReputationPayload{
			PlayerAddress:    snap.Address,
			ReputationScore:  snap.Score,
			ReputationTier:   snap.Tier,
			VotingPower:      snap.VotingPower,
			TotalMoves:       snap.TotalMoves,
			CooperativeMoves: snap.CooperativeMoves,
		},
	}
}

func NewGovernanceVote(
	appID string,
	timestamp uint64,
	proposalID uint64,
	choice governance.Choice,
	votingPower uint64,
) Spell {
	return Spell{
		AppID:     appID,
		Type:      TypeGovernanceVote,
		Timestamp: timestamp,
		Vote: VotePayload{
			ProposalID:  proposalID,
			Vote:        choice,
			VotingPower: votingPower,
		},
	}
}

func (s Spell) Validate() error {
	if s.AppID == "" {
		return ErrMissingAppID
	}
	var zeroMove MovePayload
	var zeroRep ReputationPayload
	var zeroVote VotePayload
	switch s.Type {
	case TypeMove:
		if s.Reputation != zeroRep || s.Vote != zeroVote {
			return fmt.Errorf("%w: %s", ErrUnexpectedFields, s.Type)
		}
	case TypeReputationAnchor:
		if s.Move != zeroMove || s.Vote != zeroVote {
			return fmt.Errorf("%w: %s", ErrUnexpectedFields, s.Type)
		}
		r := s.Reputation
		if r.PlayerAddress == "" {
			return ErrMissingAddress
		}
		if r.ReputationScore > 100 {
			return fmt.Errorf("%w: %d", ErrScoreOutOfRange, r.ReputationScore)
		}
		if r.ReputationTier > reputation.WellAligned {
			return fmt.Errorf("%w: %d", ErrTierOutOfRange, r.ReputationTier)
		}
		if r.CooperativeMoves > r.TotalMoves {
			return ErrMoveCounts
		}
	case TypeGovernanceVote:
		if s.Move != zeroMove || s.Reputation != zeroRep {
			return fmt.Errorf("%w: %s", ErrUnexpectedFields, s.Type)
		}
		if s.Vote.ProposalID == 0 {
			return ErrMissingProposal
		}
		if !s.Vote.Vote.Valid() {
			return fmt.Errorf("%w: %q", governance.ErrInvalidChoice, s.Vote.Vote)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, s.Type)
	}
	return nil
}
