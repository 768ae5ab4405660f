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
	"encoding/json"
	"fmt"

	"github.com/blinklabs-io/trustspell/governance"
	"github.com/blinklabs-io/trustspell/reputation"
)

// The wire structs fix the key order of the canonical JSON form

type header struct {
	AppID     string `json:"appId"`
	Type      Type   `json:"type"`
	Timestamp uint64 `json:"timestamp"`
}

type moveWire struct {
	AppID       string `json:"appId"`
	Type        Type   `json:"type"`
	Timestamp   uint64 `json:"timestamp"`
	RoundIndex  uint64 `json:"round_index"`
	Cooperative bool   `json:"cooperative"`
}

type reputationWire struct {
	AppID            string          `json:"appId"`
	Type             Type            `json:"type"`
	Timestamp        uint64          `json:"timestamp"`
	PlayerAddress    string          `json:"player_address"`
	ReputationScore  uint64          `json:"reputation_score"`
	ReputationTier   reputation.Tier `json:"reputation_tier"`
	VotingPower      uint64          `json:"voting_power"`
	TotalMoves       uint64          `json:"total_moves"`
	CooperativeMoves uint64          `json:"cooperative_moves"`
}

type voteWire struct {
	AppID       string            `json:"appId"`
	Type        Type              `json:"type"`
	Timestamp   uint64            `json:"timestamp"`
	ProposalID  uint64            `json:"proposal_id"`
	Vote        governance.Choice `json:"vote"`
	VotingPower uint64            `json:"voting_power"`
}

// MarshalJSON produces the canonical form used for commitments
func (s Spell) MarshalJSON() ([]byte, error) {
	switch s.Type {
	case TypeMove:
		return json.Marshal(moveWire{
			AppID:       s.AppID,
			Type:        s.Type,
			Timestamp:   s.Timestamp,
			RoundIndex:  s.Move.RoundIndex,
			Cooperative: s.Move.Cooperative,
		})
	case TypeReputationAnchor:
		r := s.Reputation
		return json.Marshal(reputationWire{
			AppID:            s.AppID,
			Type:             s.Type,
			Timestamp:        s.Timestamp,
			PlayerAddress:    r.PlayerAddress,
			ReputationScore:  r.ReputationScore,
			ReputationTier:   r.ReputationTier,
			VotingPower:      r.VotingPower,
			TotalMoves:       r.TotalMoves,
			CooperativeMoves: r.CooperativeMoves,
		})
	case TypeGovernanceVote:
		return json.Marshal(voteWire{
			AppID:       s.AppID,
			Type:        s.Type,
			Timestamp:   s.Timestamp,
			ProposalID:  s.Vote.ProposalID,
			Vote:        s.Vote.Vote,
			VotingPower: s.Vote.VotingPower,
		})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, s.Type)
}

// UnmarshalJSON accepts the canonical key set for the spell type and
// rejects unknown keys
func (s *Spell) UnmarshalJSON(data []byte) error {
	var hdr header
	if err := json.Unmarshal(data, &hdr); err != nil {
		return err
	}
	var tmp Spell
	switch hdr.Type {
	case TypeMove:
		var w moveWire
		if err := strictUnmarshal(data, &w); err != nil {
			return err
		}
		tmp = NewMove(w.AppID, w.Timestamp, w.RoundIndex, w.Cooperative)
	case TypeReputationAnchor:
		var w reputationWire
		if err := strictUnmarshal(data, &w); err != nil {
			return err
		}
		tmp = Spell{
			AppID:     w.AppID,
			Type:      w.Type,
			Timestamp: w.Timestamp,
			Reputation: ReputationPayload{
				PlayerAddress:    w.PlayerAddress,
				ReputationScore:  w.ReputationScore,
				ReputationTier:   w.ReputationTier,
				VotingPower:      w.VotingPower,
				TotalMoves:       w.TotalMoves,
				CooperativeMoves: w.CooperativeMoves,
			},
		}
	case TypeGovernanceVote:
		var w voteWire
		if err := strictUnmarshal(data, &w); err != nil {
			return err
		}
		tmp = NewGovernanceVote(
			w.AppID,
			w.Timestamp,
			w.ProposalID,
			w.Vote,
			w.VotingPower,
		)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, hdr.Type)
	}
	*s = tmp
	return nil
}
