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

package trustspell

import (
	"github.com/blinklabs-io/trustspell/governance"
	"github.com/blinklabs-io/trustspell/spell"
)

// MoveSpell describes a single move for anchoring
func (s *Session) MoveSpell(roundIndex uint64, cooperative bool) spell.Spell {
	return spell.NewMove(s.config.appID, s.timestamp(), roundIndex, cooperative)
}

// ReputationSpell snapshots the ledger for anchoring
func (s *Session) ReputationSpell() spell.Spell {
	return spell.NewReputationAnchor(
		s.config.appID,
		s.timestamp(),
		s.ledger.Snapshot(),
	)
}

// VoteSpell describes a vote with the player's current voting power
func (s *Session) VoteSpell(proposalID uint64, choice governance.Choice) spell.Spell {
	return spell.NewGovernanceVote(
		s.config.appID,
		s.timestamp(),
		proposalID,
		choice,
		s.ledger.VotingPower(),
	)
}

// Vote casts a vote weighted by the player's current voting power
func (s *Session) Vote(proposalID uint64, playerID string, choice governance.Choice) (uint64, error) {
	power := s.ledger.VotingPower()
	if err := s.engine.CastVote(proposalID, playerID, choice, power); err != nil {
		return 0, err
	}
	return power, nil
}
