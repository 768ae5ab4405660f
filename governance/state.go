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

package governance

import (
	"fmt"
	"maps"
	"slices"

	"github.com/blinklabs-io/trustspell/errs"
)

// State is the persisted shape of the governance engine
type State struct {
	Proposals           []Proposal       `json:"proposals"`
	Votes               map[string]Vote  `json:"votes"`
	CurrentPayoffMatrix map[string]int64 `json:"currentPayoffMatrix"`
	ExecutedProposals   []Proposal       `json:"executedProposals"`
	VotingRound         uint64           `json:"votingRound"`
	NextProposalID      uint64           `json:"nextProposalId"`
	DependentApps       []DependentApp   `json:"dependentApps,omitempty"`
	RoundClosed         bool             `json:"roundClosed,omitempty"`
	RoundWinner         uint64           `json:"roundWinner,omitempty"`
}

// State returns a snapshot of the engine. The payoff matrix is read from
// the configured rules.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ret := State{
		Votes:          make(map[string]Vote, len(e.votes)),
		VotingRound:    e.round,
		NextProposalID: e.nextID,
		RoundClosed:    e.roundClosed,
		RoundWinner:    e.roundWinner,
	}
	for _, id := range e.active {
		ret.Proposals = append(ret.Proposals, e.proposals[id].clone())
	}
	for key, vote := range e.votes {
		ret.Votes[key.String()] = vote
	}
	for i := range e.executed {
		ret.ExecutedProposals = append(ret.ExecutedProposals, e.executed[i].clone())
	}
	for _, appID := range slices.Sorted(maps.Keys(e.apps)) {
		ret.DependentApps = append(ret.DependentApps, e.apps[appID])
	}
	if e.config.Rules != nil {
		ret.CurrentPayoffMatrix = make(map[string]int64)
		for _, field := range e.config.PayoffFields {
			if v, err := e.config.Rules.GetPayoff(field); err == nil {
				ret.CurrentPayoffMatrix[field] = v
			}
		}
	}
	return ret
}

// Restore replaces the engine contents with a persisted state. The payoff
// matrix is owned by the rules object and is not applied here. Proposals
// executed in the current round stay in the active set until NextRound.
func (e *Engine) Restore(state State) error {
	proposals := make(map[uint64]*Proposal)
	active := make([]uint64, 0, len(state.Proposals))
	var maxID uint64
	for i := range state.Proposals {
		p := state.Proposals[i].clone()
		if _, ok := proposals[p.ID]; ok || p.ID == 0 {
			return errs.Validationf("restore governance", "invalid proposal id %d", p.ID)
		}
		proposals[p.ID] = &p
		active = append(active, p.ID)
		maxID = max(maxID, p.ID)
	}
	executed := make([]Proposal, 0, len(state.ExecutedProposals))
	for i := range state.ExecutedProposals {
		p := state.ExecutedProposals[i].clone()
		if p.State != ProposalExecuted {
			return errs.Validationf(
				"restore governance",
				"history proposal %d is %s",
				p.ID,
				p.State,
			)
		}
		executed = append(executed, p)
		if _, ok := proposals[p.ID]; !ok {
			tmp := p.clone()
			proposals[p.ID] = &tmp
		}
		maxID = max(maxID, p.ID)
	}
	votes := make(map[voteKey]Vote, len(state.Votes))
	for key, vote := range state.Votes {
		k := voteKey{proposalID: vote.ProposalID, playerID: vote.PlayerID}
		if k.String() != key {
			return errs.Validationf("restore governance", "vote key mismatch: %s", key)
		}
		if _, ok := proposals[vote.ProposalID]; !ok {
			return errs.NewValidation(
				"restore governance",
				fmt.Errorf("%w: vote for %d", ErrProposalNotFound, vote.ProposalID),
			)
		}
		votes[k] = vote
	}
	if state.RoundWinner != 0 {
		p, ok := proposals[state.RoundWinner]
		if !ok || p.State != ProposalExecuted {
			return errs.Validationf(
				"restore governance",
				"round winner %d is not an executed proposal",
				state.RoundWinner,
			)
		}
	}
	apps := make(map[string]DependentApp, len(state.DependentApps))
	for _, app := range state.DependentApps {
		apps[app.AppID] = app
	}
	nextID := max(state.NextProposalID, maxID+1)
	round := max(state.VotingRound, 1)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.proposals = proposals
	e.active = active
	e.votes = votes
	e.executed = executed
	e.round = round
	e.nextID = nextID
	e.apps = apps
	e.roundClosed = state.RoundClosed
	e.roundWinner = state.RoundWinner
	return nil
}

// Reset discards all proposals, votes, history and registered apps
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}
