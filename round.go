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
	"errors"

	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/game"
	"github.com/blinklabs-io/trustspell/reputation"
)

// RoundResult is the outcome of a played round and its effect on the
// player's reputation
type RoundResult struct {
	Round      uint32                `json:"round"`
	Outcome    game.Outcome          `json:"outcome"`
	Score1     int64                 `json:"score1"`
	Score2     int64                 `json:"score2"`
	Finished   bool                  `json:"finished"`
	Reputation reputation.MoveResult `json:"reputation"`
}

func (s *Session) resetGame() {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	s.game = game.NewRoundValidator(
		game.NewState(s.config.totalRounds, s.rules.Matrix()),
	)
}

// PlayRound plays one round against the opponent with the current rules
// and records the player's move in the reputation ledger
func (s *Session) PlayRound(player game.Move, opponent game.Move) (RoundResult, error) {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	state := s.game.State()
	// Governance may have changed the payoffs since the last round
	state.Matrix = s.rules.Matrix()
	outcome, err := s.game.PlayRound(player, opponent)
	if err != nil {
		if errors.Is(err, game.ErrGameFinished) {
			return RoundResult{}, errs.NewState("play round", err)
		}
		return RoundResult{}, errs.NewValidation("play round", err)
	}
	moveResult, err := s.ledger.RecordMove(player == game.Cooperate)
	if err != nil {
		return RoundResult{}, err
	}
	return RoundResult{
		Round:      state.Round,
		Outcome:    outcome,
		Score1:     state.Score1,
		Score2:     state.Score2,
		Finished:   state.Finished(),
		Reputation: moveResult,
	}, nil
}

// OpponentMoves returns the opponent's moves in the current game as
// cooperation flags
func (s *Session) OpponentMoves() []bool {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	history := s.game.State().History2
	ret := make([]bool, len(history))
	for i, m := range history {
		ret[i] = m == game.Cooperate
	}
	return ret
}

// GameState returns a copy of the current game state
func (s *Session) GameState() game.State {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	state := *s.game.State()
	state.History1 = append([]game.Move(nil), state.History1...)
	state.History2 = append([]game.Move(nil), state.History2...)
	return state
}
