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

package game

import (
	"fmt"
	"slices"
)

// State is the state of a repeated game between two players
type State struct {
	Round       uint32       `json:"round"`
	TotalRounds uint32       `json:"total_rounds"`
	Matrix      PayoffMatrix `json:"payoff_matrix"`
	Score1      int64        `json:"score_1"`
	Score2      int64        `json:"score_2"`
	History1    []Move       `json:"history_1"`
	History2    []Move       `json:"history_2"`
}

func NewState(totalRounds uint32, matrix PayoffMatrix) *State {
	return &State{
		TotalRounds: totalRounds,
		Matrix:      matrix,
	}
}

func (s *State) Finished() bool {
	return s.Round >= s.TotalRounds
}

// Outcome is the result of a single round
type Outcome struct {
	Move1   Move  `json:"move_1"`
	Move2   Move  `json:"move_2"`
	Payoff1 int64 `json:"payoff_1"`
	Payoff2 int64 `json:"payoff_2"`
}

// ValidateMove checks that a round may be played in the given state and
// that the claimed payoffs match the state's matrix
func ValidateMove(
	state *State,
	move1 Move,
	move2 Move,
	claimed1 int64,
	claimed2 int64,
) error {
	if state.Finished() {
		return ErrGameFinished
	}
	if !move1.Valid() || !move2.Valid() {
		return fmt.Errorf("%w: %d/%d", ErrInvalidMoveValue, move1, move2)
	}
	actual1, actual2 := state.Matrix.Payoffs(move1, move2)
	if claimed1 != actual1 || claimed2 != actual2 {
		return fmt.Errorf(
			"%w: claimed (%d, %d), expected (%d, %d)",
			ErrPayoffMismatch,
			claimed1, claimed2,
			actual1, actual2,
		)
	}
	if state.Matrix.R <= state.Matrix.P {
		return ErrPayoffOrdering
	}
	return nil
}

// Strategy names a deterministic playing strategy
type Strategy string

const (
	TitForTat       Strategy = "tit_for_tat"
	AlwaysCooperate Strategy = "always_cooperate"
	AlwaysDefect    Strategy = "always_defect"
	Grudge          Strategy = "grudge"
)

// Strategies lists the built-in strategies
var Strategies = []Strategy{TitForTat, AlwaysCooperate, AlwaysDefect, Grudge}

// Next returns the move the strategy prescribes for player 1
func (s Strategy) Next(state *State) (Move, error) {
	switch s {
	case AlwaysCooperate:
		return Cooperate, nil
	case AlwaysDefect:
		return Defect, nil
	case TitForTat:
		if state.Round == 0 || len(state.History2) == 0 {
			return Cooperate, nil
		}
		return state.History2[len(state.History2)-1], nil
	case Grudge:
		if slices.Contains(state.History2, Defect) {
			return Defect, nil
		}
		return Cooperate, nil
	}
	return 0, fmt.Errorf("unknown strategy: %q", string(s))
}

// Consistent returns true if the proposed move is what the strategy would
// have played
func (s Strategy) Consistent(state *State, proposed Move) bool {
	// Tit-for-tat past the first round needs an opponent move to copy
	if s == TitForTat && state.Round > 0 && len(state.History2) == 0 {
		return false
	}
	want, err := s.Next(state)
	if err != nil {
		return false
	}
	return want == proposed
}

// RoundValidator plays validated rounds against a game state
type RoundValidator struct {
	state *State
}

func NewRoundValidator(state *State) *RoundValidator {
	return &RoundValidator{state: state}
}

func (v *RoundValidator) PlayRound(move1, move2 Move) (Outcome, error) {
	if v.state.Finished() {
		return Outcome{}, ErrGameFinished
	}
	if !move1.Valid() || !move2.Valid() {
		return Outcome{}, fmt.Errorf(
			"%w: %d/%d",
			ErrInvalidMoveValue,
			move1, move2,
		)
	}
	payoff1, payoff2 := v.state.Matrix.Payoffs(move1, move2)
	v.state.History1 = append(v.state.History1, move1)
	v.state.History2 = append(v.state.History2, move2)
	v.state.Score1 += payoff1
	v.state.Score2 += payoff2
	v.state.Round++
	return Outcome{
		Move1:   move1,
		Move2:   move2,
		Payoff1: payoff1,
		Payoff2: payoff2,
	}, nil
}

func (v *RoundValidator) State() *State {
	return v.state
}

func (v *RoundValidator) Finished() bool {
	return v.state.Finished()
}
