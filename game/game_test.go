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

package game_test

import (
	"encoding/json"
	"testing"

	"github.com/blinklabs-io/trustspell/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayoffs(t *testing.T) {
	m := game.DefaultPayoffMatrix()
	testDefs := []struct {
		move1, move2     game.Move
		payoff1, payoff2 int64
	}{
		{game.Cooperate, game.Cooperate, 2, 2},
		{game.Cooperate, game.Defect, -1, 3},
		{game.Defect, game.Cooperate, 3, -1},
		{game.Defect, game.Defect, 0, 0},
	}
	for _, testDef := range testDefs {
		p1, p2 := m.Payoffs(testDef.move1, testDef.move2)
		assert.Equal(t, testDef.payoff1, p1, "%s/%s", testDef.move1, testDef.move2)
		assert.Equal(t, testDef.payoff2, p2, "%s/%s", testDef.move1, testDef.move2)
	}
	assert.Equal(t, [4]int64{2, 3, -1, 0}, m.Array())
}

func TestSetPayoffKeepsOrdering(t *testing.T) {
	m := game.DefaultPayoffMatrix()
	require.NoError(t, m.SetPayoff("r", 1))
	v, err := m.GetPayoff("R")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// T must stay above R
	err = m.SetPayoff("temptation", 1)
	require.ErrorIs(t, err, game.ErrPayoffOrdering)
	assert.Equal(t, int64(3), m.T)

	require.ErrorIs(t, m.SetPayoff("q", 1), game.ErrUnknownField)
	_, err = m.GetPayoff("q")
	require.ErrorIs(t, err, game.ErrUnknownField)
}

func TestRules(t *testing.T) {
	r := game.NewRules(game.DefaultPayoffMatrix())
	require.NoError(t, r.SetPayoff("t", 5))
	assert.Equal(t, int64(5), r.Matrix().T)
	require.Error(t, r.Replace(game.PayoffMatrix{R: 1, S: 1, T: 1, P: 1}))
	require.NoError(t, r.Replace(game.PayoffMatrix{R: 3, S: 0, T: 5, P: 1}))
	v, err := r.GetPayoff("p")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestValidateMove(t *testing.T) {
	state := game.NewState(10, game.DefaultPayoffMatrix())
	require.NoError(t, game.ValidateMove(state, game.Cooperate, game.Cooperate, 2, 2))
	require.ErrorIs(
		t,
		game.ValidateMove(state, game.Cooperate, game.Cooperate, 3, 3),
		game.ErrPayoffMismatch,
	)
	state.Round = 10
	require.ErrorIs(
		t,
		game.ValidateMove(state, game.Cooperate, game.Cooperate, 2, 2),
		game.ErrGameFinished,
	)
}

func TestTitForTat(t *testing.T) {
	state := game.NewState(5, game.DefaultPayoffMatrix())
	assert.True(t, game.TitForTat.Consistent(state, game.Cooperate))
	assert.False(t, game.TitForTat.Consistent(state, game.Defect))

	state.Round = 1
	assert.False(t, game.TitForTat.Consistent(state, game.Cooperate))
	state.History2 = append(state.History2, game.Cooperate)
	assert.True(t, game.TitForTat.Consistent(state, game.Cooperate))

	state.Round = 2
	state.History2 = append(state.History2, game.Defect)
	assert.True(t, game.TitForTat.Consistent(state, game.Defect))
}

func TestGrudgeAndFixedStrategies(t *testing.T) {
	state := game.NewState(5, game.DefaultPayoffMatrix())
	assert.True(t, game.Grudge.Consistent(state, game.Cooperate))
	state.History2 = []game.Move{game.Cooperate, game.Defect, game.Cooperate}
	assert.True(t, game.Grudge.Consistent(state, game.Defect))
	assert.False(t, game.Grudge.Consistent(state, game.Cooperate))
	assert.True(t, game.AlwaysDefect.Consistent(state, game.Defect))
	assert.True(t, game.AlwaysCooperate.Consistent(state, game.Cooperate))
	_, err := game.Strategy("random").Next(state)
	require.Error(t, err)
}

func TestRoundValidator(t *testing.T) {
	v := game.NewRoundValidator(game.NewState(2, game.DefaultPayoffMatrix()))
	out, err := v.PlayRound(game.Cooperate, game.Cooperate)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Payoff1)
	_, err = v.PlayRound(game.Defect, game.Cooperate)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v.State().Round)
	assert.Equal(t, int64(5), v.State().Score1)
	assert.Equal(t, int64(1), v.State().Score2)
	assert.True(t, v.Finished())
	_, err = v.PlayRound(game.Cooperate, game.Cooperate)
	require.ErrorIs(t, err, game.ErrGameFinished)
}

func TestMoveText(t *testing.T) {
	data, err := json.Marshal([]game.Move{game.Cooperate, game.Defect})
	require.NoError(t, err)
	assert.JSONEq(t, `["cooperate","defect"]`, string(data))
	var moves []game.Move
	require.NoError(t, json.Unmarshal([]byte(`["C","1"]`), &moves))
	assert.Equal(t, []game.Move{game.Cooperate, game.Defect}, moves)
	require.Error(t, json.Unmarshal([]byte(`["maybe"]`), &moves))
}
