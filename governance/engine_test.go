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

package governance_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/game"
	"github.com/blinklabs-io/trustspell/governance"
	"github.com/blinklabs-io/trustspell/reputation"
)

func ptr[T any](v T) *T {
	return &v
}

func newTestEngine(t *testing.T) (*governance.Engine, *game.Rules) {
	t.Helper()
	rules := game.NewRules(game.DefaultPayoffMatrix())
	e := governance.NewEngine(governance.EngineConfig{
		Rules:        rules,
		PayoffFields: game.PayoffFields,
		Now: func() time.Time {
			return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		},
	})
	return e, rules
}

func mustPropose(t *testing.T, e *governance.Engine, title string, target *string, value *int64) uint64 {
	t.Helper()
	p, err := e.CreateProposal(title, "", target, value)
	require.NoError(t, err)
	return p.ID
}

func TestCreateProposalAssignsIDs(t *testing.T) {
	e, _ := newTestEngine(t)
	p1, err := e.CreateProposal("raise reward", "R to 2.5", ptr("r"), ptr(int64(1)))
	require.NoError(t, err)
	p2, err := e.CreateProposal("noop", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p1.ID)
	assert.Equal(t, uint64(2), p2.ID)
	assert.Equal(t, governance.KindChangePayoff, p1.Kind)
	assert.True(t, p2.NoOp())
	assert.Equal(t, governance.ProposalOpen, p1.State)

	testDefs := []struct {
		title  string
		target *string
		value  *int64
	}{
		{"", nil, nil},
		{"half", ptr("r"), nil},
		{"unknown field", ptr("x"), ptr(int64(1))},
	}
	for _, testDef := range testDefs {
		_, err := e.CreateProposal(testDef.title, "", testDef.target, testDef.value)
		require.Error(t, err)
		assert.True(t, errs.IsValidation(err), "%s: %v", testDef.title, err)
	}
	_, err = e.Submit(governance.ProposalRequest{
		Kind:     governance.KindAddStrategy,
		Title:    "add strategy",
		Target:   ptr("r"),
		NewValue: ptr(int64(1)),
	})
	require.Error(t, err)
	assert.Len(t, e.Proposals(), 2)
}

func TestDoubleVoteRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	id := mustPropose(t, e, "p", nil, nil)
	require.NoError(t, e.CastVote(id, "alice", governance.ChoiceYes, 120))

	err := e.CastVote(id, "alice", governance.ChoiceNo, 120)
	require.Error(t, err)
	assert.True(t, errs.IsState(err))
	assert.ErrorIs(t, err, governance.ErrDuplicateVote)

	require.NoError(t, e.Tally(id))
	// Still a duplicate after the tally
	err = e.CastVote(id, "alice", governance.ChoiceYes, 120)
	assert.True(t, errs.IsState(err))
	assert.ErrorIs(t, err, governance.ErrDuplicateVote)
	// A new voter sees the closed proposal
	err = e.CastVote(id, "bob", governance.ChoiceYes, 50)
	assert.True(t, errs.IsState(err))
	assert.ErrorIs(t, err, governance.ErrProposalNotOpen)

	p, err := e.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, governance.Tally{Yes: 120}, p.Tally)
	assert.Equal(t, governance.Tally{Yes: 1}, p.VoteCounts)
}

func TestCastVoteValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	id := mustPropose(t, e, "p", nil, nil)
	err := e.CastVote(id, "", governance.ChoiceYes, 1)
	assert.True(t, errs.IsValidation(err))
	err = e.CastVote(id, "alice", governance.Choice("maybe"), 1)
	assert.True(t, errs.IsValidation(err))
	err = e.CastVote(99, "alice", governance.ChoiceYes, 1)
	assert.True(t, errs.IsValidation(err))
	assert.ErrorIs(t, err, governance.ErrProposalNotFound)
	assert.Empty(t, e.Votes())
}

func TestTally(t *testing.T) {
	testDefs := []struct {
		yes, no, abstain uint64
		passed           bool
	}{
		{120, 50, 0, true},
		{50, 50, 0, false},
		{0, 0, 0, false},
		{10, 0, 500, true},
		{0, 1, 0, false},
	}
	for _, testDef := range testDefs {
		e, _ := newTestEngine(t)
		id := mustPropose(t, e, "p", nil, nil)
		if testDef.yes > 0 {
			require.NoError(t, e.CastVote(id, "y", governance.ChoiceYes, testDef.yes))
		}
		if testDef.no > 0 {
			require.NoError(t, e.CastVote(id, "n", governance.ChoiceNo, testDef.no))
		}
		if testDef.abstain > 0 {
			require.NoError(t, e.CastVote(id, "a", governance.ChoiceAbstain, testDef.abstain))
		}
		require.NoError(t, e.Tally(id))
		p, err := e.Proposal(id)
		require.NoError(t, err)
		assert.Equal(t, governance.ProposalClosed, p.State)
		assert.Equal(t, testDef.passed, p.HasPassed, "%+v", testDef)

		err = e.Tally(id)
		require.Error(t, err)
		assert.True(t, errs.IsState(err))
	}
}

func TestCloseRoundPicksHighestYes(t *testing.T) {
	e, rules := newTestEngine(t)
	p1 := mustPropose(t, e, "P1", ptr("t"), ptr(int64(4)))
	p2 := mustPropose(t, e, "P2", ptr("t"), ptr(int64(5)))
	p3 := mustPropose(t, e, "P3", nil, nil)
	require.NoError(t, e.CastVote(p1, "a", governance.ChoiceYes, 120))
	require.NoError(t, e.CastVote(p1, "b", governance.ChoiceNo, 50))
	require.NoError(t, e.CastVote(p2, "a", governance.ChoiceYes, 90))
	require.NoError(t, e.CastVote(p2, "b", governance.ChoiceNo, 10))

	winner, err := e.CloseRound()
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, p1, winner.ID)
	assert.Equal(t, governance.ProposalExecuted, winner.State)
	assert.Equal(t, int64(4), rules.Matrix().T)

	got2, err := e.Proposal(p2)
	require.NoError(t, err)
	assert.Equal(t, governance.ProposalClosed, got2.State)
	assert.True(t, got2.HasPassed)
	got3, err := e.Proposal(p3)
	require.NoError(t, err)
	assert.False(t, got3.HasPassed)

	history := e.ExecutedProposals()
	require.Len(t, history, 1)
	assert.Equal(t, p1, history[0].ID)
}

func TestCloseRoundTieBreaksOnLowestID(t *testing.T) {
	e, _ := newTestEngine(t)
	p1 := mustPropose(t, e, "first", nil, nil)
	p2 := mustPropose(t, e, "second", nil, nil)
	require.NoError(t, e.CastVote(p2, "a", governance.ChoiceYes, 60))
	require.NoError(t, e.CastVote(p1, "a", governance.ChoiceYes, 60))
	winner, err := e.CloseRound()
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, p1, winner.ID)
}

func TestCloseRoundWithoutWinner(t *testing.T) {
	e, _ := newTestEngine(t)
	id := mustPropose(t, e, "p", nil, nil)
	require.NoError(t, e.CastVote(id, "a", governance.ChoiceNo, 10))
	winner, err := e.CloseRound()
	require.NoError(t, err)
	assert.Nil(t, winner)
	assert.Empty(t, e.ExecutedProposals())
}

func TestCloseRoundOncePerRound(t *testing.T) {
	e, _ := newTestEngine(t)
	p1 := mustPropose(t, e, "P1", nil, nil)
	p2 := mustPropose(t, e, "P2", nil, nil)
	require.NoError(t, e.CastVote(p1, "a", governance.ChoiceYes, 120))
	require.NoError(t, e.CastVote(p2, "a", governance.ChoiceYes, 90))

	winner, err := e.CloseRound()
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, p1, winner.ID)

	// The runner-up must not be executed by a second close
	winner, err = e.CloseRound()
	require.Error(t, err)
	assert.Nil(t, winner)
	assert.True(t, errs.IsState(err))
	assert.ErrorIs(t, err, governance.ErrRoundClosed)
	err = e.Execute(p2)
	assert.True(t, errs.IsState(err))
	assert.ErrorIs(t, err, governance.ErrRoundDecided)
	assert.Len(t, e.ExecutedProposals(), 1)
	assert.True(t, e.State().RoundClosed)

	e.NextRound()
	require.NoError(t, e.CastVote(p2, "a", governance.ChoiceYes, 90))
	winner, err = e.CloseRound()
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, p2, winner.ID)
	assert.Len(t, e.ExecutedProposals(), 2)
}

func TestCloseRoundSkipsProposalRejectedByRules(t *testing.T) {
	e, rules := newTestEngine(t)
	// T below R breaks the dilemma ordering
	p1 := mustPropose(t, e, "P1", ptr("t"), ptr(int64(1)))
	p2 := mustPropose(t, e, "P2", ptr("r"), ptr(int64(1)))
	require.NoError(t, e.CastVote(p1, "a", governance.ChoiceYes, 120))
	require.NoError(t, e.CastVote(p2, "a", governance.ChoiceYes, 90))

	winner, err := e.CloseRound()
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, p2, winner.ID)
	assert.Equal(t, int64(1), rules.Matrix().R)
	assert.Equal(t, int64(3), rules.Matrix().T)

	got1, err := e.Proposal(p1)
	require.NoError(t, err)
	assert.Equal(t, governance.ProposalClosed, got1.State)
	assert.True(t, got1.HasPassed)
	history := e.ExecutedProposals()
	require.Len(t, history, 1)
	assert.Equal(t, p2, history[0].ID)
}

func TestCloseRoundWhenOnlyPassingProposalIsRejected(t *testing.T) {
	e, rules := newTestEngine(t)
	id := mustPropose(t, e, "bad", ptr("t"), ptr(int64(1)))
	require.NoError(t, e.CastVote(id, "a", governance.ChoiceYes, 120))

	winner, err := e.CloseRound()
	require.NoError(t, err)
	assert.Nil(t, winner)
	assert.Equal(t, game.DefaultPayoffMatrix(), rules.Matrix())
	assert.Empty(t, e.ExecutedProposals())

	// The proposal is retried in the next round
	e.NextRound()
	p, err := e.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, governance.ProposalOpen, p.State)
}

func TestExecute(t *testing.T) {
	e, rules := newTestEngine(t)
	passing := mustPropose(t, e, "pass", ptr("r"), ptr(int64(1)))
	failing := mustPropose(t, e, "fail", nil, nil)
	open := mustPropose(t, e, "open", nil, nil)
	require.NoError(t, e.CastVote(passing, "a", governance.ChoiceYes, 10))
	require.NoError(t, e.Tally(passing))
	require.NoError(t, e.Tally(failing))

	err := e.Execute(open)
	assert.True(t, errs.IsState(err))
	assert.ErrorIs(t, err, governance.ErrNotClosed)

	err = e.Execute(failing)
	assert.True(t, errs.IsState(err))
	assert.ErrorIs(t, err, governance.ErrNotPassed)

	require.NoError(t, e.Execute(passing))
	assert.Equal(t, int64(1), rules.Matrix().R)
	err = e.Execute(passing)
	assert.True(t, errs.IsState(err))
	assert.ErrorIs(t, err, governance.ErrAlreadyExecuted)
	assert.Len(t, e.ExecutedProposals(), 1)
}

func TestExecuteRejectedByRules(t *testing.T) {
	e, rules := newTestEngine(t)
	// R above T breaks the dilemma ordering
	id := mustPropose(t, e, "bad", ptr("r"), ptr(int64(10)))
	require.NoError(t, e.CastVote(id, "a", governance.ChoiceYes, 10))
	require.NoError(t, e.Tally(id))
	err := e.Execute(id)
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrPayoffOrdering)
	p, err := e.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, governance.ProposalClosed, p.State)
	assert.Equal(t, game.DefaultPayoffMatrix(), rules.Matrix())
}

func TestNextRound(t *testing.T) {
	e, _ := newTestEngine(t)
	p1 := mustPropose(t, e, "P1", nil, nil)
	p2 := mustPropose(t, e, "P2", nil, nil)
	require.NoError(t, e.CastVote(p1, "alice", governance.ChoiceYes, 100))
	require.NoError(t, e.CastVote(p2, "alice", governance.ChoiceYes, 50))
	winner, err := e.CloseRound()
	require.NoError(t, err)
	require.Equal(t, p1, winner.ID)

	assert.Equal(t, uint64(2), e.NextRound())
	active := e.Proposals()
	require.Len(t, active, 1)
	assert.Equal(t, p2, active[0].ID)
	assert.Equal(t, governance.ProposalOpen, active[0].State)
	assert.Equal(t, governance.Tally{}, active[0].Tally)
	assert.False(t, active[0].HasPassed)
	assert.Empty(t, e.Votes())

	// Eligibility is per round
	require.NoError(t, e.CastVote(p2, "alice", governance.ChoiceNo, 50))
	// Executed proposals are never replayed
	err = e.CastVote(p1, "bob", governance.ChoiceYes, 1)
	assert.True(t, errs.IsState(err))
	assert.Len(t, e.ExecutedProposals(), 1)
}

func TestConcurrentVotesKeepTallyConsistent(t *testing.T) {
	e, _ := newTestEngine(t)
	id := mustPropose(t, e, "p", nil, nil)
	var wg sync.WaitGroup
	var failures sync.Map
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Every player votes twice; only one may land
			player := string(rune('A' + i%25))
			if err := e.CastVote(id, player, governance.ChoiceYes, 2); err != nil {
				failures.Store(i, err)
			}
		}()
	}
	wg.Wait()
	var failed int
	failures.Range(func(_, v any) bool {
		failed++
		assert.True(t, errs.IsState(v.(error)))
		return true
	})
	assert.Equal(t, 25, failed)
	p, err := e.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), p.Tally.Yes)
	assert.Equal(t, uint64(25), p.VoteCounts.Yes)
	assert.Len(t, e.Votes(), 25)
}

func TestStateRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	p1 := mustPropose(t, e, "P1", ptr("t"), ptr(int64(4)))
	p2 := mustPropose(t, e, "P2", nil, nil)
	require.NoError(t, e.CastVote(p1, "alice", governance.ChoiceYes, 120))
	_, err := e.CloseRound()
	require.NoError(t, err)
	e.NextRound()
	require.NoError(t, e.CastVote(p2, "bob", governance.ChoiceAbstain, 15))
	require.NoError(
		t,
		e.RegisterDependentApp("app-1", "lending", reputation.Neutral),
	)

	saved := e.State()
	assert.False(t, saved.RoundClosed)
	assert.Equal(t, int64(4), saved.CurrentPayoffMatrix["t"])
	assert.Equal(t, uint64(2), saved.VotingRound)
	assert.Contains(t, saved.Votes, "2:bob")

	data, err := json.Marshal(saved)
	require.NoError(t, err)
	var decoded governance.State
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, _ := newTestEngine(t)
	require.NoError(t, restored.Restore(decoded))
	assert.Equal(t, e.Proposals(), restored.Proposals())
	assert.Equal(t, uint64(2), restored.Round())
	assert.True(t, restored.HasVoted(p2, "bob"))
	assert.Len(t, restored.ExecutedProposals(), 1)
	err = restored.Execute(p1)
	assert.True(t, errs.IsState(err))
	next, err := restored.CreateProposal("P3", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), next.ID)
	assert.Len(t, restored.DependentApps(), 1)

	bad := decoded
	bad.Votes = map[string]governance.Vote{"9:x": {ProposalID: 9, PlayerID: "x"}}
	assert.True(t, errs.IsValidation(restored.Restore(bad)))
	bad = decoded
	bad.RoundWinner = p2
	assert.True(t, errs.IsValidation(restored.Restore(bad)))

	// A closed round stays closed across a restart
	_, err = restored.CloseRound()
	require.NoError(t, err)
	reloaded, _ := newTestEngine(t)
	require.NoError(t, reloaded.Restore(restored.State()))
	_, err = reloaded.CloseRound()
	assert.ErrorIs(t, err, governance.ErrRoundClosed)
}

func TestDependentApps(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.RegisterDependentApp("b", "bank", reputation.WellAligned))
	require.NoError(t, e.RegisterDependentApp("a", "arcade", reputation.Misaligned))
	err := e.RegisterDependentApp("a", "again", reputation.Neutral)
	assert.True(t, errs.IsState(err))

	apps := e.DependentApps()
	require.Len(t, apps, 2)
	assert.Equal(t, "a", apps[0].AppID)

	ok, err := e.CheckAppEligibility("b", reputation.Neutral)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = e.CheckAppEligibility("b", reputation.WellAligned)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = e.CheckAppEligibility("zzz", reputation.WellAligned)
	assert.True(t, errs.IsValidation(err))
}
