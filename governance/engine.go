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

// Package governance implements reputation-weighted voting on rule change
// proposals.
//
// Each proposal moves from open to closed when tallied, and from closed to
// executed at most once, and only when it passed. A round groups the active
// proposals: closing a round executes the single best passing proposal and
// advancing to the next round reopens whatever was not executed with a
// fresh vote set.
package governance

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/event"
	"github.com/blinklabs-io/trustspell/reputation"
	"github.com/prometheus/client_golang/prometheus"
)

type EngineConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Rules        RulesSink
	// PayoffFields are read from Rules when building a State
	PayoffFields []string
	Now          func() time.Time
}

type Engine struct {
	mu        sync.RWMutex
	config    EngineConfig
	metrics   *engineMetrics
	proposals map[uint64]*Proposal
	active    []uint64
	votes     map[voteKey]Vote
	executed  []Proposal
	round     uint64
	nextID    uint64
	apps      map[string]DependentApp
	// roundClosed is set by CloseRound and roundWinner by the first
	// execution in the round. Both are cleared by NextRound.
	roundClosed bool
	roundWinner uint64
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "governance")
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	e := &Engine{
		config: cfg,
	}
	if cfg.PromRegistry != nil {
		e.metrics = newEngineMetrics(cfg.PromRegistry)
	}
	e.reset()
	return e
}

func (e *Engine) reset() {
	e.proposals = make(map[uint64]*Proposal)
	e.active = nil
	e.votes = make(map[voteKey]Vote)
	e.executed = nil
	e.round = 1
	e.nextID = 1
	e.apps = make(map[string]DependentApp)
	e.roundClosed = false
	e.roundWinner = 0
}

// ProposalRequest describes a new proposal
type ProposalRequest struct {
	Kind        ProposalKind `json:"kind"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Target      *string      `json:"target"`
	NewValue    *int64       `json:"newValue"`
}

// CreateProposal adds an open proposal to the current round. A nil target
// and value make a no-op proposal.
func (e *Engine) CreateProposal(
	title string,
	description string,
	target *string,
	newValue *int64,
) (*Proposal, error) {
	return e.Submit(ProposalRequest{
		Title:       title,
		Description: description,
		Target:      target,
		NewValue:    newValue,
	})
}

func (e *Engine) Submit(req ProposalRequest) (*Proposal, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errs.NewValidation("create proposal", ErrMissingTitle)
	}
	if (req.Target == nil) != (req.NewValue == nil) {
		return nil, errs.NewValidation("create proposal", ErrPartialTarget)
	}
	if req.Target != nil {
		if req.Kind == "" {
			req.Kind = KindChangePayoff
		}
		if req.Kind != KindChangePayoff {
			return nil, errs.Validationf(
				"create proposal",
				"kind %q cannot carry a payoff target",
				req.Kind,
			)
		}
		if e.config.Rules != nil {
			if _, err := e.config.Rules.GetPayoff(*req.Target); err != nil {
				return nil, errs.NewValidation("create proposal", err)
			}
		}
	}
	if req.Kind == "" {
		req.Kind = KindChangeGovernance
	}
	switch req.Kind {
	case KindChangePayoff, KindAddStrategy, KindChangeGovernance:
	default:
		return nil, errs.Validationf(
			"create proposal",
			"unknown proposal kind %q",
			req.Kind,
		)
	}
	e.mu.Lock()
	p := &Proposal{
		ID:          e.nextID,
		Kind:        req.Kind,
		Title:       req.Title,
		Description: req.Description,
		Target:      req.Target,
		NewValue:    req.NewValue,
		State:       ProposalOpen,
		Round:       e.round,
		CreatedAt:   e.config.Now(),
	}
	*p = p.clone()
	e.nextID++
	e.proposals[p.ID] = p
	e.active = append(e.active, p.ID)
	ret := p.clone()
	e.mu.Unlock()
	e.config.Logger.Info(
		"created proposal",
		"proposal_id", ret.ID,
		"title", ret.Title,
		"kind", ret.Kind,
	)
	e.publish(
		event.ProposalCreatedEventType,
		event.ProposalCreatedEvent{ProposalID: ret.ID, Title: ret.Title},
	)
	return &ret, nil
}

// CastVote records a weighted vote. The vote and its tally contribution
// are applied under a single lock.
func (e *Engine) CastVote(
	proposalID uint64,
	playerID string,
	choice Choice,
	power uint64,
) error {
	if playerID == "" {
		return errs.NewValidation("cast vote", ErrMissingPlayer)
	}
	if !choice.Valid() {
		return errs.NewValidation(
			"cast vote",
			fmt.Errorf("%w: %q", ErrInvalidChoice, string(choice)),
		)
	}
	key := voteKey{proposalID: proposalID, playerID: playerID}
	e.mu.Lock()
	p, ok := e.proposals[proposalID]
	if !ok {
		e.mu.Unlock()
		return errs.NewValidation(
			"cast vote",
			fmt.Errorf("%w: %d", ErrProposalNotFound, proposalID),
		)
	}
	if _, voted := e.votes[key]; voted {
		e.mu.Unlock()
		return errs.NewState(
			"cast vote",
			fmt.Errorf("%w: %s", ErrDuplicateVote, key),
		)
	}
	if p.State != ProposalOpen {
		e.mu.Unlock()
		return errs.NewState(
			"cast vote",
			fmt.Errorf("%w: %d is %s", ErrProposalNotOpen, proposalID, p.State),
		)
	}
	e.votes[key] = Vote{
		ProposalID: proposalID,
		PlayerID:   playerID,
		Choice:     choice,
		Power:      power,
		Timestamp:  e.config.Now(),
	}
	p.Tally.add(choice, power)
	p.VoteCounts.add(choice, 1)
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.votes.WithLabelValues(string(choice)).Inc()
	}
	e.config.Logger.Debug(
		"vote cast",
		"proposal_id", proposalID,
		"player_id", playerID,
		"choice", choice,
		"power", power,
	)
	e.publish(
		event.VoteCastEventType,
		event.VoteCastEvent{
			ProposalID: proposalID,
			PlayerID:   playerID,
			Choice:     string(choice),
			Power:      power,
		},
	)
	return nil
}

// Tally closes an open proposal and fixes whether it passed
func (e *Engine) Tally(proposalID uint64) error {
	e.mu.Lock()
	p, err := e.tallyLocked(proposalID)
	var closed Proposal
	if err == nil {
		closed = p.clone()
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.publishClosed(closed)
	return nil
}

func (e *Engine) tallyLocked(proposalID uint64) (*Proposal, error) {
	p, ok := e.proposals[proposalID]
	if !ok {
		return nil, errs.NewValidation(
			"tally",
			fmt.Errorf("%w: %d", ErrProposalNotFound, proposalID),
		)
	}
	if p.State != ProposalOpen {
		return nil, errs.NewState(
			"tally",
			fmt.Errorf("%w: %d is %s", ErrProposalNotOpen, proposalID, p.State),
		)
	}
	p.State = ProposalClosed
	p.HasPassed = p.Tally.Yes > p.Tally.No
	return p, nil
}

// CloseRound tallies every open proposal in the round and executes the
// passing proposal with the most yes power, the lowest id winning ties. A
// passing proposal whose change the rules reject is skipped in favour of
// the next one. It returns nil when nothing was executed. A round can be
// closed once.
func (e *Engine) CloseRound() (*Proposal, error) {
	e.mu.Lock()
	if e.roundClosed {
		round := e.round
		e.mu.Unlock()
		return nil, errs.NewState(
			"close round",
			fmt.Errorf("%w: %d", ErrRoundClosed, round),
		)
	}
	var closed []Proposal
	for _, id := range e.active {
		if e.proposals[id].State != ProposalOpen {
			continue
		}
		p, err := e.tallyLocked(id)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		closed = append(closed, p.clone())
	}
	var candidates []*Proposal
	for _, id := range e.active {
		p := e.proposals[id]
		if p.State == ProposalClosed && p.HasPassed {
			candidates = append(candidates, p)
		}
	}
	slices.SortStableFunc(candidates, func(a, b *Proposal) int {
		return cmp.Or(
			cmp.Compare(b.Tally.Yes, a.Tally.Yes),
			cmp.Compare(a.ID, b.ID),
		)
	})
	var winner *Proposal
	type skip struct {
		id  uint64
		err error
	}
	var skipped []skip
	// A manual Execute may already have decided the round
	if e.roundWinner == 0 {
		for _, p := range candidates {
			if err := e.executeLocked(p); err != nil {
				skipped = append(skipped, skip{id: p.ID, err: err})
				continue
			}
			winner = p
			break
		}
	}
	e.roundClosed = true
	round := e.round
	var executed Proposal
	if winner != nil {
		executed = winner.clone()
	}
	e.mu.Unlock()
	for _, p := range closed {
		e.publishClosed(p)
	}
	for _, sk := range skipped {
		e.config.Logger.Warn(
			"skipped passing proposal",
			"proposal_id", sk.id,
			"round", round,
			"error", sk.err,
		)
	}
	if winner == nil {
		e.config.Logger.Info("round closed without executing a proposal", "round", round)
		return nil, nil
	}
	e.publishExecuted(executed)
	return &executed, nil
}

// Execute applies a closed, passed proposal to the rules
func (e *Engine) Execute(proposalID uint64) error {
	e.mu.Lock()
	p, ok := e.proposals[proposalID]
	if !ok {
		e.mu.Unlock()
		return errs.NewValidation(
			"execute",
			fmt.Errorf("%w: %d", ErrProposalNotFound, proposalID),
		)
	}
	err := e.executeLocked(p)
	executed := p.clone()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.publishExecuted(executed)
	return nil
}

func (e *Engine) executeLocked(p *Proposal) error {
	switch {
	case p.State == ProposalExecuted:
		return errs.NewState(
			"execute",
			fmt.Errorf("%w: %d", ErrAlreadyExecuted, p.ID),
		)
	case p.State != ProposalClosed:
		return errs.NewState(
			"execute",
			fmt.Errorf("%w: %d is %s", ErrNotClosed, p.ID, p.State),
		)
	case !p.HasPassed:
		return errs.NewState(
			"execute",
			fmt.Errorf("%w: %d", ErrNotPassed, p.ID),
		)
	case e.roundWinner != 0:
		return errs.NewState(
			"execute",
			fmt.Errorf("%w: %d", ErrRoundDecided, e.roundWinner),
		)
	}
	if !p.NoOp() {
		if e.config.Rules == nil {
			return errs.NewState(
				"execute",
				fmt.Errorf("no rules configured for target %q", *p.Target),
			)
		}
		if err := e.config.Rules.SetPayoff(*p.Target, *p.NewValue); err != nil {
			return errs.NewValidation(
				"execute",
				fmt.Errorf("apply proposal %d: %w", p.ID, err),
			)
		}
	}
	p.State = ProposalExecuted
	e.roundWinner = p.ID
	e.executed = append(e.executed, p.clone())
	return nil
}

// NextRound starts a new voting round. Executed proposals leave the active
// set; the rest are reopened with zeroed tallies and every vote is
// discarded, so players may vote again on carried-over proposals.
func (e *Engine) NextRound() uint64 {
	e.mu.Lock()
	active := make([]uint64, 0, len(e.active))
	for _, id := range e.active {
		p := e.proposals[id]
		if p.State == ProposalExecuted {
			continue
		}
		p.State = ProposalOpen
		p.HasPassed = false
		p.Tally = Tally{}
		p.VoteCounts = Tally{}
		active = append(active, id)
	}
	e.active = active
	e.votes = make(map[voteKey]Vote)
	e.roundClosed = false
	e.roundWinner = 0
	e.round++
	round := e.round
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.round.Set(float64(round))
	}
	e.config.Logger.Info("advanced voting round", "round", round)
	e.publish(
		event.RoundAdvancedEventType,
		event.RoundAdvancedEvent{Round: round},
	)
	return round
}

func (e *Engine) Round() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.round
}

// Proposal returns a copy of a proposal, including executed ones from
// earlier rounds
func (e *Engine) Proposal(proposalID uint64) (Proposal, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.proposals[proposalID]
	if !ok {
		return Proposal{}, errs.NewValidation(
			"get proposal",
			fmt.Errorf("%w: %d", ErrProposalNotFound, proposalID),
		)
	}
	return p.clone(), nil
}

// Proposals returns copies of the active proposals in creation order
func (e *Engine) Proposals() []Proposal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ret := make([]Proposal, 0, len(e.active))
	for _, id := range e.active {
		ret = append(ret, e.proposals[id].clone())
	}
	return ret
}

// ExecutedProposals returns the append-only execution history
func (e *Engine) ExecutedProposals() []Proposal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ret := make([]Proposal, 0, len(e.executed))
	for i := range e.executed {
		ret = append(ret, e.executed[i].clone())
	}
	return ret
}

// Votes returns the votes cast in the current round ordered by proposal
// then player
func (e *Engine) Votes() []Vote {
	e.mu.RLock()
	ret := make([]Vote, 0, len(e.votes))
	for _, v := range e.votes {
		ret = append(ret, v)
	}
	e.mu.RUnlock()
	slices.SortFunc(ret, func(a, b Vote) int {
		return cmp.Or(
			cmp.Compare(a.ProposalID, b.ProposalID),
			cmp.Compare(a.PlayerID, b.PlayerID),
		)
	})
	return ret
}

// HasVoted returns true if the player voted on the proposal this round
func (e *Engine) HasVoted(proposalID uint64, playerID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.votes[voteKey{proposalID: proposalID, playerID: playerID}]
	return ok
}

func (e *Engine) publish(eventType event.EventType, data any) {
	if e.config.EventBus == nil {
		return
	}
	e.config.EventBus.Emit(eventType, data)
}

func (e *Engine) publishClosed(p Proposal) {
	e.config.Logger.Debug(
		"proposal closed",
		"proposal_id", p.ID,
		"passed", p.HasPassed,
		"yes", p.Tally.Yes,
		"no", p.Tally.No,
	)
	e.publish(
		event.ProposalClosedEventType,
		event.ProposalClosedEvent{
			ProposalID: p.ID,
			Passed:     p.HasPassed,
			Yes:        p.Tally.Yes,
			No:         p.Tally.No,
		},
	)
}

func (e *Engine) publishExecuted(p Proposal) {
	if e.metrics != nil {
		e.metrics.executed.Inc()
	}
	evt := event.ProposalExecutedEvent{ProposalID: p.ID, NoOp: p.NoOp()}
	if !p.NoOp() {
		evt.Target = *p.Target
		evt.NewValue = *p.NewValue
	}
	e.config.Logger.Info(
		"executed proposal",
		"proposal_id", p.ID,
		"target", evt.Target,
		"new_value", evt.NewValue,
		"noop", evt.NoOp,
	)
	e.publish(event.ProposalExecutedEventType, evt)
}

// DependentApp is an application gated on the player's reputation tier
type DependentApp struct {
	AppID        string          `json:"appId"`
	Name         string          `json:"name"`
	MinTier      reputation.Tier `json:"minTier"`
	RegisteredAt time.Time       `json:"registeredAt"`
}

func (e *Engine) RegisterDependentApp(
	appID string,
	name string,
	minTier reputation.Tier,
) error {
	if appID == "" {
		return errs.Validationf("register app", "app id is required")
	}
	if minTier > reputation.WellAligned {
		return errs.Validationf("register app", "unknown tier %d", minTier)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.apps[appID]; ok {
		return errs.NewState(
			"register app",
			fmt.Errorf("%w: %s", ErrAppRegistered, appID),
		)
	}
	e.apps[appID] = DependentApp{
		AppID:        appID,
		Name:         name,
		MinTier:      minTier,
		RegisteredAt: e.config.Now(),
	}
	return nil
}

// DependentApps returns the registered apps ordered by id
func (e *Engine) DependentApps() []DependentApp {
	e.mu.RLock()
	ret := make([]DependentApp, 0, len(e.apps))
	for _, app := range e.apps {
		ret = append(ret, app)
	}
	e.mu.RUnlock()
	slices.SortFunc(ret, func(a, b DependentApp) int {
		return cmp.Compare(a.AppID, b.AppID)
	})
	return ret
}

// CheckAppEligibility returns true if a player of the given tier may use
// the app
func (e *Engine) CheckAppEligibility(
	appID string,
	tier reputation.Tier,
) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	app, ok := e.apps[appID]
	if !ok {
		return false, errs.NewValidation(
			"check eligibility",
			fmt.Errorf("%w: %s", ErrAppNotFound, appID),
		)
	}
	return tier >= app.MinTier, nil
}
