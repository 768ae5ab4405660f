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
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrProposalNotOpen  = errors.New("proposal is not open")
	ErrDuplicateVote    = errors.New("player has already voted on proposal")
	ErrNotPassed        = errors.New("proposal has not passed")
	ErrNotClosed        = errors.New("proposal is not closed")
	ErrAlreadyExecuted  = errors.New("proposal already executed")
	ErrRoundClosed      = errors.New("voting round already closed")
	ErrRoundDecided     = errors.New("a proposal was already executed this round")
	ErrInvalidChoice    = errors.New("invalid vote choice")
	ErrMissingPlayer    = errors.New("player id is required")
	ErrMissingTitle     = errors.New("proposal title is required")
	ErrPartialTarget    = errors.New("target and new value must be set together")
	ErrAppRegistered    = errors.New("dependent app already registered")
	ErrAppNotFound      = errors.New("dependent app not found")
)

// ProposalState is the lifecycle state of a proposal
type ProposalState uint8

const (
	ProposalOpen ProposalState = iota
	ProposalClosed
	ProposalExecuted
)

func (s ProposalState) String() string {
	switch s {
	case ProposalOpen:
		return "open"
	case ProposalClosed:
		return "closed"
	case ProposalExecuted:
		return "executed"
	default:
		return fmt.Sprintf("ProposalState(%d)", uint8(s))
	}
}

func (s ProposalState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ProposalState) UnmarshalText(data []byte) error {
	switch string(data) {
	case "open":
		*s = ProposalOpen
	case "closed":
		*s = ProposalClosed
	case "executed":
		*s = ProposalExecuted
	default:
		return fmt.Errorf("unknown proposal state: %q", string(data))
	}
	return nil
}

// Choice is a vote direction
type Choice string

const (
	ChoiceYes     Choice = "yes"
	ChoiceNo      Choice = "no"
	ChoiceAbstain Choice = "abstain"
)

func ParseChoice(s string) (Choice, error) {
	c := Choice(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
	return c, nil
}

func (c Choice) Valid() bool {
	switch c {
	case ChoiceYes, ChoiceNo, ChoiceAbstain:
		return true
	}
	return false
}

// ProposalKind classifies what a proposal changes. Only payoff changes
// carry a target field.
type ProposalKind string

const (
	KindChangePayoff     ProposalKind = "change_payoff"
	KindAddStrategy      ProposalKind = "add_strategy"
	KindChangeGovernance ProposalKind = "change_governance"
)

// Tally accumulates voting power per choice
type Tally struct {
	Yes     uint64 `json:"yes"`
	No      uint64 `json:"no"`
	Abstain uint64 `json:"abstain"`
}

func (t *Tally) add(choice Choice, n uint64) {
	switch choice {
	case ChoiceYes:
		t.Yes += n
	case ChoiceNo:
		t.No += n
	case ChoiceAbstain:
		t.Abstain += n
	}
}

type Proposal struct {
	ID          uint64        `json:"id"`
	Kind        ProposalKind  `json:"kind"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Target      *string       `json:"target"`
	NewValue    *int64        `json:"newValue"`
	Tally       Tally         `json:"tally"`
	VoteCounts  Tally         `json:"voteCounts"`
	State       ProposalState `json:"state"`
	HasPassed   bool          `json:"hasPassed"`
	Round       uint64        `json:"round"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// NoOp returns true if executing the proposal has no effect on the rules
func (p *Proposal) NoOp() bool {
	return p.Target == nil
}

func (p *Proposal) clone() Proposal {
	ret := *p
	if p.Target != nil {
		target := *p.Target
		ret.Target = &target
	}
	if p.NewValue != nil {
		value := *p.NewValue
		ret.NewValue = &value
	}
	return ret
}

type Vote struct {
	ProposalID uint64    `json:"proposalId"`
	PlayerID   string    `json:"playerId"`
	Choice     Choice    `json:"choice"`
	Power      uint64    `json:"power"`
	Timestamp  time.Time `json:"timestamp"`
}

type voteKey struct {
	proposalID uint64
	playerID   string
}

func (k voteKey) String() string {
	return fmt.Sprintf("%d:%s", k.proposalID, k.playerID)
}

// RulesSink is the rules object that executed proposals mutate. SetPayoff
// must leave the rules untouched when it returns an error.
type RulesSink interface {
	SetPayoff(field string, value int64) error
	GetPayoff(field string) (int64, error)
}
