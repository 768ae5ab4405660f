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

package event

import "time"

const (
	MoveRecordedEventType     = EventType("reputation.move_recorded")
	ReputationResetEventType  = EventType("reputation.reset")
	ProposalCreatedEventType  = EventType("governance.proposal_created")
	VoteCastEventType         = EventType("governance.vote_cast")
	ProposalClosedEventType   = EventType("governance.proposal_closed")
	ProposalExecutedEventType = EventType("governance.proposal_executed")
	RoundAdvancedEventType    = EventType("governance.round_advanced")
	AnchorAttemptEventType    = EventType("anchor.attempt")
)

// MoveRecordedEvent is emitted after a move changes a reputation record
type MoveRecordedEvent struct {
	RoundIndex  uint64
	Cooperative bool
	OldScore    uint64
	NewScore    uint64
	VotingPower uint64
}

type ReputationResetEvent struct {
	Address string
}

type ProposalCreatedEvent struct {
	ProposalID uint64
	Title      string
}

// VoteCastEvent is emitted once the vote and its tally contribution are
// both recorded
type VoteCastEvent struct {
	ProposalID uint64
	PlayerID   string
	Choice     string
	Power      uint64
}

type ProposalClosedEvent struct {
	ProposalID uint64
	Passed     bool
	Yes        uint64
	No         uint64
}

type ProposalExecutedEvent struct {
	ProposalID uint64
	Target     string
	NewValue   int64
	NoOp       bool
}

type RoundAdvancedEvent struct {
	Round uint64
}

// AnchorAttemptEvent reports the result of a single anchoring attempt
type AnchorAttemptEvent struct {
	AttemptID  string
	SpellType  string
	Outcome    string
	CommitTxID string
	SpellTxID  string
	Duration   time.Duration
}
