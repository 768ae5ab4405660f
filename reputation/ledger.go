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

// Package reputation tracks a player's move history and derives the
// cooperation score, tier and voting power used by governance.
package reputation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/event"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrNotBoolean       = errors.New("move must be a boolean")
	ErrBrokenInvariant  = errors.New("cooperative moves exceed total moves")
	ErrHistoryMismatch  = errors.New("history does not match move counters")
	ErrAddressMalformed = errors.New("address must not contain whitespace")
)

type MoveEntry struct {
	RoundIndex  uint64    `json:"roundIndex"`
	Cooperative bool      `json:"cooperative"`
	Timestamp   time.Time `json:"timestamp"`
}

// State is the persisted shape of a reputation record
type State struct {
	CooperativeMoves uint64      `json:"cooperativeMoves"`
	TotalMoves       uint64      `json:"totalMoves"`
	History          []MoveEntry `json:"history"`
	Address          string      `json:"address"`
}

func (s State) validate() error {
	if s.CooperativeMoves > s.TotalMoves {
		return fmt.Errorf(
			"%w: %d > %d",
			ErrBrokenInvariant,
			s.CooperativeMoves,
			s.TotalMoves,
		)
	}
	if uint64(len(s.History)) != s.TotalMoves {
		return fmt.Errorf(
			"%w: %d entries for %d moves",
			ErrHistoryMismatch,
			len(s.History),
			s.TotalMoves,
		)
	}
	var coop uint64
	for _, entry := range s.History {
		if entry.Cooperative {
			coop++
		}
	}
	if coop != s.CooperativeMoves {
		return fmt.Errorf(
			"%w: %d cooperative entries for %d cooperative moves",
			ErrHistoryMismatch,
			coop,
			s.CooperativeMoves,
		)
	}
	return nil
}

// Snapshot is a point-in-time view of the derived reputation values
type Snapshot struct {
	Address          string `json:"address"`
	Score            uint64 `json:"score"`
	Tier             Tier   `json:"tier"`
	VotingPower      uint64 `json:"votingPower"`
	TotalMoves       uint64 `json:"totalMoves"`
	CooperativeMoves uint64 `json:"cooperativeMoves"`
}

type MoveResult struct {
	OldScore uint64 `json:"oldScore"`
	NewScore uint64 `json:"newScore"`
}

type LedgerConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	// Now defaults to time.Now
	Now func() time.Time
}

// Ledger is the reputation record for a single player session
type Ledger struct {
	mu      sync.RWMutex
	config  LedgerConfig
	state   State
	metrics *ledgerMetrics
}

func NewLedger(cfg LedgerConfig) *Ledger {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "reputation")
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &Ledger{
		config: cfg,
	}
	if cfg.PromRegistry != nil {
		l.metrics = newLedgerMetrics(cfg.PromRegistry)
	}
	return l
}

// RecordMove appends a move to the history and returns the score before
// and after it
func (l *Ledger) RecordMove(cooperative bool) (MoveResult, error) {
	l.mu.Lock()
	oldScore := ScoreFor(l.state.CooperativeMoves, l.state.TotalMoves)
	entry := MoveEntry{
		RoundIndex:  l.state.TotalMoves,
		Cooperative: cooperative,
		Timestamp:   l.config.Now(),
	}
	l.state.History = append(l.state.History, entry)
	l.state.TotalMoves++
	if cooperative {
		l.state.CooperativeMoves++
	}
	newScore := ScoreFor(l.state.CooperativeMoves, l.state.TotalMoves)
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.observeMove(cooperative, newScore)
	}
	l.config.Logger.Debug(
		"recorded move",
		"round", entry.RoundIndex,
		"cooperative", cooperative,
		"old_score", oldScore,
		"new_score", newScore,
	)
	if l.config.EventBus != nil {
		l.config.EventBus.Emit(
			event.MoveRecordedEventType,
			event.MoveRecordedEvent{
				RoundIndex:  entry.RoundIndex,
				Cooperative: cooperative,
				OldScore:    oldScore,
				NewScore:    newScore,
				VotingPower: VotingPowerFor(newScore),
			},
		)
	}
	return MoveResult{OldScore: oldScore, NewScore: newScore}, nil
}

// RecordMoveValue records a move supplied as an untyped value, as decoded
// from a request body. Anything other than a boolean is rejected.
func (l *Ledger) RecordMoveValue(value any) (MoveResult, error) {
	switch v := value.(type) {
	case bool:
		return l.RecordMove(v)
	case *bool:
		if v != nil {
			return l.RecordMove(*v)
		}
	}
	return MoveResult{}, errs.NewValidation(
		"record move",
		fmt.Errorf("%w: got %T", ErrNotBoolean, value),
	)
}

func (l *Ledger) Score() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return ScoreFor(l.state.CooperativeMoves, l.state.TotalMoves)
}

func (l *Ledger) Tier() Tier {
	return TierFor(l.Score())
}

func (l *Ledger) VotingPower() uint64 {
	return VotingPowerFor(l.Score())
}

func (l *Ledger) Address() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Address
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	score := ScoreFor(l.state.CooperativeMoves, l.state.TotalMoves)
	return Snapshot{
		Address:          l.state.Address,
		Score:            score,
		Tier:             TierFor(score),
		VotingPower:      VotingPowerFor(score),
		TotalMoves:       l.state.TotalMoves,
		CooperativeMoves: l.state.CooperativeMoves,
	}
}

// Moves returns the recorded moves in order, true meaning cooperative
func (l *Ledger) Moves() []bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ret := make([]bool, len(l.state.History))
	for i, entry := range l.state.History {
		ret[i] = entry.Cooperative
	}
	return ret
}

// ResetSession clears the counters and history but keeps the linked address
func (l *Ledger) ResetSession() {
	l.mu.Lock()
	addr := l.state.Address
	l.state = State{Address: addr}
	l.mu.Unlock()
	l.config.Logger.Debug("reset session")
	if l.config.EventBus != nil {
		l.config.EventBus.Emit(
			event.ReputationResetEventType,
			event.ReputationResetEvent{Address: addr},
		)
	}
}

func (l *Ledger) LinkAddress(addr string) error {
	if strings.ContainsFunc(addr, unicode.IsSpace) {
		return errs.NewValidation("link address", ErrAddressMalformed)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Address = addr
	return nil
}

// State returns a deep copy of the persisted shape
func (l *Ledger) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ret := l.state
	ret.History = slices.Clone(l.state.History)
	return ret
}

// Restore replaces the record with a previously persisted one
func (l *Ledger) Restore(state State) error {
	if err := state.validate(); err != nil {
		return errs.NewValidation("restore reputation", err)
	}
	state.History = slices.Clone(state.History)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
	return nil
}
