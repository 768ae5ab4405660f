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

// Package game implements the repeated prisoner's dilemma rules that
// governance proposals act upon.
package game

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrUnknownField     = errors.New("unknown payoff field")
	ErrPayoffOrdering   = errors.New("payoffs must satisfy T > R > P > S")
	ErrGameFinished     = errors.New("game already finished")
	ErrPayoffMismatch   = errors.New("claimed payoffs do not match matrix")
	ErrInvalidMoveValue = errors.New("invalid move value")
)

// Move is a single player action
type Move uint8

const (
	Cooperate Move = 0
	Defect    Move = 1
)

func (m Move) String() string {
	switch m {
	case Cooperate:
		return "cooperate"
	case Defect:
		return "defect"
	default:
		return fmt.Sprintf("Move(%d)", uint8(m))
	}
}

// Valid returns true for the two defined moves
func (m Move) Valid() bool {
	return m == Cooperate || m == Defect
}

func ParseMove(s string) (Move, error) {
	switch strings.ToLower(s) {
	case "cooperate", "c", "0":
		return Cooperate, nil
	case "defect", "d", "1":
		return Defect, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMoveValue, s)
}

func (m Move) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMoveValue, uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *Move) UnmarshalText(data []byte) error {
	tmp, err := ParseMove(string(data))
	if err != nil {
		return err
	}
	*m = tmp
	return nil
}

// PayoffMatrix holds the four payoffs of the prisoner's dilemma
type PayoffMatrix struct {
	// Mutual cooperation reward
	R int64 `json:"r" yaml:"r"`
	// Sucker's payoff
	S int64 `json:"s" yaml:"s"`
	// Temptation to defect
	T int64 `json:"t" yaml:"t"`
	// Mutual defection punishment
	P int64 `json:"p" yaml:"p"`
}

// DefaultPayoffMatrix returns the matrix used by a fresh game
func DefaultPayoffMatrix() PayoffMatrix {
	return PayoffMatrix{R: 2, S: -1, T: 3, P: 0}
}

// PayoffFields lists the field names accepted by SetPayoff and GetPayoff
var PayoffFields = []string{"r", "s", "t", "p"}

func (m PayoffMatrix) Validate() error {
	if m.T > m.R && m.R > m.P && m.P > m.S {
		return nil
	}
	return fmt.Errorf(
		"%w: got T=%d R=%d P=%d S=%d",
		ErrPayoffOrdering,
		m.T, m.R, m.P, m.S,
	)
}

// Payoffs returns the payoffs for player 1 and player 2
func (m PayoffMatrix) Payoffs(move1, move2 Move) (int64, int64) {
	switch {
	case move1 == Cooperate && move2 == Cooperate:
		return m.R, m.R
	case move1 == Cooperate && move2 == Defect:
		return m.S, m.T
	case move1 == Defect && move2 == Cooperate:
		return m.T, m.S
	default:
		return m.P, m.P
	}
}

// Array returns the matrix in [R, T, S, P] order
func (m PayoffMatrix) Array() [4]int64 {
	return [4]int64{m.R, m.T, m.S, m.P}
}

func (m *PayoffMatrix) field(name string) (*int64, error) {
	switch strings.ToLower(name) {
	case "r", "reward":
		return &m.R, nil
	case "s", "sucker":
		return &m.S, nil
	case "t", "temptation":
		return &m.T, nil
	case "p", "punishment":
		return &m.P, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

func (m *PayoffMatrix) GetPayoff(field string) (int64, error) {
	f, err := m.field(field)
	if err != nil {
		return 0, err
	}
	return *f, nil
}

// SetPayoff assigns a single payoff. The assignment is rejected, leaving
// the matrix untouched, if it would break the dilemma ordering.
func (m *PayoffMatrix) SetPayoff(field string, value int64) error {
	tmp := *m
	f, err := tmp.field(field)
	if err != nil {
		return err
	}
	*f = value
	if err := tmp.Validate(); err != nil {
		return err
	}
	*m = tmp
	return nil
}

// Rules is a PayoffMatrix that is safe for concurrent use
type Rules struct {
	mu     sync.RWMutex
	matrix PayoffMatrix
}

func NewRules(matrix PayoffMatrix) *Rules {
	return &Rules{matrix: matrix}
}

// Matrix returns a copy of the current matrix
func (r *Rules) Matrix() PayoffMatrix {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matrix
}

// Replace swaps in a whole matrix after validating it
func (r *Rules) Replace(matrix PayoffMatrix) error {
	if err := matrix.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matrix = matrix
	return nil
}

func (r *Rules) GetPayoff(field string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matrix.GetPayoff(field)
}

func (r *Rules) SetPayoff(field string, value int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matrix.SetPayoff(field, value)
}
