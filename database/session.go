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

package database

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/blinklabs-io/trustspell/database/models"
	"github.com/blinklabs-io/trustspell/database/types"
	"github.com/blinklabs-io/trustspell/governance"
	"github.com/blinklabs-io/trustspell/reputation"
)

// ErrNotFound is returned when a session has nothing saved
var ErrNotFound = types.ErrRecordNotFound

// SaveReputation stores the ledger state for a session, replacing any
// earlier one
func (d *Database) SaveReputation(sessionID string, state reputation.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode reputation state: %w", err)
	}
	score := reputation.ScoreFor(state.CooperativeMoves, state.TotalMoves)
	record := &models.ReputationRecord{
		SessionID:        sessionID,
		Address:          state.Address,
		CooperativeMoves: state.CooperativeMoves,
		TotalMoves:       state.TotalMoves,
		Score:            score,
		Tier:             uint8(reputation.TierFor(score)),
		State:            data,
	}
	if err := d.metadata.SetReputationRecord(record); err != nil {
		return fmt.Errorf("save reputation: %w", err)
	}
	return d.markCommitted()
}

// LoadReputation returns the saved ledger state for a session, or
// ErrNotFound
func (d *Database) LoadReputation(sessionID string) (reputation.State, error) {
	record, err := d.metadata.GetReputationRecord(sessionID)
	if err != nil {
		return reputation.State{}, err
	}
	var state reputation.State
	if err := json.Unmarshal(record.State, &state); err != nil {
		return reputation.State{}, fmt.Errorf("decode reputation state: %w", err)
	}
	return state, nil
}

// SaveGovernance appends a governance snapshot for a session
func (d *Database) SaveGovernance(sessionID string, state governance.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode governance state: %w", err)
	}
	snapshot := &models.GovernanceSnapshot{
		SessionID:   sessionID,
		VotingRound: state.VotingRound,
		Proposals:   len(state.Proposals),
		Executed:    len(state.ExecutedProposals),
		State:       data,
	}
	if err := d.metadata.AddGovernanceSnapshot(snapshot); err != nil {
		return fmt.Errorf("save governance: %w", err)
	}
	return d.markCommitted()
}

// LoadGovernance returns the latest governance snapshot for a session, or
// ErrNotFound
func (d *Database) LoadGovernance(sessionID string) (governance.State, error) {
	snapshot, err := d.metadata.GetLatestGovernanceSnapshot(sessionID)
	if err != nil {
		return governance.State{}, err
	}
	var state governance.State
	if err := json.Unmarshal(snapshot.State, &state); err != nil {
		return governance.State{}, fmt.Errorf("decode governance state: %w", err)
	}
	return state, nil
}

// DeleteSession removes a session's metadata and archived anchors
func (d *Database) DeleteSession(sessionID string) error {
	var keys [][]byte
	err := d.blob.Iterate(anchorKeyPrefix, func(key []byte, value []byte) error {
		rec, err := decodeAnchorRecord(value)
		if err != nil {
			return err
		}
		if rec.SessionID == sessionID {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := d.blob.Delete(key); err != nil {
			return err
		}
	}
	if err := d.metadata.DeleteSession(sessionID); err != nil {
		return err
	}
	return d.markCommitted()
}

// IsNotFound returns true if err means nothing was saved
func IsNotFound(err error) bool {
	return errors.Is(err, types.ErrRecordNotFound) ||
		errors.Is(err, types.ErrBlobKeyNotFound)
}
