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

package models

import "time"

// GovernanceSnapshot is a saved governance engine state. Snapshots are
// append-only; the latest one per session is restored.
type GovernanceSnapshot struct {
	ID          uint   `gorm:"primarykey"`
	SessionID   string `gorm:"index:idx_governance_session_round,priority:1;size:64;not null"`
	VotingRound uint64 `gorm:"index:idx_governance_session_round,priority:2;not null"`
	Proposals   int    `gorm:"not null"`
	Executed    int    `gorm:"not null"`
	// JSON encoded engine state
	State     []byte `gorm:"not null"`
	CreatedAt time.Time
}

// TableName returns the table name
func (GovernanceSnapshot) TableName() string {
	return "governance_snapshot"
}
