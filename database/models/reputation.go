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

// ReputationRecord is the latest ledger state for a session
type ReputationRecord struct {
	ID               uint   `gorm:"primarykey"`
	SessionID        string `gorm:"uniqueIndex;size:64;not null"`
	Address          string `gorm:"size:128"`
	CooperativeMoves uint64 `gorm:"not null"`
	TotalMoves       uint64 `gorm:"not null"`
	Score            uint64 `gorm:"not null"`
	Tier             uint8  `gorm:"not null"`
	// JSON encoded ledger state
	State     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName returns the table name
func (ReputationRecord) TableName() string {
	return "reputation_record"
}
