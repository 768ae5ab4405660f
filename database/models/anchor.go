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

// Anchor records a single anchoring attempt, successful or not
type Anchor struct {
	ID         uint   `gorm:"primarykey"`
	AttemptID  string `gorm:"uniqueIndex;size:36;not null"`
	SessionID  string `gorm:"index;size:64;not null"`
	SpellType  string `gorm:"size:32;not null"`
	Outcome    string `gorm:"index;size:16;not null"`
	Gateway    string `gorm:"size:16"`
	CommitTxID string `gorm:"index;size:64"`
	SpellTxID  string `gorm:"size:64"`
	Fee        uint64
	DurationMs int64
	Error      string `gorm:"size:512"`
	CreatedAt  time.Time
}

// TableName returns the table name
func (Anchor) TableName() string {
	return "anchor"
}
