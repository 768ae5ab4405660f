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

package sqlite

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const metaKeyCommitTimestamp = "commit_timestamp"

// StoreMeta holds bookkeeping values for the store itself
type StoreMeta struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value int64
}

func (StoreMeta) TableName() string {
	return "store_meta"
}

func (s *Store) getMeta(name string) (int64, error) {
	var row StoreMeta
	err := s.db.Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return row.Value, err
}

func (s *Store) setMeta(name string, value int64) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&StoreMeta{Name: name, Value: value}).Error
}

// GetCommitTimestamp returns 0 for a store that has never committed
func (s *Store) GetCommitTimestamp() (int64, error) {
	return s.getMeta(metaKeyCommitTimestamp)
}

func (s *Store) SetCommitTimestamp(timestamp int64) error {
	return s.setMeta(metaKeyCommitTimestamp, timestamp)
}
