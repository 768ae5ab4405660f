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

	"github.com/blinklabs-io/trustspell/database/models"
	"github.com/blinklabs-io/trustspell/database/types"
)

func (s *Store) GetReputationRecord(
	sessionID string,
) (*models.ReputationRecord, error) {
	var ret models.ReputationRecord
	result := s.db.Where("session_id = ?", sessionID).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, types.ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &ret, nil
}

// SetReputationRecord inserts or replaces the record for its session
func (s *Store) SetReputationRecord(
	record *models.ReputationRecord,
) error {
	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"address",
			"cooperative_moves",
			"total_moves",
			"score",
			"tier",
			"state",
			"updated_at",
		}),
	}).Create(record)
	return result.Error
}

func (s *Store) AddGovernanceSnapshot(
	snapshot *models.GovernanceSnapshot,
) error {
	return s.db.Create(snapshot).Error
}

func (s *Store) GetLatestGovernanceSnapshot(
	sessionID string,
) (*models.GovernanceSnapshot, error) {
	var ret models.GovernanceSnapshot
	result := s.db.
		Where("session_id = ?", sessionID).
		Order("id DESC").
		First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, types.ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &ret, nil
}

func (s *Store) AddAnchor(anchor *models.Anchor) error {
	return s.db.Create(anchor).Error
}

func (s *Store) GetAnchors(
	sessionID string,
	limit int,
) ([]models.Anchor, error) {
	var ret []models.Anchor
	query := s.db.Where("session_id = ?", sessionID).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if result := query.Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) DeleteSession(sessionID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range models.MigrateModels {
			if err := tx.Where("session_id = ?", sessionID).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
