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

package metadata

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/blinklabs-io/trustspell/database/models"
	"github.com/blinklabs-io/trustspell/database/plugin"

	// Register metadata plugins
	_ "github.com/blinklabs-io/trustspell/database/plugin/metadata/sqlite"
)

const DefaultPlugin = "sqlite"

type MetadataStore interface {
	plugin.Plugin
	Close() error
	DB() *gorm.DB

	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64) error

	// GetReputationRecord returns types.ErrRecordNotFound if the session
	// has no saved ledger
	GetReputationRecord(sessionID string) (*models.ReputationRecord, error)
	SetReputationRecord(*models.ReputationRecord) error

	AddGovernanceSnapshot(*models.GovernanceSnapshot) error
	// GetLatestGovernanceSnapshot returns types.ErrRecordNotFound if the
	// session has no snapshot
	GetLatestGovernanceSnapshot(sessionID string) (*models.GovernanceSnapshot, error)

	AddAnchor(*models.Anchor) error
	// GetAnchors returns the newest anchors for a session first
	GetAnchors(sessionID string, limit int) ([]models.Anchor, error)

	// DeleteSession removes every record belonging to a session
	DeleteSession(sessionID string) error
}

// New returns the started metadata plugin selected by name
func New(pluginName string, opts plugin.Options) (MetadataStore, error) {
	if pluginName == "" {
		pluginName = DefaultPlugin
	}
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName, opts)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
