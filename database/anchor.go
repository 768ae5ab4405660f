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
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/blinklabs-io/trustspell/database/models"
)

var anchorKeyPrefix = []byte("anchor:")

// AnchorRecord is the archived form of an anchoring attempt that produced
// a transaction pair
type AnchorRecord struct {
	_           struct{} `cbor:",toarray"`
	AttemptID   string
	SessionID   string
	SpellType   string
	Outcome     string
	Gateway     string
	CommitTxID  string
	SpellTxID   string
	CommitTxHex string
	SpellTxHex  string
	Fee         uint64
	Proven      bool
	Broadcast   bool
	// Unix milliseconds
	Timestamp  int64
	DurationMs int64
	Error      string
}

var anchorEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func anchorKey(commitTxID string) []byte {
	return append(append([]byte{}, anchorKeyPrefix...), commitTxID...)
}

func decodeAnchorRecord(data []byte) (AnchorRecord, error) {
	var rec AnchorRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return AnchorRecord{}, fmt.Errorf("decode anchor record: %w", err)
	}
	return rec, nil
}

// RecordAnchor logs an anchoring attempt. Attempts that produced a commit
// transaction are also archived in full, keyed by commit txid.
func (d *Database) RecordAnchor(rec AnchorRecord) error {
	if rec.Timestamp == 0 {
		rec.Timestamp = d.now().UnixMilli()
	}
	row := &models.Anchor{
		AttemptID:  rec.AttemptID,
		SessionID:  rec.SessionID,
		SpellType:  rec.SpellType,
		Outcome:    rec.Outcome,
		Gateway:    rec.Gateway,
		CommitTxID: rec.CommitTxID,
		SpellTxID:  rec.SpellTxID,
		Fee:        rec.Fee,
		DurationMs: rec.DurationMs,
		Error:      truncate(rec.Error, 512),
		CreatedAt:  time.UnixMilli(rec.Timestamp),
	}
	if err := d.metadata.AddAnchor(row); err != nil {
		return fmt.Errorf("record anchor: %w", err)
	}
	if rec.CommitTxID != "" {
		data, err := anchorEncMode.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode anchor record: %w", err)
		}
		if err := d.blob.Set(anchorKey(rec.CommitTxID), data); err != nil {
			return fmt.Errorf("archive anchor: %w", err)
		}
	}
	return d.markCommitted()
}

// Anchor returns the archived record for a commit txid, or an error
// matching IsNotFound
func (d *Database) Anchor(commitTxID string) (AnchorRecord, error) {
	data, err := d.blob.Get(anchorKey(commitTxID))
	if err != nil {
		return AnchorRecord{}, err
	}
	return decodeAnchorRecord(data)
}

// Anchors returns the newest logged attempts for a session first. A limit
// of zero returns all of them.
func (d *Database) Anchors(sessionID string, limit int) ([]models.Anchor, error) {
	return d.metadata.GetAnchors(sessionID, limit)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
