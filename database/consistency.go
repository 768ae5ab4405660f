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
)

// CommitTimestampError reports that the metadata and blob stores were
// last written at different instants, which happens when the process
// stops between the two writes of a save
type CommitTimestampError struct {
	MetadataTimestamp int64
	BlobTimestamp     int64
}

func (e CommitTimestampError) Error() string {
	return fmt.Sprintf(
		"stores out of sync: metadata written at %d, blob at %d",
		e.MetadataTimestamp,
		e.BlobTimestamp,
	)
}

// MetadataAhead is true when the metadata store holds the newer write
func (e CommitTimestampError) MetadataAhead() bool {
	return e.MetadataTimestamp > e.BlobTimestamp
}

func (d *Database) commitTimestamps() (int64, int64, error) {
	meta, err := d.metadata.GetCommitTimestamp()
	if err != nil {
		return 0, 0, fmt.Errorf("read metadata commit timestamp: %w", err)
	}
	blob, err := d.blob.GetCommitTimestamp()
	if err != nil {
		return 0, 0, fmt.Errorf("read blob commit timestamp: %w", err)
	}
	return meta, blob, nil
}

func (d *Database) checkConsistency() error {
	meta, blob, err := d.commitTimestamps()
	if err != nil {
		return err
	}
	// A fresh metadata store has nothing to disagree with
	if meta <= 0 || meta == blob {
		return nil
	}
	return CommitTimestampError{
		MetadataTimestamp: meta,
		BlobTimestamp:     blob,
	}
}

// Resync stamps both stores with a new commit timestamp. Session state is
// read from the metadata store only, so after a mismatch the metadata
// store is taken as authoritative.
func (d *Database) Resync() error {
	meta, blob, err := d.commitTimestamps()
	if err != nil {
		return err
	}
	d.logger.Warn(
		"resyncing commit timestamps",
		"metadata_timestamp", meta,
		"blob_timestamp", blob,
	)
	return d.markCommitted()
}

// markCommitted writes the blob store last so that an interrupted save
// is detected on the next open
func (d *Database) markCommitted() error {
	ts := d.now().UnixNano()
	if err := d.metadata.SetCommitTimestamp(ts); err != nil {
		return err
	}
	return d.blob.SetCommitTimestamp(ts)
}
