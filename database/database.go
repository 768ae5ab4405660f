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

// Package database persists session state and the anchor log. Metadata
// (ledger records, governance snapshots, anchor rows) lives in a relational
// store; full anchor records are kept CBOR encoded in a key-value blob store.
package database

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/trustspell/database/plugin"
	"github.com/blinklabs-io/trustspell/database/plugin/blob"
	"github.com/blinklabs-io/trustspell/database/plugin/metadata"
)

type Config struct {
	Logger         *slog.Logger
	PromRegistry   prometheus.Registerer
	BlobPlugin     string
	MetadataPlugin string
	// DataDir is empty for an in-memory database
	DataDir string
}

type Database struct {
	config   Config
	logger   *slog.Logger
	blob     blob.BlobStore
	metadata metadata.MetadataStore
	now      func() time.Time
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.config.DataDir
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

// New opens the configured stores. When the stores' commit timestamps
// disagree, the database is returned along with a CommitTimestampError so
// the caller can decide whether to recover.
func New(cfg Config) (*Database, error) {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	pluginOpts := plugin.Options{
		DataDir:      cfg.DataDir,
		Logger:       cfg.Logger,
		PromRegistry: cfg.PromRegistry,
	}
	metadataDb, err := metadata.New(cfg.MetadataPlugin, pluginOpts)
	if err != nil {
		return nil, err
	}
	blobDb, err := blob.New(cfg.BlobPlugin, pluginOpts)
	if err != nil {
		_ = metadataDb.Close()
		return nil, err
	}
	db := &Database{
		config:   cfg,
		logger:   cfg.Logger.With("component", "database"),
		blob:     blobDb,
		metadata: metadataDb,
		now:      time.Now,
	}
	if err := db.checkConsistency(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	db.logger.Debug(
		"database opened",
		"data_dir", cfg.DataDir,
		"blob", cfg.BlobPlugin,
		"metadata", cfg.MetadataPlugin,
	)
	return db, nil
}
