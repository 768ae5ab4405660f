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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/blinklabs-io/trustspell/database/models"
)

const metadataFileName = "metadata.sqlite"

// Store keeps ledger records, governance snapshots and the anchor log in
// SQLite through GORM
type Store struct {
	promRegistry prometheus.Registerer
	db           *gorm.DB
	logger       *slog.Logger
	dataDir      string
	busyTimeout  time.Duration
}

// New opens a store under dataDir, or in memory when dataDir is empty
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*Store, error) {
	return NewWithOptions(
		WithDataDir(dataDir),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions opens the store. When the schema migration fails the
// opened store is returned along with the error so callers can close it.
func NewWithOptions(opts ...OptionFunc) (*Store, error) {
	s := &Store{busyTimeout: DefaultBusyTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "database", "store", "sqlite")
	dsn, err := s.dsn()
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(
		sqlite.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, err
	}
	s.db = gdb
	if err := s.migrate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Store) dsn() (string, error) {
	if s.dataDir == "" {
		// A named shared-cache database per store so that pooled
		// connections see the same data but stores stay isolated
		return fmt.Sprintf(
			"file:%s?mode=memory&cache=shared",
			uuid.NewString(),
		), nil
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		filepath.Join(s.dataDir, metadataFileName),
		s.busyTimeout.Milliseconds(),
	), nil
}

func (s *Store) migrate() error {
	if err := s.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	if s.promRegistry != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		if err := s.promRegistry.Register(
			collectors.NewDBStatsCollector(sqlDB, "trustspell_metadata"),
		); err != nil {
			return err
		}
	}
	tables := append([]any{&StoreMeta{}}, models.MigrateModels...)
	for _, model := range tables {
		s.logger.Debug("migrating table", "model", fmt.Sprintf("%T", model))
		if err := s.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}
	return nil
}

func (s *Store) Start() error {
	return nil
}

func (s *Store) Stop() error {
	return s.Close()
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying GORM handle
func (s *Store) DB() *gorm.DB {
	return s.db
}
