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

package badger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blinklabs-io/trustspell/database/types"
)

const (
	DefaultBlockCacheSize = 64 << 20
	DefaultIndexCacheSize = 32 << 20
	DefaultGcInterval     = 5 * time.Minute

	gcDiscardRatio = 0.5
)

// Store keeps full anchor records in badger
type Store struct {
	promRegistry   prometheus.Registerer
	db             *badger.DB
	logger         *slog.Logger
	dataDir        string
	blockCacheSize int64
	indexCacheSize int64
	gcInterval     time.Duration
	gcCancel       context.CancelFunc
	gcDone         chan struct{}
	closeOnce      sync.Once
	closeErr       error
}

func New(opts ...OptionFunc) (*Store, error) {
	s := &Store{
		blockCacheSize: DefaultBlockCacheSize,
		indexCacheSize: DefaultIndexCacheSize,
		gcInterval:     DefaultGcInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "database", "store", "badger")
	badgerOpts, err := s.badgerOptions()
	if err != nil {
		return nil, err
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	s.db = db
	if s.promRegistry != nil {
		s.registerMetrics()
	}
	if s.gcInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.gcCancel = cancel
		s.gcDone = make(chan struct{})
		go s.runGc(ctx)
	}
	return s, nil
}

func (s *Store) badgerOptions() (badger.Options, error) {
	var opts badger.Options
	if s.dataDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
		// Value log GC is unsupported in memory
		s.gcInterval = 0
	} else {
		dir := filepath.Join(s.dataDir, "blob")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return opts, fmt.Errorf("create blob dir: %w", err)
		}
		opts = badger.DefaultOptions(dir).
			WithBlockCacheSize(s.blockCacheSize).
			WithIndexCacheSize(s.indexCacheSize).
			WithCompression(options.Snappy)
	}
	return opts.
		WithLogger(badgerLogger{s.logger}).
		WithLoggingLevel(badger.WARNING), nil
}

func (s *Store) registerMetrics() {
	factory := promauto.With(s.promRegistry)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "trustspell_blob_lsm_bytes",
			Help: "size of the badger LSM tree",
		},
		func() float64 {
			lsm, _ := s.db.Size()
			return float64(lsm)
		},
	)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "trustspell_blob_vlog_bytes",
			Help: "size of the badger value log",
		},
		func() float64 {
			_, vlog := s.db.Size()
			return float64(vlog)
		},
	)
}

func (s *Store) runGc(ctx context.Context) {
	defer close(s.gcDone)
	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		// Each successful pass rewrote a file, so there may be more to do
		for ctx.Err() == nil {
			err := s.db.RunValueLogGC(gcDiscardRatio)
			if err == nil {
				continue
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("value log GC failed", "error", err)
			}
			break
		}
	}
}

func (s *Store) Start() error {
	return nil
}

func (s *Store) Stop() error {
	return s.Close()
}

// Close stops GC and closes the database. Later calls return the first
// result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.gcCancel != nil {
			s.gcCancel()
			<-s.gcDone
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

func (s *Store) DB() *badger.DB {
	return s.db
}

func (s *Store) Get(key []byte) ([]byte, error) {
	var ret []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return types.ErrBlobKeyNotFound
		}
		if err != nil {
			return err
		}
		ret, err = item.ValueCopy(nil)
		return err
	})
	return ret, err
}

func (s *Store) Set(key []byte, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *Store) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *Store) Iterate(
	prefix []byte,
	fn func(key []byte, value []byte) error,
) error {
	return s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetCommitTimestamp() (int64, error) {
	val, err := s.Get(types.CommitTimestampKey)
	if errors.Is(err, types.ErrBlobKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return types.DecodeCommitTimestamp(val)
}

func (s *Store) SetCommitTimestamp(timestamp int64) error {
	return s.Set(types.CommitTimestampKey, types.EncodeCommitTimestamp(timestamp))
}

// badgerLogger sends badger's printf-style logs to slog
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) log(level slog.Level, msg string, args []any) {
	l.logger.Log(
		context.Background(),
		level,
		strings.TrimSpace(fmt.Sprintf(msg, args...)),
	)
}

func (l badgerLogger) Errorf(msg string, args ...any) {
	l.log(slog.LevelError, msg, args)
}

func (l badgerLogger) Warningf(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args)
}

func (l badgerLogger) Infof(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args)
}

func (l badgerLogger) Debugf(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args)
}
