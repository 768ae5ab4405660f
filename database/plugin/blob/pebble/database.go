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

package pebble

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/blinklabs-io/trustspell/database/types"
)

const defaultCacheSize = 64 << 20

// Store keeps full anchor records in pebble
type Store struct {
	db        *pebble.DB
	logger    *slog.Logger
	dataDir   string
	cacheSize int64
	mu        sync.RWMutex
	closed    bool
}

func New(opts ...OptionFunc) (*Store, error) {
	d := &Store{
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d.logger = d.logger.With("component", "database", "store", "pebble")
	cache := pebble.NewCache(d.cacheSize)
	defer cache.Unref()
	pebbleOpts := &pebble.Options{
		Cache:                       cache,
		MemTableSize:                32 << 20,
		MemTableStopWritesThreshold: 4,
	}
	dir := ""
	if d.dataDir == "" {
		pebbleOpts.FS = vfs.NewMem()
	} else {
		if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		dir = filepath.Join(d.dataDir, "blob")
	}
	db, err := pebble.Open(dir, pebbleOpts)
	if err != nil {
		return nil, err
	}
	d.db = db
	d.logger.Debug("opened blob store", "dir", dir)
	return d, nil
}

// Start implements the plugin.Plugin interface
func (d *Store) Start() error {
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *Store) Stop() error {
	return d.Close()
}

func (d *Store) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

func (d *Store) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, types.ErrStoreClosed
	}
	value, closer, err := d.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	defer closer.Close()
	ret := make([]byte, len(value))
	copy(ret, value)
	return ret, nil
}

func (d *Store) Set(key []byte, value []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return types.ErrStoreClosed
	}
	return d.db.Set(key, value, pebble.Sync)
}

func (d *Store) Delete(key []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return types.ErrStoreClosed
	}
	return d.db.Delete(key, pebble.Sync)
}

func (d *Store) Iterate(
	prefix []byte,
	fn func(key []byte, value []byte) error,
) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return types.ErrStoreClosed
	}
	iter, err := d.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		val, err := iter.ValueAndErr()
		if err != nil {
			_ = iter.Close()
			return err
		}
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		valCopy := make([]byte, len(val))
		copy(valCopy, val)
		if err := fn(key, valCopy); err != nil {
			_ = iter.Close()
			return err
		}
	}
	return iter.Close()
}

// upperBound returns the smallest key greater than every key with the
// prefix, or nil when there is none
func upperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (d *Store) GetCommitTimestamp() (int64, error) {
	val, err := d.Get(types.CommitTimestampKey)
	if errors.Is(err, types.ErrBlobKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return types.DecodeCommitTimestamp(val)
}

func (d *Store) SetCommitTimestamp(timestamp int64) error {
	return d.Set(types.CommitTimestampKey, types.EncodeCommitTimestamp(timestamp))
}
